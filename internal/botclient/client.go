// Package botclient talks to a running shopbot server over its HTTP API. The
// chat console and the sheets subcommands are built on it.
package botclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

type ChatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type ChatResponse struct {
	Segments []string `json:"segments"`
	Reply    string   `json:"reply"`
}

type Info struct {
	Name        string   `json:"name"`
	Environment string   `json:"environment"`
	Model       string   `json:"model"`
	Stages      []string `json:"stages"`
}

type SheetList struct {
	Sheets []string `json:"sheets"`
	Count  int      `json:"count"`
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout < time.Second {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) Chat(ctx context.Context, input ChatRequest) (ChatResponse, error) {
	input.Text = strings.TrimSpace(input.Text)
	if input.Text == "" {
		return ChatResponse{}, fmt.Errorf("text is required")
	}
	requestBody, err := json.Marshal(input)
	if err != nil {
		return ChatResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/chat", bytes.NewReader(requestBody))
	if err != nil {
		return ChatResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	var response ChatResponse
	if err := c.doJSON(req, &response); err != nil {
		return ChatResponse{}, err
	}
	return response, nil
}

func (c *Client) Info(ctx context.Context) (Info, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/info", nil)
	if err != nil {
		return Info{}, err
	}
	var response Info
	if err := c.doJSON(req, &response); err != nil {
		return Info{}, err
	}
	return response, nil
}

func (c *Client) ListSheets(ctx context.Context) (SheetList, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/sheets", nil)
	if err != nil {
		return SheetList{}, err
	}
	var response SheetList
	if err := c.doJSON(req, &response); err != nil {
		return SheetList{}, err
	}
	return response, nil
}

func (c *Client) SyncSheets(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/sheets/sync", nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, nil)
}

func (c *Client) doJSON(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode >= http.StatusBadRequest {
		var apiError struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(res.Body).Decode(&apiError)
		if strings.TrimSpace(apiError.Error) == "" {
			apiError.Error = res.Status
		}
		return errors.New(apiError.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
