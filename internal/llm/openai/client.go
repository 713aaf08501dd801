// Package openai is a minimal client for OpenAI-compatible chat completion
// endpoints, including the vision variant used to describe customer photos.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hrlight/shopbot/internal/llm"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

func (c *Client) Complete(ctx context.Context, messages []llm.Message) (string, error) {
	payload := map[string]any{
		"model":    c.cfg.Model,
		"messages": encodeMessages(messages),
	}
	return c.post(ctx, payload)
}

func (c *Client) CompleteImage(ctx context.Context, messages []llm.Message, image []byte) (string, error) {
	if len(image) == 0 {
		return "", fmt.Errorf("%w: empty image", llm.ErrUnavailable)
	}
	encoded := encodeMessages(messages)
	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(image)
	encoded = append(encoded, map[string]any{
		"role": llm.RoleUser,
		"content": []map[string]any{
			{
				"type":      "image_url",
				"image_url": map[string]string{"url": dataURI},
			},
		},
	})
	payload := map[string]any{
		"model":    c.cfg.Model,
		"messages": encoded,
	}
	return c.post(ctx, payload)
}

func encodeMessages(messages []llm.Message) []map[string]any {
	encoded := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		if strings.TrimSpace(message.Content) == "" {
			continue
		}
		encoded = append(encoded, map[string]any{
			"role":    message.Role,
			"content": message.Content,
		})
	}
	return encoded
}

func (c *Client) post(ctx context.Context, payload map[string]any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal completion request: %w", err)
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey := strings.TrimSpace(c.cfg.APIKey); apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", llm.ErrUnavailable, err)
	}
	defer res.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", llm.ErrUnavailable, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		c.logger.Warn("completion endpoint returned error", "status", res.StatusCode)
		return "", fmt.Errorf("%w: status %d", llm.ErrUnavailable, res.StatusCode)
	}

	var parsed completionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %v", llm.ErrUnavailable, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty choices", llm.ErrUnavailable)
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}
