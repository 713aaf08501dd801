package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// LINE caps a single reply call at five message objects.
const maxReplySegments = 5

const maxContentBytes = 10 << 20

// replyMessage delivers the reply segments through the reply token. Segments
// beyond the platform cap are dropped with a warning rather than failing the
// whole turn.
func (c *Connector) replyMessage(ctx context.Context, replyToken string, segments []string) error {
	if replyToken == "" {
		return fmt.Errorf("reply token missing")
	}
	messages := make([]textMessage, 0, len(segments))
	for _, segment := range segments {
		if segment == "" {
			continue
		}
		if len(messages) == maxReplySegments {
			c.logger.Warn("reply segments truncated", "dropped", len(segments)-maxReplySegments)
			break
		}
		messages = append(messages, textMessage{Type: "text", Text: segment})
	}
	if len(messages) == 0 {
		return nil
	}

	payload, err := json.Marshal(replyRequest{ReplyToken: replyToken, Messages: messages})
	if err != nil {
		return fmt.Errorf("encode reply payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/v2/bot/message/reply", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("reply rejected with status %d: %s", resp.StatusCode, string(detail))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// fetchMessageContent downloads the binary content of a media message from
// the data endpoint.
func (c *Connector) fetchMessageContent(ctx context.Context, messageID string) ([]byte, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id missing")
	}
	url := fmt.Sprintf("%s/v2/bot/message/%s/content", c.dataAPIBase, messageID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build content request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("content fetch rejected with status %d", resp.StatusCode)
	}
	content, err := io.ReadAll(io.LimitReader(resp.Body, maxContentBytes))
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	return content, nil
}
