package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

type webhookPayload struct {
	Destination string         `json:"destination"`
	Events      []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type       string          `json:"type"`
	ReplyToken string          `json:"replyToken"`
	Timestamp  int64           `json:"timestamp"`
	Source     webhookSource   `json:"source"`
	Message    *webhookMessage `json:"message"`
}

type webhookSource struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
}

type webhookMessage struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Text string `json:"text"`
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type replyRequest struct {
	ReplyToken string        `json:"replyToken"`
	Messages   []textMessage `json:"messages"`
}

func parseWebhook(body []byte) (webhookPayload, error) {
	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return webhookPayload{}, fmt.Errorf("decode webhook payload: %w", err)
	}
	return payload, nil
}

// ValidateSignature checks the X-Line-Signature header: base64 of the
// HMAC-SHA256 of the raw body keyed by the channel secret.
func ValidateSignature(channelSecret, signature string, body []byte) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// Sign computes the signature value LINE would send for body. Used by the
// tests and by local tooling that replays webhooks.
func Sign(channelSecret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
