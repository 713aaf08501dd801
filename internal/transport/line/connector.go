// Package line bridges LINE Messaging API webhooks into the resolution
// engine: signature verification, event dispatch, reply delivery and image
// content download.
package line

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hrlight/shopbot/internal/chatlog"
	"github.com/hrlight/shopbot/internal/engine"
)

const maxWebhookBytes = 1 << 20

type MessageEngine interface {
	HandleText(ctx context.Context, msg engine.Inbound) engine.Reply
	HandleImage(ctx context.Context, msg engine.Inbound) engine.Reply
	HandleUnsupported(msg engine.Inbound) engine.Reply
}

type Connector struct {
	channelSecret string
	channelToken  string
	apiBase       string
	dataAPIBase   string
	logRoot       string
	engine        MessageEngine
	httpClient    *http.Client
	logger        *slog.Logger
}

func New(channelSecret, channelToken, apiBase, dataAPIBase, logRoot string, messageEngine MessageEngine, logger *slog.Logger) *Connector {
	if strings.TrimSpace(apiBase) == "" {
		apiBase = "https://api.line.me"
	}
	if strings.TrimSpace(dataAPIBase) == "" {
		dataAPIBase = "https://api-data.line.me"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		channelSecret: strings.TrimSpace(channelSecret),
		channelToken:  strings.TrimSpace(channelToken),
		apiBase:       strings.TrimRight(strings.TrimSpace(apiBase), "/"),
		dataAPIBase:   strings.TrimRight(strings.TrimSpace(dataAPIBase), "/"),
		logRoot:       strings.TrimSpace(logRoot),
		engine:        messageEngine,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// Callback is the webhook endpoint handler. LINE expects a prompt 200; event
// processing failures are logged, never surfaced to the platform.
func (c *Connector) Callback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		http.Error(w, "read body failed", http.StatusBadRequest)
		return
	}

	if c.channelSecret != "" {
		if !ValidateSignature(c.channelSecret, r.Header.Get("X-Line-Signature"), body) {
			c.logger.Warn("webhook signature rejected")
			http.Error(w, "invalid signature", http.StatusBadRequest)
			return
		}
	} else {
		c.logger.Warn("channel secret missing, webhook signature not verified")
	}

	payload, err := parseWebhook(body)
	if err != nil {
		c.logger.Warn("webhook payload rejected", "error", err)
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	for _, event := range payload.Events {
		if err := c.handleEvent(r.Context(), event); err != nil {
			c.logger.Error("webhook event failed", "type", event.Type, "error", err)
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (c *Connector) handleEvent(ctx context.Context, event webhookEvent) error {
	if event.Type != "message" || event.Message == nil {
		return nil
	}
	userID := strings.TrimSpace(event.Source.UserID)
	if userID == "" {
		return nil
	}

	var reply engine.Reply
	switch event.Message.Type {
	case "text":
		c.logTurn(userID, "inbound", userID, event.Message.Text)
		reply = c.engine.HandleText(ctx, engine.Inbound{UserID: userID, Text: event.Message.Text})
	case "image":
		c.logTurn(userID, "inbound", userID, "[image]")
		image, err := c.fetchMessageContent(ctx, event.Message.ID)
		if err != nil {
			c.logger.Warn("image content download failed", "message_id", event.Message.ID, "error", err)
		}
		reply = c.engine.HandleImage(ctx, engine.Inbound{UserID: userID, Image: image})
	default:
		reply = c.engine.HandleUnsupported(engine.Inbound{UserID: userID})
	}

	c.logTurn(userID, "outbound", "shopbot", reply.Text())
	return c.replyMessage(ctx, event.ReplyToken, reply.Segments)
}

func (c *Connector) logTurn(userID, direction, actor, text string) {
	if c.logRoot == "" {
		return
	}
	if err := chatlog.Append(chatlog.Entry{
		Root:      c.logRoot,
		UserID:    userID,
		Direction: direction,
		ActorID:   actor,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("chat log append failed", "user_id", userID, "error", err)
	}
}
