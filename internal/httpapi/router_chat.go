package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hrlight/shopbot/internal/chatlog"
	"github.com/hrlight/shopbot/internal/engine"
)

// ChatEngine is the slice of the resolution engine the direct chat endpoint
// needs.
type ChatEngine interface {
	HandleText(ctx context.Context, msg engine.Inbound) engine.Reply
}

type chatRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

// handleChat runs a text turn through the engine without going through the
// LINE webhook. It backs the local chat console and manual testing.
func (r *router) handleChat(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if r.deps.Engine == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "engine is unavailable"})
		return
	}

	var payload chatRequest
	if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	text := strings.TrimSpace(payload.Text)
	if text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}
	userID := strings.TrimSpace(payload.UserID)
	if userID == "" {
		userID = "console"
	}

	r.appendChatLogEntry(userID, "inbound", userID, text)
	reply := r.deps.Engine.HandleText(req.Context(), engine.Inbound{UserID: userID, Text: text})
	if joined := reply.Text(); joined != "" {
		r.appendChatLogEntry(userID, "outbound", "shopbot", joined)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"segments": reply.Segments,
		"reply":    reply.Text(),
	})
}

func (r *router) appendChatLogEntry(userID, direction, actorID, text string) {
	root := strings.TrimSpace(r.deps.Config.ChatLogDir)
	if root == "" {
		return
	}
	if err := chatlog.Append(chatlog.Entry{
		Root:      root,
		UserID:    userID,
		Direction: direction,
		ActorID:   actorID,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}); err != nil && r.deps.Logger != nil {
		r.deps.Logger.Warn("failed to append api chat log", "error", err, "user_id", userID)
	}
}
