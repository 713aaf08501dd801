package llm

import (
	"context"
	"errors"
)

var ErrUnavailable = errors.New("llm unavailable")

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Completer wraps the external completion capability. Both calls may be slow,
// fallible and rate-limited; callers bound them with a context deadline.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
	CompleteImage(ctx context.Context, messages []Message, image []byte) (string, error)
}
