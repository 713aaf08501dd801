// Package chatlog appends conversation turns to per-user markdown files so a
// shop operator can audit what the bot told a customer.
package chatlog

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Entry struct {
	Root      string
	UserID    string
	Direction string
	ActorID   string
	Text      string
	Timestamp time.Time
}

var pathSanitizer = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// Append writes one turn to <root>/chats/<user>.md, creating the file with a
// header on first use. Entries with no root or no text are silently skipped.
func Append(entry Entry) error {
	root := strings.TrimSpace(entry.Root)
	if root == "" {
		return nil
	}
	text := strings.TrimSpace(entry.Text)
	if text == "" {
		return nil
	}

	userID := sanitizeSegment(entry.UserID)
	if userID == "" {
		userID = "unknown"
	}
	timestamp := entry.Timestamp.UTC()
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	baseDir := filepath.Join(root, "chats")
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}
	logPath := filepath.Join(baseDir, userID+".md")

	header := ""
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		header = fmt.Sprintf("# Chat Log\n\n- user_id: `%s`\n\n", userID)
	}

	direction := strings.TrimSpace(strings.ToLower(entry.Direction))
	if direction == "" {
		direction = "inbound"
	}
	actor := strings.TrimSpace(entry.ActorID)
	if actor == "" {
		actor = "system"
	}
	body := fmt.Sprintf(
		"## %s `%s`\n- entry: `%s`\n- direction: `%s`\n- actor: `%s`\n\n%s\n\n",
		timestamp.Format(time.RFC3339),
		strings.ToUpper(direction),
		uuid.NewString(),
		direction,
		actor,
		text,
	)

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	if header != "" {
		if _, err := file.WriteString(header); err != nil {
			return err
		}
	}
	if _, err := file.WriteString(body); err != nil {
		return err
	}
	return nil
}

func sanitizeSegment(value string) string {
	trimmed := strings.TrimSpace(value)
	trimmed = strings.ReplaceAll(trimmed, " ", "-")
	trimmed = pathSanitizer.ReplaceAllString(trimmed, "-")
	trimmed = strings.Trim(trimmed, "-.")
	return strings.ToLower(trimmed)
}
