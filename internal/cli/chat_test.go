package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hrlight/shopbot/internal/chatlog"
)

const sampleChatLog = "# Chat Log\n\n- user_id: `u123`\n\n" +
	"## 2026-03-01T10:00:00Z `INBOUND`\n- entry: `a1`\n- direction: `inbound`\n- actor: `u123`\n\nJETSR 烤漆多少\n\n" +
	"## 2026-03-01T10:00:01Z `OUTBOUND`\n- entry: `a2`\n- direction: `outbound`\n- actor: `shopbot`\n\n「JETSR」基本烤漆為 1000 元起\n\n" +
	"## 2026-03-01T10:01:00Z `INBOUND`\n- entry: `a3`\n- direction: `inbound`\n- actor: `u123`\n\n消光黑\n\n"

func TestParseChatLogContent(t *testing.T) {
	entries := parseChatLogContent(sampleChatLog)
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	if entries[0].Direction != "inbound" || entries[0].Text != "JETSR 烤漆多少" {
		t.Fatalf("unexpected first entry %+v", entries[0])
	}
	if entries[1].Direction != "outbound" || entries[1].Actor != "shopbot" {
		t.Fatalf("unexpected second entry %+v", entries[1])
	}
	want := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !entries[0].Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", entries[0].Timestamp, want)
	}
}

func TestInboundEntriesFiltersOutbound(t *testing.T) {
	inbound := inboundEntries(parseChatLogContent(sampleChatLog))
	if len(inbound) != 2 {
		t.Fatalf("inbound = %d, want 2", len(inbound))
	}
	if inbound[1].Text != "消光黑" {
		t.Fatalf("unexpected inbound entry %+v", inbound[1])
	}
}

func TestParseChatLogRoundTripsAppendFormat(t *testing.T) {
	root := t.TempDir()
	turns := []chatlog.Entry{
		{Root: root, UserID: "U9", Direction: "inbound", ActorID: "U9", Text: "有貨嗎"},
		{Root: root, UserID: "U9", Direction: "outbound", ActorID: "shopbot", Text: "有喔"},
	}
	for _, turn := range turns {
		if err := chatlog.Append(turn); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	entries, err := parseChatLogFile(filepath.Join(root, "chats", "u9.md"))
	if err != nil {
		t.Fatalf("parseChatLogFile() error = %v", err)
	}
	inbound := inboundEntries(entries)
	if len(inbound) != 1 || inbound[0].Text != "有貨嗎" {
		t.Fatalf("unexpected inbound %+v", inbound)
	}
}

func TestParseChatLogFileMissing(t *testing.T) {
	if _, err := parseChatLogFile(filepath.Join(t.TempDir(), "missing.md")); !os.IsNotExist(err) {
		t.Fatalf("error = %v, want not-exist", err)
	}
}

func TestBoundedTimeout(t *testing.T) {
	if got := boundedTimeout(0); got != 60*time.Second {
		t.Fatalf("boundedTimeout(0) = %v", got)
	}
	if got := boundedTimeout(5); got != 5*time.Second {
		t.Fatalf("boundedTimeout(5) = %v", got)
	}
	if got := boundedTimeout(10000); got != 600*time.Second {
		t.Fatalf("boundedTimeout(10000) = %v", got)
	}
}

func TestCompactLine(t *testing.T) {
	if got := compactLine("  a\n b\tc  ", 0); got != "a b c" {
		t.Fatalf("compactLine = %q", got)
	}
	if got := compactLine("abcdef", 3); got != "abc..." {
		t.Fatalf("compactLine = %q", got)
	}
}
