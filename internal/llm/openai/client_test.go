package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hrlight/shopbot/internal/llm"
)

func completionBody(text string) string {
	return `{"choices":[{"message":{"content":"` + text + `"}}]}`
}

func TestComplete(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.Write([]byte(completionBody("您好！")))
	}))
	defer server.Close()

	client := New(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o"}, nil)
	reply, err := client.Complete(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "persona"},
		{Role: llm.RoleUser, Content: "你們幾點開門"},
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if reply != "您好！" {
		t.Fatalf("unexpected reply %q", reply)
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages sent, got %d", len(messages))
	}
}

func TestCompleteServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, nil)
	_, err := client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestCompleteImageSendsDataURI(t *testing.T) {
	var rawBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, r.ContentLength)
		r.Body.Read(buf)
		rawBody = string(buf)
		w.Write([]byte(completionBody("一顆尾燈")))
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL}, nil)
	reply, err := client.CompleteImage(context.Background(), []llm.Message{
		{Role: llm.RoleSystem, Content: "describe"},
	}, []byte{0xff, 0xd8, 0xff})
	if err != nil {
		t.Fatalf("complete image: %v", err)
	}
	if reply != "一顆尾燈" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if !strings.Contains(rawBody, "data:image/jpeg;base64,") {
		t.Fatal("expected image sent as data URI")
	}
}

func TestCompleteImageEmptyBytes(t *testing.T) {
	client := New(Config{BaseURL: "http://127.0.0.1:0"}, nil)
	if _, err := client.CompleteImage(context.Background(), nil, nil); !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable for empty image, got %v", err)
	}
}

func TestTimeoutSurfacesAsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := New(Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond}, nil)
	_, err := client.Complete(context.Background(), []llm.Message{{Role: llm.RoleUser, Content: "hi"}})
	if !errors.Is(err, llm.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable on timeout, got %v", err)
	}
}
