package line

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hrlight/shopbot/internal/engine"
)

type fakeEngine struct {
	textCalls        []engine.Inbound
	imageCalls       []engine.Inbound
	unsupportedCalls []engine.Inbound
	reply            engine.Reply
}

func (f *fakeEngine) HandleText(_ context.Context, msg engine.Inbound) engine.Reply {
	f.textCalls = append(f.textCalls, msg)
	return f.reply
}

func (f *fakeEngine) HandleImage(_ context.Context, msg engine.Inbound) engine.Reply {
	f.imageCalls = append(f.imageCalls, msg)
	return f.reply
}

func (f *fakeEngine) HandleUnsupported(msg engine.Inbound) engine.Reply {
	f.unsupportedCalls = append(f.unsupportedCalls, msg)
	return f.reply
}

type lineAPIStub struct {
	mux        *http.ServeMux
	replies    []replyRequest
	content    []byte
	contentErr int
}

func newLineAPIStub() *lineAPIStub {
	stub := &lineAPIStub{mux: http.NewServeMux(), content: []byte("jpeg-bytes")}
	stub.mux.HandleFunc("/v2/bot/message/reply", func(w http.ResponseWriter, r *http.Request) {
		var req replyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		stub.replies = append(stub.replies, req)
		w.WriteHeader(http.StatusOK)
	})
	stub.mux.HandleFunc("/v2/bot/message/", func(w http.ResponseWriter, r *http.Request) {
		if stub.contentErr != 0 {
			w.WriteHeader(stub.contentErr)
			return
		}
		w.Write(stub.content)
	})
	return stub
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func webhookBody(t *testing.T, events ...webhookEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(webhookPayload{Destination: "Uxxx", Events: events})
	if err != nil {
		t.Fatalf("marshal webhook: %v", err)
	}
	return raw
}

func textEvent(userID, text string) webhookEvent {
	return webhookEvent{
		Type:       "message",
		ReplyToken: "rt-1",
		Source:     webhookSource{Type: "user", UserID: userID},
		Message:    &webhookMessage{ID: "m-1", Type: "text", Text: text},
	}
}

func postWebhook(t *testing.T, connector *Connector, secret string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(string(body)))
	if secret != "" {
		req.Header.Set("X-Line-Signature", Sign(secret, body))
	}
	rec := httptest.NewRecorder()
	connector.Callback(rec, req)
	return rec
}

func TestCallbackRejectsBadSignature(t *testing.T) {
	stub := newLineAPIStub()
	server := httptest.NewServer(stub.mux)
	defer server.Close()

	eng := &fakeEngine{reply: engine.Reply{Segments: []string{"hi"}}}
	connector := New("secret", "token", server.URL, server.URL, "", eng, discardLogger())

	body := webhookBody(t, textEvent("U1", "哈囉"))
	req := httptest.NewRequest(http.MethodPost, "/callback", strings.NewReader(string(body)))
	req.Header.Set("X-Line-Signature", Sign("wrong-secret", body))
	rec := httptest.NewRecorder()
	connector.Callback(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if len(eng.textCalls) != 0 {
		t.Fatalf("engine called despite bad signature")
	}
}

func TestCallbackDispatchesTextAndReplies(t *testing.T) {
	stub := newLineAPIStub()
	server := httptest.NewServer(stub.mux)
	defer server.Close()

	eng := &fakeEngine{reply: engine.Reply{Segments: []string{"您好，歡迎光臨", "回覆內容"}}}
	connector := New("secret", "token", server.URL, server.URL, "", eng, discardLogger())

	rec := postWebhook(t, connector, "secret", webhookBody(t, textEvent("U1", "營業時間")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(eng.textCalls) != 1 || eng.textCalls[0].Text != "營業時間" || eng.textCalls[0].UserID != "U1" {
		t.Fatalf("unexpected text calls %+v", eng.textCalls)
	}
	if len(stub.replies) != 1 {
		t.Fatalf("expected 1 reply call, got %d", len(stub.replies))
	}
	reply := stub.replies[0]
	if reply.ReplyToken != "rt-1" {
		t.Fatalf("reply token = %q", reply.ReplyToken)
	}
	if len(reply.Messages) != 2 || reply.Messages[0].Text != "您好，歡迎光臨" {
		t.Fatalf("unexpected reply messages %+v", reply.Messages)
	}
}

func TestCallbackDownloadsImageContent(t *testing.T) {
	stub := newLineAPIStub()
	server := httptest.NewServer(stub.mux)
	defer server.Close()

	eng := &fakeEngine{reply: engine.Reply{Segments: []string{"收到您的圖片了！"}}}
	connector := New("secret", "token", server.URL, server.URL, "", eng, discardLogger())

	event := webhookEvent{
		Type:       "message",
		ReplyToken: "rt-2",
		Source:     webhookSource{Type: "user", UserID: "U2"},
		Message:    &webhookMessage{ID: "img-7", Type: "image"},
	}
	rec := postWebhook(t, connector, "secret", webhookBody(t, event))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(eng.imageCalls) != 1 {
		t.Fatalf("expected 1 image call, got %d", len(eng.imageCalls))
	}
	if string(eng.imageCalls[0].Image) != "jpeg-bytes" {
		t.Fatalf("image bytes = %q", eng.imageCalls[0].Image)
	}
}

func TestCallbackImageDownloadFailureStillReplies(t *testing.T) {
	stub := newLineAPIStub()
	stub.contentErr = http.StatusNotFound
	server := httptest.NewServer(stub.mux)
	defer server.Close()

	eng := &fakeEngine{reply: engine.Reply{Segments: []string{"不好意思，圖片處理失敗了"}}}
	connector := New("secret", "token", server.URL, server.URL, "", eng, discardLogger())

	event := webhookEvent{
		Type:       "message",
		ReplyToken: "rt-3",
		Source:     webhookSource{Type: "user", UserID: "U3"},
		Message:    &webhookMessage{ID: "img-8", Type: "image"},
	}
	rec := postWebhook(t, connector, "secret", webhookBody(t, event))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(eng.imageCalls) != 1 || eng.imageCalls[0].Image != nil {
		t.Fatalf("expected image call with nil bytes, got %+v", eng.imageCalls)
	}
	if len(stub.replies) != 1 {
		t.Fatalf("expected retry reply to be sent, got %d calls", len(stub.replies))
	}
}

func TestCallbackRoutesUnsupportedTypes(t *testing.T) {
	stub := newLineAPIStub()
	server := httptest.NewServer(stub.mux)
	defer server.Close()

	eng := &fakeEngine{reply: engine.Reply{Segments: []string{"我目前只看得懂文字和圖片訊息喔！"}}}
	connector := New("secret", "token", server.URL, server.URL, "", eng, discardLogger())

	event := webhookEvent{
		Type:       "message",
		ReplyToken: "rt-4",
		Source:     webhookSource{Type: "user", UserID: "U4"},
		Message:    &webhookMessage{ID: "s-1", Type: "sticker"},
	}
	rec := postWebhook(t, connector, "secret", webhookBody(t, event))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(eng.unsupportedCalls) != 1 {
		t.Fatalf("expected 1 unsupported call, got %d", len(eng.unsupportedCalls))
	}
	if len(eng.textCalls) != 0 || len(eng.imageCalls) != 0 {
		t.Fatalf("sticker routed to wrong handler")
	}
}

func TestCallbackIgnoresNonMessageEvents(t *testing.T) {
	stub := newLineAPIStub()
	server := httptest.NewServer(stub.mux)
	defer server.Close()

	eng := &fakeEngine{}
	connector := New("secret", "token", server.URL, server.URL, "", eng, discardLogger())

	event := webhookEvent{Type: "follow", Source: webhookSource{Type: "user", UserID: "U5"}}
	rec := postWebhook(t, connector, "secret", webhookBody(t, event))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if len(stub.replies) != 0 {
		t.Fatalf("expected no replies for follow event")
	}
}

func TestReplyMessageCapsSegments(t *testing.T) {
	stub := newLineAPIStub()
	server := httptest.NewServer(stub.mux)
	defer server.Close()

	connector := New("secret", "token", server.URL, server.URL, "", &fakeEngine{}, discardLogger())
	segments := []string{"1", "2", "3", "4", "5", "6", "7"}
	if err := connector.replyMessage(context.Background(), "rt-5", segments); err != nil {
		t.Fatalf("replyMessage() error = %v", err)
	}
	if len(stub.replies) != 1 || len(stub.replies[0].Messages) != maxReplySegments {
		t.Fatalf("unexpected reply payload %+v", stub.replies)
	}
}

func TestValidateSignature(t *testing.T) {
	body := []byte(`{"events":[]}`)
	if !ValidateSignature("secret", Sign("secret", body), body) {
		t.Fatal("expected valid signature to pass")
	}
	if ValidateSignature("secret", Sign("other", body), body) {
		t.Fatal("expected mismatched secret to fail")
	}
	if ValidateSignature("secret", "not-base64!!", body) {
		t.Fatal("expected malformed signature to fail")
	}
}
