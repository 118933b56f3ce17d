package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hostline/concierge/internal/agent"
	"github.com/hostline/concierge/internal/log"
)

type stubResponder struct {
	reply *agent.Reply
	err   error

	gotChatID  string
	gotMessage string
}

func (s *stubResponder) Respond(_ context.Context, chatID, message string) (*agent.Reply, error) {
	s.gotChatID = chatID
	s.gotMessage = message
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

func postChat(t *testing.T, responder Responder, body string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewChatHandler(responder, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestChatSuccess(t *testing.T) {
	stub := &stubResponder{reply: &agent.Reply{
		Text:      "Check-in is at 3 PM.",
		ChatID:    "wa-123",
		ModelUsed: "googleai/gemini-2.5-flash",
		ToolsUsed: []string{"checkAvailability"},
		Success:   true,
		Persisted: true,
		State:     agent.StatePersisted,
	}}

	rec := postChat(t, stub, `{"chatId":"wa-123","message":"When is check-in?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if stub.gotChatID != "wa-123" || stub.gotMessage != "When is check-in?" {
		t.Errorf("responder got (%q, %q)", stub.gotChatID, stub.gotMessage)
	}

	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Response != "Check-in is at 3 PM." || !resp.Success {
		t.Errorf("resp = %+v", resp)
	}
	if len(resp.ToolsUsed) != 1 || resp.ToolsUsed[0] != "checkAvailability" {
		t.Errorf("ToolsUsed = %v", resp.ToolsUsed)
	}
}

func TestChatEmptyToolsSerializedAsArray(t *testing.T) {
	stub := &stubResponder{reply: &agent.Reply{
		Text:    "Hello!",
		ChatID:  "wa-1",
		Success: true,
	}}

	rec := postChat(t, stub, `{"chatId":"wa-1","message":"hi"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"toolsUsed":[]`) {
		t.Errorf("nil ToolsUsed must serialize as [], body = %s", rec.Body.String())
	}
}

func TestChatFallbackPassthrough(t *testing.T) {
	stub := &stubResponder{reply: &agent.Reply{
		Text:    "I'm sorry, I couldn't process your message right now. Please try again in a moment.",
		ChatID:  "wa-1",
		Success: false,
		State:   agent.StateFailed,
	}}

	rec := postChat(t, stub, `{"chatId":"wa-1","message":"hi"}`)
	// A fallback still delivers with 200; Success tells the caller.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ChatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Success {
		t.Error("Success should be false for a fallback reply")
	}
}

func TestChatBadRequests(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{"chatId": "wa-1"`},
		{"missing chat id", `{"message":"hi"}`},
		{"missing message", `{"chatId":"wa-1"}`},
		{"empty body", ``},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postChat(t, &stubResponder{}, tc.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Error != "invalid_request" {
				t.Errorf("error = %q", resp.Error)
			}
		})
	}
}

func TestChatInvalidInputMapsTo400(t *testing.T) {
	stub := &stubResponder{err: fmt.Errorf("%w: empty message", agent.ErrInvalidInput)}
	rec := postChat(t, stub, `{"chatId":"wa-1","message":" "}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestChatInternalError(t *testing.T) {
	stub := &stubResponder{err: errors.New("conversation window: connection refused")}
	rec := postChat(t, stub, `{"chatId":"wa-1","message":"hi"}`)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error != "internal_error" {
		t.Errorf("error = %q", resp.Error)
	}
	// Internal details stay out of the response body.
	if strings.Contains(rec.Body.String(), "connection refused") {
		t.Errorf("body leaks internals: %s", rec.Body.String())
	}
}

func TestChatMethodNotAllowed(t *testing.T) {
	h := NewChatHandler(&stubResponder{}, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}
