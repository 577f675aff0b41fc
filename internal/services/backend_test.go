package services_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lumenlabs/agentchat/internal/bus"
	"github.com/lumenlabs/agentchat/internal/services"
	"github.com/lumenlabs/agentchat/internal/stream"
)

func TestBackendConversations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/conversations" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer token-123" {
			t.Errorf("Authorization = %q, want bearer token", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"conversations":[{"id":"c1","title":"Trip planning"}]}`))
	}))
	defer srv.Close()

	backend := newTestBackend(srv.URL, nil)
	conversations, err := backend.Conversations(context.Background())
	if err != nil {
		t.Fatalf("Conversations() error = %v", err)
	}
	if len(conversations) != 1 || conversations[0].ID != "c1" || conversations[0].Title != "Trip planning" {
		t.Errorf("Conversations() = %+v", conversations)
	}
}

func TestBackendHistory(t *testing.T) {
	payload := `{"messages":[
		{"id":"1","role":"user","content":"hi","timestamp":"2025-06-01T12:00:00Z"},
		{"id":"2","role":"assistant","content":"","tool_calls":[{"id":"tc-1","name":"search","arguments":"{}"}]},
		{"id":"3","role":"tool","content":"result","tool_id":"tc-1","tool_name":"search"},
		{"id":"4","role":"assistant","content":"answer"}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/conversations/c1/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	backend := newTestBackend(srv.URL, nil)
	history, err := backend.History(context.Background(), "c1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}

	if len(history) != 4 {
		t.Fatalf("History() length = %d, want 4", len(history))
	}
	if history[0].Role != "user" || history[0].Content != "hi" {
		t.Errorf("history[0] = %+v", history[0])
	}
	if len(history[1].ToolCalls) != 1 || history[1].ToolCalls[0].ID != "tc-1" {
		t.Errorf("history[1].ToolCalls = %+v", history[1].ToolCalls)
	}
	if history[2].ToolID != "tc-1" || history[2].ToolName != "search" {
		t.Errorf("history[2] = %+v", history[2])
	}
}

func TestBackendStream(t *testing.T) {
	frames := "event: thinking_start\ndata: {}\n\n" +
		"event: delta\ndata: {\"content\":\"Hel\"}\n\n" +
		"event: delta\ndata: {\"content\":\"lo\"}\n\n" +
		"event: message\ndata: {\"id\":\"m1\",\"content\":\"Hello\"}\n\n" +
		"event: done\ndata: {}\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(frames))
	}))
	defer srv.Close()

	backend := newTestBackend(srv.URL, nil)

	var events []stream.Event
	for ev, err := range backend.Stream(context.Background(), "c1", "say hello") {
		if err != nil {
			t.Fatalf("Stream() yielded error: %v", err)
		}
		events = append(events, ev)
	}

	want := []stream.Event{
		stream.ThinkingStart{},
		stream.Delta{Content: "Hel"},
		stream.Delta{Content: "lo"},
		stream.MessageComplete{ID: "m1", Content: "Hello"},
		stream.Done{},
	}
	if len(events) != len(want) {
		t.Fatalf("Stream() yielded %d events (%+v), want %d", len(events), events, len(want))
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("events[%d] = %#v, want %#v", i, events[i], want[i])
		}
	}
}

func TestBackendStreamMalformedFrameBecomesErrorEvent(t *testing.T) {
	frames := "event: delta\ndata: {not json\n\n" +
		"event: delta\ndata: {\"content\":\"still alive\"}\n\n"

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte(frames))
	}))
	defer srv.Close()

	backend := newTestBackend(srv.URL, nil)

	var events []stream.Event
	for ev, err := range backend.Stream(context.Background(), "c1", "hi") {
		if err != nil {
			t.Fatalf("Stream() yielded error: %v", err)
		}
		events = append(events, ev)
	}

	if len(events) != 2 {
		t.Fatalf("Stream() yielded %d events, want 2", len(events))
	}
	errEv, ok := events[0].(stream.ErrorEvent)
	if !ok || errEv.Code != "parse_error" {
		t.Errorf("events[0] = %#v, want parse_error ErrorEvent", events[0])
	}
	if delta, ok := events[1].(stream.Delta); !ok || delta.Content != "still alive" {
		t.Errorf("events[1] = %#v, want delta after the bad frame", events[1])
	}
}

func TestBackendSessionExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	notices := bus.New()
	ch, cancel := notices.Subscribe()
	defer cancel()

	backend := newTestBackend(srv.URL, notices)
	_, err := backend.History(context.Background(), "c1")
	if !errors.Is(err, services.ErrSessionExpired) {
		t.Fatalf("History() error = %v, want ErrSessionExpired", err)
	}

	select {
	case notice := <-ch:
		if notice.Reason != "session expired" {
			t.Errorf("notice.Reason = %q", notice.Reason)
		}
	case <-time.After(time.Second):
		t.Error("no session-expiry notice published")
	}
}

func newTestBackend(url string, notices *bus.Bus) *services.Backend {
	token := func(context.Context) (string, error) { return "token-123", nil }
	return services.NewBackend(url, token, notices, slog.Default())
}
