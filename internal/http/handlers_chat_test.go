package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/agent"
	applog "fintrack/internal/log"
	"fintrack/internal/services"
	"fintrack/internal/storage/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatNotConfigured(t *testing.T) {
	srv := newTestServer(t, nil)
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/chat", `{"message":"hi"}`},
		{http.MethodGet, "/api/v1/chat/sessions", ""},
		{http.MethodGet, "/api/v1/chat/sessions/abc", ""},
	} {
		rec := do(t, srv, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, tc.path)
	}
}

func TestChatJSON(t *testing.T) {
	chat := &fakeChat{final: agent.Message{ID: "a1", Role: agent.RoleAssistant, Content: "You spent 1330."}}
	srv := newTestServer(t, chat)

	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"session_id":"s-1","message":"  How much did I spend?  "}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[chatResponse](t, rec)
	assert.Equal(t, "s-1", resp.SessionID)
	assert.Equal(t, "You spent 1330.", resp.Message.Content)
	assert.Equal(t, "How much did I spend?", chat.lastText)

	rec = do(t, srv, http.MethodPost, "/api/v1/chat", `{"message":"new one"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decodeBody[chatResponse](t, rec).SessionID)
	assert.NotEqual(t, "s-1", chat.lastSession)

	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/chat", `{"message":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, srv, http.MethodPost, "/api/v1/chat", `nope`).Code)
}

func TestChatJSONFailure(t *testing.T) {
	chat := &fakeChat{
		final: agent.Message{Role: agent.RoleAssistant, Content: agent.ErrorMessage},
		err:   errors.New("connection refused"),
	}
	srv := newTestServer(t, chat)

	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, agent.ErrorMessage, decodeBody[chatResponse](t, rec).Message.Content)

	rec = do(t, srv, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "chat_failures_total 1")
}

func TestChatSSE(t *testing.T) {
	chat := &fakeChat{
		snapshots: []agent.Message{
			{ID: "a1", Role: agent.RoleAssistant, Content: "Hel", Loading: true},
			{ID: "a1", Role: agent.RoleAssistant, Content: "Hello", Loading: true},
		},
		final: agent.Message{ID: "a1", Role: agent.RoleAssistant, Content: "Hello"},
	}
	srv := newTestServer(t, chat)

	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"session_id":"s-9","message":"hi"}`, "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "s-9", rec.Header().Get("X-Session-ID"))
	assert.True(t, rec.Flushed)

	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 3)
	for _, f := range frames {
		assert.True(t, strings.HasPrefix(f, "data: "), f)
	}
	assert.Contains(t, frames[2], `"content":"Hello"`)
	assert.Contains(t, frames[2], `"loading":false`)
}

// TestChatSSEThroughAgentClient runs the real agent client against a fake
// agent backend that streams two partial events and a tool call.
func TestChatSSEThroughAgentClient(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/run" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"content":{"parts":[{"functionCall":{"name":"get_transactions"}}]}}`+"\n\n")
		fmt.Fprint(w, `data: {"content":{"parts":[{"functionResponse":{"name":"get_transactions"}}]}}`+"\n\n")
		fmt.Fprint(w, `data: {"partial":true,"content":{"parts":[{"text":"Your bal"}]}}`+"\n\n")
		fmt.Fprint(w, `data: {"content":{"parts":[{"text":"Your balance is 4670."}]}}`+"\n\n")
	}))
	t.Cleanup(backend.Close)

	client := agent.NewClient(backend.URL, "u1", agent.WithLogger(applog.Discard().Slog()))
	svc := services.NewTransactionService(memory.New(1), nil)
	srv := NewServer(Options{Logger: applog.Discard()}, svc, client)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"message":"balance?"}`, "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `"content":"Your bal"`)
	frames := strings.Split(strings.TrimSpace(body), "\n\n")
	last := frames[len(frames)-1]
	assert.Contains(t, last, `"content":"Your balance is 4670."`)
	assert.Contains(t, last, `"loading":false`)
	for i := 1; i < len(frames); i++ {
		assert.NotEqual(t, frames[i-1], frames[i], "frame %d repeats the previous one", i)
	}
}

func TestChatSSESingleTextEvent(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"content":{"parts":[{"text":"Hello"}]}}`+"\n\n")
	}))
	t.Cleanup(backend.Close)

	client := agent.NewClient(backend.URL, "u1", agent.WithLogger(applog.Discard().Slog()))
	svc := services.NewTransactionService(memory.New(1), nil)
	srv := NewServer(Options{Logger: applog.Discard()}, svc, client)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	rec := do(t, srv, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`, "Accept", "text/event-stream")
	require.Equal(t, http.StatusOK, rec.Code)
	frames := strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n")
	require.Len(t, frames, 1, rec.Body.String())
	assert.Contains(t, frames[0], `"content":"Hello"`)
	assert.Contains(t, frames[0], `"parts":[]`)

	rec = do(t, srv, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"parts":[]`)
}

func TestChatSessionsCached(t *testing.T) {
	chat := &fakeChat{
		sessions: []agent.Session{{ID: "s-1", LastUpdateTime: 1714550400}},
		events: map[string][]agent.Event{
			"s-1": {
				{Author: "user", Content: &agent.Content{Role: "user", Parts: []agent.Part{{Text: "hi"}}}, Timestamp: 1714550400},
				{Author: "fintrack_agent", Content: &agent.Content{Parts: []agent.Part{{FunctionCall: &agent.FunctionCall{Name: "get_transactions"}}}}},
				{Author: "fintrack_agent", Content: &agent.Content{Role: "model", Parts: []agent.Part{{Text: "hello"}}}},
			},
		},
	}
	srv := newTestServer(t, chat)

	for i := 0; i < 3; i++ {
		rec := do(t, srv, http.MethodGet, "/api/v1/chat/sessions", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]agent.Session](t, rec), 1)
	}
	assert.EqualValues(t, 1, chat.listCalls.Load())

	// A chat turn invalidates the listing.
	do(t, srv, http.MethodPost, "/api/v1/chat", `{"session_id":"s-1","message":"again"}`)
	do(t, srv, http.MethodGet, "/api/v1/chat/sessions", "")
	assert.EqualValues(t, 2, chat.listCalls.Load())

	rec := do(t, srv, http.MethodGet, "/api/v1/chat/sessions/s-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	tr := decodeBody[transcriptResponse](t, rec)
	require.Len(t, tr.Messages, 2)
	assert.Equal(t, agent.RoleUser, tr.Messages[0].Role)
	assert.Equal(t, "hello", tr.Messages[1].Content)

	rec = do(t, srv, http.MethodGet, "/api/v1/chat/sessions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestChatSessionsLoadOutlivesCaller(t *testing.T) {
	chat := &fakeChat{sessions: []agent.Session{{ID: "s-1"}}}
	srv := newTestServer(t, chat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat/sessions", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, decodeBody[[]agent.Session](t, rec), 1)
}

func TestChatSessionsUpstreamError(t *testing.T) {
	chat := &fakeChat{listErr: errors.New("agent down")}
	srv := newTestServer(t, chat)

	rec := do(t, srv, http.MethodGet, "/api/v1/chat/sessions", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	do(t, srv, http.MethodGet, "/api/v1/chat/sessions", "")
	assert.EqualValues(t, 2, chat.listCalls.Load(), "errors must not be cached")
}
