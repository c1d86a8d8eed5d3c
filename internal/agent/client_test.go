package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSendsRequestAndDecodesEvents(t *testing.T) {
	var got runRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/run", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[
			{"author":"agent","content":{"role":"model","parts":[{"functionCall":{"name":"get_transactions"}}]}},
			{"author":"agent","content":{"role":"model","parts":[{"text":"You spent "},{"text":"1330."}]}}
		]`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "1", WithLogger(quietLogger()))
	events, err := c.Run(context.Background(), "s-1", "How much did I spend?")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.NotNil(t, events[0].Parts()[0].FunctionCall)

	assert.Equal(t, "1", got.UserID)
	assert.Equal(t, "s-1", got.SessionID)
	assert.False(t, got.Streaming)
	assert.Equal(t, "user", got.NewMessage.Role)
	assert.Equal(t, "How much did I spend?", got.NewMessage.Parts[0].Text)

	text, err := c.RunText(context.Background(), "s-1", "again")
	require.NoError(t, err)
	assert.Equal(t, "You spent 1330.", text)
}

func TestStreamDeliversSnapshots(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		var req runRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Streaming)

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range []string{
			`data: {"content":{"parts":[{"functionCall":{"name":"get_transactions"}}]}}`,
			`data: {"content":{"parts":[{"functionResponse":{"name":"get_transactions"}}]}}`,
			`data: {"content":{"parts":[{"text":"Hel"}]},"partial":true}`,
			`data: {"content":{"parts":[{"text":"Hello"}]}}`,
		} {
			fmt.Fprint(w, line+"\n\n")
			flusher.Flush()
		}
	}))
	defer srv.Close()

	var updates []Message
	c := NewClient(srv.URL, "1", WithLogger(quietLogger()))
	msg, err := c.Stream(context.Background(), "s-1", "hi", func(m Message) { updates = append(updates, m) })
	require.NoError(t, err)

	assert.Equal(t, "Hello", msg.Content)
	assert.False(t, msg.Loading)
	assert.Len(t, msg.Parts, 2)
	require.GreaterOrEqual(t, len(updates), 4)
	assert.True(t, updates[0].Loading)
}

func TestStreamBoundedByContextOnly(t *testing.T) {
	assert.Zero(t, NewClient("", "1").httpClient.Timeout)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, `data: {"partial":true,"content":{"parts":[{"text":"Thinking"}]}}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var got []string
	c := NewClient(srv.URL, "1", WithLogger(quietLogger()))
	msg, err := c.Stream(ctx, "s-1", "hi", func(m Message) { got = append(got, m.Content) })
	require.Error(t, err)
	assert.Equal(t, ErrorMessage, msg.Content)
	assert.Contains(t, got, "Thinking")
}

func TestStreamFailureYieldsApology(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "1", WithLogger(quietLogger()))
	msg, err := c.Stream(context.Background(), "s-1", "hi", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUpstream))
	assert.Equal(t, ErrorMessage, msg.Content)
	assert.False(t, msg.Loading)
}

func TestStreamUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, "1", WithLogger(quietLogger()))
	msg, err := c.Stream(context.Background(), "s-1", "hi", nil)
	require.Error(t, err)
	assert.Equal(t, ErrorMessage, msg.Content)
}

func TestListSessionsAcceptsBothShapes(t *testing.T) {
	for name, body := range map[string]string{
		"array":   `[{"id":"a","lastUpdateTime":1715000000.5},{"id":"b"}]`,
		"wrapped": `{"sessions":[{"id":"a","lastUpdateTime":1715000000.5},{"id":"b"}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/v1/sessions", r.URL.Path)
				fmt.Fprint(w, body)
			}))
			defer srv.Close()

			sessions, err := NewClient(srv.URL, "1").ListSessions(context.Background())
			require.NoError(t, err)
			require.Len(t, sessions, 2)
			assert.Equal(t, "a", sessions[0].ID)
			assert.Equal(t, int64(1715000000), sessions[0].LastUpdated().Unix())
		})
	}
}

func TestSessionEventsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message":"Session with ID x not found"}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "1").SessionEvents(context.Background(), "x")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTranscriptDropsToolParts(t *testing.T) {
	events := []Event{
		{Author: "user", Content: &Content{Role: "user", Parts: []Part{{Text: "What is my balance?"}}}, Timestamp: 1715000000},
		{Author: "agent", Content: &Content{Role: "model", Parts: []Part{{FunctionCall: &FunctionCall{Name: "get_transactions"}}}}},
		{Author: "agent", Content: &Content{Role: "model", Parts: []Part{{FunctionResponse: &FunctionResponse{Name: "get_transactions"}}}}},
		{ID: "e4", Author: "agent", Content: &Content{Role: "model", Parts: []Part{{Text: "Your balance is 4609.90."}}}},
		{Author: "agent"},
	}
	msgs := Transcript(events)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, int64(1715000000000), msgs[0].Timestamp)
	assert.Equal(t, RoleAssistant, msgs[1].Role)
	assert.Equal(t, "e4", msgs[1].ID)
	assert.Equal(t, "Your balance is 4609.90.", DisplayText(events[3]))
}

func TestNewSessionIDUnique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	assert.NotEqual(t, a, b)
	assert.Len(t, a, 36)
}
