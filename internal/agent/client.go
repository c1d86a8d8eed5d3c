package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// DefaultBaseURL is used when no base URL is configured.
const DefaultBaseURL = "http://127.0.0.1:8000"

var (
	// ErrSessionNotFound is returned when the agent does not know a session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrUpstream wraps non-2xx answers from the agent.
	ErrUpstream = errors.New("agent request failed")
)

// StatusError is a non-2xx answer from the agent.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	return ErrUpstream
}

// Client is a transport to the agent's /api/v1 endpoints. It holds no
// conversation state; sessions live on the agent side.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for baseURL acting as userID.
func NewClient(baseURL, userID string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		// No client Timeout: it would also cut long streams. Callers bound
		// each call with their context.
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewSessionID returns a fresh id for a new conversation.
func NewSessionID() string {
	return uuid.NewString()
}

// Run sends text and waits for the full list of events.
func (c *Client) Run(ctx context.Context, sessionID, text string) ([]Event, error) {
	resp, err := c.postRun(ctx, sessionID, text, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode run response: %w", err)
	}
	return events, nil
}

// RunText is Run reduced to the concatenated text of every event.
func (c *Client) RunText(ctx context.Context, sessionID, text string) (string, error) {
	events, err := c.Run(ctx, sessionID, text)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, evt := range events {
		for _, part := range evt.Parts() {
			b.WriteString(part.Text)
		}
	}
	return b.String(), nil
}

// Stream sends text in streaming mode and feeds the SSE body through a
// StreamParser. onUpdate receives every intermediate snapshot. When the
// request or the read fails the returned message carries ErrorMessage and
// the cause is returned as well; nothing is retried.
func (c *Client) Stream(ctx context.Context, sessionID, text string, onUpdate func(Message)) (Message, error) {
	parser := NewStreamParser(onUpdate, c.logger)

	resp, err := c.postRun(ctx, sessionID, text, true)
	if err != nil {
		return parser.Fail(err), err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(parser, resp.Body); err != nil {
		err = fmt.Errorf("read stream: %w", err)
		return parser.Fail(err), err
	}
	return parser.Close(), nil
}

// ListSessions returns the sessions known for the configured user.
func (c *Client) ListSessions(ctx context.Context) ([]Session, error) {
	resp, err := c.get(ctx, "/api/v1/sessions")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list sessionList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	if list == nil {
		return []Session{}, nil
	}
	return list, nil
}

// SessionEvents returns the stored events of one session.
func (c *Client) SessionEvents(ctx context.Context, sessionID string) ([]Event, error) {
	resp, err := c.get(ctx, "/api/v1/session/"+url.PathEscape(sessionID))
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var events []Event
	if err := json.NewDecoder(resp.Body).Decode(&events); err != nil {
		return nil, fmt.Errorf("decode session events: %w", err)
	}
	return events, nil
}

func (c *Client) postRun(ctx context.Context, sessionID, text string, streaming bool) (*http.Response, error) {
	body, err := json.Marshal(runRequest{
		UserID:    c.userID,
		SessionID: sessionID,
		NewMessage: newMessage{
			Role:  string(RoleUser),
			Parts: []Part{{Text: text}},
		},
		Streaming: streaming,
	})
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/run", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build run request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if streaming {
		req.Header.Set("Accept", "text/event-stream")
	} else {
		req.Header.Set("Accept", "application/json")
	}

	c.logger.DebugContext(ctx, "Sending agent run", "session_id", sessionID, "streaming", streaming)
	return c.do(req)
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return nil, &StatusError{Method: req.Method, Path: req.URL.Path, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
}
