package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fintrack/internal/agent"
	applog "fintrack/internal/log"
)

const sessionsLoadTimeout = 15 * time.Second

type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatResponse struct {
	SessionID string        `json:"session_id"`
	Message   agent.Message `json:"message"`
}

type transcriptResponse struct {
	SessionID string          `json:"session_id"`
	Messages  []agent.Message `json:"messages"`
}

// handleChat forwards one user message to the agent. Clients that accept
// text/event-stream get every parser snapshot as an SSE data line; others
// get the final message once the run is over.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, r, http.StatusServiceUnavailable, "Chat is not configured")
		return
	}

	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		writeError(w, r, http.StatusBadRequest, "message is required")
		return
	}
	if req.SessionID == "" {
		req.SessionID = agent.NewSessionID()
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.chatTimeout)
	defer cancel()

	s.appMetrics.chatRequests.Add(1)
	// A new turn may create the session or move it to the top of the list.
	defer s.sessionsCache.Delete(sessionsCacheKey)

	logger := applog.FromContext(r.Context()).WithComponent(applog.ComponentChat).With(applog.FieldSessionID, req.SessionID)

	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		s.streamChat(ctx, w, logger, req)
		return
	}

	msg, err := s.chat.Stream(ctx, req.SessionID, req.Message, nil)
	status := http.StatusOK
	if err != nil {
		s.appMetrics.chatFailures.Add(1)
		logger.WarnContext(ctx, "Agent run failed", applog.FieldError, err)
		status = http.StatusBadGateway
	}
	writeJSON(w, r, status, chatResponse{SessionID: req.SessionID, Message: msg})
}

func (s *Server) streamChat(ctx context.Context, w http.ResponseWriter, logger *applog.Logger, req chatRequest) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Session-ID", req.SessionID)
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// The parser emits the final message itself; last keeps it from going
	// out twice.
	var last []byte
	send := func(m agent.Message) {
		b, err := json.Marshal(m)
		if err != nil || bytes.Equal(b, last) {
			return
		}
		last = b
		if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
			logger.DebugContext(ctx, "Client went away", applog.FieldError, err)
			return
		}
		flusher.Flush()
	}

	final, err := s.chat.Stream(ctx, req.SessionID, req.Message, send)
	if err != nil {
		s.appMetrics.chatFailures.Add(1)
		logger.WarnContext(ctx, "Agent stream failed", applog.FieldError, err)
	}
	send(final)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, r, http.StatusServiceUnavailable, "Chat is not configured")
		return
	}

	if sessions, ok := s.sessionsCache.Get(sessionsCacheKey); ok {
		s.appMetrics.cacheHits.Add(1)
		writeJSON(w, r, http.StatusOK, sessions)
		return
	}
	s.appMetrics.cacheMisses.Add(1)

	// The load is shared by every waiting request, so it must not end with
	// the first caller's connection.
	sessions, err := s.sessionsCache.GetOrLoad(sessionsCacheKey, func() ([]agent.Session, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), sessionsLoadTimeout)
		defer cancel()
		return s.chat.ListSessions(ctx)
	})
	if err != nil {
		applog.FromContext(r.Context()).WithComponent(applog.ComponentChat).
			WarnContext(r.Context(), "List sessions failed", applog.FieldError, err)
		writeError(w, r, http.StatusBadGateway, "Failed to load sessions")
		return
	}
	writeJSON(w, r, http.StatusOK, sessions)
}

func (s *Server) handleSessionTranscript(w http.ResponseWriter, r *http.Request) {
	if s.chat == nil {
		writeError(w, r, http.StatusServiceUnavailable, "Chat is not configured")
		return
	}

	id := r.PathValue("id")
	events, err := s.chat.SessionEvents(r.Context(), id)
	switch {
	case errors.Is(err, agent.ErrSessionNotFound):
		writeError(w, r, http.StatusNotFound, "Session not found")
		return
	case err != nil:
		applog.FromContext(r.Context()).WithComponent(applog.ComponentChat).
			WarnContext(r.Context(), "Load session failed", applog.FieldSessionID, id, applog.FieldError, err)
		writeError(w, r, http.StatusBadGateway, "Failed to load session")
		return
	}
	writeJSON(w, r, http.StatusOK, transcriptResponse{SessionID: id, Messages: agent.Transcript(events)})
}
