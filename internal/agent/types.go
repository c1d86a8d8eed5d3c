// Package agent talks to the remote financial assistant: batched and
// streaming runs, session listings and the SSE stream parser.
package agent

import (
	"encoding/json"
	"time"
)

// Role of a chat message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	// RoleModel is what the agent runtime uses for its own turns.
	RoleModel Role = "model"
)

// FunctionCall is a tool invocation requested by the agent.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse is the result of a tool invocation.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// Part holds exactly one of text, a function call or a function response.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// IsTool reports whether the part is a function call or response.
func (p Part) IsTool() bool {
	return p.FunctionCall != nil || p.FunctionResponse != nil
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Event is one agent step. Timestamps are unix seconds.
type Event struct {
	ID           string   `json:"id,omitempty"`
	Author       string   `json:"author,omitempty"`
	InvocationID string   `json:"invocationId,omitempty"`
	Content      *Content `json:"content,omitempty"`
	Partial      bool     `json:"partial,omitempty"`
	TurnComplete bool     `json:"turnComplete,omitempty"`
	Timestamp    float64  `json:"timestamp,omitempty"`
}

// Parts returns the event's parts, or nil when it carries no content.
func (e Event) Parts() []Part {
	if e.Content == nil {
		return nil
	}
	return e.Content.Parts
}

// Session is a conversation as stored by the agent runtime.
type Session struct {
	ID             string  `json:"id"`
	AppName        string  `json:"appName,omitempty"`
	UserID         string  `json:"userId,omitempty"`
	LastUpdateTime float64 `json:"lastUpdateTime,omitempty"`
	Events         []Event `json:"events,omitempty"`
}

// LastUpdated converts LastUpdateTime to a time.Time.
func (s Session) LastUpdated() time.Time {
	return unixSeconds(s.LastUpdateTime)
}

// Message is the client-side view of one chat bubble.
type Message struct {
	ID        string `json:"id"`
	Role      Role   `json:"role"`
	Parts     []Part `json:"parts"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
	Loading   bool   `json:"loading"`
}

// clone copies Parts so snapshots do not share the parser's backing array.
// Parts is never nil: clients iterate it unconditionally.
func (m Message) clone() Message {
	parts := make([]Part, len(m.Parts))
	copy(parts, m.Parts)
	m.Parts = parts
	return m
}

type runRequest struct {
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	NewMessage newMessage `json:"new_message"`
	Streaming  bool       `json:"streaming"`
}

type newMessage struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// sessionList accepts either a bare array or {"sessions": [...]}.
type sessionList []Session

func (l *sessionList) UnmarshalJSON(b []byte) error {
	var arr []Session
	if err := json.Unmarshal(b, &arr); err == nil {
		*l = arr
		return nil
	}
	var wrapped struct {
		Sessions []Session `json:"sessions"`
	}
	if err := json.Unmarshal(b, &wrapped); err != nil {
		return err
	}
	*l = wrapped.Sessions
	return nil
}

func unixSeconds(f float64) time.Time {
	if f <= 0 {
		return time.Time{}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC()
}
