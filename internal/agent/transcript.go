package agent

import (
	"fmt"
	"strings"
)

// DisplayText joins the text parts of an event, ignoring tool traffic.
func DisplayText(evt Event) string {
	var b strings.Builder
	for _, part := range evt.Parts() {
		if part.IsTool() {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}

// Transcript converts stored events into chat messages. Events with only
// tool parts are dropped; agent turns become assistant messages.
func Transcript(events []Event) []Message {
	out := make([]Message, 0, len(events))
	for i, evt := range events {
		text := DisplayText(evt)
		if strings.TrimSpace(text) == "" {
			continue
		}
		role := RoleAssistant
		if evt.Author == string(RoleUser) || (evt.Content != nil && evt.Content.Role == string(RoleUser)) {
			role = RoleUser
		}
		id := evt.ID
		if id == "" {
			id = fmt.Sprintf("%s-%d", role, i)
		}
		out = append(out, Message{
			ID:        id,
			Role:      role,
			Parts:     []Part{{Text: text}},
			Content:   text,
			Timestamp: int64(evt.Timestamp * 1000),
		})
	}
	return out
}
