package agent

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ErrorMessage replaces the assistant content when a streamed run fails.
const ErrorMessage = "Sorry, there was an error processing your request."

const dataPrefix = "data: "

// StreamState is the lifecycle of a StreamParser.
type StreamState int

const (
	AwaitingFirstByte StreamState = iota
	StreamingToolCall
	StreamingText
	Done
	Error
)

func (s StreamState) String() string {
	switch s {
	case AwaitingFirstByte:
		return "awaiting_first_byte"
	case StreamingToolCall:
		return "streaming_tool_call"
	case StreamingText:
		return "streaming_text"
	case Done:
		return "done"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StreamParser turns an SSE body into successive snapshots of one assistant
// message. Feed it with Write (or io.Copy) and finish with Close or Fail.
// A parser is owned by a single goroutine.
type StreamParser struct {
	msg      Message
	buf      []byte
	state    StreamState
	gotText  bool
	onUpdate func(Message)
	logger   *slog.Logger
}

// NewStreamParser starts a loading assistant message. onUpdate, if set,
// receives a copy of the message after every change.
func NewStreamParser(onUpdate func(Message), logger *slog.Logger) *StreamParser {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &StreamParser{
		msg: Message{
			ID:        fmt.Sprintf("assistant-%d", now.UnixMilli()),
			Role:      RoleAssistant,
			Parts:     []Part{},
			Timestamp: now.UnixMilli(),
			Loading:   true,
		},
		state:    AwaitingFirstByte,
		onUpdate: onUpdate,
		logger:   logger,
	}
}

// Message returns a snapshot of the current message.
func (p *StreamParser) Message() Message {
	return p.msg.clone()
}

func (p *StreamParser) State() StreamState {
	return p.state
}

// Write buffers b and processes every complete line. It never fails; a
// line that cannot be decoded is logged and skipped.
func (p *StreamParser) Write(b []byte) (int, error) {
	if p.state == Done || p.state == Error {
		return len(b), nil
	}
	p.buf = append(p.buf, b...)
	for {
		i := bytes.IndexByte(p.buf, '\n')
		if i < 0 {
			break
		}
		line := string(p.buf[:i])
		p.buf = p.buf[i+1:]
		p.processLine(line)
	}
	return len(b), nil
}

func (p *StreamParser) processLine(line string) {
	line = strings.TrimSpace(line)
	if line == "" || !strings.HasPrefix(line, dataPrefix) {
		return
	}
	var evt Event
	if err := json.Unmarshal([]byte(line[len(dataPrefix):]), &evt); err != nil {
		p.logger.Warn("Failed to parse stream line", "line", line, "error", err)
		return
	}
	p.apply(evt)
}

func (p *StreamParser) apply(evt Event) {
	for _, part := range evt.Parts() {
		switch {
		case part.FunctionCall != nil:
			p.msg.Parts = append(p.msg.Parts, part)
			p.msg.Loading = true
			p.state = StreamingToolCall
		case part.FunctionResponse != nil:
			p.msg.Parts = append(p.msg.Parts, part)
			p.msg.Loading = false
			p.state = StreamingToolCall
		case part.Text != "":
			// Each text event carries the full text so far.
			p.gotText = true
			p.msg.Content = part.Text
			p.msg.Loading = evt.Partial
			p.state = StreamingText
		default:
			continue
		}
		p.emit()
	}
}

// Close ends the stream and returns the final message. A trailing line
// without a newline is only used when no text arrived before it.
func (p *StreamParser) Close() Message {
	if p.state == Done || p.state == Error {
		return p.Message()
	}
	rest := strings.TrimSpace(string(p.buf))
	p.buf = nil
	if !p.gotText && strings.HasPrefix(rest, dataPrefix) {
		var evt Event
		if err := json.Unmarshal([]byte(rest[len(dataPrefix):]), &evt); err != nil {
			p.logger.Warn("Failed to parse remaining stream buffer", "error", err)
		} else {
			for _, part := range evt.Parts() {
				if part.Text != "" {
					p.gotText = true
					p.msg.Content = part.Text
				}
			}
		}
	}
	p.msg.Loading = false
	p.state = Done
	p.emit()
	return p.Message()
}

// Fail replaces the content with ErrorMessage and returns the final message.
func (p *StreamParser) Fail(err error) Message {
	if err != nil {
		p.logger.Error("Chat stream failed", "error", err)
	}
	p.buf = nil
	p.msg.Content = ErrorMessage
	p.msg.Loading = false
	p.state = Error
	p.emit()
	return p.Message()
}

func (p *StreamParser) emit() {
	if p.onUpdate != nil {
		p.onUpdate(p.Message())
	}
}
