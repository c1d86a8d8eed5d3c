package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fintrack/internal/agent"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedAgent struct {
	sessions []string
	texts    []string
	err      error
}

func (s *scriptedAgent) Stream(ctx context.Context, sessionID, text string, onUpdate func(agent.Message)) (agent.Message, error) {
	s.sessions = append(s.sessions, sessionID)
	s.texts = append(s.texts, text)
	if _, ok := ctx.Deadline(); !ok {
		return agent.Message{}, errors.New("turn without deadline")
	}
	onUpdate(agent.Message{Parts: []agent.Part{{FunctionCall: &agent.FunctionCall{Name: "get_transactions"}}}, Loading: true})
	onUpdate(agent.Message{Content: "Your bal", Loading: true})
	final := agent.Message{Content: "Your balance is 4670."}
	if s.err != nil {
		final.Content = agent.ErrorMessage
	}
	return final, s.err
}

func TestChatLoop(t *testing.T) {
	a := &scriptedAgent{}
	in := strings.NewReader("balance?\n\n  again  \n/new\nthird\n/quit\nignored\n")
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), a, in, &out, time.Minute))

	assert.Equal(t, []string{"balance?", "again", "third"}, a.texts)
	require.Len(t, a.sessions, 3)
	assert.Equal(t, a.sessions[0], a.sessions[1])
	assert.NotEqual(t, a.sessions[1], a.sessions[2])
	assert.Equal(t, 3, strings.Count(out.String(), "Your balance is 4670.\n"))
	assert.Equal(t, 3, strings.Count(out.String(), "[working…]"))
}

func TestChatLoopShowsErrors(t *testing.T) {
	a := &scriptedAgent{err: errors.New("agent unreachable")}
	var out bytes.Buffer

	require.NoError(t, chatLoop(context.Background(), a, strings.NewReader("hi\n"), &out, time.Minute))
	assert.Contains(t, out.String(), agent.ErrorMessage)
	assert.Contains(t, out.String(), "(agent unreachable)")
}

func TestRendererRewrite(t *testing.T) {
	var out bytes.Buffer
	r := &renderer{out: &out}
	r.update(agent.Message{Content: "Hel"})
	r.update(agent.Message{Content: "Hello"})
	r.update(agent.Message{Content: "Hello"})
	r.finish(agent.Message{Content: "Bye"})
	assert.Equal(t, "Hello\nBye\n", out.String())
}
