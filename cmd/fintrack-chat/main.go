// Command fintrack-chat is a terminal client for the financial assistant.
// Type a message to send it; /new starts a new session and /quit exits.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"fintrack/internal/agent"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	applog "fintrack/internal/log"
)

type streamer interface {
	Stream(ctx context.Context, sessionID, text string, onUpdate func(agent.Message)) (agent.Message, error)
}

func main() {
	cli.LoadEnvFile()
	cfg := config.Load()
	// Keep logs out of the conversation unless asked for.
	level := cfg.LogLevel
	if os.Getenv("LOG_LEVEL") == "" {
		level = "error"
	}
	logger := cli.SetupLogger(level, applog.ComponentChat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := agent.NewClient(cfg.APIBaseURL, strconv.FormatInt(cfg.DefaultUserID, 10),
		agent.WithLogger(logger.Slog()))

	if err := chatLoop(ctx, client, os.Stdin, os.Stdout, cfg.ChatTimeout); err != nil {
		logger.Error("Chat ended with error", applog.FieldError, err)
		os.Exit(1)
	}
}

func chatLoop(ctx context.Context, c streamer, in io.Reader, out io.Writer, timeout time.Duration) error {
	sessionID := agent.NewSessionID()
	fmt.Fprintf(out, "session %s\n> ", sessionID)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
		case "/quit", "/exit":
			return nil
		case "/new":
			sessionID = agent.NewSessionID()
			fmt.Fprintf(out, "session %s\n", sessionID)
		default:
			if err := ctx.Err(); err != nil {
				return nil
			}
			r := &renderer{out: out}
			turnCtx, cancel := context.WithTimeout(ctx, timeout)
			msg, err := c.Stream(turnCtx, sessionID, line, r.update)
			cancel()
			r.finish(msg)
			if err != nil {
				fmt.Fprintf(out, "(%v)\n", err)
			}
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}

// renderer prints streamed snapshots. The agent replaces the text on every
// event, so only the new suffix is printed when the text grew; otherwise the
// line is printed again.
type renderer struct {
	out     io.Writer
	printed string
	tools   int
}

func (r *renderer) update(m agent.Message) {
	calls := 0
	for _, p := range m.Parts {
		if p.FunctionCall != nil {
			calls++
		}
	}
	for ; r.tools < calls; r.tools++ {
		fmt.Fprint(r.out, "[working…]\n")
	}

	switch {
	case m.Content == r.printed:
	case strings.HasPrefix(m.Content, r.printed):
		fmt.Fprint(r.out, m.Content[len(r.printed):])
	default:
		if r.printed != "" {
			fmt.Fprint(r.out, "\n")
		}
		fmt.Fprint(r.out, m.Content)
	}
	r.printed = m.Content
}

func (r *renderer) finish(m agent.Message) {
	r.update(m)
	fmt.Fprint(r.out, "\n")
}
