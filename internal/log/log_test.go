package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/core"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLoggerComponent(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelDebug, Output: &buf, Component: ComponentStorage})

	l.Info("saved", FieldTransactionID, 3)
	l.WithComponent(ComponentAMQP).Debug("published")

	out := buf.String()
	if !strings.Contains(out, "component=storage") || !strings.Contains(out, "transaction_id=3") {
		t.Errorf("missing fields in %q", out)
	}
	if !strings.Contains(out, "component=amqp") {
		t.Errorf("component override missing in %q", out)
	}
}

func TestContextLogger(t *testing.T) {
	l := New(Config{Component: "x"})
	ctx := NewContext(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("FromContext did not return stored logger")
	}
	if got := FromContext(context.Background()).Component(); got != "unknown" {
		t.Errorf("fallback component = %q", got)
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(New(Config{Level: slog.LevelDebug, Output: &buf}))
	r := httptest.NewRequest("DELETE", "/api/v1/transactions/9", nil)

	sl.LogHTTPEnd(context.Background(), r, "req_1", 404, 3, "10.0.0.1")
	sl.LogError(context.Background(), "delete failed", errors.New("boom"), ComponentTransactions, OpDelete,
		NewFields().WithTransaction(core.Transaction{ID: 9, Type: core.Expense, Amount: core.NewMoney(5)}))

	out := buf.String()
	for _, want := range []string{"level=WARN", "status_code=404", "request_id=req_1", "error=boom", "operation=delete", "transaction_id=9"} {
		if !strings.Contains(out, want) {
			t.Errorf("%q missing from %q", want, out)
		}
	}
}
