// Package worker applies transaction events to the spreadsheet mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/sheets"
)

// Mirror keeps a spreadsheet in step with the transaction store.
type Mirror struct {
	writer sheets.LedgerWriter
	index  sheets.LedgerIndex
}

// NewMirror creates a mirror. When writer also implements sheets.LedgerIndex,
// replayed created events are detected and not appended twice.
func NewMirror(writer sheets.LedgerWriter) *Mirror {
	m := &Mirror{writer: writer}
	if idx, ok := writer.(sheets.LedgerIndex); ok {
		m.index = idx
	}
	return m
}

// HandleEvent processes a single transaction event from AMQP. It matches
// amqp.EventHandler; a returned error requeues the message.
func (m *Mirror) HandleEvent(ctx context.Context, evt *amqp.TransactionEvent) error {
	switch evt.Kind {
	case amqp.EventCreated:
		return m.append(ctx, evt.Transaction)
	case amqp.EventDeleted:
		return m.delete(ctx, evt.Transaction.ID)
	default:
		slog.WarnContext(ctx, "Ignoring unknown event kind", "kind", evt.Kind, "id", evt.Transaction.ID)
		return nil
	}
}

// Backfill appends every transaction missing from the sheet. It is a backup
// for events lost while the worker was down. It returns how many rows were
// written.
func (m *Mirror) Backfill(ctx context.Context, txs []core.Transaction) (int, error) {
	if m.index == nil {
		return 0, fmt.Errorf("backfill needs a ledger index")
	}
	written := 0
	for _, tx := range txs {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		row, err := m.index.FindRow(ctx, tx.ID)
		if err != nil {
			return written, fmt.Errorf("find transaction %d: %w", tx.ID, err)
		}
		if row > 0 {
			continue
		}
		if _, err := m.writer.AppendTransaction(ctx, tx); err != nil {
			return written, fmt.Errorf("append transaction %d: %w", tx.ID, err)
		}
		written++
	}
	slog.InfoContext(ctx, "Backfill completed", "checked", len(txs), "written", written)
	return written, nil
}

func (m *Mirror) append(ctx context.Context, tx core.Transaction) error {
	if m.index != nil {
		row, err := m.index.FindRow(ctx, tx.ID)
		if err != nil {
			return fmt.Errorf("find transaction %d: %w", tx.ID, err)
		}
		if row > 0 {
			slog.InfoContext(ctx, "Transaction already mirrored, skipping", "id", tx.ID, "row", row)
			return nil
		}
	}

	ref, err := m.writer.AppendTransaction(ctx, tx)
	if err != nil {
		return fmt.Errorf("sync transaction to sheets: %w", err)
	}
	slog.InfoContext(ctx, "Transaction mirrored to sheet",
		"id", tx.ID,
		"type", tx.Type,
		"amount", tx.Amount.String(),
		"sheets_ref", ref)
	return nil
}

func (m *Mirror) delete(ctx context.Context, id int64) error {
	if err := m.writer.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction from sheets: %w", err)
	}
	slog.InfoContext(ctx, "Transaction removed from sheet", "id", id)
	return nil
}
