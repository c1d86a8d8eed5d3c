// Package sheets defines the outbound ports of the spreadsheet ledger mirror.
package sheets

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// LedgerWriter mirrors committed transactions into a spreadsheet.
	LedgerWriter interface {
		// AppendTransaction writes one row and returns its A1 reference.
		AppendTransaction(ctx context.Context, tx core.Transaction) (rowRef string, err error)
		// DeleteTransaction removes the row of transaction id. A missing row
		// is not an error.
		DeleteTransaction(ctx context.Context, id int64) error
	}

	// LedgerIndex finds the row holding a transaction.
	LedgerIndex interface {
		// FindRow returns the 1-based row of id, or 0 when absent.
		FindRow(ctx context.Context, id int64) (int, error)
	}
)
