// Package storage persists transactions in a single relational table.
package storage

import (
	"context"

	"fintrack/internal/core"
)

// Store is the transaction store capability. Implementations are safe for
// concurrent use. There is deliberately no update operation.
type Store interface {
	// List returns all transactions ordered by id, filtered by owner when
	// userID is non-nil. An empty result is not an error.
	List(ctx context.Context, userID *int64) ([]core.Transaction, error)

	// Create validates and inserts a transaction and returns the stored record.
	Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error)

	// Delete removes a transaction permanently. It returns core.ErrNotFound
	// when no row has the given id.
	Delete(ctx context.Context, id int64) error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Remover is implemented by stores that can return the row they delete, so
// deleted events can carry the full transaction.
type Remover interface {
	Remove(ctx context.Context, id int64) (core.Transaction, error)
}
