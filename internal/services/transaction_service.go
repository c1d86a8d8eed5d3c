// Package services coordinates the store, the analytics and the event bus.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/analytics"
	"fintrack/internal/core"
	"fintrack/internal/storage"
)

// EventPublisher announces committed changes. *amqp.Client implements it.
type EventPublisher interface {
	PublishTransactionEvent(ctx context.Context, evt *amqp.TransactionEvent) error
}

// TransactionService orchestrates transaction operations across the store
// and AMQP. The publisher is optional.
type TransactionService struct {
	store     storage.Store
	publisher EventPublisher
	closers   []func() error
}

// NewTransactionService wires a store and an optional publisher. Each closer
// is called once by Close, in order.
func NewTransactionService(store storage.Store, publisher EventPublisher, closers ...func() error) *TransactionService {
	return &TransactionService{
		store:     store,
		publisher: publisher,
		closers:   closers,
	}
}

// List returns the transactions of userID, or all of them when nil.
func (s *TransactionService) List(ctx context.Context, userID *int64) ([]core.Transaction, error) {
	txs, err := s.store.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Create saves the transaction and then publishes a created event.
func (s *TransactionService) Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}

	tx, err := s.store.Create(ctx, in)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	// Don't fail the request - the transaction is saved
	if err := s.publish(ctx, amqp.EventCreated, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to publish created event", "id", tx.ID, "error", err)
	}

	return tx, nil
}

// Delete removes the transaction and then publishes a deleted event.
// Missing ids yield core.ErrNotFound.
func (s *TransactionService) Delete(ctx context.Context, id int64) error {
	removed, err := s.remove(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete transaction: %w", err)
	}

	if err := s.publish(ctx, amqp.EventDeleted, removed); err != nil {
		slog.ErrorContext(ctx, "Failed to publish deleted event", "id", id, "error", err)
	}

	return nil
}

// remove returns the deleted row when the store can, otherwise only its id.
func (s *TransactionService) remove(ctx context.Context, id int64) (core.Transaction, error) {
	if r, ok := s.store.(storage.Remover); ok {
		return r.Remove(ctx, id)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return core.Transaction{}, err
	}
	return core.Transaction{ID: id}, nil
}

// Summary computes the dashboard cards for userID.
func (s *TransactionService) Summary(ctx context.Context, userID *int64) (analytics.Summary, error) {
	txs, err := s.List(ctx, userID)
	if err != nil {
		return analytics.Summary{}, err
	}
	return analytics.Summarize(txs), nil
}

// Breakdown returns per-category shares of type t for userID.
func (s *TransactionService) Breakdown(ctx context.Context, userID *int64, t core.TransactionType) ([]analytics.CategoryShare, error) {
	if !t.IsValid() {
		return nil, core.ErrInvalidType
	}
	txs, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	return analytics.Breakdown(txs, t), nil
}

// Ping checks the store when it supports health checks.
func (s *TransactionService) Ping(ctx context.Context) error {
	if p, ok := s.store.(storage.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (s *TransactionService) publish(ctx context.Context, kind amqp.EventKind, tx core.Transaction) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "kind", kind, "id", tx.ID)
		return nil
	}
	return s.publisher.PublishTransactionEvent(ctx, amqp.NewTransactionEvent(kind, tx))
}

// Close releases the store and the publisher
func (s *TransactionService) Close() error {
	var errs []error
	for _, closeFn := range s.closers {
		if closeFn == nil {
			continue
		}
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close transaction service: %w", errors.Join(errs...))
	}
	return nil
}
