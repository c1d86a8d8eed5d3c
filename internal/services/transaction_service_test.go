package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/storage"
	"fintrack/internal/storage/memory"
)

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.TransactionEvent
	err    error
}

func (f *fakePublisher) PublishTransactionEvent(_ context.Context, evt *amqp.TransactionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	return f.err
}

func input(t core.TransactionType, amount int64, category string) core.NewTransaction {
	m := core.NewMoney(amount)
	return core.NewTransaction{
		Type:        t,
		Amount:      &m,
		Category:    category,
		Description: category,
		Date:        core.NewDate(2025, 5, 1),
	}
}

func TestTransactionService_CreatePublishes(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewTransactionService(memory.New(1), pub)

	tx, err := svc.Create(context.Background(), input(core.Income, 5000, "Salary"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events, want 1", len(pub.events))
	}
	if pub.events[0].Kind != amqp.EventCreated || pub.events[0].Transaction.ID != tx.ID {
		t.Errorf("unexpected event %+v", pub.events[0])
	}
}

func TestTransactionService_PublishFailureDoesNotFail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := NewTransactionService(memory.New(1), pub)

	tx, err := svc.Create(context.Background(), input(core.Expense, 1200, "Rent"))
	if err != nil {
		t.Fatalf("Create() should succeed when publishing fails: %v", err)
	}
	if err := svc.Delete(context.Background(), tx.ID); err != nil {
		t.Fatalf("Delete() should succeed when publishing fails: %v", err)
	}
}

func TestTransactionService_InvalidNotStoredNorPublished(t *testing.T) {
	pub := &fakePublisher{}
	store := memory.New(1)
	svc := NewTransactionService(store, pub)

	_, err := svc.Create(context.Background(), input(core.Expense, 10, ""))
	if !core.IsValidationError(err) {
		t.Fatalf("Create() error = %v, want validation error", err)
	}
	txs, _ := store.List(context.Background(), nil)
	if len(txs) != 0 || len(pub.events) != 0 {
		t.Fatalf("invalid input leaked: txs=%d events=%d", len(txs), len(pub.events))
	}
}

func TestTransactionService_Delete(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewTransactionService(memory.New(1), pub)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, input(core.Expense, 45, "Entertainment"))
	if err := svc.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, tx.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second Delete() error = %v, want ErrNotFound", err)
	}
	if len(pub.events) != 2 || pub.events[1].Kind != amqp.EventDeleted || pub.events[1].Transaction.ID != tx.ID {
		t.Fatalf("unexpected events %+v", pub.events)
	}
	if got := pub.events[1].Transaction; got.Category != "Entertainment" || got.Date.String() != "2025-05-01" || got.CreatedAt.IsZero() {
		t.Fatalf("deleted event should carry the removed row, got %+v", got)
	}
}

func TestTransactionService_DeleteWithoutRemover(t *testing.T) {
	pub := &fakePublisher{}
	// Embedding only the interface hides memory.Store's Remove.
	svc := NewTransactionService(struct{ storage.Store }{memory.New(1)}, pub)
	ctx := context.Background()

	tx, _ := svc.Create(ctx, input(core.Expense, 45, "Entertainment"))
	if err := svc.Delete(ctx, tx.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := pub.events[1].Transaction; got.ID != tx.ID || got.Category != "" {
		t.Fatalf("deleted event = %+v, want id only", got)
	}
}

func TestTransactionService_NilPublisher(t *testing.T) {
	svc := NewTransactionService(memory.New(1), nil)
	if _, err := svc.Create(context.Background(), input(core.Income, 1, "Gift")); err != nil {
		t.Fatalf("Create() without publisher: %v", err)
	}
}

func TestTransactionService_Analytics(t *testing.T) {
	svc := NewTransactionService(memory.New(1), nil)
	ctx := context.Background()
	for _, in := range []core.NewTransaction{
		input(core.Income, 5000, "Salary"),
		input(core.Expense, 1200, "Rent"),
		input(core.Expense, 85, "Groceries"),
	} {
		if _, err := svc.Create(ctx, in); err != nil {
			t.Fatal(err)
		}
	}

	sum, err := svc.Summary(ctx, nil)
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if sum.NetBalance.String() != "3715" || sum.ExpenseCount != 2 {
		t.Errorf("unexpected summary %+v", sum)
	}

	shares, err := svc.Breakdown(ctx, nil, core.Expense)
	if err != nil {
		t.Fatalf("Breakdown() error = %v", err)
	}
	if len(shares) != 2 || shares[0].Category != "Rent" {
		t.Errorf("unexpected breakdown %+v", shares)
	}

	if _, err := svc.Breakdown(ctx, nil, "transfer"); !errors.Is(err, core.ErrInvalidType) {
		t.Errorf("Breakdown() with bad type error = %v", err)
	}
}

func TestTransactionService_Close(t *testing.T) {
	t.Run("no closers", func(t *testing.T) {
		if err := NewTransactionService(memory.New(1), nil).Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})

	t.Run("collects errors", func(t *testing.T) {
		calls := 0
		svc := NewTransactionService(memory.New(1), nil,
			func() error { calls++; return errors.New("store") },
			nil,
			func() error { calls++; return nil },
		)
		if err := svc.Close(); err == nil {
			t.Fatal("Close should report closer errors")
		}
		if calls != 2 {
			t.Fatalf("closers called %d times, want 2", calls)
		}
	})
}
