// Package memory provides an in-process transaction store for tests and
// local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"fintrack/internal/core"
)

type Store struct {
	mu            sync.Mutex
	nextID        int64
	items         []core.Transaction
	defaultUserID int64
	now           func() time.Time
}

// New returns an empty store. Transactions created without an owner are
// assigned defaultUserID.
func New(defaultUserID int64) *Store {
	return &Store{nextID: 1, defaultUserID: defaultUserID, now: time.Now}
}

// List returns copies of the stored transactions in id order.
func (s *Store) List(_ context.Context, userID *int64) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(s.items))
	for _, tx := range s.items {
		if userID != nil && tx.UserID != *userID {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

// Create stores the transaction and assigns the next id.
func (s *Store) Create(_ context.Context, in core.NewTransaction) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	in = in.WithDefaults(s.defaultUserID)

	s.mu.Lock()
	defer s.mu.Unlock()
	tx := core.Transaction{
		ID:          s.nextID,
		Type:        in.Type,
		Amount:      *in.Amount,
		Category:    in.Category,
		Description: in.Description,
		Date:        in.Date,
		CreatedAt:   s.now().UTC(),
		UserID:      *in.UserID,
	}
	s.nextID++
	s.items = append(s.items, tx)
	return tx, nil
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.Remove(ctx, id)
	return err
}

// Remove deletes the transaction and returns it.
func (s *Store) Remove(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, tx := range s.items {
		if tx.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return tx, nil
		}
	}
	return core.Transaction{}, core.ErrNotFound
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
