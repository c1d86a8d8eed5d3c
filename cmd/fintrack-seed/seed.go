package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/core"
)

// creator is satisfied by services.TransactionService and client.Client.
type creator interface {
	Create(ctx context.Context, in core.NewTransaction) (core.Transaction, error)
}

type sample struct {
	userID      int64
	kind        core.TransactionType
	amount      int64
	description string
	category    string
	date        core.Date
}

var samples = []sample{
	{1, core.Income, 5000, "Monthly Salary", "Salary", core.NewDate(2025, 5, 1)},
	{1, core.Expense, 1200, "Rent Payment", "Housing", core.NewDate(2025, 5, 5)},
	{1, core.Expense, 85, "Grocery Shopping", "Food", core.NewDate(2025, 5, 10)},
	{1, core.Expense, 45, "Netflix Subscription", "Entertainment", core.NewDate(2025, 5, 15)},
	{1, core.Income, 1000, "Freelance Work", "Side Hustle", core.NewDate(2025, 5, 18)},
	{1, core.Expense, 60, "Dinner with Friends", "Dining Out", core.NewDate(2025, 5, 20)},
	{1, core.Expense, 120, "Electric Bill", "Utilities", core.NewDate(2025, 5, 25)},
	{1, core.Expense, 35, "Gas", "Transportation", core.NewDate(2025, 5, 28)},
	{1, core.Income, 250, "Tax Refund", "Other Income", core.NewDate(2025, 5, 30)},
	{2, core.Income, 4500, "Monthly Salary", "Salary", core.NewDate(2025, 6, 1)},
}

func (s sample) newTransaction() core.NewTransaction {
	amount := core.NewMoney(s.amount)
	uid := s.userID
	return core.NewTransaction{
		Type:        s.kind,
		Amount:      &amount,
		Category:    s.category,
		Description: s.description,
		Date:        s.date,
		UserID:      &uid,
	}
}

// seed inserts every sample with at most limit requests in flight. It stops
// at the first failure and reports how many rows were created.
func seed(ctx context.Context, c creator, items []sample, limit int) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var created atomic.Int64
	for _, s := range items {
		g.Go(func() error {
			if _, err := c.Create(gctx, s.newTransaction()); err != nil {
				return fmt.Errorf("seed %q: %w", s.description, err)
			}
			created.Add(1)
			return nil
		})
	}
	err := g.Wait()
	return int(created.Load()), err
}
