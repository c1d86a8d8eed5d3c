// Package analytics derives dashboard figures from a list of transactions.
// Every function is pure and recomputes from its input.
package analytics

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

var hundred = decimal.NewFromInt(100)

// CategoryAmount is the total of one category.
type CategoryAmount struct {
	Category string     `json:"category"`
	Amount   core.Money `json:"amount"`
}

// CategoryShare is a category total and its share of the type total.
type CategoryShare struct {
	Category   string     `json:"category"`
	Amount     core.Money `json:"amount"`
	Percentage float64    `json:"percentage"`
}

// Summary backs the dashboard cards.
type Summary struct {
	TotalIncome   core.Money `json:"total_income"`
	TotalExpenses core.Money `json:"total_expenses"`
	NetBalance    core.Money `json:"net_balance"`
	SavingsRate   float64    `json:"savings_rate"`
	ExpenseRatio  float64    `json:"expense_ratio"`
	IncomeCount   int        `json:"income_count"`
	ExpenseCount  int        `json:"expense_count"`
	// Recent holds the RecentCount latest transactions, newest first.
	Recent []core.Transaction `json:"recent"`
}

// TotalByType sums the amounts of every transaction of type t.
func TotalByType(txs []core.Transaction, t core.TransactionType) core.Money {
	var total core.Money
	for _, tx := range txs {
		if tx.Type == t {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// NetBalance is total income minus total expenses.
func NetBalance(txs []core.Transaction) core.Money {
	return TotalByType(txs, core.Income).Sub(TotalByType(txs, core.Expense))
}

// SavingsRate is net/income*100, or 0 when there is no income.
func SavingsRate(txs []core.Transaction) float64 {
	income := TotalByType(txs, core.Income)
	if !income.IsPositive() {
		return 0
	}
	return ratio(NetBalance(txs), income)
}

// ExpenseRatio is expenses/income*100, or 0 when there is no income.
func ExpenseRatio(txs []core.Transaction) float64 {
	income := TotalByType(txs, core.Income)
	if !income.IsPositive() {
		return 0
	}
	return ratio(TotalByType(txs, core.Expense), income)
}

// CountByType counts the transactions of type t.
func CountByType(txs []core.Transaction, t core.TransactionType) int {
	n := 0
	for _, tx := range txs {
		if tx.Type == t {
			n++
		}
	}
	return n
}

// GroupByCategory totals type t per category, in first-seen order.
func GroupByCategory(txs []core.Transaction, t core.TransactionType) []CategoryAmount {
	index := make(map[string]int)
	groups := make([]CategoryAmount, 0)
	for _, tx := range txs {
		if tx.Type != t {
			continue
		}
		i, ok := index[tx.Category]
		if !ok {
			i = len(groups)
			index[tx.Category] = i
			groups = append(groups, CategoryAmount{Category: tx.Category})
		}
		groups[i].Amount = groups[i].Amount.Add(tx.Amount)
	}
	return groups
}

// Percentage returns part/total*100. A zero total yields 0 rather than NaN.
func Percentage(part, total core.Money) float64 {
	if total.IsZero() {
		return 0
	}
	return ratio(part, total)
}

// Breakdown is GroupByCategory with each category's share of the type total.
func Breakdown(txs []core.Transaction, t core.TransactionType) []CategoryShare {
	total := TotalByType(txs, t)
	groups := GroupByCategory(txs, t)
	out := make([]CategoryShare, len(groups))
	for i, g := range groups {
		out[i] = CategoryShare{
			Category:   g.Category,
			Amount:     g.Amount,
			Percentage: Percentage(g.Amount, total),
		}
	}
	return out
}

// Summarize computes every dashboard card in one pass over the helpers.
func Summarize(txs []core.Transaction) Summary {
	return Summary{
		TotalIncome:   TotalByType(txs, core.Income),
		TotalExpenses: TotalByType(txs, core.Expense),
		NetBalance:    NetBalance(txs),
		SavingsRate:   SavingsRate(txs),
		ExpenseRatio:  ExpenseRatio(txs),
		IncomeCount:   CountByType(txs, core.Income),
		ExpenseCount:  CountByType(txs, core.Expense),
		Recent:        Recent(txs, RecentCount),
	}
}

func ratio(part, total core.Money) float64 {
	f, _ := part.Decimal.Div(total.Decimal).Mul(hundred).Float64()
	return f
}
