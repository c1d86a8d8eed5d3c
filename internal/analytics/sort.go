package analytics

import (
	"errors"
	"slices"
	"strings"

	"fintrack/internal/core"
)

// RecentCount is how many transactions the summary lists as recent.
const RecentCount = 3

// SortKey names the transaction field a list is ordered by.
type SortKey string

const (
	SortByDate        SortKey = "date"
	SortByType        SortKey = "type"
	SortByCategory    SortKey = "category"
	SortByDescription SortKey = "description"
	SortByAmount      SortKey = "amount"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

var (
	ErrInvalidSortKey   = errors.New("sort must be one of date, type, category, description, amount")
	ErrInvalidSortOrder = errors.New("order must be asc or desc")
)

// ParseSortKey accepts a field name in any case. Empty means date.
func ParseSortKey(s string) (SortKey, error) {
	k := SortKey(strings.ToLower(strings.TrimSpace(s)))
	switch k {
	case "":
		return SortByDate, nil
	case SortByDate, SortByType, SortByCategory, SortByDescription, SortByAmount:
		return k, nil
	}
	return "", ErrInvalidSortKey
}

// ParseSortOrder accepts asc or desc in any case. Empty means desc.
func ParseSortOrder(s string) (SortOrder, error) {
	o := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch o {
	case "":
		return Desc, nil
	case Asc, Desc:
		return o, nil
	}
	return "", ErrInvalidSortOrder
}

// Sort returns a copy of txs ordered by key. Text fields compare without
// case. The sort is stable, so ties keep their input order in both
// directions.
func Sort(txs []core.Transaction, key SortKey, order SortOrder) []core.Transaction {
	out := make([]core.Transaction, len(txs))
	copy(out, txs)

	cmp := compareBy(key)
	slices.SortStableFunc(out, func(a, b core.Transaction) int {
		if order == Asc {
			return cmp(a, b)
		}
		return cmp(b, a)
	})
	return out
}

// Recent returns the n latest transactions by date, newest first.
func Recent(txs []core.Transaction, n int) []core.Transaction {
	sorted := Sort(txs, SortByDate, Desc)
	if n < 0 {
		n = 0
	}
	if n < len(sorted) {
		sorted = sorted[:n]
	}
	return sorted
}

func compareBy(key SortKey) func(a, b core.Transaction) int {
	switch key {
	case SortByAmount:
		return func(a, b core.Transaction) int { return a.Amount.Decimal.Cmp(b.Amount.Decimal) }
	case SortByType:
		return func(a, b core.Transaction) int { return compareFold(string(a.Type), string(b.Type)) }
	case SortByCategory:
		return func(a, b core.Transaction) int { return compareFold(a.Category, b.Category) }
	case SortByDescription:
		return func(a, b core.Transaction) int { return compareFold(a.Description, b.Description) }
	default:
		return func(a, b core.Transaction) int { return a.Date.Compare(b.Date.Time) }
	}
}

func compareFold(a, b string) int {
	return strings.Compare(strings.ToLower(a), strings.ToLower(b))
}
