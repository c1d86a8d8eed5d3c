// Package core provides the ledger domain: transactions, money and dates.
//
// This file contains the Money type, a thin wrapper around a decimal so that
// sums and differences stay exact regardless of how amounts were entered.
package core

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a non-negative monetary quantity. The currency is not tracked.
type Money struct {
	decimal.Decimal
}

// NewMoney returns an amount of whole currency units.
func NewMoney(units int64) Money {
	return Money{Decimal: decimal.NewFromInt(units)}
}

// MoneyFromDecimal wraps an existing decimal value.
func MoneyFromDecimal(d decimal.Decimal) Money {
	return Money{Decimal: d}
}

// ParseMoney parses a user supplied amount. Both dot (12.34) and comma (12,34)
// decimal separators are accepted. Negative values are rejected.
//
// Examples:
//
//	ParseMoney("5000")  -> 5000
//	ParseMoney("12,50") -> 12.5
//	ParseMoney("-3")    -> ErrInvalidAmount
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	m := Money{Decimal: d}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// Validate rejects negative amounts.
func (m Money) Validate() error {
	if m.Decimal.IsNegative() {
		return ErrInvalidAmount
	}
	return nil
}

func (m Money) Add(o Money) Money {
	return Money{Decimal: m.Decimal.Add(o.Decimal)}
}

func (m Money) Sub(o Money) Money {
	return Money{Decimal: m.Decimal.Sub(o.Decimal)}
}

func (m Money) Equal(o Money) bool {
	return m.Decimal.Equal(o.Decimal)
}

// MarshalJSON writes the amount as a bare JSON number, which is what the
// dashboard and the agent tools expect.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.Decimal.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string.
func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	m.Decimal = d
	return nil
}
