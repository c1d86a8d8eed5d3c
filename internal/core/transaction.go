package core

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxDescriptionLength bounds the free text attached to a transaction.
const MaxDescriptionLength = 500

// TransactionType tells income from expenses.
type TransactionType string

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

// IsValid reports whether t is one of the known types.
func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (t TransactionType) String() string {
	return string(t)
}

// ParseTransactionType normalises case and surrounding spaces.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", ErrInvalidType
	}
	return t, nil
}

// Transaction is a persisted ledger entry. It is never updated after insert.
type Transaction struct {
	ID          int64           `json:"id"`
	Type        TransactionType `json:"type"`
	Amount      Money           `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UserID      int64           `json:"user_id"`
}

// NewTransaction is the input to Store.Create. Pointer fields distinguish a
// missing value from a zero one.
type NewTransaction struct {
	Type        TransactionType `json:"type"`
	Amount      *Money          `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        Date            `json:"date"`
	UserID      *int64          `json:"user_id,omitempty"`
}

// UnmarshalJSON accepts both user_id and userId.
func (n *NewTransaction) UnmarshalJSON(b []byte) error {
	type plain NewTransaction
	var aux struct {
		plain
		UserIDCamel *int64 `json:"userId"`
	}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	*n = NewTransaction(aux.plain)
	if n.UserID == nil && aux.UserIDCamel != nil {
		n.UserID = aux.UserIDCamel
	}
	return nil
}

// Validate checks every required field. The first problem found is returned
// as a *ValidationError.
func (n NewTransaction) Validate() error {
	if n.Type == "" {
		return newValidationError("type", "is required", nil)
	}
	if !n.Type.IsValid() {
		return newValidationError("type", "must be 'income' or 'expense'", ErrInvalidType)
	}
	if n.Amount == nil {
		return newValidationError("amount", "is required", nil)
	}
	if err := n.Amount.Validate(); err != nil {
		return newValidationError("amount", "must not be negative", err)
	}
	if strings.TrimSpace(n.Category) == "" {
		return newValidationError("category", "is required", nil)
	}
	if strings.TrimSpace(n.Description) == "" {
		return newValidationError("description", "is required", nil)
	}
	if utf8.RuneCountInString(n.Description) > MaxDescriptionLength {
		return newValidationError("description", "must be at most 500 characters", nil)
	}
	if n.Date.IsEmpty() {
		return newValidationError("date", "is required", ErrInvalidDate)
	}
	return nil
}

// Owner returns the requested user id, or def when none was given.
func (n NewTransaction) Owner(def int64) int64 {
	if n.UserID != nil {
		return *n.UserID
	}
	return def
}

// WithDefaults fills the owner and trims free text fields.
func (n NewTransaction) WithDefaults(defaultUserID int64) NewTransaction {
	uid := n.Owner(defaultUserID)
	n.UserID = &uid
	n.Category = strings.TrimSpace(n.Category)
	n.Description = strings.TrimSpace(n.Description)
	return n
}
