package core

// Suggested categories offered by the entry form. The store accepts any label.
var (
	IncomeCategories = []string{
		"Salary",
		"Freelance",
		"Investment",
		"Business",
		"Gift",
		"Other Income",
	}

	ExpenseCategories = []string{
		"Rent",
		"Groceries",
		"Transportation",
		"Utilities",
		"Entertainment",
		"Healthcare",
		"Shopping",
		"Dining",
		"Education",
		"Other Expense",
	}
)

// SuggestedCategories returns a copy of the suggestion list for t.
func SuggestedCategories(t TransactionType) []string {
	switch t {
	case Income:
		return append([]string(nil), IncomeCategories...)
	case Expense:
		return append([]string(nil), ExpenseCategories...)
	default:
		return nil
	}
}
