package domain

import "time"

// CategoryType is the direction of money flow for a category.
// A transaction inherits its direction from its category; amounts are
// always stored as non-negative magnitudes.
type CategoryType string

const (
	CategoryIncome  CategoryType = "income"
	CategoryExpense CategoryType = "expense"
)

// Valid reports whether t is one of the known category types.
func (t CategoryType) Valid() bool {
	return t == CategoryIncome || t == CategoryExpense
}

// Category belongs to exactly one user.
type Category struct {
	ID     string       `json:"id"`
	UserID string       `json:"user_id"`
	Name   string       `json:"name"`
	Icon   string       `json:"icon"`
	Color  string       `json:"color"`
	Type   CategoryType `json:"type"`
}

// Transaction is a single ledger entry. CategoryID may be nil; such
// transactions are "uncategorized" and excluded from direction-dependent
// aggregates. Date is the logical calendar date of the transaction,
// CreatedAt is when it was recorded; the two deliberately feed different
// heatmap axes.
type Transaction struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	CategoryID  *string   `json:"category_id"`
	Amount      float64   `json:"amount"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description"`
}

// Account is carried for schema completeness; the analytics engine never
// reads it.
type Account struct {
	ID             string  `json:"id"`
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	Percentage     float64 `json:"percentage"`
	PlannedBalance float64 `json:"planned_balance"`
	ActualBalance  float64 `json:"actual_balance"`
}

// User owns categories, transactions and accounts. Aggregations are always
// scoped to a single user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
