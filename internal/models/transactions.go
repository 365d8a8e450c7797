package models

import (
	"github.com/shopspring/decimal"
)

// Transaction is a personal ledger entry, independent of any group. The
// amount is signed: positive for income, negative for expenses.
type Transaction struct {
	ID          int64           `json:"id" db:"id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Title       string          `json:"title" db:"title"`
	Category    string          `json:"category" db:"category"`
	AmountCents int64           `json:"amount_cents,omitempty" db:"amount_cents"`
	Amount      decimal.Decimal `json:"amount" db:"-"`
	CreatedAt   string          `json:"created_at,omitempty" db:"created_at"`
}
