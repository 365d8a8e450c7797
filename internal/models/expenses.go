package models

import (
	"github.com/shopspring/decimal"
)

// Expense is a payment made by one member on behalf of several. AmountCents
// is authoritative; Amount is the decimal mirror used for display.
type Expense struct {
	ID          int64           `json:"id" db:"id"`
	GroupID     int64           `json:"group_id" db:"group_id"`
	Description string          `json:"description" db:"description"`
	AmountCents int64           `json:"amount_cents" db:"amount_cents"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	PaidBy      string          `json:"paid_by_user_id" db:"paid_by"`
	CreatedBy   string          `json:"created_by_user_id" db:"created_by"`
	Category    string          `json:"category" db:"category"`
	CreatedAt   string          `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt   string          `json:"updated_at,omitempty" db:"updated_at"`
}
