package models

import (
	"database/sql"

	"github.com/shopspring/decimal"
)

// Split is a directed debt edge: FromUserID owes ToUserID (the expense's
// payer) AmountOwedCents for one expense. Settlement is monotonic; a settled
// split is never unsettled and blocks edits of its parent expense.
type Split struct {
	ID              int64           `json:"id" db:"id"`
	GroupID         int64           `json:"group_id" db:"group_id"`
	ExpenseID       int64           `json:"expense_id" db:"expense_id"`
	FromUserID      string          `json:"from_user_id" db:"from_user_id"`
	ToUserID        string          `json:"to_user_id" db:"to_user_id"`
	AmountOwedCents int64           `json:"amount_owed_cents" db:"amount_owed_cents"`
	AmountOwed      decimal.Decimal `json:"amount_owed" db:"amount_owed"`
	IsSettled       bool            `json:"is_settled" db:"is_settled"`
	SettledAt       sql.NullString  `json:"settled_at,omitempty" db:"settled_at"`
	CreatedAt       string          `json:"created_at,omitempty" db:"created_at"`
}
