package models

// TransactionSummary is the per-user running aggregate over personal
// transactions. It is only ever mutated by applying deltas inside the same
// transaction as the entry that changed, except for the delete-all path
// which resets it to zero. At any quiescent point BalanceCents equals the
// sum of the user's transaction amounts.
type TransactionSummary struct {
	UserID        string `json:"user_id" db:"user_id"`
	BalanceCents  int64  `json:"balance_cents" db:"balance_cents"`
	IncomeCents   int64  `json:"income_cents" db:"income_cents"`
	ExpensesCents int64  `json:"expenses_cents" db:"expenses_cents"`
	UpdatedAt     string `json:"updated_at,omitempty" db:"updated_at"`
}
