package models

// PushToken is a user's best-effort push delivery address. Absence is never
// an error for ledger operations.
type PushToken struct {
	UserID    string `json:"user_id" db:"user_id"`
	Token     string `json:"token" db:"token"`
	UpdatedAt string `json:"updated_at,omitempty" db:"updated_at"`
}
