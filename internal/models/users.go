package models

import "database/sql"

// User is a lightweight profile for an externally authenticated identity.
// The id comes from the auth provider; no credentials are stored here.
// Email is optional and only feeds the best-effort mail side channel.
type User struct {
	ID        string         `json:"user_id" db:"id"`
	UserName  string         `json:"user_name" db:"user_name"`
	Email     sql.NullString `json:"-" db:"email"`
	UpdatedAt string         `json:"updated_at,omitempty" db:"updated_at"`
}
