package models

// Group is a shared expense pool. MemberCount is denormalized and kept equal
// to the number of group_members rows by updating it inside the same
// transaction as every membership change. Code is the unique join code.
type Group struct {
	ID                int64  `json:"id" db:"id"`
	Name              string `json:"name" db:"name"`
	Code              string `json:"code" db:"code"`
	CreatedBy         string `json:"created_by" db:"created_by"`
	Currency          string `json:"currency" db:"currency"`
	SmartSplitEnabled bool   `json:"smart_split_enabled" db:"smart_split_enabled"`
	MemberCount       int    `json:"member_count" db:"member_count"`
	CreatedAt         string `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt         string `json:"updated_at,omitempty" db:"updated_at"`
}
