package models

// GroupMember is the join entity between a user and a group and the unit of
// access control. UserName is a display-name snapshot taken at join time and
// refreshed when the user renames themselves.
type GroupMember struct {
	GroupID  int64  `json:"group_id,omitempty" db:"group_id"`
	UserID   string `json:"user_id" db:"user_id"`
	UserName string `json:"user_name" db:"user_name"`
	JoinedAt string `json:"joined_at,omitempty" db:"joined_at"`
}
