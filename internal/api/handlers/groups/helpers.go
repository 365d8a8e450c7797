package groups

import (
	"context"
	"database/sql"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"splitpocket/pkg/utils"
)

// querier is satisfied by *sql.DB and *sql.Tx so membership checks can run
// both outside and inside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// context5s bounds a request-scoped database operation.
func context5s(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 5*time.Second)
}

// contextBg bounds best-effort work that must outlive the request.
func contextBg(d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d)
}

func callerID(r *http.Request) (string, bool) {
	uid, ok := r.Context().Value(utils.ContextKey("userId")).(string)
	return uid, ok && uid != ""
}

// ensureSelf enforces that the operation's subject user is the authenticated
// caller. Writes a 403 and returns false on mismatch.
func ensureSelf(w http.ResponseWriter, r *http.Request, userID string) bool {
	uid, ok := callerID(r)
	if !ok || uid != userID {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

// isGroupMember reports whether userID has a membership row for the group.
// Mutating operations re-run this inside their transaction; membership can
// change between the authorization gate and the commit.
func isGroupMember(ctx context.Context, q querier, groupID int64, userID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?)",
		groupID, userID).Scan(&exists)
	return exists, err
}

// requireMember writes a 403 and returns false when userID is not a member.
// Not-a-member is deliberately distinct from group-not-found: existence of
// the group is only revealed to members.
func requireMember(ctx context.Context, q querier, w http.ResponseWriter, groupID int64, userID string) bool {
	exists, err := isGroupMember(ctx, q, groupID, userID)
	if err != nil {
		utils.Logger.Errorf("failed to verify group membership: %v", err)
		utils.WriteError(w, "failed to verify group membership", http.StatusInternalServerError)
		return false
	}
	if !exists {
		utils.WriteError(w, "you are not a member of this group", http.StatusForbidden)
		return false
	}
	return true
}

// parsePositiveCents converts a decimal amount to cents and validates it on
// the integer value. Positive-only; expenses and splits cannot be zero or
// negative.
func parsePositiveCents(amount decimal.Decimal) (int64, bool) {
	cents := utils.ToCents(amount)
	if cents <= 0 {
		return 0, false
	}
	return cents, true
}

// upsertUser refreshes the caller's profile row. Called inside the group
// create/join transaction when the request carries a display name.
func upsertUser(ctx context.Context, tx *sql.Tx, userID, userName string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET user_name = ?, updated_at = ? WHERE id = ?",
		userName, now, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO users (id, user_name, updated_at) VALUES (?, ?, ?)",
		userID, userName, now)
	return err
}

// memberName returns the member's display-name snapshot, falling back to the
// raw user id. Display data only.
func memberName(ctx context.Context, q querier, groupID int64, userID string) string {
	var name string
	err := q.QueryRowContext(ctx,
		"SELECT user_name FROM group_members WHERE group_id = ? AND user_id = ?",
		groupID, userID).Scan(&name)
	if err != nil || strings.TrimSpace(name) == "" {
		return userID
	}
	return name
}
