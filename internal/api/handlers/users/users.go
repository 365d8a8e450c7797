package users

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"splitpocket/internal/models"
	"splitpocket/internal/repositories/sqlconnect"
	"splitpocket/pkg/utils"
)

// UpdateUserProfileHandler upserts the caller's profile and propagates the
// new display name to every membership snapshot.
func UpdateUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserName string `json:"userName"`
		Email    string `json:"email"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.UserName = strings.TrimSpace(req.UserName)
	if req.UserName == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email != "" {
		if _, err := mail.ParseAddress(req.Email); err != nil {
			utils.WriteError(w, "Invalid email address", http.StatusBadRequest)
			return
		}
	}
	uid, ok := r.Context().Value(utils.ContextKey("userId")).(string)
	if !ok || uid == "" {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := sqlconnect.DB.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to begin transaction: %v", err)
		utils.WriteError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	email := sql.NullString{String: req.Email, Valid: req.Email != ""}
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET user_name = ?, email = ?, updated_at = ? WHERE id = ?",
		req.UserName, email, now, uid)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO users (id, user_name, email, updated_at) VALUES (?, ?, ?, ?)",
			uid, req.UserName, email, now)
		if err != nil {
			tx.Rollback()
			utils.WriteError(w, "Failed to update profile", http.StatusInternalServerError)
			return
		}
	}

	res, err = tx.ExecContext(ctx,
		"UPDATE group_members SET user_name = ? WHERE user_id = ?",
		req.UserName, uid)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to propagate user name: %v", err)
		utils.WriteError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}
	groupsUpdated, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to update profile", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"message":       "Profile updated",
		"groupsUpdated": groupsUpdated,
	})
}

// GetUserProfileHandler returns the caller's profile with a membership
// count.
func GetUserProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	uid, ok := r.Context().Value(utils.ContextKey("userId")).(string)
	if !ok || uid == "" || uid != userID {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var user models.User
	user.ID = userID
	err := sqlconnect.DB.QueryRowContext(ctx,
		"SELECT user_name, email FROM users WHERE id = ?", userID).Scan(&user.UserName, &user.Email)
	if err != nil && err != sql.ErrNoRows {
		utils.Logger.Errorf("failed to fetch profile: %v", err)
		utils.WriteError(w, "Failed to fetch profile", http.StatusInternalServerError)
		return
	}

	var groupCount int
	err = sqlconnect.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM group_members WHERE user_id = ?", userID).Scan(&groupCount)
	if err != nil {
		utils.WriteError(w, "Failed to fetch profile", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"userId":     user.ID,
		"userName":   user.UserName,
		"hasEmail":   user.Email.Valid,
		"groupCount": groupCount,
	})
}
