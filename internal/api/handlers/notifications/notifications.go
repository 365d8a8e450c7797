package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"splitpocket/internal/models"
	"splitpocket/internal/repositories/sqlconnect"
	"splitpocket/pkg/utils"
)

// RegisterPushTokenHandler stores or replaces the caller's Expo push token.
// One token per user; a new device supersedes the old one.
func RegisterPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PushToken string `json:"pushToken"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !utils.IsExpoPushToken(req.PushToken) {
		utils.WriteError(w, "Invalid push token", http.StatusBadRequest)
		return
	}
	uid, ok := r.Context().Value(utils.ContextKey("userId")).(string)
	if !ok || uid == "" {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	token := models.PushToken{
		UserID:    uid,
		Token:     req.PushToken,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	res, err := sqlconnect.DB.ExecContext(ctx,
		"UPDATE push_tokens SET token = ?, updated_at = ? WHERE user_id = ?",
		token.Token, token.UpdatedAt, token.UserID)
	if err != nil {
		utils.Logger.Errorf("failed to update push token: %v", err)
		utils.WriteError(w, "Failed to register push token", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		_, err = sqlconnect.DB.ExecContext(ctx,
			"INSERT INTO push_tokens (user_id, token, updated_at) VALUES (?, ?, ?)",
			token.UserID, token.Token, token.UpdatedAt)
		if err != nil {
			utils.Logger.Errorf("failed to insert push token: %v", err)
			utils.WriteError(w, "Failed to register push token", http.StatusInternalServerError)
			return
		}
	}

	utils.WriteJSON(w, map[string]interface{}{"message": "Push token registered"})
}

// UnregisterPushTokenHandler removes the caller's push token, e.g. on
// logout.
func UnregisterPushTokenHandler(w http.ResponseWriter, r *http.Request) {
	uid, ok := r.Context().Value(utils.ContextKey("userId")).(string)
	if !ok || uid == "" {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	_, err := sqlconnect.DB.ExecContext(ctx,
		"DELETE FROM push_tokens WHERE user_id = ?", uid)
	if err != nil {
		utils.Logger.Errorf("failed to delete push token: %v", err)
		utils.WriteError(w, "Failed to unregister push token", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{"message": "Push token removed"})
}
