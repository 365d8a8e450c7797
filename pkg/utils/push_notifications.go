package utils

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// ExpoPushURL is the Expo push gateway. Overridable for local testing.
var ExpoPushURL = "https://exp.host/--/api/v2/push/send"

// Expo rejects requests with more than 100 messages.
const pushChunkSize = 100

var pushClient = &http.Client{Timeout: 10 * time.Second}

type pushMessage struct {
	To        string                 `json:"to"`
	Sound     string                 `json:"sound"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Priority  string                 `json:"priority"`
	ChannelID string                 `json:"channelId"`
}

// IsExpoPushToken reports whether token looks like a deliverable Expo token.
func IsExpoPushToken(token string) bool {
	return (strings.HasPrefix(token, "ExponentPushToken[") ||
		strings.HasPrefix(token, "ExpoPushToken[")) &&
		strings.HasSuffix(token, "]")
}

// SendPushNotification delivers a best-effort push to the given tokens.
// Failures are logged and swallowed; push delivery must never affect the
// outcome of the ledger operation that triggered it.
func SendPushNotification(pushTokens []string, title, body string, data map[string]interface{}) {
	var messages []pushMessage
	for _, token := range pushTokens {
		if !IsExpoPushToken(token) {
			continue
		}
		messages = append(messages, pushMessage{
			To:        token,
			Sound:     "default",
			Title:     title,
			Body:      body,
			Data:      data,
			Priority:  "high",
			ChannelID: "default",
		})
	}

	if len(messages) == 0 {
		Logger.Debug("no valid push tokens to send to")
		return
	}

	for start := 0; start < len(messages); start += pushChunkSize {
		end := start + pushChunkSize
		if end > len(messages) {
			end = len(messages)
		}

		payload, err := json.Marshal(messages[start:end])
		if err != nil {
			Logger.Errorf("failed to encode push messages: %v", err)
			return
		}

		resp, err := pushClient.Post(ExpoPushURL, "application/json", bytes.NewReader(payload))
		if err != nil {
			Logger.Errorf("failed to send push notifications: %v", err)
			continue
		}
		if resp.StatusCode >= 400 {
			Logger.Errorf("push gateway returned status %d", resp.StatusCode)
		}
		resp.Body.Close()
	}
}

// NotifyGroupMembers pushes to every member of a group except the user who
// performed the action.
func NotifyGroupMembers(db *sql.DB, groupID int64, excludeUserID, title, body string, data map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := db.QueryContext(ctx, `
		SELECT t.token
		FROM push_tokens t
		JOIN group_members m ON m.user_id = t.user_id
		WHERE m.group_id = ? AND m.user_id != ?
	`, groupID, excludeUserID)
	if err != nil {
		Logger.Errorf("failed to load member push tokens for group %d: %v", groupID, err)
		return
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err == nil {
			tokens = append(tokens, token)
		}
	}
	if err := rows.Err(); err != nil {
		Logger.Errorf("error iterating push tokens for group %d: %v", groupID, err)
	}

	if len(tokens) == 0 {
		return
	}

	SendPushNotification(tokens, title, body, data)
	Logger.Infof("sent notification to %d group members", len(tokens))
}

// NotifyUser pushes to a single user, if they have a token registered.
// A missing token is not an error.
func NotifyUser(db *sql.DB, userID, title, body string, data map[string]interface{}) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var token string
	err := db.QueryRowContext(ctx, "SELECT token FROM push_tokens WHERE user_id = ?", userID).Scan(&token)
	if err != nil {
		if err != sql.ErrNoRows {
			Logger.Errorf("failed to load push token for user %s: %v", userID, err)
		}
		return
	}

	SendPushNotification([]string{token}, title, body, data)
}
