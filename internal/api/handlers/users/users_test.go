package users_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpocket/internal/api/routers"
	"splitpocket/internal/repositories/sqlconnect"
	"splitpocket/pkg/utils"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "splitpocket_test.db")
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	require.NoError(t, err)
	require.NoError(t, sqlconnect.RunMigrations(db, "sqlite3"))
	sqlconnect.DB = db
	t.Cleanup(func() {
		sqlconnect.DB = nil
		db.Close()
	})
	return db
}

func doJSON(t *testing.T, mux http.Handler, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(context.WithValue(req.Context(), utils.ContextKey("userId"), userID))
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestUpdateProfilePropagatesName(t *testing.T) {
	db := setupDB(t)
	mux := routers.MainRouter()

	// Create a group so there is a membership snapshot to update.
	rec := doJSON(t, mux, http.MethodPost, "/groups", "alice", map[string]interface{}{
		"name":     "Trip",
		"userId":   "alice",
		"userName": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, mux, http.MethodPut, "/users/profile", "alice", map[string]interface{}{
		"userName": "Alice B.",
		"email":    "alice@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["groupsUpdated"])

	var name string
	require.NoError(t, db.QueryRow("SELECT user_name FROM group_members WHERE user_id = 'alice'").Scan(&name))
	assert.Equal(t, "Alice B.", name)

	var email string
	require.NoError(t, db.QueryRow("SELECT email FROM users WHERE id = 'alice'").Scan(&email))
	assert.Equal(t, "alice@example.com", email)
}

func TestUpdateProfileValidation(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	rec := doJSON(t, mux, http.MethodPut, "/users/profile", "alice", map[string]interface{}{
		"userName": "",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPut, "/users/profile", "alice", map[string]interface{}{
		"userName": "Alice",
		"email":    "not-an-email",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetProfile(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	rec := doJSON(t, mux, http.MethodPut, "/users/profile", "alice", map[string]interface{}{
		"userName": "Alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/users/alice/profile", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Alice", body["userName"])
	assert.Equal(t, float64(0), body["groupCount"])

	rec = doJSON(t, mux, http.MethodGet, "/users/alice/profile", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestPushTokenLifecycle(t *testing.T) {
	db := setupDB(t)
	mux := routers.MainRouter()

	rec := doJSON(t, mux, http.MethodPost, "/notifications/push-token", "alice", map[string]interface{}{
		"pushToken": "ExponentPushToken[abc]",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Re-registering replaces the token.
	rec = doJSON(t, mux, http.MethodPost, "/notifications/push-token", "alice", map[string]interface{}{
		"pushToken": "ExponentPushToken[def]",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var token string
	require.NoError(t, db.QueryRow("SELECT token FROM push_tokens WHERE user_id = 'alice'").Scan(&token))
	assert.Equal(t, "ExponentPushToken[def]", token)

	// Malformed tokens are rejected.
	rec = doJSON(t, mux, http.MethodPost, "/notifications/push-token", "alice", map[string]interface{}{
		"pushToken": "garbage",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, "/notifications/push-token", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM push_tokens WHERE user_id = 'alice'").Scan(&count))
	assert.Zero(t, count)
}
