package transactions_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpocket/internal/api/routers"
	"splitpocket/internal/repositories/sqlconnect"
	"splitpocket/pkg/utils"
)

func TestMain(m *testing.M) {
	decimal.MarshalJSONWithoutQuotes = true
	os.Exit(m.Run())
}

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

func addTransaction(t *testing.T, mux http.Handler, userID, title, amount string) int64 {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/transactions", userID, map[string]interface{}{
		"title":    title,
		"amount":   json.Number(amount),
		"category": "general",
		"user_id":  userID,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return int64(body["id"].(float64))
}

func getSummary(t *testing.T, mux http.Handler, userID string) (balance, income, expenses float64) {
	t.Helper()
	rec := doJSON(t, mux, http.MethodGet, "/transactions/summary/"+userID, userID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body map[string]float64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["balance"], body["income"], body["expenses"]
}

func TestCreateTransactionAndSummary(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	addTransaction(t, mux, "alice", "Salary", "50")
	addTransaction(t, mux, "alice", "Groceries", "-20")

	balance, income, expenses := getSummary(t, mux, "alice")
	assert.Equal(t, float64(30), balance)
	assert.Equal(t, float64(50), income)
	assert.Equal(t, float64(-20), expenses)
}

func TestSummaryZeroForNewUser(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	balance, income, expenses := getSummary(t, mux, "nobody")
	assert.Zero(t, balance)
	assert.Zero(t, income)
	assert.Zero(t, expenses)
}

func TestTransactionValidation(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	// Zero amounts carry no information.
	rec := doJSON(t, mux, http.MethodPost, "/transactions", "alice", map[string]interface{}{
		"title":    "Nothing",
		"amount":   json.Number("0"),
		"category": "general",
		"user_id":  "alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "must not be zero")

	// Recording for someone else is forbidden.
	rec = doJSON(t, mux, http.MethodPost, "/transactions", "mallory", map[string]interface{}{
		"title":    "Theirs",
		"amount":   json.Number("10"),
		"category": "general",
		"user_id":  "alice",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Missing title.
	rec = doJSON(t, mux, http.MethodPost, "/transactions", "alice", map[string]interface{}{
		"title":    "",
		"amount":   json.Number("10"),
		"category": "general",
		"user_id":  "alice",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTransactions(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	addTransaction(t, mux, "alice", "Salary", "50")
	addTransaction(t, mux, "alice", "Coffee", "-3.50")
	addTransaction(t, mux, "bob", "Rent", "-800")

	rec := doJSON(t, mux, http.MethodGet, "/transactions/alice", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txns))
	assert.Len(t, txns, 2)

	// Other users' ledgers are off limits.
	rec = doJSON(t, mux, http.MethodGet, "/transactions/alice", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateTransactionReconcilesSummary(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	addTransaction(t, mux, "alice", "Salary", "50")
	id := addTransaction(t, mux, "alice", "Groceries", "-20")

	// Flip the entry from a 20 expense to 10 income.
	rec := doJSON(t, mux, http.MethodPut, fmt.Sprintf("/transactions/%d", id), "alice", map[string]interface{}{
		"title":    "Refund",
		"amount":   json.Number("10"),
		"category": "general",
		"user_id":  "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	balance, income, expenses := getSummary(t, mux, "alice")
	assert.Equal(t, float64(60), balance)
	assert.Equal(t, float64(60), income)
	assert.Equal(t, float64(0), expenses)
}

func TestDeleteTransactionReconcilesSummary(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	addTransaction(t, mux, "alice", "Salary", "50")
	id := addTransaction(t, mux, "alice", "Groceries", "-20")

	rec := doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/transactions/%d", id), "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	balance, income, expenses := getSummary(t, mux, "alice")
	assert.Equal(t, float64(50), balance)
	assert.Equal(t, float64(50), income)
	assert.Equal(t, float64(0), expenses)

	// Deleting again is a 404 and leaves the summary alone.
	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/transactions/%d", id), "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	balance, _, _ = getSummary(t, mux, "alice")
	assert.Equal(t, float64(50), balance)
}

func TestDeleteAllTransactions(t *testing.T) {
	db := setupDB(t)
	mux := routers.MainRouter()

	addTransaction(t, mux, "alice", "Salary", "50")
	addTransaction(t, mux, "alice", "Groceries", "-20")
	addTransaction(t, mux, "bob", "Rent", "-800")

	rec := doJSON(t, mux, http.MethodDelete, "/transactions/user/alice", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	balance, income, expenses := getSummary(t, mux, "alice")
	assert.Zero(t, balance)
	assert.Zero(t, income)
	assert.Zero(t, expenses)

	// Bob's ledger is untouched.
	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM transactions WHERE user_id = 'bob'").Scan(&count))
	assert.Equal(t, 1, count)
}
