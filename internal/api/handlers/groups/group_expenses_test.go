package groups_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"splitpocket/internal/api/routers"
	"splitpocket/pkg/utils"
)

func groupPath(groupID int64) string {
	return fmt.Sprintf("/groups/%d", groupID)
}

func addExpense(t *testing.T, mux http.Handler, groupID int64, paidBy, description, amount string, splits []map[string]interface{}) int64 {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, groupPath(groupID)+"/expenses", paidBy, map[string]interface{}{
		"description": description,
		"amount":      json.Number(amount),
		"paidBy":      paidBy,
		"category":    "general",
		"splits":      splits,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return int64(decodeBody(t, rec)["id"].(float64))
}

func settleUp(t *testing.T, mux http.Handler, groupID int64, fromUserID, toUserID string, wantStatus int) map[string]interface{} {
	t.Helper()
	rec := doJSON(t, mux, http.MethodPost, "/settle", fromUserID, map[string]interface{}{
		"groupId":    groupID,
		"fromUserId": fromUserID,
		"toUserId":   toUserID,
	})
	require.Equal(t, wantStatus, rec.Code, rec.Body.String())
	return decodeBody(t, rec)
}

func getBalance(t *testing.T, mux http.Handler, groupID int64, userID string) map[string]interface{} {
	t.Helper()
	path := fmt.Sprintf("/groups/%d/users/%s/balance", groupID, userID)
	rec := doJSON(t, mux, http.MethodGet, path, userID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody(t, rec)
}

func TestExpenseAndSettleFlow(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	// Alice pays 30: 10 for herself, 20 for Bob.
	addExpense(t, mux, groupID, "alice", "Dinner", "30", []map[string]interface{}{
		{"userId": "alice", "amount": "10"},
		{"userId": "bob", "amount": "20"},
	})

	bob := getBalance(t, mux, groupID, "bob")
	assert.Equal(t, float64(20), bob["totalOwed"])
	assert.Equal(t, float64(-20), bob["netBalance"])
	iOwe := bob["iOwe"].([]interface{})
	require.Len(t, iOwe, 1)
	entry := iOwe[0].(map[string]interface{})
	assert.Equal(t, "alice", entry["userId"])
	assert.Equal(t, float64(20), entry["amount"])

	// Alice's own 10 share is a self edge and never shows up as debt.
	alice := getBalance(t, mux, groupID, "alice")
	assert.Equal(t, float64(20), alice["totalPaid"])
	assert.Equal(t, float64(20), alice["netBalance"])
	assert.Empty(t, alice["iOwe"])

	body := settleUp(t, mux, groupID, "bob", "alice", http.StatusOK)
	assert.Equal(t, float64(1), body["settledCount"])

	// Settlement is monotonic: nothing left to settle.
	settleUp(t, mux, groupID, "bob", "alice", http.StatusNotFound)

	bob = getBalance(t, mux, groupID, "bob")
	assert.Equal(t, float64(0), bob["totalOwed"])
	assert.Equal(t, float64(0), bob["netBalance"])
}

func TestExpenseSplitSumMustMatch(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	rec := doJSON(t, mux, http.MethodPost, groupPath(groupID)+"/expenses", "alice", map[string]interface{}{
		"description": "Dinner",
		"amount":      json.Number("30"),
		"paidBy":      "alice",
		"category":    "food",
		"splits": []map[string]interface{}{
			{"userId": "alice", "amount": "10"},
			{"userId": "bob", "amount": "15"},
		},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sum to the expense amount")
}

func TestExpenseValidation(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	// Zero amount.
	rec := doJSON(t, mux, http.MethodPost, groupPath(groupID)+"/expenses", "alice", map[string]interface{}{
		"description": "Free lunch",
		"amount":      json.Number("0"),
		"paidBy":      "alice",
		"category":    "food",
		"splits":      []map[string]interface{}{{"userId": "alice", "amount": "0"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Empty splits.
	rec = doJSON(t, mux, http.MethodPost, groupPath(groupID)+"/expenses", "alice", map[string]interface{}{
		"description": "Dinner",
		"amount":      json.Number("30"),
		"paidBy":      "alice",
		"category":    "food",
		"splits":      []map[string]interface{}{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "non-empty")

	// Split user outside the group.
	rec = doJSON(t, mux, http.MethodPost, groupPath(groupID)+"/expenses", "alice", map[string]interface{}{
		"description": "Dinner",
		"amount":      json.Number("30"),
		"paidBy":      "alice",
		"category":    "food",
		"splits":      []map[string]interface{}{{"userId": "stranger", "amount": "30"}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Non-member cannot create expenses at all.
	rec = doJSON(t, mux, http.MethodPost, groupPath(groupID)+"/expenses", "stranger", map[string]interface{}{
		"description": "Dinner",
		"amount":      json.Number("30"),
		"paidBy":      "alice",
		"category":    "food",
		"splits":      []map[string]interface{}{{"userId": "alice", "amount": "30"}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListGroupExpensesAndSplits(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	expenseID := addExpense(t, mux, groupID, "alice", "Hotel", "100", []map[string]interface{}{
		{"userId": "alice", "amount": "50"},
		{"userId": "bob", "amount": "50"},
	})

	rec := doJSON(t, mux, http.MethodGet, groupPath(groupID)+"/expenses", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var expenses []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &expenses))
	require.Len(t, expenses, 1)
	assert.Equal(t, "Hotel", expenses[0]["description"])
	assert.Equal(t, "Alice", expenses[0]["paid_by_user_name"])
	assert.Equal(t, float64(100), expenses[0]["amount"])

	path := fmt.Sprintf("/expenses/%d/splits?groupId=%d", expenseID, groupID)
	rec = doJSON(t, mux, http.MethodGet, path, "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var splits []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &splits))
	require.Len(t, splits, 2)

	// Missing groupId query is rejected.
	rec = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/expenses/%d/splits", expenseID), "bob", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpdateExpense(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	expenseID := addExpense(t, mux, groupID, "alice", "Dinner", "30", []map[string]interface{}{
		{"userId": "alice", "amount": "10"},
		{"userId": "bob", "amount": "20"},
	})

	// Only the payer may edit.
	rec := doJSON(t, mux, http.MethodPut, fmt.Sprintf("/expenses/%d", expenseID), "bob", map[string]interface{}{
		"groupId":     groupID,
		"description": "Sneaky edit",
		"amount":      json.Number("30"),
		"category":    "food",
		"splits":      []map[string]interface{}{{"userId": "bob", "amount": "30"}},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/expenses/%d", expenseID), "alice", map[string]interface{}{
		"groupId":     groupID,
		"description": "Dinner and drinks",
		"amount":      json.Number("40"),
		"category":    "food",
		"splits": []map[string]interface{}{
			{"userId": "alice", "amount": "15"},
			{"userId": "bob", "amount": "25"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	bob := getBalance(t, mux, groupID, "bob")
	assert.Equal(t, float64(25), bob["totalOwed"])
}

func TestSettledSplitsFreezeExpense(t *testing.T) {
	db := setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	expenseID := addExpense(t, mux, groupID, "alice", "Dinner", "30", []map[string]interface{}{
		{"userId": "bob", "amount": "30"},
	})
	settleUp(t, mux, groupID, "bob", "alice", http.StatusOK)

	rec := doJSON(t, mux, http.MethodPut, fmt.Sprintf("/expenses/%d", expenseID), "alice", map[string]interface{}{
		"groupId":     groupID,
		"description": "Dinner v2",
		"amount":      json.Number("50"),
		"category":    "food",
		"splits":      []map[string]interface{}{{"userId": "bob", "amount": "50"}},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot edit an expense with settled splits")

	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/expenses/%d", expenseID), "alice", map[string]interface{}{
		"groupId": groupID,
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot delete an expense with settled splits")

	// Records are untouched by the rejected edits.
	var cents int64
	require.NoError(t, db.QueryRow("SELECT amount_cents FROM expenses WHERE id = ?", expenseID).Scan(&cents))
	assert.Equal(t, int64(3000), cents)
	var settled bool
	require.NoError(t, db.QueryRow("SELECT is_settled FROM splits WHERE expense_id = ?", expenseID).Scan(&settled))
	assert.True(t, settled)
}

func TestDeleteExpense(t *testing.T) {
	db := setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	expenseID := addExpense(t, mux, groupID, "alice", "Dinner", "30", []map[string]interface{}{
		{"userId": "bob", "amount": "30"},
	})

	// The body may restate the caller's identity, but not someone else's.
	rec := doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/expenses/%d", expenseID), "alice", map[string]interface{}{
		"groupId": groupID,
		"userId":  "bob",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/expenses/%d", expenseID), "alice", map[string]interface{}{
		"groupId": groupID,
		"userId":  "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM splits WHERE expense_id = ?", expenseID).Scan(&count))
	assert.Zero(t, count)

	bob := getBalance(t, mux, groupID, "bob")
	assert.Equal(t, float64(0), bob["totalOwed"])
}

func TestSettleValidation(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	// Settling on someone else's behalf is forbidden.
	rec := doJSON(t, mux, http.MethodPost, "/settle", "alice", map[string]interface{}{
		"groupId":    groupID,
		"fromUserId": "bob",
		"toUserId":   "alice",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Missing fields.
	rec = doJSON(t, mux, http.MethodPost, "/settle", "bob", map[string]interface{}{
		"groupId":    groupID,
		"fromUserId": "bob",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Creditor must be a member.
	rec = doJSON(t, mux, http.MethodPost, "/settle", "bob", map[string]interface{}{
		"groupId":    groupID,
		"fromUserId": "bob",
		"toUserId":   "stranger",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func waitPush(t *testing.T, pushed <-chan []byte) string {
	t.Helper()
	select {
	case body := <-pushed:
		return string(body)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a push notification")
		return ""
	}
}

func TestExpenseChangesNotifyMembers(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	pushed := make(chan []byte, 8)
	gateway := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		pushed <- body
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(gateway.Close)
	prevURL := utils.ExpoPushURL
	utils.ExpoPushURL = gateway.URL
	t.Cleanup(func() { utils.ExpoPushURL = prevURL })

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")

	rec := doJSON(t, mux, http.MethodPost, "/notifications/push-token", "bob", map[string]interface{}{
		"pushToken": "ExponentPushToken[bob-device]",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	expenseID := addExpense(t, mux, groupID, "alice", "Dinner", "30", []map[string]interface{}{
		{"userId": "bob", "amount": "30"},
	})
	assert.Contains(t, waitPush(t, pushed), "expense_created")

	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/expenses/%d", expenseID), "alice", map[string]interface{}{
		"groupId":     groupID,
		"description": "Dinner and drinks",
		"amount":      json.Number("30"),
		"category":    "food",
		"splits":      []map[string]interface{}{{"userId": "bob", "amount": "30"}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, waitPush(t, pushed), "expense_updated")

	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/expenses/%d", expenseID), "alice", map[string]interface{}{
		"groupId": groupID,
		"userId":  "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, waitPush(t, pushed), "expense_deleted")
}

func TestSettleOnlyTouchesOnePair(t *testing.T) {
	setupDB(t)
	mux := routers.MainRouter()

	groupID, code := createGroup(t, mux, "alice", "Alice", "Trip")
	joinGroup(t, mux, code, "bob", "Bob")
	joinGroup(t, mux, code, "carol", "Carol")

	addExpense(t, mux, groupID, "alice", "Dinner", "60", []map[string]interface{}{
		{"userId": "bob", "amount": "30"},
		{"userId": "carol", "amount": "30"},
	})

	body := settleUp(t, mux, groupID, "bob", "alice", http.StatusOK)
	assert.Equal(t, float64(1), body["settledCount"])

	// Carol's debt is untouched.
	carol := getBalance(t, mux, groupID, "carol")
	assert.Equal(t, float64(30), carol["totalOwed"])
}
