package transactions

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"splitpocket/internal/models"
	"splitpocket/internal/repositories/sqlconnect"
	"splitpocket/pkg/utils"
)

func ensureSelf(w http.ResponseWriter, r *http.Request, userID string) bool {
	uid, ok := r.Context().Value(utils.ContextKey("userId")).(string)
	if !ok || uid == "" || uid != userID {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}

func pos(c int64) int64 {
	if c > 0 {
		return c
	}
	return 0
}

func neg(c int64) int64 {
	if c < 0 {
		return c
	}
	return 0
}

// applySummaryDeltas adjusts the user's running summary inside the caller's
// transaction. The row is created lazily on first use; update-then-insert
// keeps the statement portable across drivers.
func applySummaryDeltas(ctx context.Context, tx *sql.Tx, userID string, balance, income, expenses int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.ExecContext(ctx,
		`UPDATE transaction_summaries
		 SET balance_cents = balance_cents + ?, income_cents = income_cents + ?, expenses_cents = expenses_cents + ?, updated_at = ?
		 WHERE user_id = ?`,
		balance, income, expenses, now, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO transaction_summaries (user_id, balance_cents, income_cents, expenses_cents, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		userID, balance, income, expenses, now)
	return err
}

// CreateTransactionHandler records a personal ledger entry. Positive amounts
// are income, negative are expenses; zero is rejected.
func CreateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string          `json:"title"`
		Amount    decimal.Decimal `json:"amount"`
		Category  string          `json:"category"`
		UserID    string          `json:"user_id"`
		CreatedAt string          `json:"created_at"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Category == "" || req.UserID == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	if !ensureSelf(w, r, req.UserID) {
		return
	}
	cents := utils.ToCents(req.Amount)
	if cents == 0 {
		utils.WriteError(w, "Amount must not be zero", http.StatusBadRequest)
		return
	}
	createdAt := req.CreatedAt
	if createdAt == "" {
		createdAt = time.Now().UTC().Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, createdAt); err != nil {
		utils.WriteError(w, "Invalid created_at timestamp", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := sqlconnect.DB.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to begin transaction: %v", err)
		utils.WriteError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	res, err := tx.ExecContext(ctx,
		"INSERT INTO transactions (user_id, title, category, amount_cents, created_at) VALUES (?, ?, ?, ?, ?)",
		req.UserID, req.Title, req.Category, cents, createdAt)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to insert transaction: %v", err)
		utils.WriteError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}
	id, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	if err := applySummaryDeltas(ctx, tx, req.UserID, cents, pos(cents), neg(cents)); err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to update summary: %v", err)
		utils.WriteError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to create transaction", http.StatusInternalServerError)
		return
	}

	utils.WriteJSONStatus(w, map[string]interface{}{
		"id":         id,
		"user_id":    req.UserID,
		"title":      req.Title,
		"amount":     utils.FromCents(cents),
		"category":   req.Category,
		"created_at": createdAt,
	}, http.StatusCreated)
}

// GetUserTransactionsHandler lists the user's ledger entries newest first.
func GetUserTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if !ensureSelf(w, r, userID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rows, err := sqlconnect.DB.QueryContext(ctx,
		"SELECT id, user_id, title, category, amount_cents, created_at FROM transactions WHERE user_id = ? ORDER BY created_at DESC, id DESC",
		userID)
	if err != nil {
		utils.Logger.Errorf("failed to query transactions: %v", err)
		utils.WriteError(w, "Failed to fetch transactions", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	txns := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.UserID, &t.Title, &t.Category, &t.AmountCents, &t.CreatedAt); err != nil {
			utils.WriteError(w, "Failed to fetch transactions", http.StatusInternalServerError)
			return
		}
		t.Amount = utils.FromCents(t.AmountCents)
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		utils.WriteError(w, "Failed to fetch transactions", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, txns)
}

// UpdateTransactionHandler replaces a ledger entry and reconciles the summary
// by the difference between old and new amounts.
func UpdateTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, "Invalid transaction ID", http.StatusBadRequest)
		return
	}
	var req struct {
		Title    string          `json:"title"`
		Amount   decimal.Decimal `json:"amount"`
		Category string          `json:"category"`
		UserID   string          `json:"user_id"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" || req.Category == "" || req.UserID == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	if !ensureSelf(w, r, req.UserID) {
		return
	}
	newCents := utils.ToCents(req.Amount)
	if newCents == 0 {
		utils.WriteError(w, "Amount must not be zero", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := sqlconnect.DB.BeginTx(ctx, nil)
	if err != nil {
		utils.WriteError(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	var oldCents int64
	err = tx.QueryRowContext(ctx,
		"SELECT amount_cents FROM transactions WHERE id = ? AND user_id = ?",
		id, req.UserID).Scan(&oldCents)
	if err == sql.ErrNoRows {
		tx.Rollback()
		utils.WriteError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE transactions SET title = ?, category = ?, amount_cents = ? WHERE id = ?",
		req.Title, req.Category, newCents, id)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to update transaction: %v", err)
		utils.WriteError(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	err = applySummaryDeltas(ctx, tx, req.UserID,
		newCents-oldCents, pos(newCents)-pos(oldCents), neg(newCents)-neg(oldCents))
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to reconcile summary: %v", err)
		utils.WriteError(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to update transaction", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"id":       id,
		"user_id":  req.UserID,
		"title":    req.Title,
		"amount":   utils.FromCents(newCents),
		"category": req.Category,
	})
}

// DeleteTransactionHandler removes one entry and backs its amount out of the
// summary.
func DeleteTransactionHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, "Invalid transaction ID", http.StatusBadRequest)
		return
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
		utils.WriteError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	var cents int64
	err = tx.QueryRowContext(ctx,
		"SELECT amount_cents FROM transactions WHERE id = ? AND user_id = ?",
		id, uid).Scan(&cents)
	if err == sql.ErrNoRows {
		tx.Rollback()
		utils.WriteError(w, "Transaction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE id = ?", id); err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	if err := applySummaryDeltas(ctx, tx, uid, -cents, -pos(cents), -neg(cents)); err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to reconcile summary: %v", err)
		utils.WriteError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to delete transaction", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"message": "Transaction deleted",
		"id":      id,
	})
}

// GetTransactionSummaryHandler returns the user's running totals. Users with
// no recorded transactions get zeros.
func GetTransactionSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if !ensureSelf(w, r, userID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var s models.TransactionSummary
	err := sqlconnect.DB.QueryRowContext(ctx,
		"SELECT balance_cents, income_cents, expenses_cents FROM transaction_summaries WHERE user_id = ?",
		userID).Scan(&s.BalanceCents, &s.IncomeCents, &s.ExpensesCents)
	if err != nil && err != sql.ErrNoRows {
		utils.Logger.Errorf("failed to fetch summary: %v", err)
		utils.WriteError(w, "Failed to fetch summary", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"balance":  utils.FromCents(s.BalanceCents),
		"income":   utils.FromCents(s.IncomeCents),
		"expenses": utils.FromCents(s.ExpensesCents),
	})
}

// DeleteAllTransactionsHandler wipes the user's ledger and resets the
// summary to zero in one transaction.
func DeleteAllTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if !ensureSelf(w, r, userID) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	tx, err := sqlconnect.DB.BeginTx(ctx, nil)
	if err != nil {
		utils.WriteError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM transactions WHERE user_id = ?", userID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to delete transactions: %v", err)
		utils.WriteError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}
	deleted, _ := res.RowsAffected()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		"UPDATE transaction_summaries SET balance_cents = 0, income_cents = 0, expenses_cents = 0, updated_at = ? WHERE user_id = ?",
		now, userID)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to delete transactions", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"message": "All transactions deleted",
		"deleted": deleted,
	})
}
