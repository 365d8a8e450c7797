package groups

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

// maxSettleBatch caps how many splits a single settle-up may flip.
const maxSettleBatch = 450

type splitInput struct {
	UserID string          `json:"userId"`
	Amount decimal.Decimal `json:"amount"`
}

// validateSplits converts split amounts to cents and checks they sum exactly
// to the expense total. Per-split amounts must be positive.
func validateSplits(w http.ResponseWriter, splits []splitInput, totalCents int64) ([]int64, bool) {
	if len(splits) == 0 {
		utils.WriteError(w, "Splits must be a non-empty array", http.StatusBadRequest)
		return nil, false
	}
	cents := make([]int64, len(splits))
	var sum int64
	for i, s := range splits {
		if s.UserID == "" {
			utils.WriteError(w, "All fields are required", http.StatusBadRequest)
			return nil, false
		}
		c, ok := parsePositiveCents(s.Amount)
		if !ok {
			utils.WriteError(w, "Amount must be positive", http.StatusBadRequest)
			return nil, false
		}
		cents[i] = c
		sum += c
	}
	if sum != totalCents {
		utils.WriteError(w, "Custom splits must sum to the expense amount", http.StatusBadRequest)
		return nil, false
	}
	return cents, true
}

// insertSplits writes one debt row per split using a prepared statement.
// toUserID is the expense payer; a split where the debtor is the payer is
// stored too but carries no debt (self edge).
func insertSplits(ctx context.Context, tx *sql.Tx, groupID, expenseID int64, splits []splitInput, cents []int64, toUserID, now string) error {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO splits (group_id, expense_id, from_user_id, to_user_id, amount_owed_cents, amount_owed, is_settled, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, FALSE, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, s := range splits {
		amount := utils.FromCents(cents[i])
		if _, err := stmt.ExecContext(ctx, groupID, expenseID, s.UserID, toUserID, cents[i], amount.StringFixed(2), now); err != nil {
			return err
		}
	}
	return nil
}

// CreateGroupExpenseHandler records an expense and its debt splits in one
// transaction.
func CreateGroupExpenseHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}
	var req struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		PaidBy      string          `json:"paidBy"`
		Category    string          `json:"category"`
		Splits      []splitInput    `json:"splits"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Description == "" || req.PaidBy == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	uid, ok := callerID(r)
	if !ok {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	amountCents, ok := parsePositiveCents(req.Amount)
	if !ok {
		utils.WriteError(w, "Amount must be positive", http.StatusBadRequest)
		return
	}
	splitCents, ok := validateSplits(w, req.Splits, amountCents)
	if !ok {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	if !requireMember(ctx, db, w, groupID, uid) {
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to begin transaction: %v", err)
		utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
		return
	}

	var exists bool
	if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM groups WHERE id = ?)", groupID).Scan(&exists); err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
		return
	}
	if !exists {
		tx.Rollback()
		utils.WriteError(w, "Group not found", http.StatusNotFound)
		return
	}

	payerMember, err := isGroupMember(ctx, tx, groupID, req.PaidBy)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
		return
	}
	if !payerMember {
		tx.Rollback()
		utils.WriteError(w, "payer is not a member of this group", http.StatusForbidden)
		return
	}
	for _, s := range req.Splits {
		member, err := isGroupMember(ctx, tx, groupID, s.UserID)
		if err != nil {
			tx.Rollback()
			utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
			return
		}
		if !member {
			tx.Rollback()
			utils.WriteError(w, "split user is not a member of this group", http.StatusForbidden)
			return
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)
	amount := utils.FromCents(amountCents)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO expenses (group_id, description, amount_cents, amount, paid_by, created_by, category, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		groupID, req.Description, amountCents, amount.StringFixed(2), req.PaidBy, uid, req.Category, now, now)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to insert expense: %v", err)
		utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
		return
	}
	expenseID, err := res.LastInsertId()
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
		return
	}

	if err := insertSplits(ctx, tx, groupID, expenseID, req.Splits, splitCents, req.PaidBy, now); err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to insert splits: %v", err)
		utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.Logger.Errorf("failed to commit expense: %v", err)
		utils.WriteError(w, "Failed to create expense", http.StatusInternalServerError)
		return
	}

	payerName := memberName(ctx, db, groupID, req.PaidBy)
	go utils.NotifyGroupMembers(db, groupID, uid,
		"New expense",
		payerName+" paid "+amount.StringFixed(2)+" for "+req.Description,
		map[string]interface{}{"type": "expense_created", "groupId": groupID, "expenseId": expenseID})

	utils.WriteJSONStatus(w, map[string]interface{}{
		"id":       expenseID,
		"group_id": groupID,
	}, http.StatusCreated)
}

// UpdateGroupExpenseHandler replaces an expense and its splits. Only the
// payer may edit, and not once any split has been settled.
func UpdateGroupExpenseHandler(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := pathExpenseID(w, r)
	if !ok {
		return
	}
	var req struct {
		GroupID     int64           `json:"groupId"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    string          `json:"category"`
		Splits      []splitInput    `json:"splits"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.GroupID == 0 || req.Description == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	uid, ok := callerID(r)
	if !ok {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	amountCents, ok := parsePositiveCents(req.Amount)
	if !ok {
		utils.WriteError(w, "Amount must be positive", http.StatusBadRequest)
		return
	}
	splitCents, ok := validateSplits(w, req.Splits, amountCents)
	if !ok {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
		return
	}

	var paidBy string
	err = tx.QueryRowContext(ctx,
		"SELECT paid_by FROM expenses WHERE id = ? AND group_id = ?",
		expenseID, req.GroupID).Scan(&paidBy)
	if err == sql.ErrNoRows {
		tx.Rollback()
		utils.WriteError(w, "Expense not found", http.StatusNotFound)
		return
	}
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
		return
	}
	if paidBy != uid {
		tx.Rollback()
		utils.WriteError(w, "You are not authorized to edit this expense", http.StatusForbidden)
		return
	}

	for _, s := range req.Splits {
		member, err := isGroupMember(ctx, tx, req.GroupID, s.UserID)
		if err != nil {
			tx.Rollback()
			utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
			return
		}
		if !member {
			tx.Rollback()
			utils.WriteError(w, "split user is not a member of this group", http.StatusForbidden)
			return
		}
	}

	var settled int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM splits WHERE expense_id = ? AND is_settled = TRUE",
		expenseID).Scan(&settled)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
		return
	}
	if settled > 0 {
		tx.Rollback()
		utils.WriteError(w, "Cannot edit an expense with settled splits", http.StatusBadRequest)
		return
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE expense_id = ?", expenseID); err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	amount := utils.FromCents(amountCents)
	_, err = tx.ExecContext(ctx,
		"UPDATE expenses SET description = ?, amount_cents = ?, amount = ?, category = ?, updated_at = ? WHERE id = ?",
		req.Description, amountCents, amount.StringFixed(2), req.Category, now, expenseID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to update expense: %v", err)
		utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
		return
	}

	if err := insertSplits(ctx, tx, req.GroupID, expenseID, req.Splits, splitCents, uid, now); err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to insert splits: %v", err)
		utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to update expense", http.StatusInternalServerError)
		return
	}

	payerName := memberName(ctx, db, req.GroupID, uid)
	go utils.NotifyGroupMembers(db, req.GroupID, uid,
		"Expense updated",
		payerName+" updated "+req.Description,
		map[string]interface{}{"type": "expense_updated", "groupId": req.GroupID, "expenseId": expenseID})

	utils.WriteJSON(w, map[string]interface{}{
		"id":          expenseID,
		"group_id":    req.GroupID,
		"description": req.Description,
		"amount":      amount,
		"category":    req.Category,
	})
}

// DeleteGroupExpenseHandler removes an expense and its unsettled splits.
// Only the payer may delete, and not once any split has been settled.
func DeleteGroupExpenseHandler(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := pathExpenseID(w, r)
	if !ok {
		return
	}
	var req struct {
		GroupID int64  `json:"groupId"`
		UserID  string `json:"userId"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.GroupID == 0 {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	// Clients may restate their identity in the body; it must then match
	// the authenticated caller.
	if req.UserID != "" && !ensureSelf(w, r, req.UserID) {
		return
	}
	uid, ok := callerID(r)
	if !ok {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.WriteError(w, "Failed to delete expense", http.StatusInternalServerError)
		return
	}

	var paidBy, description string
	err = tx.QueryRowContext(ctx,
		"SELECT paid_by, description FROM expenses WHERE id = ? AND group_id = ?",
		expenseID, req.GroupID).Scan(&paidBy, &description)
	if err == sql.ErrNoRows {
		tx.Rollback()
		utils.WriteError(w, "Expense not found", http.StatusNotFound)
		return
	}
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to delete expense", http.StatusInternalServerError)
		return
	}
	if paidBy != uid {
		tx.Rollback()
		utils.WriteError(w, "You are not authorized to delete this expense", http.StatusForbidden)
		return
	}

	var settled int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM splits WHERE expense_id = ? AND is_settled = TRUE",
		expenseID).Scan(&settled)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to delete expense", http.StatusInternalServerError)
		return
	}
	if settled > 0 {
		tx.Rollback()
		utils.WriteError(w, "Cannot delete an expense with settled splits", http.StatusBadRequest)
		return
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM splits WHERE expense_id = ?", expenseID); err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to delete expense", http.StatusInternalServerError)
		return
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID); err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to delete expense", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to delete expense", http.StatusInternalServerError)
		return
	}

	payerName := memberName(ctx, db, req.GroupID, uid)
	go utils.NotifyGroupMembers(db, req.GroupID, uid,
		"Expense removed",
		payerName+" removed "+description,
		map[string]interface{}{"type": "expense_deleted", "groupId": req.GroupID, "expenseId": expenseID})

	utils.WriteJSON(w, map[string]interface{}{
		"message":   "Expense deleted",
		"expenseId": expenseID,
	})
}

// GetGroupExpensesHandler lists a group's expenses newest first, with a
// display-name snapshot for the payer where one still exists.
func GetGroupExpensesHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}
	uid, ok := callerID(r)
	if !ok {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	if !requireMember(ctx, sqlconnect.DB, w, groupID, uid) {
		return
	}

	rows, err := sqlconnect.DB.QueryContext(ctx,
		`SELECT e.id, e.group_id, e.description, e.amount_cents, e.paid_by, e.created_by, e.category, e.created_at, e.updated_at,
		        COALESCE(gm.user_name, e.paid_by)
		 FROM expenses e
		 LEFT JOIN group_members gm ON gm.group_id = e.group_id AND gm.user_id = e.paid_by
		 WHERE e.group_id = ?
		 ORDER BY e.created_at DESC, e.id DESC`, groupID)
	if err != nil {
		utils.Logger.Errorf("failed to query expenses: %v", err)
		utils.WriteError(w, "Failed to fetch expenses", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	type expenseRow struct {
		models.Expense
		PaidByUserName string `json:"paid_by_user_name"`
	}
	expenses := []expenseRow{}
	for rows.Next() {
		var e expenseRow
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Description, &e.AmountCents, &e.PaidBy, &e.CreatedBy, &e.Category, &e.CreatedAt, &e.UpdatedAt, &e.PaidByUserName); err != nil {
			utils.WriteError(w, "Failed to fetch expenses", http.StatusInternalServerError)
			return
		}
		e.Amount = utils.FromCents(e.AmountCents)
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		utils.WriteError(w, "Failed to fetch expenses", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, expenses)
}

// GetExpenseSplitsHandler lists the splits of one expense, ordered by the
// debtor's display name.
func GetExpenseSplitsHandler(w http.ResponseWriter, r *http.Request) {
	expenseID, ok := pathExpenseID(w, r)
	if !ok {
		return
	}
	groupID, err := strconv.ParseInt(r.URL.Query().Get("groupId"), 10, 64)
	if err != nil || groupID <= 0 {
		utils.WriteError(w, "Group ID is required", http.StatusBadRequest)
		return
	}
	uid, ok := callerID(r)
	if !ok {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	if !requireMember(ctx, sqlconnect.DB, w, groupID, uid) {
		return
	}

	rows, err := sqlconnect.DB.QueryContext(ctx,
		`SELECT s.id, s.group_id, s.expense_id, s.from_user_id, s.to_user_id, s.amount_owed_cents, s.is_settled, s.settled_at, s.created_at,
		        COALESCE(gm.user_name, s.from_user_id)
		 FROM splits s
		 LEFT JOIN group_members gm ON gm.group_id = s.group_id AND gm.user_id = s.from_user_id
		 WHERE s.expense_id = ? AND s.group_id = ?
		 ORDER BY COALESCE(gm.user_name, s.from_user_id) ASC`, expenseID, groupID)
	if err != nil {
		utils.Logger.Errorf("failed to query splits: %v", err)
		utils.WriteError(w, "Failed to fetch splits", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	type splitRow struct {
		models.Split
		FromUserName string `json:"from_user_name"`
	}
	splits := []splitRow{}
	for rows.Next() {
		var s splitRow
		if err := rows.Scan(&s.ID, &s.GroupID, &s.ExpenseID, &s.FromUserID, &s.ToUserID, &s.AmountOwedCents, &s.IsSettled, &s.SettledAt, &s.CreatedAt, &s.FromUserName); err != nil {
			utils.WriteError(w, "Failed to fetch splits", http.StatusInternalServerError)
			return
		}
		s.AmountOwed = utils.FromCents(s.AmountOwedCents)
		splits = append(splits, s)
	}
	if err := rows.Err(); err != nil {
		utils.WriteError(w, "Failed to fetch splits", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, splits)
}

type counterpartyBalance struct {
	UserID   string          `json:"userId"`
	UserName string          `json:"userName"`
	Amount   decimal.Decimal `json:"amount"`
}

// GetGroupBalanceHandler aggregates the caller's unsettled splits into a
// per-counterparty view. Self edges (payer owing themselves) never count.
func GetGroupBalanceHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}
	userID := r.PathValue("userId")
	if !ensureSelf(w, r, userID) {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	if !requireMember(ctx, db, w, groupID, userID) {
		return
	}

	owesMe, owedToMe, err := aggregateSide(ctx, db, groupID, userID, true)
	if err != nil {
		utils.Logger.Errorf("failed to aggregate credits: %v", err)
		utils.WriteError(w, "Failed to fetch balance", http.StatusInternalServerError)
		return
	}
	iOwe, iOweTotal, err := aggregateSide(ctx, db, groupID, userID, false)
	if err != nil {
		utils.Logger.Errorf("failed to aggregate debts: %v", err)
		utils.WriteError(w, "Failed to fetch balance", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"totalPaid":  utils.FromCents(owedToMe),
		"totalOwed":  utils.FromCents(iOweTotal),
		"netBalance": utils.FromCents(owedToMe - iOweTotal),
		"owesMe":     owesMe,
		"iOwe":       iOwe,
	})
}

// aggregateSide sums unsettled splits grouped by counterparty. asCreditor
// selects whether userID is the creditor (to_user_id) or debtor side.
func aggregateSide(ctx context.Context, db *sql.DB, groupID int64, userID string, asCreditor bool) ([]counterpartyBalance, int64, error) {
	self, other := "s.to_user_id", "s.from_user_id"
	if !asCreditor {
		self, other = other, self
	}
	rows, err := db.QueryContext(ctx,
		`SELECT `+other+`, COALESCE(gm.user_name, `+other+`), SUM(s.amount_owed_cents)
		 FROM splits s
		 LEFT JOIN group_members gm ON gm.group_id = s.group_id AND gm.user_id = `+other+`
		 WHERE s.group_id = ? AND `+self+` = ? AND s.is_settled = FALSE
		   AND s.from_user_id != s.to_user_id
		 GROUP BY `+other+`, gm.user_name
		 ORDER BY 2 ASC`, groupID, userID)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := []counterpartyBalance{}
	var total int64
	for rows.Next() {
		var uid, name string
		var cents int64
		if err := rows.Scan(&uid, &name, &cents); err != nil {
			return nil, 0, err
		}
		out = append(out, counterpartyBalance{UserID: uid, UserName: name, Amount: utils.FromCents(cents)})
		total += cents
	}
	return out, total, rows.Err()
}

// SettleUpHandler marks every unsettled split from the caller to one creditor
// as settled. Settlement is all-or-nothing and monotonic.
func SettleUpHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID    int64  `json:"groupId"`
		FromUserID string `json:"fromUserId"`
		ToUserID   string `json:"toUserId"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.GroupID == 0 || req.FromUserID == "" || req.ToUserID == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	if !ensureSelf(w, r, req.FromUserID) {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	if !requireMember(ctx, db, w, req.GroupID, req.FromUserID) {
		return
	}
	if !requireMember(ctx, db, w, req.GroupID, req.ToUserID) {
		return
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.WriteError(w, "Failed to settle up", http.StatusInternalServerError)
		return
	}

	var count int
	var totalCents sql.NullInt64
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(amount_owed_cents) FROM splits
		 WHERE group_id = ? AND from_user_id = ? AND to_user_id = ? AND is_settled = FALSE`,
		req.GroupID, req.FromUserID, req.ToUserID).Scan(&count, &totalCents)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to settle up", http.StatusInternalServerError)
		return
	}
	if count == 0 {
		tx.Rollback()
		utils.WriteError(w, "No debts to settle", http.StatusNotFound)
		return
	}
	if count > maxSettleBatch {
		tx.Rollback()
		utils.WriteError(w, "Too many debts to settle at once", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		`UPDATE splits SET is_settled = TRUE, settled_at = ?
		 WHERE group_id = ? AND from_user_id = ? AND to_user_id = ? AND is_settled = FALSE`,
		now, req.GroupID, req.FromUserID, req.ToUserID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to settle splits: %v", err)
		utils.WriteError(w, "Failed to settle up", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.WriteError(w, "Failed to settle up", http.StatusInternalServerError)
		return
	}

	amount := utils.FromCents(totalCents.Int64)
	payerName := memberName(ctx, db, req.GroupID, req.FromUserID)
	go utils.NotifyUser(db, req.ToUserID,
		"Payment received",
		payerName+" settled "+amount.StringFixed(2)+" with you",
		map[string]interface{}{"type": "settle_up", "groupId": req.GroupID})
	go sendSettleEmail(req.GroupID, req.ToUserID, payerName, totalCents.Int64, count)

	utils.WriteJSON(w, map[string]interface{}{
		"message":      "Successfully settled up",
		"settledCount": count,
	})
}

// sendSettleEmail emails the creditor when they have an address on file.
func sendSettleEmail(groupID int64, toUserID, payerName string, amountCents int64, settledCount int) {
	if !utils.EmailConfigured() {
		return
	}
	ctx, cancel := contextBg(15 * time.Second)
	defer cancel()

	db := sqlconnect.DB
	var email sql.NullString
	if err := db.QueryRowContext(ctx, "SELECT email FROM users WHERE id = ?", toUserID).Scan(&email); err != nil || !email.Valid {
		return
	}
	var groupName, currency string
	if err := db.QueryRowContext(ctx, "SELECT name, currency FROM groups WHERE id = ?", groupID).Scan(&groupName, &currency); err != nil {
		return
	}
	if err := utils.SendPaymentReceivedEmail(email.String, payerName, utils.FromCents(amountCents).StringFixed(2), currency, groupName, settledCount, time.Now().UTC()); err != nil {
		utils.Logger.Warnf("failed to send payment received email: %v", err)
	}
}

func pathExpenseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("expenseId"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, "Invalid expense ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
