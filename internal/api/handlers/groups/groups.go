package groups

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"splitpocket/internal/models"
	"splitpocket/internal/repositories/sqlconnect"
	"splitpocket/pkg/utils"
)

const maxCodeAttempts = 10

// CreateGroupHandler creates a group, assigns it a join code and enrols the
// creator as the first member. The join code is guarded by a unique index;
// on a collision the whole transaction is retried with a fresh code.
func CreateGroupHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
		Currency string `json:"currency"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.UserID == "" || req.UserName == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	if !ensureSelf(w, r, req.UserID) {
		return
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	now := time.Now().UTC().Format(time.RFC3339)

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := utils.GenerateGroupCode()

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			utils.Logger.Errorf("failed to begin transaction: %v", err)
			utils.WriteError(w, "Failed to create group", http.StatusInternalServerError)
			return
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO groups (name, code, created_by, currency, smart_split_enabled, member_count, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, 1, ?, ?)`,
			req.Name, code, req.UserID, currency, true, now, now)
		if err != nil {
			tx.Rollback()
			if sqlconnect.IsDuplicateKey(err) {
				continue // code collision, try again
			}
			utils.Logger.Errorf("failed to insert group: %v", err)
			utils.WriteError(w, "Failed to create group", http.StatusInternalServerError)
			return
		}
		groupID, err := res.LastInsertId()
		if err != nil {
			tx.Rollback()
			utils.WriteError(w, "Failed to create group", http.StatusInternalServerError)
			return
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, user_id, user_name, joined_at) VALUES (?, ?, ?, ?)",
			groupID, req.UserID, req.UserName, now)
		if err != nil {
			tx.Rollback()
			utils.Logger.Errorf("failed to add creator to group: %v", err)
			utils.WriteError(w, "Failed to create group", http.StatusInternalServerError)
			return
		}

		if err := upsertUser(ctx, tx, req.UserID, req.UserName); err != nil {
			tx.Rollback()
			utils.Logger.Errorf("failed to upsert user profile: %v", err)
			utils.WriteError(w, "Failed to create group", http.StatusInternalServerError)
			return
		}

		if err := tx.Commit(); err != nil {
			utils.Logger.Errorf("failed to commit group creation: %v", err)
			utils.WriteError(w, "Failed to create group", http.StatusInternalServerError)
			return
		}

		group := models.Group{
			ID:                groupID,
			Name:              req.Name,
			Code:              code,
			CreatedBy:         req.UserID,
			Currency:          currency,
			SmartSplitEnabled: true,
			MemberCount:       1,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		utils.WriteJSONStatus(w, group, http.StatusCreated)
		return
	}

	utils.Logger.Error("exhausted join code attempts")
	utils.WriteError(w, "Failed to generate unique code", http.StatusInternalServerError)
}

// JoinGroupHandler adds the caller to the group identified by a join code.
func JoinGroupHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code     string `json:"code"`
		UserID   string `json:"userId"`
		UserName string `json:"userName"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	if req.Code == "" || req.UserID == "" || req.UserName == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	if !ensureSelf(w, r, req.UserID) {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.Logger.Errorf("failed to begin transaction: %v", err)
		utils.WriteError(w, "Failed to join group", http.StatusInternalServerError)
		return
	}

	var groupID int64
	var groupName string
	err = tx.QueryRowContext(ctx, "SELECT id, name FROM groups WHERE code = ?", req.Code).
		Scan(&groupID, &groupName)
	if err == sql.ErrNoRows {
		tx.Rollback()
		utils.WriteError(w, "Group not found", http.StatusNotFound)
		return
	}
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to look up group by code: %v", err)
		utils.WriteError(w, "Failed to join group", http.StatusInternalServerError)
		return
	}

	member, err := isGroupMember(ctx, tx, groupID, req.UserID)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to join group", http.StatusInternalServerError)
		return
	}
	if member {
		tx.Rollback()
		utils.WriteError(w, "Already a member of this group", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		"INSERT INTO group_members (group_id, user_id, user_name, joined_at) VALUES (?, ?, ?, ?)",
		groupID, req.UserID, req.UserName, now)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to insert group member: %v", err)
		utils.WriteError(w, "Failed to join group", http.StatusInternalServerError)
		return
	}
	_, err = tx.ExecContext(ctx,
		"UPDATE groups SET member_count = member_count + 1, updated_at = ? WHERE id = ?",
		now, groupID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to bump member count: %v", err)
		utils.WriteError(w, "Failed to join group", http.StatusInternalServerError)
		return
	}

	if err := upsertUser(ctx, tx, req.UserID, req.UserName); err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to upsert user profile: %v", err)
		utils.WriteError(w, "Failed to join group", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.Logger.Errorf("failed to commit join: %v", err)
		utils.WriteError(w, "Failed to join group", http.StatusInternalServerError)
		return
	}

	go utils.NotifyGroupMembers(db, groupID, req.UserID,
		groupName,
		req.UserName+" joined the group",
		map[string]interface{}{"type": "member_joined", "groupId": groupID})

	utils.WriteJSON(w, map[string]interface{}{
		"id":   groupID,
		"name": groupName,
		"code": req.Code,
	})
}

// GetMyGroupsHandler lists the groups the user belongs to, newest joined
// first.
func GetMyGroupsHandler(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userId")
	if !ensureSelf(w, r, userID) {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	rows, err := sqlconnect.DB.QueryContext(ctx,
		`SELECT g.id, g.name, g.code, g.created_by, g.currency, g.smart_split_enabled, g.member_count, g.created_at, g.updated_at
		 FROM groups g
		 INNER JOIN group_members gm ON gm.group_id = g.id
		 WHERE gm.user_id = ?
		 ORDER BY gm.joined_at DESC`, userID)
	if err != nil {
		utils.Logger.Errorf("failed to query user groups: %v", err)
		utils.WriteError(w, "Failed to fetch groups", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	groups := []models.Group{}
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Code, &g.CreatedBy, &g.Currency, &g.SmartSplitEnabled, &g.MemberCount, &g.CreatedAt, &g.UpdatedAt); err != nil {
			utils.Logger.Errorf("failed to scan group row: %v", err)
			utils.WriteError(w, "Failed to fetch groups", http.StatusInternalServerError)
			return
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		utils.WriteError(w, "Failed to fetch groups", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, groups)
}

// GetGroupByIDHandler returns a single group. Members only.
func GetGroupByIDHandler(w http.ResponseWriter, r *http.Request) {
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

	var g models.Group
	err := sqlconnect.DB.QueryRowContext(ctx,
		`SELECT id, name, code, created_by, currency, smart_split_enabled, member_count, created_at, updated_at
		 FROM groups WHERE id = ?`, groupID).
		Scan(&g.ID, &g.Name, &g.Code, &g.CreatedBy, &g.Currency, &g.SmartSplitEnabled, &g.MemberCount, &g.CreatedAt, &g.UpdatedAt)
	if err == sql.ErrNoRows {
		utils.WriteError(w, "Group not found", http.StatusNotFound)
		return
	}
	if err != nil {
		utils.Logger.Errorf("failed to fetch group: %v", err)
		utils.WriteError(w, "Failed to fetch group", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, g)
}

// UpdateGroupHandler renames a group. Any member may rename.
func UpdateGroupHandler(w http.ResponseWriter, r *http.Request) {
	groupID, ok := pathGroupID(w, r)
	if !ok {
		return
	}
	var req struct {
		Name   string `json:"name"`
		UserID string `json:"userId"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.UserID == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	if !ensureSelf(w, r, req.UserID) {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	if !requireMember(ctx, sqlconnect.DB, w, groupID, req.UserID) {
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := sqlconnect.DB.ExecContext(ctx,
		"UPDATE groups SET name = ?, updated_at = ? WHERE id = ?",
		req.Name, now, groupID)
	if err != nil {
		utils.Logger.Errorf("failed to rename group: %v", err)
		utils.WriteError(w, "Failed to update group", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		utils.WriteError(w, "Group not found", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, map[string]interface{}{
		"id":   groupID,
		"name": req.Name,
	})
}

// ToggleSmartSplitHandler flips the group's smart-split flag.
func ToggleSmartSplitHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		GroupID int64 `json:"groupId"`
		Enabled *bool `json:"enabled"`
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		utils.WriteError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.GroupID == 0 || req.Enabled == nil {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	uid, ok := callerID(r)
	if !ok {
		utils.WriteError(w, "forbidden", http.StatusForbidden)
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	if !requireMember(ctx, sqlconnect.DB, w, req.GroupID, uid) {
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := sqlconnect.DB.ExecContext(ctx,
		"UPDATE groups SET smart_split_enabled = ?, updated_at = ? WHERE id = ?",
		*req.Enabled, now, req.GroupID)
	if err != nil {
		utils.Logger.Errorf("failed to toggle smart split: %v", err)
		utils.WriteError(w, "Failed to update group", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		utils.WriteError(w, "Group not found", http.StatusNotFound)
		return
	}
	utils.WriteJSON(w, map[string]interface{}{
		"groupId":           req.GroupID,
		"smartSplitEnabled": *req.Enabled,
	})
}

// GetGroupMembersHandler lists the group's members in join order.
func GetGroupMembersHandler(w http.ResponseWriter, r *http.Request) {
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
		"SELECT user_id, user_name, joined_at FROM group_members WHERE group_id = ? ORDER BY joined_at ASC",
		groupID)
	if err != nil {
		utils.Logger.Errorf("failed to query group members: %v", err)
		utils.WriteError(w, "Failed to fetch members", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	members := []models.GroupMember{}
	for rows.Next() {
		var m models.GroupMember
		if err := rows.Scan(&m.UserID, &m.UserName, &m.JoinedAt); err != nil {
			utils.WriteError(w, "Failed to fetch members", http.StatusInternalServerError)
			return
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		utils.WriteError(w, "Failed to fetch members", http.StatusInternalServerError)
		return
	}
	utils.WriteJSON(w, members)
}

// LeaveGroupHandler removes the caller from a group. Blocked while the caller
// has unsettled splits on either side. The last member leaving deletes the
// group and its remaining records.
func LeaveGroupHandler(w http.ResponseWriter, r *http.Request) {
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
	if req.GroupID == 0 || req.UserID == "" {
		utils.WriteError(w, "All fields are required", http.StatusBadRequest)
		return
	}
	if !ensureSelf(w, r, req.UserID) {
		return
	}

	ctx, cancel := context5s(r)
	defer cancel()

	db := sqlconnect.DB
	if !requireMember(ctx, db, w, req.GroupID, req.UserID) {
		return
	}

	var hasDebts bool
	err := db.QueryRowContext(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM splits
			WHERE group_id = ? AND (from_user_id = ? OR to_user_id = ?) AND is_settled = FALSE
			  AND from_user_id != to_user_id
		 )`,
		req.GroupID, req.UserID, req.UserID).Scan(&hasDebts)
	if err != nil {
		utils.Logger.Errorf("failed to check outstanding splits: %v", err)
		utils.WriteError(w, "Failed to leave group", http.StatusInternalServerError)
		return
	}
	if hasDebts {
		utils.WriteJSONStatus(w, map[string]interface{}{
			"status":   "error",
			"message":  "You have unsettled expenses in this group. Please settle up before leaving.",
			"hasDebts": true,
		}, http.StatusBadRequest)
		return
	}

	leaverName := memberName(ctx, db, req.GroupID, req.UserID)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		utils.WriteError(w, "Failed to leave group", http.StatusInternalServerError)
		return
	}

	res, err := tx.ExecContext(ctx,
		"DELETE FROM group_members WHERE group_id = ? AND user_id = ?",
		req.GroupID, req.UserID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to delete membership: %v", err)
		utils.WriteError(w, "Failed to leave group", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		tx.Rollback()
		utils.WriteError(w, "you are not a member of this group", http.StatusForbidden)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx,
		"UPDATE groups SET member_count = member_count - 1, updated_at = ? WHERE id = ?",
		now, req.GroupID)
	if err != nil {
		tx.Rollback()
		utils.Logger.Errorf("failed to decrement member count: %v", err)
		utils.WriteError(w, "Failed to leave group", http.StatusInternalServerError)
		return
	}

	var remaining int
	err = tx.QueryRowContext(ctx,
		"SELECT member_count FROM groups WHERE id = ?", req.GroupID).Scan(&remaining)
	if err != nil {
		tx.Rollback()
		utils.WriteError(w, "Failed to leave group", http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(); err != nil {
		utils.Logger.Errorf("failed to commit leave: %v", err)
		utils.WriteError(w, "Failed to leave group", http.StatusInternalServerError)
		return
	}

	if remaining <= 0 {
		// Best effort: the membership row is already gone, so a partial
		// cleanup here only leaves orphaned history behind.
		cleanupCtx, cleanupCancel := contextBg(10 * time.Second)
		defer cleanupCancel()
		for _, stmt := range []string{
			"DELETE FROM splits WHERE group_id = ?",
			"DELETE FROM expenses WHERE group_id = ?",
			"DELETE FROM group_members WHERE group_id = ?",
			"DELETE FROM groups WHERE id = ?",
		} {
			if _, err := db.ExecContext(cleanupCtx, stmt, req.GroupID); err != nil {
				utils.Logger.Warnf("group cleanup failed: %v", err)
			}
		}
		utils.WriteJSON(w, map[string]interface{}{
			"message":      "Left group",
			"groupDeleted": true,
		})
		return
	}

	go utils.NotifyGroupMembers(db, req.GroupID, req.UserID,
		"Member left",
		leaverName+" left the group",
		map[string]interface{}{"type": "member_left", "groupId": req.GroupID})

	utils.WriteJSON(w, map[string]interface{}{
		"message":      "Left group",
		"groupDeleted": false,
	})
}

func pathGroupID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("groupId"), 10, 64)
	if err != nil || id <= 0 {
		utils.WriteError(w, "Invalid group ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}
