package sqlconnect

import (
	"database/sql"

	"splitpocket/pkg/utils"
)

// User ids come from the external identity provider and are opaque strings.
// Money columns hold integer cents (authoritative) plus a decimal mirror for
// display. Timestamps are RFC3339 UTC strings.
//
// The unique index on groups.code doubles as the join-code record: it is
// created atomically with the group, collides on concurrent allocation, and
// disappears when the group row is deleted.

var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id VARCHAR(128) PRIMARY KEY,
		user_name VARCHAR(100) NOT NULL DEFAULT 'User',
		email VARCHAR(255),
		updated_at VARCHAR(40) NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		code VARCHAR(12) NOT NULL,
		created_by VARCHAR(128) NOT NULL,
		currency VARCHAR(8) NOT NULL DEFAULT 'USD',
		smart_split_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		member_count INT NOT NULL DEFAULT 0,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		UNIQUE KEY uq_groups_code (code)
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id BIGINT NOT NULL,
		user_id VARCHAR(128) NOT NULL,
		user_name VARCHAR(100) NOT NULL DEFAULT 'User',
		joined_at VARCHAR(40) NOT NULL,
		PRIMARY KEY (group_id, user_id),
		KEY idx_group_members_user (user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		group_id BIGINT NOT NULL,
		description VARCHAR(255) NOT NULL,
		amount_cents BIGINT NOT NULL,
		amount DECIMAL(12,2) NOT NULL,
		paid_by VARCHAR(128) NOT NULL,
		created_by VARCHAR(128) NOT NULL,
		category VARCHAR(50) NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		updated_at VARCHAR(40) NOT NULL,
		KEY idx_expenses_group (group_id)
	)`,
	`CREATE TABLE IF NOT EXISTS splits (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		group_id BIGINT NOT NULL,
		expense_id BIGINT NOT NULL,
		from_user_id VARCHAR(128) NOT NULL,
		to_user_id VARCHAR(128) NOT NULL,
		amount_owed_cents BIGINT NOT NULL,
		amount_owed DECIMAL(12,2) NOT NULL,
		is_settled BOOLEAN NOT NULL DEFAULT FALSE,
		settled_at VARCHAR(40),
		created_at VARCHAR(40) NOT NULL,
		KEY idx_splits_expense (expense_id),
		KEY idx_splits_debtor (group_id, from_user_id, is_settled),
		KEY idx_splits_creditor (group_id, to_user_id, is_settled)
	)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		user_id VARCHAR(128) NOT NULL,
		title VARCHAR(255) NOT NULL,
		category VARCHAR(50) NOT NULL,
		amount_cents BIGINT NOT NULL,
		created_at VARCHAR(40) NOT NULL,
		KEY idx_transactions_user (user_id, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS transaction_summaries (
		user_id VARCHAR(128) PRIMARY KEY,
		balance_cents BIGINT NOT NULL DEFAULT 0,
		income_cents BIGINT NOT NULL DEFAULT 0,
		expenses_cents BIGINT NOT NULL DEFAULT 0,
		updated_at VARCHAR(40) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS push_tokens (
		user_id VARCHAR(128) PRIMARY KEY,
		token VARCHAR(255) NOT NULL,
		updated_at VARCHAR(40) NOT NULL
	)`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		user_name TEXT NOT NULL DEFAULT 'User',
		email TEXT,
		updated_at TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS groups (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		code TEXT NOT NULL UNIQUE,
		created_by TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		smart_split_enabled BOOLEAN NOT NULL DEFAULT TRUE,
		member_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS group_members (
		group_id INTEGER NOT NULL,
		user_id TEXT NOT NULL,
		user_name TEXT NOT NULL DEFAULT 'User',
		joined_at TEXT NOT NULL,
		PRIMARY KEY (group_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members (user_id)`,
	`CREATE TABLE IF NOT EXISTS expenses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL,
		description TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		amount TEXT NOT NULL,
		paid_by TEXT NOT NULL,
		created_by TEXT NOT NULL,
		category TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_expenses_group ON expenses (group_id)`,
	`CREATE TABLE IF NOT EXISTS splits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		group_id INTEGER NOT NULL,
		expense_id INTEGER NOT NULL,
		from_user_id TEXT NOT NULL,
		to_user_id TEXT NOT NULL,
		amount_owed_cents INTEGER NOT NULL,
		amount_owed TEXT NOT NULL,
		is_settled BOOLEAN NOT NULL DEFAULT FALSE,
		settled_at TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_splits_expense ON splits (expense_id)`,
	`CREATE INDEX IF NOT EXISTS idx_splits_debtor ON splits (group_id, from_user_id, is_settled)`,
	`CREATE INDEX IF NOT EXISTS idx_splits_creditor ON splits (group_id, to_user_id, is_settled)`,
	`CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS transaction_summaries (
		user_id TEXT PRIMARY KEY,
		balance_cents INTEGER NOT NULL DEFAULT 0,
		income_cents INTEGER NOT NULL DEFAULT 0,
		expenses_cents INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS push_tokens (
		user_id TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}

// RunMigrations creates the schema for the given driver. Statements are
// idempotent so this runs on every startup.
func RunMigrations(db *sql.DB, driver string) error {
	migrations := mysqlMigrations
	if driver == "sqlite3" {
		migrations = sqliteMigrations
	}

	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return utils.ErrorHandler(err, "migration failed")
		}
	}
	return nil
}
