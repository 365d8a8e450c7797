package sqlconnect

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	"github.com/go-sql-driver/mysql"
	sqlite3 "github.com/mattn/go-sqlite3"

	"splitpocket/pkg/utils"
)

var DB *sql.DB

// ConnectDb opens the database selected by DB_DRIVER (mysql by default,
// sqlite3 for local development) and applies migrations. Safe to call twice.
func ConnectDb() error {
	if DB != nil {
		return nil
	}

	driver := os.Getenv("DB_DRIVER")
	if driver == "" {
		driver = "mysql"
	}

	var dsn string
	switch driver {
	case "mysql":
		user := os.Getenv("DB_USER")
		password := os.Getenv("DB_PASSWORD")
		dbname := os.Getenv("DB_NAME")
		port := os.Getenv("DB_PORT")
		host := os.Getenv("DB_HOST")
		dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s", user, password, host, port, dbname)
	case "sqlite3":
		dsn = os.Getenv("DB_PATH")
		if dsn == "" {
			dsn = "./data/splitpocket.db"
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open DB connection: %w", err)
	}

	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to ping DB: %w", err)
	}

	if err = RunMigrations(db, driver); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	DB = db
	utils.Logger.Infof("Connected to %s database", driver)
	return nil
}

// IsDuplicateKey reports whether err is a unique-constraint violation.
// This is the collision detector for the join-code allocation loop: the
// store's create-if-absent semantics stand in for compare-and-swap.
func IsDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
