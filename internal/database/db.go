package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Supported drivers.
const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

// Open opens the store with sensible defaults. source is a file path for sqlite3 and a DSN for mysql.
func Open(driver, source string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", source)
		db, err := sql.Open(DriverSQLite, dsn)
		if err != nil {
			return nil, err
		}
		db.SetMaxOpenConns(1) // sqlite
		db.SetConnMaxLifetime(0)
		return db, nil
	case DriverMySQL:
		dsn, err := mysqlDSN(source)
		if err != nil {
			return nil, err
		}
		db, err := sql.Open(DriverMySQL, dsn)
		if err != nil {
			return nil, err
		}
		db.SetConnMaxLifetime(3 * time.Minute)
		db.SetMaxIdleConns(5)
		return db, nil
	default:
		return nil, fmt.Errorf("database: unsupported driver %q", driver)
	}
}

// mysqlDSN forces the options the repositories rely on: DATETIME scans into time.Time,
// migrations run multi-statement files, and UPDATE reports matched rather than changed rows.
func mysqlDSN(source string) (string, error) {
	cfg, err := mysql.ParseDSN(source)
	if err != nil {
		return "", fmt.Errorf("database: parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.MultiStatements = true
	cfg.ClientFoundRows = true
	return cfg.FormatDSN(), nil
}

// WithTx runs fn in a transaction.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Now returns UTC time truncated to seconds (consistent with SQLite default).
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
