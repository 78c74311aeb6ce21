package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ErrAlreadyCategorized is returned when a categorization write finds the
// transaction already carrying a category.
var ErrAlreadyCategorized = errors.New("transaction already categorized")

// DBTX is satisfied by both *sql.DB and *sql.Tx so repositories can run inside a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}
