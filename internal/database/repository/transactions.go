package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"
)

// TransactionFilters defines list filters. Zero values mean no filter.
type TransactionFilters struct {
	AccountID     string
	CategoryID    string
	Uncategorized bool
	From          time.Time // inclusive
	To            time.Time // exclusive
	Search        string
}

// TransactionRepo handles transactions.
type TransactionRepo struct {
	db DBTX
}

func NewTransactionRepo(db DBTX) *TransactionRepo { return &TransactionRepo{db: db} }

const transactionColumns = "id, account_id, category_id, value, description, date, perc_to_exclude, label, created_at"

func (r *TransactionRepo) Insert(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO transactions(`+transactionColumns+`)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?);
	`,
		t.ID, t.AccountID, t.CategoryID, t.Value, t.Description, t.Date, t.PercToExclude, t.Label, t.CreatedAt)
	return err
}

// Categorize writes the rule outcome onto an uncategorized transaction. It returns
// ErrAlreadyCategorized when the row is missing or already has a category, so two
// concurrent writers can never both categorize the same transaction.
func (r *TransactionRepo) Categorize(ctx context.Context, id, categoryID, label string, percToExclude float64) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET category_id = ?, label = ?, perc_to_exclude = ?
	WHERE id = ? AND category_id IS NULL
	`, categoryID, label, percToExclude, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyCategorized
	}
	return nil
}

// Update overwrites the editable fields of a transaction. The account never changes.
func (r *TransactionRepo) Update(ctx context.Context, t Transaction) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE transactions SET category_id = ?, value = ?, description = ?, date = ?, perc_to_exclude = ?, label = ?
	WHERE id = ?
	`, t.CategoryID, t.Value, t.Description, t.Date, t.PercToExclude, t.Label, t.ID)
	return err
}

// ClearCategory makes a transaction uncategorized again.
func (r *TransactionRepo) ClearCategory(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE transactions SET category_id = NULL, label = '', perc_to_exclude = 0 WHERE id = ?`, id)
	return err
}

func (r *TransactionRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	return err
}

// Get returns nil when the transaction does not exist.
func (r *TransactionRepo) Get(ctx context.Context, id string) (*Transaction, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListUncategorized returns the account's transactions without a category, oldest first.
func (r *TransactionRepo) ListUncategorized(ctx context.Context, accountID string) ([]Transaction, error) {
	return r.List(ctx, TransactionFilters{AccountID: accountID, Uncategorized: true})
}

// List returns transactions ordered by date, insertion time, then id.
func (r *TransactionRepo) List(ctx context.Context, f TransactionFilters) ([]Transaction, error) {
	var where []string
	var args []any

	if f.AccountID != "" {
		where = append(where, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Uncategorized {
		where = append(where, "category_id IS NULL")
	} else if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if !f.From.IsZero() {
		where = append(where, "date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		where = append(where, "date < ?")
		args = append(args, f.To)
	}
	if f.Search != "" {
		where = append(where, "description LIKE ?")
		args = append(args, "%"+f.Search+"%")
	}

	query := "SELECT " + transactionColumns + " FROM transactions"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date, created_at, id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTransaction(s scanner) (Transaction, error) {
	var t Transaction
	var categoryID sql.NullString
	err := s.Scan(&t.ID, &t.AccountID, &categoryID, &t.Value, &t.Description, &t.Date, &t.PercToExclude, &t.Label, &t.CreatedAt)
	if err != nil {
		return t, err
	}
	if categoryID.Valid {
		t.CategoryID = &categoryID.String
	}
	return t, nil
}
