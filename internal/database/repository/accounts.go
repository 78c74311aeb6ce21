package repository

import (
	"context"
	"database/sql"
	"errors"
)

// AccountRepo handles accounts.
type AccountRepo struct {
	db DBTX
}

func NewAccountRepo(db DBTX) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Insert(ctx context.Context, a Account) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO accounts(id, name, created_at) VALUES (?, ?, ?)`, a.ID, a.Name, a.CreatedAt)
	return err
}

func (r *AccountRepo) Rename(ctx context.Context, id, name string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE accounts SET name = ? WHERE id = ?`, name, id)
	return err
}

func (r *AccountRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	return err
}

// Get returns nil when the account does not exist.
func (r *AccountRepo) Get(ctx context.Context, id string) (*Account, error) {
	var a Account
	err := r.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.Name, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AccountRepo) List(ctx context.Context) ([]Account, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, created_at FROM accounts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
