package repository

import (
	"context"
	"database/sql"
	"errors"
)

// BudgetRepo handles per-account budgets.
type BudgetRepo struct {
	db DBTX
}

func NewBudgetRepo(db DBTX) *BudgetRepo { return &BudgetRepo{db: db} }

const budgetColumns = "id, account_id, name, value, created_at"

func (r *BudgetRepo) Insert(ctx context.Context, b Budget) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO budgets(`+budgetColumns+`) VALUES(?, ?, ?, ?, ?)`,
		b.ID, b.AccountID, b.Name, b.Value, b.CreatedAt)
	return err
}

func (r *BudgetRepo) Update(ctx context.Context, b Budget) error {
	_, err := r.db.ExecContext(ctx, `UPDATE budgets SET name = ?, value = ? WHERE id = ?`, b.Name, b.Value, b.ID)
	return err
}

func (r *BudgetRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM budgets WHERE id = ?`, id)
	return err
}

// Get returns nil when the budget does not exist.
func (r *BudgetRepo) Get(ctx context.Context, id string) (*Budget, error) {
	var b Budget
	err := r.db.QueryRowContext(ctx, `SELECT `+budgetColumns+` FROM budgets WHERE id = ?`, id).
		Scan(&b.ID, &b.AccountID, &b.Name, &b.Value, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// List returns budgets ordered by account then name. An empty accountID lists every account.
func (r *BudgetRepo) List(ctx context.Context, accountID string) ([]Budget, error) {
	query := `SELECT ` + budgetColumns + ` FROM budgets`
	var args []any
	if accountID != "" {
		query += ` WHERE account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY account_id, name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Budget
	for rows.Next() {
		var b Budget
		if err := rows.Scan(&b.ID, &b.AccountID, &b.Name, &b.Value, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
