package repository

import (
	"context"
	"database/sql"
	"errors"
)

// CategoryRepo handles categories.
type CategoryRepo struct {
	db DBTX
}

func NewCategoryRepo(db DBTX) *CategoryRepo {
	return &CategoryRepo{db: db}
}

// Upsert inserts the category or renames it when the id already exists.
func (r *CategoryRepo) Upsert(ctx context.Context, c Category) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE categories SET transaction_type = ?, macro_category = ?, name = ? WHERE id = ?
	`, c.TransactionType, c.MacroCategory, c.Name, c.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO categories(id, transaction_type, macro_category, name)
	VALUES (?, ?, ?, ?)
	`, c.ID, c.TransactionType, c.MacroCategory, c.Name)
	return err
}

func (r *CategoryRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	return err
}

// Get returns nil when the category does not exist.
func (r *CategoryRepo) Get(ctx context.Context, id string) (*Category, error) {
	var c Category
	err := r.db.QueryRowContext(ctx, `SELECT id, transaction_type, macro_category, name FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.TransactionType, &c.MacroCategory, &c.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context) ([]Category, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, transaction_type, macro_category, name
	FROM categories
	ORDER BY transaction_type, macro_category, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.TransactionType, &c.MacroCategory, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
