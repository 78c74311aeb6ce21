package repository

import (
	"context"
	"database/sql"
	"errors"
)

// ImportSettingsRepo handles per-account statement layouts.
type ImportSettingsRepo struct {
	db DBTX
}

func NewImportSettingsRepo(db DBTX) *ImportSettingsRepo { return &ImportSettingsRepo{db: db} }

// Save replaces the settings for s.AccountID.
func (r *ImportSettingsRepo) Save(ctx context.Context, s ImportSettings) error {
	res, err := r.db.ExecContext(ctx, `
	UPDATE import_settings SET date_index = ?, description_index = ?, value_index = ?, starter_string = ?
	WHERE account_id = ?
	`, s.DateIndex, s.DescriptionIndex, s.ValueIndex, s.StarterString, s.AccountID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO import_settings(id, account_id, date_index, description_index, value_index, starter_string)
	VALUES(?, ?, ?, ?, ?, ?)
	`, s.ID, s.AccountID, s.DateIndex, s.DescriptionIndex, s.ValueIndex, s.StarterString)
	return err
}

// Get returns nil when the account has no settings.
func (r *ImportSettingsRepo) Get(ctx context.Context, accountID string) (*ImportSettings, error) {
	var s ImportSettings
	err := r.db.QueryRowContext(ctx, `
	SELECT id, account_id, date_index, description_index, value_index, starter_string
	FROM import_settings WHERE account_id = ?`, accountID).
		Scan(&s.ID, &s.AccountID, &s.DateIndex, &s.DescriptionIndex, &s.ValueIndex, &s.StarterString)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *ImportSettingsRepo) List(ctx context.Context) ([]ImportSettings, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, account_id, date_index, description_index, value_index, starter_string
	FROM import_settings ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ImportSettings
	for rows.Next() {
		var s ImportSettings
		if err := rows.Scan(&s.ID, &s.AccountID, &s.DateIndex, &s.DescriptionIndex, &s.ValueIndex, &s.StarterString); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
