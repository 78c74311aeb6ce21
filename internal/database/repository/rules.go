package repository

import (
	"context"
	"database/sql"
	"errors"
)

// RuleRepo handles rules and their activation per account.
type RuleRepo struct {
	db DBTX
}

func NewRuleRepo(db DBTX) *RuleRepo { return &RuleRepo{db: db} }

const ruleColumns = "r.id, r.name, r.label, r.percentage, r.category_id, r.pattern, r.date_start, r.date_end, r.sort_order, r.created_at"

// Insert stores a rule. A zero SortOrder places the rule after every existing one.
func (r *RuleRepo) Insert(ctx context.Context, rule Rule) error {
	if rule.SortOrder == 0 {
		var maxOrder sql.NullInt64
		if err := r.db.QueryRowContext(ctx, `SELECT MAX(sort_order) FROM rules`).Scan(&maxOrder); err != nil {
			return err
		}
		rule.SortOrder = int(maxOrder.Int64) + 1
	}
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO rules(id, name, label, percentage, category_id, pattern, date_start, date_end, sort_order, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rule.ID, rule.Name, rule.Label, rule.Percentage, rule.CategoryID, rule.Pattern, rule.DateStart, rule.DateEnd, rule.SortOrder, rule.CreatedAt)
	return err
}

// Update rewrites every mutable field of the rule.
func (r *RuleRepo) Update(ctx context.Context, rule Rule) error {
	_, err := r.db.ExecContext(ctx, `
	UPDATE rules SET name = ?, label = ?, percentage = ?, category_id = ?, pattern = ?, date_start = ?, date_end = ?, sort_order = ?
	WHERE id = ?
	`, rule.Name, rule.Label, rule.Percentage, rule.CategoryID, rule.Pattern, rule.DateStart, rule.DateEnd, rule.SortOrder, rule.ID)
	return err
}

func (r *RuleRepo) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	return err
}

// Get returns nil when the rule does not exist.
func (r *RuleRepo) Get(ctx context.Context, id string) (*Rule, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules r WHERE r.id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// List returns every rule in evaluation order.
func (r *RuleRepo) List(ctx context.Context) ([]Rule, error) {
	return r.query(ctx, `SELECT `+ruleColumns+` FROM rules r ORDER BY r.sort_order, r.id`)
}

// ListActive returns the rules activated for the account in evaluation order.
func (r *RuleRepo) ListActive(ctx context.Context, accountID string) ([]Rule, error) {
	return r.query(ctx, `
	SELECT `+ruleColumns+`
	FROM rules r
	JOIN account_rules ar ON ar.rule_id = r.id
	WHERE ar.account_id = ?
	ORDER BY r.sort_order, r.id`, accountID)
}

// ListInactive returns the rules not activated for the account in evaluation order.
func (r *RuleRepo) ListInactive(ctx context.Context, accountID string) ([]Rule, error) {
	return r.query(ctx, `
	SELECT `+ruleColumns+`
	FROM rules r
	WHERE NOT EXISTS (SELECT 1 FROM account_rules ar WHERE ar.rule_id = r.id AND ar.account_id = ?)
	ORDER BY r.sort_order, r.id`, accountID)
}

// IsActive reports whether the rule is activated for the account.
func (r *RuleRepo) IsActive(ctx context.Context, accountID, ruleID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM account_rules WHERE account_id = ? AND rule_id = ?`, accountID, ruleID).Scan(&n)
	return n > 0, err
}

// Activate links the rule to the account. Activating twice is a no-op.
func (r *RuleRepo) Activate(ctx context.Context, link AccountRule) error {
	active, err := r.IsActive(ctx, link.AccountID, link.RuleID)
	if err != nil || active {
		return err
	}
	_, err = r.db.ExecContext(ctx, `INSERT INTO account_rules(id, account_id, rule_id) VALUES(?, ?, ?)`, link.ID, link.AccountID, link.RuleID)
	return err
}

// Deactivate unlinks the rule from the account. Deactivating an inactive rule is a no-op.
func (r *RuleRepo) Deactivate(ctx context.Context, accountID, ruleID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM account_rules WHERE account_id = ? AND rule_id = ?`, accountID, ruleID)
	return err
}

// ListLinks returns every account/rule activation.
func (r *RuleRepo) ListLinks(ctx context.Context) ([]AccountRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, account_id, rule_id FROM account_rules ORDER BY account_id, rule_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountRule
	for rows.Next() {
		var l AccountRule
		if err := rows.Scan(&l.ID, &l.AccountID, &l.RuleID); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *RuleRepo) query(ctx context.Context, query string, args ...any) ([]Rule, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

func scanRule(s scanner) (Rule, error) {
	var rule Rule
	var pattern sql.NullString
	var start, end sql.NullTime
	err := s.Scan(&rule.ID, &rule.Name, &rule.Label, &rule.Percentage, &rule.CategoryID, &pattern, &start, &end, &rule.SortOrder, &rule.CreatedAt)
	if err != nil {
		return rule, err
	}
	if pattern.Valid {
		rule.Pattern = &pattern.String
	}
	if start.Valid {
		rule.DateStart = &start.Time
	}
	if end.Valid {
		rule.DateEnd = &end.Time
	}
	return rule, nil
}
