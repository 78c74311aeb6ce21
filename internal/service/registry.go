package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jask/jaskledger/internal/database/repository"
)

// Registry tracks which rules are active for which accounts.
type Registry struct {
	Accounts AccountStore
	Rules    RuleStore
}

// Activate makes the rule apply to the account's transactions. It is idempotent.
func (r *Registry) Activate(ctx context.Context, accountID, ruleID string) error {
	if err := r.requireBoth(ctx, accountID, ruleID); err != nil {
		return err
	}
	link := repository.AccountRule{ID: uuid.NewString(), AccountID: accountID, RuleID: ruleID}
	if err := r.Rules.Activate(ctx, link); err != nil {
		return fmt.Errorf("activate rule %s for account %s: %w", ruleID, accountID, err)
	}
	return nil
}

// Deactivate stops the rule applying to the account. Deactivating an inactive rule is a no-op.
func (r *Registry) Deactivate(ctx context.Context, accountID, ruleID string) error {
	if err := r.requireBoth(ctx, accountID, ruleID); err != nil {
		return err
	}
	if err := r.Rules.Deactivate(ctx, accountID, ruleID); err != nil {
		return fmt.Errorf("deactivate rule %s for account %s: %w", ruleID, accountID, err)
	}
	return nil
}

// ActiveRules returns the account's active rules in evaluation order.
func (r *Registry) ActiveRules(ctx context.Context, accountID string) ([]repository.Rule, error) {
	if _, err := r.account(ctx, accountID); err != nil {
		return nil, err
	}
	return r.activeRules(ctx, accountID)
}

// InactiveRules returns every rule not active for the account.
func (r *Registry) InactiveRules(ctx context.Context, accountID string) ([]repository.Rule, error) {
	if _, err := r.account(ctx, accountID); err != nil {
		return nil, err
	}
	rules, err := r.Rules.ListInactive(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list inactive rules: %w", err)
	}
	return rules, nil
}

func (r *Registry) activeRules(ctx context.Context, accountID string) ([]repository.Rule, error) {
	rules, err := r.Rules.ListActive(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list active rules: %w", err)
	}
	return rules, nil
}

func (r *Registry) account(ctx context.Context, accountID string) (*repository.Account, error) {
	acct, err := r.Accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}
	return acct, nil
}

func (r *Registry) requireBoth(ctx context.Context, accountID, ruleID string) error {
	if _, err := r.account(ctx, accountID); err != nil {
		return err
	}
	rule, err := r.Rules.Get(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("get rule %s: %w", ruleID, err)
	}
	if rule == nil {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	return nil
}
