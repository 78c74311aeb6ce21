package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/rules"
)

// Resolution picks the rule that should categorize a conflicted transaction.
type Resolution struct {
	TransactionID string `json:"transaction_id"`
	RuleID        string `json:"rule_id"`
}

// ResolutionResult reports the outcome of one resolution.
type ResolutionResult struct {
	TransactionID string `json:"transaction_id"`
	RuleID        string `json:"rule_id"`
	Accepted      bool   `json:"accepted"`
	Error         string `json:"error,omitempty"`
	Err           error  `json:"-"`
}

// ResolveService applies human decisions to conflicted transactions.
type ResolveService struct {
	Accounts     AccountStore
	Transactions TransactionStore
	Registry     *Registry
	Rules        RuleStore
}

// Resolve processes every resolution independently and returns one result per
// item in input order. Only an unknown account or an unreadable store fails the call.
func (s *ResolveService) Resolve(ctx context.Context, accountID string, items []Resolution) ([]ResolutionResult, error) {
	acct, err := s.Accounts.Get(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNotFound)
	}

	log := logger.FromContext(ctx).With().Str("account_id", accountID).Logger()
	results := make([]ResolutionResult, 0, len(items))
	accepted := 0
	for _, item := range items {
		res := ResolutionResult{TransactionID: item.TransactionID, RuleID: item.RuleID}
		if err := s.resolveOne(ctx, accountID, item); err != nil {
			log.Warn().Err(err).Str("transaction_id", item.TransactionID).Str("rule_id", item.RuleID).Msg("resolution rejected")
			res.Err = err
			res.Error = err.Error()
		} else {
			res.Accepted = true
			accepted++
		}
		results = append(results, res)
	}
	log.Info().Int("accepted", accepted).Int("rejected", len(items)-accepted).Msg("resolve finished")
	return results, nil
}

func (s *ResolveService) resolveOne(ctx context.Context, accountID string, item Resolution) error {
	tx, err := s.Transactions.Get(ctx, item.TransactionID)
	if err != nil {
		return fmt.Errorf("get transaction %s: %w", item.TransactionID, err)
	}
	if tx == nil || tx.AccountID != accountID {
		return fmt.Errorf("transaction %s: %w", item.TransactionID, ErrNotFound)
	}
	if tx.Categorized() {
		return fmt.Errorf("transaction %s is already categorized: %w", tx.ID, ErrNotAmbiguous)
	}

	active, err := s.Registry.activeRules(ctx, accountID)
	if err != nil {
		return err
	}
	matched, err := rules.ApplicableRules(*tx, active)
	if err != nil {
		return err
	}
	outcome := rules.Classify(matched)
	if outcome.Kind != rules.Conflict {
		return fmt.Errorf("transaction %s has %d applicable rules: %w", tx.ID, len(matched), ErrNotAmbiguous)
	}
	if !outcome.Has(item.RuleID) {
		return s.unknownOrInapplicable(ctx, tx.ID, item.RuleID)
	}

	var chosen repository.Rule
	for _, r := range outcome.Rules {
		if r.ID == item.RuleID {
			chosen = r
			break
		}
	}
	err = s.Transactions.Categorize(ctx, tx.ID, chosen.CategoryID, chosen.Label, chosen.Percentage)
	if errors.Is(err, repository.ErrAlreadyCategorized) {
		return fmt.Errorf("transaction %s: %w: %w", tx.ID, ErrNotAmbiguous, err)
	}
	if err != nil {
		return fmt.Errorf("categorize transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *ResolveService) unknownOrInapplicable(ctx context.Context, txID, ruleID string) error {
	rule, err := s.Rules.Get(ctx, ruleID)
	if err != nil {
		return fmt.Errorf("get rule %s: %w", ruleID, err)
	}
	if rule == nil {
		return fmt.Errorf("rule %s: %w", ruleID, ErrNotFound)
	}
	return fmt.Errorf("rule %s for transaction %s: %w", ruleID, txID, ErrRuleNotApplicable)
}
