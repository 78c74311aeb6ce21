package service

import (
	"context"

	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/rules"
)

// ItemError records a per-transaction failure inside a batch.
type ItemError struct {
	TransactionID string `json:"transaction_id"`
	RuleID        string `json:"rule_id"`
	Error         string `json:"error"`
	Err           error  `json:"-"`
}

// ApplyResult is the tally of an apply run.
type ApplyResult struct {
	Updated   int         `json:"updated"`
	Conflicts int         `json:"conflicts"`
	Unmatched int         `json:"unmatched"`
	Failed    []ItemError `json:"failed"`
}

// ApplyService writes single-match outcomes onto their transactions.
type ApplyService struct {
	Planner      *Planner
	Transactions TransactionStore
}

// Apply re-plans the account and categorizes every single-match transaction.
// Each write is independent: a failed write is recorded and the batch carries on.
// Conflicts and unmatched transactions are left untouched.
func (s *ApplyService) Apply(ctx context.Context, accountID string) (ApplyResult, error) {
	res := ApplyResult{Failed: []ItemError{}}
	plan, err := s.Planner.Plan(ctx, accountID)
	if err != nil {
		return res, err
	}

	log := logger.FromContext(ctx).With().Str("account_id", accountID).Logger()
	for _, e := range plan.Entries {
		switch e.Outcome.Kind {
		case rules.NoMatch:
			res.Unmatched++
			continue
		case rules.Conflict:
			res.Conflicts++
			continue
		}
		rule, _ := e.Outcome.Rule()
		if err := s.Transactions.Categorize(ctx, e.Transaction.ID, rule.CategoryID, rule.Label, rule.Percentage); err != nil {
			log.Warn().Err(err).Str("transaction_id", e.Transaction.ID).Str("rule_id", rule.ID).Msg("apply failed")
			res.Failed = append(res.Failed, ItemError{
				TransactionID: e.Transaction.ID,
				RuleID:        rule.ID,
				Error:         err.Error(),
				Err:           err,
			})
			continue
		}
		res.Updated++
	}

	log.Info().
		Int("updated", res.Updated).
		Int("conflicts", res.Conflicts).
		Int("unmatched", res.Unmatched).
		Int("failed", len(res.Failed)).
		Msg("apply finished")
	return res, nil
}
