package service

import (
	"context"
	"fmt"

	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/rules"
)

// PlanEntry pairs an uncategorized transaction with its classification.
type PlanEntry struct {
	Transaction repository.Transaction
	Outcome     rules.Outcome
}

// Plan is the classification of every uncategorized transaction of an account.
// Entries follow the transaction fetch order.
type Plan struct {
	AccountID string
	Entries   []PlanEntry
}

// PlanCounts tallies a plan by outcome.
type PlanCounts struct {
	NoMatch   int `json:"no_match"`
	Single    int `json:"single"`
	Conflicts int `json:"conflicts"`
}

func (p Plan) Counts() PlanCounts {
	var c PlanCounts
	for _, e := range p.Entries {
		switch e.Outcome.Kind {
		case rules.SingleMatch:
			c.Single++
		case rules.Conflict:
			c.Conflicts++
		default:
			c.NoMatch++
		}
	}
	return c
}

// Planner classifies uncategorized transactions against the account's active rules.
// It never writes.
type Planner struct {
	Transactions TransactionStore
	Registry     *Registry
}

// Plan re-reads the account's uncategorized transactions and active rules and
// classifies each transaction. A broken active rule fails the whole plan with a
// *rules.PatternError.
func (p *Planner) Plan(ctx context.Context, accountID string) (Plan, error) {
	plan := Plan{AccountID: accountID}
	active, err := p.Registry.ActiveRules(ctx, accountID)
	if err != nil {
		return plan, err
	}
	matcher, err := rules.Compile(active)
	if err != nil {
		return plan, fmt.Errorf("compile rules for account %s: %w", accountID, err)
	}
	txs, err := p.Transactions.ListUncategorized(ctx, accountID)
	if err != nil {
		return plan, fmt.Errorf("list uncategorized transactions: %w", err)
	}

	plan.Entries = make([]PlanEntry, 0, len(txs))
	for _, tx := range txs {
		plan.Entries = append(plan.Entries, PlanEntry{
			Transaction: tx,
			Outcome:     rules.Classify(matcher.Applicable(tx)),
		})
	}

	counts := plan.Counts()
	log := logger.FromContext(ctx)
	log.Debug().
		Str("account_id", accountID).
		Int("rules", matcher.Len()).
		Int("transactions", len(txs)).
		Int("single", counts.Single).
		Int("conflicts", counts.Conflicts).
		Int("no_match", counts.NoMatch).
		Msg("plan built")
	return plan, nil
}
