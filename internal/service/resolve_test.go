package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/rules"
)

func TestResolveStarbucksExample(t *testing.T) {
	t.Parallel()
	f := setupTest(t)
	coffee := f.category(t, "Coffee")
	chain := f.category(t, "CafeChain")
	r1 := f.rule(t, "R1", "STARBUCKS", coffee)
	r2 := f.rule(t, "R2", "STARBUCKS|COSTA", chain)
	tx := f.tx(t, "STARBUCKS #4521", date(2024, 1, 1))

	res, err := f.svc.Resolve.Resolve(f.ctx, f.acct.ID, []Resolution{{TransactionID: tx.ID, RuleID: r1.ID}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	require.True(t, res[0].Accepted)
	require.Empty(t, res[0].Error)

	got := f.get(t, tx.ID)
	require.Equal(t, coffee.ID, *got.CategoryID)
	require.Equal(t, "R1", got.Label)

	res, err = f.svc.Resolve.Resolve(f.ctx, f.acct.ID, []Resolution{{TransactionID: tx.ID, RuleID: r2.ID}})
	require.NoError(t, err)
	require.False(t, res[0].Accepted)
	require.ErrorIs(t, res[0].Err, ErrNotAmbiguous)
	require.Equal(t, coffee.ID, *f.get(t, tx.ID).CategoryID)
}

func TestResolveItemsAreIndependent(t *testing.T) {
	t.Parallel()
	f := setupTest(t)
	coffee := f.category(t, "Coffee")
	chain := f.category(t, "CafeChain")
	other := f.category(t, "Other")
	r1 := f.rule(t, "R1", "STARBUCKS", coffee)
	f.rule(t, "R2", "STARBUCKS|COSTA", chain)
	unrelated := f.rule(t, "R3", "TESCO", other)
	orphan, err := f.svc.Rules.Create(f.ctx, RuleInput{Name: "inactive", CategoryID: other.ID, Pattern: strPtr("STARBUCKS")})
	require.NoError(t, err)

	a := f.tx(t, "STARBUCKS A", date(2024, 1, 1))
	b := f.tx(t, "STARBUCKS B", date(2024, 1, 2))
	c := f.tx(t, "COSTA C", date(2024, 1, 3))

	res, err := f.svc.Resolve.Resolve(f.ctx, f.acct.ID, []Resolution{
		{TransactionID: a.ID, RuleID: unrelated.ID},
		{TransactionID: b.ID, RuleID: r1.ID},
		{TransactionID: c.ID, RuleID: r1.ID},
		{TransactionID: "missing", RuleID: r1.ID},
		{TransactionID: a.ID, RuleID: "missing"},
		{TransactionID: a.ID, RuleID: orphan.ID},
	})
	require.NoError(t, err)
	require.Len(t, res, 6)

	require.False(t, res[0].Accepted)
	require.ErrorIs(t, res[0].Err, ErrRuleNotApplicable)
	require.True(t, res[1].Accepted)
	require.False(t, res[2].Accepted)
	require.ErrorIs(t, res[2].Err, ErrNotAmbiguous)
	require.ErrorIs(t, res[3].Err, ErrNotFound)
	require.ErrorIs(t, res[4].Err, ErrNotFound)
	require.ErrorIs(t, res[5].Err, ErrRuleNotApplicable)

	require.False(t, f.get(t, a.ID).Categorized())
	require.True(t, f.get(t, b.ID).Categorized())
	require.False(t, f.get(t, c.ID).Categorized())
}

func TestResolveRejectsOtherAccountsTransactions(t *testing.T) {
	t.Parallel()
	f := setupTest(t)
	coffee := f.category(t, "Coffee")
	r1 := f.rule(t, "R1", "STARBUCKS", coffee)
	f.rule(t, "R2", "STARBUCKS", coffee)
	tx := f.tx(t, "STARBUCKS", date(2024, 1, 1))

	savings, err := f.svc.Ledger.CreateAccount(f.ctx, "Savings")
	require.NoError(t, err)
	res, err := f.svc.Resolve.Resolve(f.ctx, savings.ID, []Resolution{{TransactionID: tx.ID, RuleID: r1.ID}})
	require.NoError(t, err)
	require.ErrorIs(t, res[0].Err, ErrNotFound)

	_, err = f.svc.Resolve.Resolve(f.ctx, "nope", []Resolution{{TransactionID: tx.ID, RuleID: r1.ID}})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolveAfterRulesChanged(t *testing.T) {
	t.Parallel()
	f := setupTest(t)
	coffee := f.category(t, "Coffee")
	chain := f.category(t, "CafeChain")
	r1 := f.rule(t, "R1", "STARBUCKS", coffee)
	r2 := f.rule(t, "R2", "STARBUCKS|COSTA", chain)
	tx := f.tx(t, "STARBUCKS", date(2024, 1, 1))

	require.NoError(t, f.svc.Registry.Deactivate(f.ctx, f.acct.ID, r2.ID))

	res, err := f.svc.Resolve.Resolve(f.ctx, f.acct.ID, []Resolution{{TransactionID: tx.ID, RuleID: r1.ID}})
	require.NoError(t, err)
	require.ErrorIs(t, res[0].Err, ErrNotAmbiguous)
	require.False(t, f.get(t, tx.ID).Categorized())
}

func TestResolveBrokenRuleIsPerItem(t *testing.T) {
	t.Parallel()
	f := setupTest(t)
	coffee := f.category(t, "Coffee")
	r1 := f.rule(t, "R1", "STARBUCKS", coffee)
	r2 := f.rule(t, "R2", "STARBUCKS", coffee)
	tx := f.tx(t, "STARBUCKS", date(2024, 1, 1))
	f.breakRule(t, r2.ID, "(")

	res, err := f.svc.Resolve.Resolve(f.ctx, f.acct.ID, []Resolution{{TransactionID: tx.ID, RuleID: r1.ID}})
	require.NoError(t, err)
	require.ErrorIs(t, res[0].Err, rules.ErrInvalidPattern)
}

func TestResolveLosingRace(t *testing.T) {
	t.Parallel()
	f := setupTest(t)
	coffee := f.category(t, "Coffee")
	r1 := f.rule(t, "R1", "STARBUCKS", coffee)
	f.rule(t, "R2", "STARBUCKS", coffee)
	tx := f.tx(t, "STARBUCKS", date(2024, 1, 1))

	// the transaction is categorized between the read and the write
	racing := &ResolveService{
		Accounts:     f.svc.Resolve.Accounts,
		Transactions: racingTransactions{TransactionStore: repository.NewTransactionRepo(f.db), winner: coffee.ID},
		Registry:     f.svc.Registry,
		Rules:        f.svc.Resolve.Rules,
	}
	res, err := racing.Resolve(f.ctx, f.acct.ID, []Resolution{{TransactionID: tx.ID, RuleID: r1.ID}})
	require.NoError(t, err)
	require.False(t, res[0].Accepted)
	require.ErrorIs(t, res[0].Err, ErrNotAmbiguous)
	require.ErrorIs(t, res[0].Err, repository.ErrAlreadyCategorized)
}

// racingTransactions categorizes the row itself right before the real write.
type racingTransactions struct {
	TransactionStore
	winner string
}

func (r racingTransactions) Categorize(ctx context.Context, id, categoryID, label string, perc float64) error {
	if err := r.TransactionStore.Categorize(ctx, id, r.winner, "winner", 0); err != nil {
		return err
	}
	return r.TransactionStore.Categorize(ctx, id, categoryID, label, perc)
}
