package service

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jask/jaskledger/internal/database"
	"github.com/jask/jaskledger/internal/database/repository"
)

type fixture struct {
	ctx  context.Context
	db   *sql.DB
	svc  *Services
	acct repository.Account
}

func setupTest(t *testing.T) *fixture {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(database.DriverSQLite, dbPath, ""))
	db, err := database.Open(database.DriverSQLite, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := New(db)
	acct, err := svc.Ledger.CreateAccount(ctx, "Checking")
	require.NoError(t, err)
	return &fixture{ctx: ctx, db: db, svc: svc, acct: acct}
}

func (f *fixture) category(t *testing.T, name string) repository.Category {
	t.Helper()
	c, err := f.svc.Ledger.CreateCategory(f.ctx, repository.TypeExpense, "Food", name)
	require.NoError(t, err)
	return c
}

// rule creates a rule and activates it for the fixture account.
func (f *fixture) rule(t *testing.T, name, pattern string, cat repository.Category) repository.Rule {
	t.Helper()
	in := RuleInput{Name: name, Label: name, Percentage: 0.25, CategoryID: cat.ID}
	if pattern != "" {
		in.Pattern = &pattern
	}
	r, err := f.svc.Rules.CreateForAccount(f.ctx, f.acct.ID, in)
	require.NoError(t, err)
	return r
}

func (f *fixture) tx(t *testing.T, desc string, date time.Time) repository.Transaction {
	t.Helper()
	tx, err := f.svc.Ledger.AddTransaction(f.ctx, TransactionInput{
		AccountID:   f.acct.ID,
		Value:       decimal.RequireFromString("-4.20"),
		Description: desc,
		Date:        date,
	})
	require.NoError(t, err)
	return tx
}

func (f *fixture) get(t *testing.T, id string) repository.Transaction {
	t.Helper()
	tx, err := repository.NewTransactionRepo(f.db).Get(f.ctx, id)
	require.NoError(t, err)
	require.NotNil(t, tx)
	return *tx
}

// breakRule stores a malformed pattern directly, bypassing validation.
func (f *fixture) breakRule(t *testing.T, ruleID, pattern string) {
	t.Helper()
	_, err := f.db.ExecContext(f.ctx, `UPDATE rules SET pattern = ? WHERE id = ?`, pattern, ruleID)
	require.NoError(t, err)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
