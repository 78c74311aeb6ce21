package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"

	"github.com/jask/jaskledger/internal/database"
	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/rules"
	"github.com/jask/jaskledger/internal/service"
)

func setupAPI(t *testing.T) (*fiber.App, *service.Services) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	require.NoError(t, database.RunMigrations(database.DriverSQLite, dbPath, ""))
	db, err := database.Open(database.DriverSQLite, dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	svc := service.New(db)
	return New(svc, logger.Nop(), Options{}), svc
}

func call(t *testing.T, app *fiber.App, method, path string, body any, out any) int {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if _, ok := body.(string); !ok && body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	t.Parallel()
	app, _ := setupAPI(t)

	var body map[string]string
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/health", nil, &body))
	require.Equal(t, "ok", body["status"])
}

func TestConflictWorkflow(t *testing.T) {
	t.Parallel()
	app, _ := setupAPI(t)

	var acct repository.Account
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/accounts", map[string]string{"name": "Checking"}, &acct))

	var coffee, chain repository.Category
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/categories",
		map[string]string{"transaction_type": "expense", "macro_category": "Food", "name": "Coffee"}, &coffee))
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/categories",
		map[string]string{"transaction_type": "expense", "macro_category": "Food", "name": "CafeChain"}, &chain))

	var r1, r2 repository.Rule
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/rules",
		map[string]any{"name": "R1", "label": "coffee", "pattern": "STARBUCKS", "category": "coffee"}, &r1))
	require.Equal(t, coffee.ID, r1.CategoryID)
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/rules",
		map[string]any{"name": "R2", "pattern": "STARBUCKS|COSTA", "category_id": chain.ID, "percentage": 0.5}, &r2))

	var tx repository.Transaction
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/transactions",
		map[string]any{"description": "STARBUCKS #4521", "value": "-4.50", "date": "2024-03-15"}, &tx))
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/transactions",
		map[string]any{"description": "COSTA", "value": "-3", "date": "2024-03-16"}, nil))

	var rows []map[string]any
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/accounts/"+acct.ID+"/rules/preview", nil, &rows))
	require.Len(t, rows, 2)
	require.Equal(t, tx.ID, rows[0]["id"])
	require.Len(t, rows[0]["conflicts"], 2)
	require.Nil(t, rows[0]["category_new_value"])
	require.Equal(t, "CafeChain", rows[1]["category_new_value"])
	require.Equal(t, 0.5, rows[1]["perc_to_exclude_new_value"])

	var applied service.ApplyResult
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/rules/apply", nil, &applied))
	require.Equal(t, 1, applied.Updated)
	require.Equal(t, 1, applied.Conflicts)

	var results []service.ResolutionResult
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/rules/resolve",
		[]service.Resolution{{TransactionID: tx.ID, RuleID: r1.ID}, {TransactionID: tx.ID, RuleID: r2.ID}}, &results))
	require.Len(t, results, 2)
	require.True(t, results[0].Accepted)
	require.False(t, results[1].Accepted)
	require.NotEmpty(t, results[1].Error)

	var txs []repository.Transaction
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/accounts/"+acct.ID+"/transactions?uncategorized=true", nil, &txs))
	require.Empty(t, txs)
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/accounts/"+acct.ID+"/transactions?from=2024-03-16", nil, &txs))
	require.Len(t, txs, 1)
}

func TestRuleActivationRoutes(t *testing.T) {
	t.Parallel()
	app, svc := setupAPI(t)
	ctx := context.Background()
	acct, err := svc.Ledger.CreateAccount(ctx, "Checking")
	require.NoError(t, err)
	cat, err := svc.Ledger.CreateCategory(ctx, "expense", "Food", "Coffee")
	require.NoError(t, err)

	var rule repository.Rule
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/rules",
		map[string]any{"name": "Q1", "category_id": cat.ID, "date_start": "2024-01-01", "date_end": "2024-03-31"}, &rule))
	require.Equal(t, rules.CriterionDate, rules.Criterion(rule))

	base := "/api/accounts/" + acct.ID + "/rules"
	require.Equal(t, http.StatusNoContent, call(t, app, http.MethodPost, base+"/"+rule.ID+"/activate", nil, nil))

	var listing struct {
		Active   []repository.Rule `json:"active"`
		Inactive []repository.Rule `json:"inactive"`
	}
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base, nil, &listing))
	require.Len(t, listing.Active, 1)
	require.Empty(t, listing.Inactive)

	require.Equal(t, http.StatusNoContent, call(t, app, http.MethodPost, base+"/"+rule.ID+"/deactivate", nil, nil))
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base, nil, &listing))
	require.Empty(t, listing.Active)
	require.Len(t, listing.Inactive, 1)

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, "/api/rules/"+rule.ID,
		map[string]any{"name": "Coffee", "category_id": cat.ID, "pattern": "STARBUCKS"}, &rule))
	require.Equal(t, "Coffee", rule.Name)
	require.Equal(t, http.StatusNoContent, call(t, app, http.MethodDelete, "/api/rules/"+rule.ID, nil, nil))
}

func TestErrorStatuses(t *testing.T) {
	t.Parallel()
	app, svc := setupAPI(t)
	ctx := context.Background()
	acct, err := svc.Ledger.CreateAccount(ctx, "Checking")
	require.NoError(t, err)
	cat, err := svc.Ledger.CreateCategory(ctx, "expense", "Food", "Coffee")
	require.NoError(t, err)

	var body map[string]string
	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, "/api/accounts/nope/rules/preview", nil, &body))
	require.Contains(t, body["error"], "not found")

	require.Equal(t, http.StatusUnprocessableEntity, call(t, app, http.MethodPost, "/api/rules",
		map[string]any{"name": "bad", "category_id": cat.ID, "pattern": "("}, &body))
	require.Contains(t, body["error"], "invalid")

	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, "/api/rules",
		map[string]any{"name": "typo", "category": "Cofee"}, &body))
	require.Contains(t, body["error"], `did you mean "Coffee"`)

	require.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPost, "/api/rules",
		map[string]any{"name": "x", "category_id": cat.ID, "date_start": "15/03/2024"}, &body))

	require.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/rules/resolve",
		map[string]string{"transaction_id": "x"}, &body))

	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodDelete, "/api/transactions/nope", nil, &body))
	require.Equal(t, http.StatusUnprocessableEntity, call(t, app, http.MethodPost, "/api/accounts", map[string]string{"name": ""}, &body))

	require.Equal(t, http.StatusConflict, statusFor(service.ErrNotAmbiguous))
	require.Equal(t, http.StatusConflict, statusFor(repository.ErrAlreadyCategorized))
	require.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func TestImportAndBackupRoutes(t *testing.T) {
	t.Parallel()
	app, svc := setupAPI(t)
	ctx := context.Background()
	acct, err := svc.Ledger.CreateAccount(ctx, "Checking")
	require.NoError(t, err)
	base := "/api/accounts/" + acct.ID

	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodGet, base+"/import-settings", nil, nil))

	var settings repository.ImportSettings
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, base+"/import-settings",
		service.SettingsInput{DateIndex: 0, DescriptionIndex: 1, ValueIndex: 2, StarterString: "Date"}, &settings))
	require.Equal(t, 2, settings.ValueIndex)

	var summary struct {
		Imported int      `json:"rows_imported"`
		Errors   []string `json:"errors"`
	}
	csv := "Date;Description;Amount\n15/03/2024;STARBUCKS;-4,50\n16/03/2024;RENT;-900,00\n"
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, base+"/import?delimiter=%3B", csv, &summary))
	require.Equal(t, 2, summary.Imported)
	require.Empty(t, summary.Errors)

	require.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPost, base+"/import?delimiter=%3B%3B", csv, nil))

	req := httptest.NewRequest(http.MethodGet, "/api/backup", nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, resp.Header.Get(fiber.HeaderContentDisposition), "attachment")
	dump, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	require.NoError(t, svc.Ledger.DeleteAccount(ctx, acct.ID))
	var counts service.RestoreCounts
	require.Equal(t, http.StatusOK, call(t, app, http.MethodPost, "/api/restore", string(dump), &counts))
	require.Equal(t, 1, counts.Accounts)
	require.Equal(t, 2, counts.Transactions)
	require.Equal(t, 1, counts.ImportSettings)

	var txs []repository.Transaction
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base+"/transactions", nil, &txs))
	require.Len(t, txs, 2)
}

func TestBudgetRoutes(t *testing.T) {
	t.Parallel()
	app, svc := setupAPI(t)
	acct, err := svc.Ledger.CreateAccount(context.Background(), "Checking")
	require.NoError(t, err)
	base := "/api/accounts/" + acct.ID

	var b repository.Budget
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, base+"/budgets",
		map[string]any{"name": "Groceries", "value": "300.50"}, &b))
	require.Equal(t, acct.ID, b.AccountID)
	require.Equal(t, http.StatusUnprocessableEntity, call(t, app, http.MethodPost, base+"/budgets",
		map[string]any{"name": "groceries", "value": "1"}, nil))
	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodPost, "/api/accounts/nope/budgets",
		map[string]any{"name": "Fun", "value": "1"}, nil))

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, "/api/budgets/"+b.ID,
		map[string]any{"name": "Food", "value": "320"}, &b))
	require.Equal(t, "Food", b.Name)

	var list []repository.Budget
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, base+"/budgets", nil, &list))
	require.Len(t, list, 1)
	require.Equal(t, "320", list[0].Value.String())
	require.Equal(t, http.StatusOK, call(t, app, http.MethodGet, "/api/budgets", nil, &list))
	require.Len(t, list, 1)

	require.Equal(t, http.StatusNoContent, call(t, app, http.MethodDelete, "/api/budgets/"+b.ID, nil, nil))
	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodDelete, "/api/budgets/"+b.ID, nil, nil))
}

func TestEditTransactionRoute(t *testing.T) {
	t.Parallel()
	app, svc := setupAPI(t)
	ctx := context.Background()
	acct, err := svc.Ledger.CreateAccount(ctx, "Checking")
	require.NoError(t, err)
	coffee, err := svc.Ledger.CreateCategory(ctx, "expense", "Food", "Coffee")
	require.NoError(t, err)

	var tx repository.Transaction
	require.Equal(t, http.StatusCreated, call(t, app, http.MethodPost, "/api/accounts/"+acct.ID+"/transactions",
		map[string]any{"description": "STARBUCKS", "value": "-4.20", "date": "2024-03-01"}, &tx))

	require.Equal(t, http.StatusOK, call(t, app, http.MethodPut, "/api/transactions/"+tx.ID,
		map[string]any{"label": "latte", "date": "2024-03-02", "category_id": coffee.ID, "perc_to_exclude": 0.5}, &tx))
	require.Equal(t, "latte", tx.Label)
	require.Equal(t, "STARBUCKS", tx.Description)
	require.Equal(t, coffee.ID, *tx.CategoryID)
	require.Equal(t, 2, tx.Date.Day())

	require.Equal(t, http.StatusBadRequest, call(t, app, http.MethodPut, "/api/transactions/"+tx.ID,
		map[string]any{"date": "03/02/2024"}, nil))
	require.Equal(t, http.StatusUnprocessableEntity, call(t, app, http.MethodPut, "/api/transactions/"+tx.ID,
		map[string]any{"perc_to_exclude": 3}, nil))
	require.Equal(t, http.StatusNotFound, call(t, app, http.MethodPut, "/api/transactions/nope",
		map[string]any{"label": "x"}, nil))
}
