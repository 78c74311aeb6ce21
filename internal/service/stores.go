package service

import (
	"context"

	"github.com/jask/jaskledger/internal/database/repository"
)

// AccountStore is the account persistence used by the services.
type AccountStore interface {
	Insert(ctx context.Context, a repository.Account) error
	Rename(ctx context.Context, id, name string) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*repository.Account, error)
	List(ctx context.Context) ([]repository.Account, error)
}

// CategoryStore is the category persistence used by the services.
type CategoryStore interface {
	Upsert(ctx context.Context, c repository.Category) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*repository.Category, error)
	List(ctx context.Context) ([]repository.Category, error)
}

// TransactionStore is the transaction persistence used by the services.
type TransactionStore interface {
	Insert(ctx context.Context, t repository.Transaction) error
	Categorize(ctx context.Context, id, categoryID, label string, percToExclude float64) error
	Update(ctx context.Context, t repository.Transaction) error
	ClearCategory(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*repository.Transaction, error)
	ListUncategorized(ctx context.Context, accountID string) ([]repository.Transaction, error)
	List(ctx context.Context, f repository.TransactionFilters) ([]repository.Transaction, error)
}

// RuleStore is the rule and activation persistence used by the services.
type RuleStore interface {
	Insert(ctx context.Context, r repository.Rule) error
	Update(ctx context.Context, r repository.Rule) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*repository.Rule, error)
	List(ctx context.Context) ([]repository.Rule, error)
	ListActive(ctx context.Context, accountID string) ([]repository.Rule, error)
	ListInactive(ctx context.Context, accountID string) ([]repository.Rule, error)
	Activate(ctx context.Context, link repository.AccountRule) error
	Deactivate(ctx context.Context, accountID, ruleID string) error
}

// ImportSettingsStore is the statement layout persistence used by the ingest service.
type ImportSettingsStore interface {
	Save(ctx context.Context, s repository.ImportSettings) error
	Get(ctx context.Context, accountID string) (*repository.ImportSettings, error)
}

// BudgetStore is the budget persistence used by the ledger.
type BudgetStore interface {
	Insert(ctx context.Context, b repository.Budget) error
	Update(ctx context.Context, b repository.Budget) error
	Delete(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*repository.Budget, error)
	List(ctx context.Context, accountID string) ([]repository.Budget, error)
}
