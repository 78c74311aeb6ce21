package service

import (
	"database/sql"

	"github.com/jask/jaskledger/internal/database/repository"
)

// Services bundles every service over one database handle.
type Services struct {
	Ledger   *LedgerService
	Rules    *RuleService
	Registry *Registry
	Planner  *Planner
	Preview  *PreviewService
	Apply    *ApplyService
	Resolve  *ResolveService
	Ingest   *IngestService
	Backup   *BackupService
}

// New wires the services to the repositories backed by db.
func New(db *sql.DB) *Services {
	accounts := repository.NewAccountRepo(db)
	categories := repository.NewCategoryRepo(db)
	transactions := repository.NewTransactionRepo(db)
	rules := repository.NewRuleRepo(db)
	settings := repository.NewImportSettingsRepo(db)
	budgets := repository.NewBudgetRepo(db)

	registry := &Registry{Accounts: accounts, Rules: rules}
	planner := &Planner{Transactions: transactions, Registry: registry}
	return &Services{
		Ledger:   &LedgerService{Accounts: accounts, Categories: categories, Transactions: transactions, Budgets: budgets},
		Rules:    &RuleService{Rules: rules, Categories: categories, Registry: registry},
		Registry: registry,
		Planner:  planner,
		Preview:  &PreviewService{Planner: planner, Categories: categories},
		Apply:    &ApplyService{Planner: planner, Transactions: transactions},
		Resolve:  &ResolveService{Accounts: accounts, Transactions: transactions, Registry: registry, Rules: rules},
		Ingest:   &IngestService{Accounts: accounts, Transactions: transactions, Settings: settings},
		Backup:   &BackupService{DB: db},
	}
}
