package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/jask/jaskledger/internal/database"
	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/logger"
)

const backupVersion = 1

// Backup is a full copy of the ledger.
type Backup struct {
	Version        int                         `json:"version"`
	CreatedAt      time.Time                   `json:"created_at"`
	Accounts       []repository.Account        `json:"accounts"`
	Categories     []repository.Category       `json:"categories"`
	Rules          []repository.Rule           `json:"rules"`
	AccountRules   []repository.AccountRule    `json:"account_rules"`
	Transactions   []repository.Transaction    `json:"transactions"`
	ImportSettings []repository.ImportSettings `json:"import_settings"`
	Budgets        []repository.Budget         `json:"budgets"`
}

// RestoreCounts reports how many rows were loaded into each table.
type RestoreCounts struct {
	Accounts       int `json:"accounts"`
	Categories     int `json:"categories"`
	Rules          int `json:"rules"`
	AccountRules   int `json:"account_rules"`
	Transactions   int `json:"transactions"`
	ImportSettings int `json:"import_settings"`
	Budgets        int `json:"budgets"`
}

// BackupService exports and restores the whole database.
type BackupService struct {
	DB *sql.DB
}

// wipeOrder deletes children before parents.
var wipeOrder = []string{
	"budgets",
	"import_settings",
	"account_rules",
	"transactions",
	"rules",
	"categories",
	"accounts",
}

// Snapshot reads every table.
func (s *BackupService) Snapshot(ctx context.Context) (Backup, error) {
	if s.DB == nil {
		return Backup{}, fmt.Errorf("backup: db not configured")
	}
	b := Backup{Version: backupVersion, CreatedAt: database.Now()}
	var err error
	if b.Accounts, err = repository.NewAccountRepo(s.DB).List(ctx); err != nil {
		return b, fmt.Errorf("backup accounts: %w", err)
	}
	if b.Categories, err = repository.NewCategoryRepo(s.DB).List(ctx); err != nil {
		return b, fmt.Errorf("backup categories: %w", err)
	}
	ruleRepo := repository.NewRuleRepo(s.DB)
	if b.Rules, err = ruleRepo.List(ctx); err != nil {
		return b, fmt.Errorf("backup rules: %w", err)
	}
	if b.AccountRules, err = ruleRepo.ListLinks(ctx); err != nil {
		return b, fmt.Errorf("backup account rules: %w", err)
	}
	if b.Transactions, err = repository.NewTransactionRepo(s.DB).List(ctx, repository.TransactionFilters{}); err != nil {
		return b, fmt.Errorf("backup transactions: %w", err)
	}
	if b.ImportSettings, err = repository.NewImportSettingsRepo(s.DB).List(ctx); err != nil {
		return b, fmt.Errorf("backup import settings: %w", err)
	}
	if b.Budgets, err = repository.NewBudgetRepo(s.DB).List(ctx, ""); err != nil {
		return b, fmt.Errorf("backup budgets: %w", err)
	}
	return b, nil
}

// Export writes a snapshot as indented JSON.
func (s *BackupService) Export(ctx context.Context, w io.Writer) error {
	b, err := s.Snapshot(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b)
}

// Import reads a JSON backup and restores it.
func (s *BackupService) Import(ctx context.Context, r io.Reader) (RestoreCounts, error) {
	var b Backup
	if err := json.NewDecoder(r).Decode(&b); err != nil {
		return RestoreCounts{}, fmt.Errorf("decode backup: %w: %w", ErrInvalidInput, err)
	}
	return s.Restore(ctx, b)
}

// Restore replaces all data with the backup in a single transaction and reports
// the rows loaded per table. Nothing changes when any row fails.
func (s *BackupService) Restore(ctx context.Context, b Backup) (RestoreCounts, error) {
	if s.DB == nil {
		return RestoreCounts{}, fmt.Errorf("backup: db not configured")
	}
	if b.Version != backupVersion {
		return RestoreCounts{}, fmt.Errorf("backup version %d not supported: %w", b.Version, ErrInvalidInput)
	}
	var counts RestoreCounts
	err := database.WithTx(ctx, s.DB, func(tx *sql.Tx) error {
		for _, t := range wipeOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		accounts := repository.NewAccountRepo(tx)
		for _, a := range b.Accounts {
			if err := accounts.Insert(ctx, a); err != nil {
				return fmt.Errorf("restore account %s: %w", a.ID, err)
			}
			counts.Accounts++
		}
		categories := repository.NewCategoryRepo(tx)
		for _, c := range b.Categories {
			if err := categories.Upsert(ctx, c); err != nil {
				return fmt.Errorf("restore category %s: %w", c.ID, err)
			}
			counts.Categories++
		}
		ruleRepo := repository.NewRuleRepo(tx)
		for _, r := range b.Rules {
			if err := ruleRepo.Insert(ctx, r); err != nil {
				return fmt.Errorf("restore rule %s: %w", r.ID, err)
			}
			counts.Rules++
		}
		for _, l := range b.AccountRules {
			if err := ruleRepo.Activate(ctx, l); err != nil {
				return fmt.Errorf("restore account rule %s: %w", l.ID, err)
			}
			counts.AccountRules++
		}
		transactions := repository.NewTransactionRepo(tx)
		for _, t := range b.Transactions {
			if err := transactions.Insert(ctx, t); err != nil {
				return fmt.Errorf("restore transaction %s: %w", t.ID, err)
			}
			counts.Transactions++
		}
		settings := repository.NewImportSettingsRepo(tx)
		for _, st := range b.ImportSettings {
			if err := settings.Save(ctx, st); err != nil {
				return fmt.Errorf("restore import settings %s: %w", st.ID, err)
			}
			counts.ImportSettings++
		}
		budgets := repository.NewBudgetRepo(tx)
		for _, bu := range b.Budgets {
			if err := budgets.Insert(ctx, bu); err != nil {
				return fmt.Errorf("restore budget %s: %w", bu.ID, err)
			}
			counts.Budgets++
		}
		return nil
	})
	if err != nil {
		return RestoreCounts{}, err
	}
	log := logger.FromContext(ctx)
	log.Info().
		Int("accounts", counts.Accounts).
		Int("rules", counts.Rules).
		Int("transactions", counts.Transactions).
		Int("budgets", counts.Budgets).
		Msg("backup restored")
	return counts, nil
}
