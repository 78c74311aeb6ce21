package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jask/jaskledger/internal/database"
	"github.com/jask/jaskledger/internal/database/repository"
)

// LedgerService manages accounts, categories, budgets and manually entered transactions.
type LedgerService struct {
	Accounts     AccountStore
	Categories   CategoryStore
	Transactions TransactionStore
	Budgets      BudgetStore
}

func (s *LedgerService) CreateAccount(ctx context.Context, name string) (repository.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return repository.Account{}, fmt.Errorf("account name required: %w", ErrInvalidInput)
	}
	acct := repository.Account{ID: uuid.NewString(), Name: name, CreatedAt: database.Now()}
	if err := s.Accounts.Insert(ctx, acct); err != nil {
		return repository.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return acct, nil
}

func (s *LedgerService) RenameAccount(ctx context.Context, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("account name required: %w", ErrInvalidInput)
	}
	if _, err := s.Account(ctx, id); err != nil {
		return err
	}
	return s.Accounts.Rename(ctx, id, name)
}

// DeleteAccount removes the account with its transactions, activations and import settings.
func (s *LedgerService) DeleteAccount(ctx context.Context, id string) error {
	if _, err := s.Account(ctx, id); err != nil {
		return err
	}
	return s.Accounts.Delete(ctx, id)
}

func (s *LedgerService) Account(ctx context.Context, id string) (repository.Account, error) {
	acct, err := s.Accounts.Get(ctx, id)
	if err != nil {
		return repository.Account{}, fmt.Errorf("get account %s: %w", id, err)
	}
	if acct == nil {
		return repository.Account{}, fmt.Errorf("account %s: %w", id, ErrNotFound)
	}
	return *acct, nil
}

func (s *LedgerService) ListAccounts(ctx context.Context) ([]repository.Account, error) {
	return s.Accounts.List(ctx)
}

// FindAccount looks an account up by id or case-insensitive name.
func (s *LedgerService) FindAccount(ctx context.Context, ref string) (repository.Account, error) {
	accts, err := s.Accounts.List(ctx)
	if err != nil {
		return repository.Account{}, fmt.Errorf("list accounts: %w", err)
	}
	names := make([]string, 0, len(accts))
	for _, a := range accts {
		if a.ID == ref || strings.EqualFold(a.Name, strings.TrimSpace(ref)) {
			return a, nil
		}
		names = append(names, a.Name)
	}
	return repository.Account{}, notFoundWithSuggestion("account", ref, names)
}

func (s *LedgerService) CreateCategory(ctx context.Context, transactionType, macro, name string) (repository.Category, error) {
	c := repository.Category{
		ID:              uuid.NewString(),
		TransactionType: strings.ToLower(strings.TrimSpace(transactionType)),
		MacroCategory:   strings.TrimSpace(macro),
		Name:            strings.TrimSpace(name),
	}
	switch c.TransactionType {
	case repository.TypeIncome, repository.TypeExpense, repository.TypeTransfer:
	default:
		return repository.Category{}, fmt.Errorf("unknown transaction type %q: %w", transactionType, ErrInvalidInput)
	}
	if c.MacroCategory == "" || c.Name == "" {
		return repository.Category{}, fmt.Errorf("category macro and name required: %w", ErrInvalidInput)
	}
	if err := s.Categories.Upsert(ctx, c); err != nil {
		return repository.Category{}, fmt.Errorf("insert category: %w", err)
	}
	return c, nil
}

// DeleteCategory removes the category together with the rules targeting it.
// Transactions in the category become uncategorized.
func (s *LedgerService) DeleteCategory(ctx context.Context, id string) error {
	c, err := s.Categories.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("get category %s: %w", id, err)
	}
	if c == nil {
		return fmt.Errorf("category %s: %w", id, ErrNotFound)
	}
	return s.Categories.Delete(ctx, id)
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]repository.Category, error) {
	return s.Categories.List(ctx)
}

// FindCategory looks a category up by id, name or "type > macro > name" path,
// ignoring case. Unknown references suggest the closest existing name.
func (s *LedgerService) FindCategory(ctx context.Context, ref string) (repository.Category, error) {
	return findCategory(ctx, s.Categories, ref)
}

func findCategory(ctx context.Context, store CategoryStore, ref string) (repository.Category, error) {
	cats, err := store.List(ctx)
	if err != nil {
		return repository.Category{}, fmt.Errorf("list categories: %w", err)
	}
	ref = strings.TrimSpace(ref)
	var byName []repository.Category
	names := make([]string, 0, len(cats))
	for _, c := range cats {
		if c.ID == ref || strings.EqualFold(c.Path(), ref) {
			return c, nil
		}
		if strings.EqualFold(c.Name, ref) {
			byName = append(byName, c)
		}
		names = append(names, c.Name)
	}
	switch len(byName) {
	case 1:
		return byName[0], nil
	case 0:
		return repository.Category{}, notFoundWithSuggestion("category", ref, names)
	default:
		return repository.Category{}, fmt.Errorf("category %q is ambiguous, use the full path: %w", ref, ErrInvalidInput)
	}
}

// TransactionInput is a manually entered transaction.
type TransactionInput struct {
	AccountID     string          `json:"account_id"`
	Value         decimal.Decimal `json:"value"`
	Description   string          `json:"description"`
	Date          time.Time       `json:"date"`
	CategoryID    *string         `json:"category_id"`
	Label         string          `json:"label"`
	PercToExclude float64         `json:"perc_to_exclude"`
}

func (s *LedgerService) AddTransaction(ctx context.Context, in TransactionInput) (repository.Transaction, error) {
	if _, err := s.Account(ctx, in.AccountID); err != nil {
		return repository.Transaction{}, err
	}
	if strings.TrimSpace(in.Description) == "" {
		return repository.Transaction{}, fmt.Errorf("description required: %w", ErrInvalidInput)
	}
	if in.Date.IsZero() {
		return repository.Transaction{}, fmt.Errorf("date required: %w", ErrInvalidInput)
	}
	if err := checkPercentage(in.PercToExclude); err != nil {
		return repository.Transaction{}, err
	}
	categoryID, err := s.categoryRef(ctx, in.CategoryID)
	if err != nil {
		return repository.Transaction{}, err
	}
	t := repository.Transaction{
		ID:            uuid.NewString(),
		AccountID:     in.AccountID,
		CategoryID:    categoryID,
		Value:         in.Value,
		Description:   strings.TrimSpace(in.Description),
		Date:          in.Date.UTC(),
		PercToExclude: in.PercToExclude,
		Label:         in.Label,
		CreatedAt:     database.Now(),
	}
	if err := s.Transactions.Insert(ctx, t); err != nil {
		return repository.Transaction{}, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// TransactionEdit lists the fields to change. Nil fields keep their current value;
// an empty CategoryID clears the category.
type TransactionEdit struct {
	Value         *decimal.Decimal `json:"value"`
	Description   *string          `json:"description"`
	Date          *time.Time       `json:"date"`
	CategoryID    *string          `json:"category_id"`
	Label         *string          `json:"label"`
	PercToExclude *float64         `json:"perc_to_exclude"`
}

// EditTransaction changes a transaction by hand. Setting a category this way
// takes the transaction out of rule planning; clearing it puts it back.
func (s *LedgerService) EditTransaction(ctx context.Context, id string, edit TransactionEdit) (repository.Transaction, error) {
	cur, err := s.transaction(ctx, id)
	if err != nil {
		return repository.Transaction{}, err
	}
	t := *cur
	if edit.Value != nil {
		t.Value = *edit.Value
	}
	if edit.Description != nil {
		t.Description = strings.TrimSpace(*edit.Description)
		if t.Description == "" {
			return repository.Transaction{}, fmt.Errorf("description required: %w", ErrInvalidInput)
		}
	}
	if edit.Date != nil {
		if edit.Date.IsZero() {
			return repository.Transaction{}, fmt.Errorf("date required: %w", ErrInvalidInput)
		}
		t.Date = edit.Date.UTC()
	}
	if edit.Label != nil {
		t.Label = *edit.Label
	}
	if edit.PercToExclude != nil {
		if err := checkPercentage(*edit.PercToExclude); err != nil {
			return repository.Transaction{}, err
		}
		t.PercToExclude = *edit.PercToExclude
	}
	if edit.CategoryID != nil {
		if t.CategoryID, err = s.categoryRef(ctx, edit.CategoryID); err != nil {
			return repository.Transaction{}, err
		}
	}
	if err := s.Transactions.Update(ctx, t); err != nil {
		return repository.Transaction{}, fmt.Errorf("update transaction %s: %w", id, err)
	}
	return t, nil
}

func checkPercentage(p float64) error {
	if p < 0 || p > 1 {
		return fmt.Errorf("perc_to_exclude must be within [0,1]: %w", ErrInvalidInput)
	}
	return nil
}

// categoryRef resolves an optional category id; nil or empty means none.
func (s *LedgerService) categoryRef(ctx context.Context, id *string) (*string, error) {
	if id == nil || *id == "" {
		return nil, nil
	}
	c, err := s.Categories.Get(ctx, *id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if c == nil {
		return nil, fmt.Errorf("category %s: %w", *id, ErrNotFound)
	}
	return &c.ID, nil
}

func (s *LedgerService) ListTransactions(ctx context.Context, f repository.TransactionFilters) ([]repository.Transaction, error) {
	return s.Transactions.List(ctx, f)
}

func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if _, err := s.transaction(ctx, id); err != nil {
		return err
	}
	return s.Transactions.Delete(ctx, id)
}

// Uncategorize clears a transaction's category so the next plan picks it up again.
func (s *LedgerService) Uncategorize(ctx context.Context, id string) error {
	if _, err := s.transaction(ctx, id); err != nil {
		return err
	}
	return s.Transactions.ClearCategory(ctx, id)
}

func (s *LedgerService) transaction(ctx context.Context, id string) (*repository.Transaction, error) {
	t, err := s.Transactions.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	return t, nil
}

// BudgetInput holds the editable fields of a budget.
type BudgetInput struct {
	Name  string          `json:"name"`
	Value decimal.Decimal `json:"value"`
}

func (s *LedgerService) CreateBudget(ctx context.Context, accountID string, in BudgetInput) (repository.Budget, error) {
	if _, err := s.Account(ctx, accountID); err != nil {
		return repository.Budget{}, err
	}
	b := repository.Budget{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Name:      strings.TrimSpace(in.Name),
		Value:     in.Value,
		CreatedAt: database.Now(),
	}
	if err := s.checkBudget(ctx, b); err != nil {
		return repository.Budget{}, err
	}
	if err := s.Budgets.Insert(ctx, b); err != nil {
		return repository.Budget{}, fmt.Errorf("insert budget: %w", err)
	}
	return b, nil
}

func (s *LedgerService) UpdateBudget(ctx context.Context, id string, in BudgetInput) (repository.Budget, error) {
	b, err := s.budget(ctx, id)
	if err != nil {
		return repository.Budget{}, err
	}
	b.Name = strings.TrimSpace(in.Name)
	b.Value = in.Value
	if err := s.checkBudget(ctx, b); err != nil {
		return repository.Budget{}, err
	}
	if err := s.Budgets.Update(ctx, b); err != nil {
		return repository.Budget{}, fmt.Errorf("update budget %s: %w", id, err)
	}
	return b, nil
}

func (s *LedgerService) DeleteBudget(ctx context.Context, id string) error {
	if _, err := s.budget(ctx, id); err != nil {
		return err
	}
	return s.Budgets.Delete(ctx, id)
}

// ListBudgets returns the account's budgets, or every budget when accountID is empty.
func (s *LedgerService) ListBudgets(ctx context.Context, accountID string) ([]repository.Budget, error) {
	if accountID != "" {
		if _, err := s.Account(ctx, accountID); err != nil {
			return nil, err
		}
	}
	return s.Budgets.List(ctx, accountID)
}

func (s *LedgerService) budget(ctx context.Context, id string) (repository.Budget, error) {
	b, err := s.Budgets.Get(ctx, id)
	if err != nil {
		return repository.Budget{}, fmt.Errorf("get budget %s: %w", id, err)
	}
	if b == nil {
		return repository.Budget{}, fmt.Errorf("budget %s: %w", id, ErrNotFound)
	}
	return *b, nil
}

// checkBudget rejects blank names, negative amounts and a name already used by the account.
func (s *LedgerService) checkBudget(ctx context.Context, b repository.Budget) error {
	if b.Name == "" {
		return fmt.Errorf("budget name required: %w", ErrInvalidInput)
	}
	if b.Value.IsNegative() {
		return fmt.Errorf("budget value must not be negative: %w", ErrInvalidInput)
	}
	existing, err := s.Budgets.List(ctx, b.AccountID)
	if err != nil {
		return fmt.Errorf("list budgets: %w", err)
	}
	for _, e := range existing {
		if e.ID != b.ID && strings.EqualFold(e.Name, b.Name) {
			return fmt.Errorf("budget %q already exists: %w", b.Name, ErrInvalidInput)
		}
	}
	return nil
}

// notFoundWithSuggestion names the closest candidate when it is within a third of the reference length.
func notFoundWithSuggestion(kind, ref string, candidates []string) error {
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(strings.ToLower(ref), strings.ToLower(c))
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist >= 0 && bestDist <= max(1, len(ref)/3) {
		return fmt.Errorf("%s %q (did you mean %q?): %w", kind, ref, best, ErrNotFound)
	}
	return fmt.Errorf("%s %q: %w", kind, ref, ErrNotFound)
}
