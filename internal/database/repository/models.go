package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types a category can belong to.
const (
	TypeIncome   = "income"
	TypeExpense  = "expense"
	TypeTransfer = "transfer"
)

// Account represents an account row.
type Account struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Category represents a category row. Categories are addressed as
// TransactionType > MacroCategory > Name.
type Category struct {
	ID              string `json:"id"`
	TransactionType string `json:"transaction_type"`
	MacroCategory   string `json:"macro_category"`
	Name            string `json:"name"`
}

// Path renders the category as "type > macro > name".
func (c Category) Path() string {
	return c.TransactionType + " > " + c.MacroCategory + " > " + c.Name
}

// Transaction represents a transaction row. A nil CategoryID means uncategorized.
type Transaction struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	CategoryID    *string         `json:"category_id"`
	Value         decimal.Decimal `json:"value"`
	Description   string          `json:"description"`
	Date          time.Time       `json:"date"`
	PercToExclude float64         `json:"perc_to_exclude"`
	Label         string          `json:"label"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Categorized reports whether the transaction already carries a category.
func (t Transaction) Categorized() bool {
	return t.CategoryID != nil && *t.CategoryID != ""
}

// Rule represents a categorization rule. Pattern holds comma-separated regular
// expressions; DateStart and DateEnd are inclusive calendar days.
type Rule struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Percentage float64    `json:"percentage"`
	CategoryID string     `json:"category_id"`
	Pattern    *string    `json:"pattern"`
	DateStart  *time.Time `json:"date_start"`
	DateEnd    *time.Time `json:"date_end"`
	SortOrder  int        `json:"sort_order"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AccountRule activates a rule for an account.
type AccountRule struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	RuleID    string `json:"rule_id"`
}

// ImportSettings describes how statement files for an account are laid out.
// Indexes are zero-based column positions.
type ImportSettings struct {
	ID               string `json:"id"`
	AccountID        string `json:"account_id"`
	DateIndex        int    `json:"date_index"`
	DescriptionIndex int    `json:"description_index"`
	ValueIndex       int    `json:"value_index"`
	StarterString    string `json:"starter_string"`
}

// Budget is a named spending target for an account.
type Budget struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}
