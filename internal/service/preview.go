package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/rules"
)

// RuleSummary describes a rule that applies to a previewed transaction.
type RuleSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Label        string  `json:"label"`
	Percentage   float64 `json:"percentage"`
	CategoryID   string  `json:"category_id"`
	CategoryName string  `json:"category_name"`
}

// PreviewRow shows what applying the rules would do to one transaction.
// Proposed values are nil for conflicts since no rule has been chosen yet.
type PreviewRow struct {
	ID             string          `json:"id"`
	Description    string          `json:"description"`
	Value          decimal.Decimal `json:"value"`
	Date           time.Time       `json:"date"`
	Conflicts      []RuleSummary   `json:"conflicts"`
	LabelBefore    string          `json:"label_old_value"`
	LabelAfter     *string         `json:"label_new_value"`
	PercBefore     float64         `json:"perc_to_exclude_old_value"`
	PercAfter      *float64        `json:"perc_to_exclude_new_value"`
	CategoryBefore *string         `json:"category_old_value"`
	CategoryAfter  *string         `json:"category_new_value"`
}

// Conflicted reports whether the row needs a manual decision.
func (r PreviewRow) Conflicted() bool { return len(r.Conflicts) > 1 }

// PreviewService renders a plan without touching any data.
type PreviewService struct {
	Planner    *Planner
	Categories CategoryStore
}

// Preview returns a row for every transaction with at least one applicable rule,
// in plan order. Calling it repeatedly without writes in between yields the same rows.
func (s *PreviewService) Preview(ctx context.Context, accountID string) ([]PreviewRow, error) {
	plan, err := s.Planner.Plan(ctx, accountID)
	if err != nil {
		return nil, err
	}
	names, err := s.categoryNames(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]PreviewRow, 0, len(plan.Entries))
	for _, e := range plan.Entries {
		if e.Outcome.Kind == rules.NoMatch {
			continue
		}
		tx := e.Transaction
		row := PreviewRow{
			ID:             tx.ID,
			Description:    tx.Description,
			Value:          tx.Value,
			Date:           tx.Date,
			Conflicts:      summarize(e.Outcome.Rules, names),
			LabelBefore:    tx.Label,
			PercBefore:     tx.PercToExclude,
			CategoryBefore: categoryName(tx.CategoryID, names),
		}
		if rule, ok := e.Outcome.Rule(); ok {
			label := rule.Label
			perc := rule.Percentage
			row.LabelAfter = &label
			row.PercAfter = &perc
			row.CategoryAfter = categoryName(&rule.CategoryID, names)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *PreviewService) categoryNames(ctx context.Context) (map[string]string, error) {
	cats, err := s.Categories.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	names := make(map[string]string, len(cats))
	for _, c := range cats {
		names[c.ID] = c.Name
	}
	return names, nil
}

func summarize(matched []repository.Rule, names map[string]string) []RuleSummary {
	out := make([]RuleSummary, 0, len(matched))
	for _, r := range matched {
		out = append(out, RuleSummary{
			ID:           r.ID,
			Name:         r.Name,
			Label:        r.Label,
			Percentage:   r.Percentage,
			CategoryID:   r.CategoryID,
			CategoryName: names[r.CategoryID],
		})
	}
	return out
}

func categoryName(id *string, names map[string]string) *string {
	if id == nil {
		return nil
	}
	name, ok := names[*id]
	if !ok {
		return nil
	}
	return &name
}
