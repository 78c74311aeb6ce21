package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jask/jaskledger/internal/database"
	"github.com/jask/jaskledger/internal/database/repository"
	"github.com/jask/jaskledger/internal/logger"
	"github.com/jask/jaskledger/internal/rules"
)

// RuleInput holds the editable fields of a rule. Dates are calendar days; any
// time of day is dropped.
type RuleInput struct {
	Name       string     `json:"name"`
	Label      string     `json:"label"`
	Percentage float64    `json:"percentage"`
	CategoryID string     `json:"category_id"`
	Pattern    *string    `json:"pattern"`
	DateStart  *time.Time `json:"date_start"`
	DateEnd    *time.Time `json:"date_end"`
	SortOrder  int        `json:"sort_order"`
}

// RuleService manages the rule catalogue.
type RuleService struct {
	Rules      RuleStore
	Categories CategoryStore
	Registry   *Registry
}

func (s *RuleService) Create(ctx context.Context, in RuleInput) (repository.Rule, error) {
	rule, err := s.build(ctx, in)
	if err != nil {
		return repository.Rule{}, err
	}
	rule.ID = uuid.NewString()
	rule.CreatedAt = database.Now()
	if err := s.Rules.Insert(ctx, rule); err != nil {
		return repository.Rule{}, fmt.Errorf("insert rule: %w", err)
	}
	saved, err := s.Get(ctx, rule.ID)
	if err != nil {
		return repository.Rule{}, err
	}
	warnSingleBound(ctx, saved)
	return saved, nil
}

// CreateForAccount creates a rule and activates it for the account.
func (s *RuleService) CreateForAccount(ctx context.Context, accountID string, in RuleInput) (repository.Rule, error) {
	if _, err := s.Registry.account(ctx, accountID); err != nil {
		return repository.Rule{}, err
	}
	rule, err := s.Create(ctx, in)
	if err != nil {
		return repository.Rule{}, err
	}
	if err := s.Registry.Activate(ctx, accountID, rule.ID); err != nil {
		return repository.Rule{}, err
	}
	return rule, nil
}

// Update replaces every editable field. A zero SortOrder keeps the current position.
func (s *RuleService) Update(ctx context.Context, id string, in RuleInput) (repository.Rule, error) {
	current, err := s.Get(ctx, id)
	if err != nil {
		return repository.Rule{}, err
	}
	rule, err := s.build(ctx, in)
	if err != nil {
		return repository.Rule{}, err
	}
	rule.ID = current.ID
	rule.CreatedAt = current.CreatedAt
	if rule.SortOrder == 0 {
		rule.SortOrder = current.SortOrder
	}
	if err := s.Rules.Update(ctx, rule); err != nil {
		return repository.Rule{}, fmt.Errorf("update rule %s: %w", id, err)
	}
	warnSingleBound(ctx, rule)
	return rule, nil
}

// Delete removes the rule and every activation of it.
func (s *RuleService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.Rules.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return nil
}

func (s *RuleService) Get(ctx context.Context, id string) (repository.Rule, error) {
	rule, err := s.Rules.Get(ctx, id)
	if err != nil {
		return repository.Rule{}, fmt.Errorf("get rule %s: %w", id, err)
	}
	if rule == nil {
		return repository.Rule{}, fmt.Errorf("rule %s: %w", id, ErrNotFound)
	}
	return *rule, nil
}

func (s *RuleService) List(ctx context.Context) ([]repository.Rule, error) {
	return s.Rules.List(ctx)
}

func (s *RuleService) build(ctx context.Context, in RuleInput) (repository.Rule, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return repository.Rule{}, fmt.Errorf("name required: %w", ErrInvalidRule)
	}
	if in.Percentage < 0 || in.Percentage > 1 {
		return repository.Rule{}, fmt.Errorf("percentage %v outside [0,1]: %w", in.Percentage, ErrInvalidRule)
	}
	if in.SortOrder < 0 {
		return repository.Rule{}, fmt.Errorf("sort order must not be negative: %w", ErrInvalidRule)
	}
	pattern := in.Pattern
	if pattern != nil && len(rules.SplitPattern(*pattern)) == 0 {
		pattern = nil
	}
	if pattern != nil {
		if err := rules.ValidatePattern(*pattern); err != nil {
			return repository.Rule{}, fmt.Errorf("%w: %w", ErrInvalidRule, err)
		}
	}
	start, end := dayPtr(in.DateStart), dayPtr(in.DateEnd)
	if start != nil && end != nil && start.After(*end) {
		return repository.Rule{}, fmt.Errorf("date_start after date_end: %w", ErrInvalidRule)
	}
	cat, err := s.Categories.Get(ctx, in.CategoryID)
	if err != nil {
		return repository.Rule{}, fmt.Errorf("get category: %w", err)
	}
	if cat == nil {
		return repository.Rule{}, fmt.Errorf("category %q: %w", in.CategoryID, ErrInvalidRule)
	}
	return repository.Rule{
		Name:       name,
		Label:      strings.TrimSpace(in.Label),
		Percentage: in.Percentage,
		CategoryID: cat.ID,
		Pattern:    pattern,
		DateStart:  start,
		DateEnd:    end,
		SortOrder:  in.SortOrder,
	}, nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return &d
}

func warnSingleBound(ctx context.Context, r repository.Rule) {
	if rules.Criterion(r) == rules.CriterionInert && (r.DateStart != nil || r.DateEnd != nil) {
		log := logger.FromContext(ctx)
		log.Warn().Str("rule_id", r.ID).Str("rule", r.Name).Msg("rule has a single date bound and no pattern, it will never match")
	}
}
