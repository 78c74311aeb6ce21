// Package rules decides which categorization rules apply to a transaction.
//
// A rule carries at most one effective criterion, checked in a fixed order:
// a text pattern first, then a closed date range. Rules with neither are inert.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jask/jaskledger/internal/database/repository"
)

// ErrInvalidPattern marks a rule whose pattern is not a valid regular expression.
var ErrInvalidPattern = errors.New("invalid rule pattern")

// PatternError reports the rule and the piece of its pattern that failed to compile.
type PatternError struct {
	RuleID   string
	RuleName string
	Pattern  string
	Err      error
}

func (e *PatternError) Error() string {
	if e.RuleID == "" {
		return fmt.Sprintf("invalid pattern %q: %v", e.Pattern, e.Err)
	}
	return fmt.Sprintf("rule %q (%s): invalid pattern %q: %v", e.RuleName, e.RuleID, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() []error { return []error{ErrInvalidPattern, e.Err} }

// CriterionKind is the branch a rule is evaluated on.
type CriterionKind int

const (
	CriterionInert CriterionKind = iota
	CriterionText
	CriterionDate
)

func (k CriterionKind) String() string {
	switch k {
	case CriterionText:
		return "text"
	case CriterionDate:
		return "date"
	default:
		return "inert"
	}
}

// Criterion returns the branch r is evaluated on. A pattern that is blank after
// splitting counts as absent. The date branch needs both bounds.
func Criterion(r repository.Rule) CriterionKind {
	if len(splitPattern(r.Pattern)) > 0 {
		return CriterionText
	}
	if r.DateStart != nil && r.DateEnd != nil {
		return CriterionDate
	}
	return CriterionInert
}

// SplitPattern returns the individual expressions of a comma-separated pattern.
func SplitPattern(pattern string) []string {
	return splitPattern(&pattern)
}

func splitPattern(pattern *string) []string {
	if pattern == nil {
		return nil
	}
	var out []string
	for _, piece := range strings.Split(*pattern, ",") {
		if piece = strings.TrimSpace(piece); piece != "" {
			out = append(out, piece)
		}
	}
	return out
}

// ValidatePattern compiles every piece of pattern and returns the first failure.
func ValidatePattern(pattern string) error {
	for _, piece := range SplitPattern(pattern) {
		if _, err := regexp.Compile(piece); err != nil {
			return &PatternError{Pattern: piece, Err: err}
		}
	}
	return nil
}

type compiledRule struct {
	rule     repository.Rule
	kind     CriterionKind
	patterns []*regexp.Regexp
	from     time.Time
	to       time.Time
}

func (c compiledRule) applies(tx repository.Transaction) bool {
	switch c.kind {
	case CriterionText:
		for _, re := range c.patterns {
			if re.MatchString(tx.Description) {
				return true
			}
		}
		return false
	case CriterionDate:
		at := tx.Date.UTC()
		return !at.Before(c.from) && !at.After(c.to)
	default:
		return false
	}
}

// Matcher is a compiled rule set. It is safe for concurrent use.
type Matcher struct {
	rules []compiledRule
}

// Compile prepares rules for matching, preserving their order. It fails on the
// first rule, in input order, whose pattern does not compile.
func Compile(rules []repository.Rule) (*Matcher, error) {
	m := &Matcher{rules: make([]compiledRule, 0, len(rules))}
	for _, r := range rules {
		c := compiledRule{rule: r, kind: Criterion(r)}
		switch c.kind {
		case CriterionText:
			for _, piece := range splitPattern(r.Pattern) {
				re, err := regexp.Compile(piece)
				if err != nil {
					return nil, &PatternError{RuleID: r.ID, RuleName: r.Name, Pattern: piece, Err: err}
				}
				c.patterns = append(c.patterns, re)
			}
		case CriterionDate:
			c.from = startOfDay(*r.DateStart)
			c.to = startOfDay(*r.DateEnd).Add(24*time.Hour - time.Second)
		}
		m.rules = append(m.rules, c)
	}
	return m, nil
}

// Applicable returns the rules that apply to tx in compiled order.
func (m *Matcher) Applicable(tx repository.Transaction) []repository.Rule {
	var out []repository.Rule
	for _, c := range m.rules {
		if c.applies(tx) {
			out = append(out, c.rule)
		}
	}
	return out
}

// Len returns the number of compiled rules.
func (m *Matcher) Len() int { return len(m.rules) }

// ApplicableRules compiles rules and evaluates them against a single transaction.
func ApplicableRules(tx repository.Transaction, rules []repository.Rule) ([]repository.Rule, error) {
	m, err := Compile(rules)
	if err != nil {
		return nil, err
	}
	return m.Applicable(tx), nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
