package rules

import "github.com/jask/jaskledger/internal/database/repository"

// OutcomeKind classifies a transaction by how many rules apply to it.
type OutcomeKind int

const (
	NoMatch OutcomeKind = iota
	SingleMatch
	Conflict
)

func (k OutcomeKind) String() string {
	switch k {
	case SingleMatch:
		return "single"
	case Conflict:
		return "conflict"
	default:
		return "none"
	}
}

// Outcome is the classification of one transaction together with the rules behind it.
type Outcome struct {
	Kind  OutcomeKind
	Rules []repository.Rule
}

// Classify maps the applicable rules to an outcome. Conflicts keep the full ordered set.
func Classify(matched []repository.Rule) Outcome {
	switch len(matched) {
	case 0:
		return Outcome{Kind: NoMatch}
	case 1:
		return Outcome{Kind: SingleMatch, Rules: matched}
	default:
		return Outcome{Kind: Conflict, Rules: matched}
	}
}

// Rule returns the rule of a single match.
func (o Outcome) Rule() (repository.Rule, bool) {
	if o.Kind != SingleMatch {
		return repository.Rule{}, false
	}
	return o.Rules[0], true
}

// Has reports whether ruleID is among the outcome's rules.
func (o Outcome) Has(ruleID string) bool {
	for _, r := range o.Rules {
		if r.ID == ruleID {
			return true
		}
	}
	return false
}
