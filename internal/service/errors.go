package service

import "errors"

var (
	// ErrNotFound is returned for unknown accounts, transactions, rules or categories.
	ErrNotFound = errors.New("not found")
	// ErrNotAmbiguous rejects a resolution for a transaction that is no longer in conflict.
	ErrNotAmbiguous = errors.New("transaction is not ambiguous")
	// ErrRuleNotApplicable rejects a resolution naming a rule outside the conflict set.
	ErrRuleNotApplicable = errors.New("rule does not apply to transaction")
	// ErrInvalidRule is returned when a rule fails validation.
	ErrInvalidRule = errors.New("invalid rule")
	// ErrInvalidInput is returned when accounts, categories, transactions or settings fail validation.
	ErrInvalidInput = errors.New("invalid input")
)
