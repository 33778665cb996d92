package model

import "errors"

var (
	ErrRuleNotFound        = errors.New("rule not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrForbidden           = errors.New("not allowed")
)

// RuleRecord is a rule as persisted: the source text plus its active flag.
// Rules are re-parsed on every load; the structured form is never stored.
type RuleRecord struct {
	ID       string
	UserID   string
	Text     string
	Active   bool
	Position int // insertion order within the user's rule list
}
