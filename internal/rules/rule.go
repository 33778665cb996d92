package rules

import "github.com/spending-frustration/spending/internal/model"

// Rule pairs a filter with an action and keeps the text it was parsed from.
type Rule struct {
	filter *Filter
	action *Action
	text   string
	active bool
}

func (r *Rule) Filter() *Filter { return r.filter }
func (r *Rule) Action() *Action { return r.action }
func (r *Rule) Active() bool    { return r.active }

// String returns the exact source text.
func (r *Rule) String() string { return r.text }

// Evaluate applies the action when the filter matches and reports whether it did.
func (r *Rule) Evaluate(t *model.Transaction) bool {
	if !r.filter.Matches(t) {
		return false
	}
	r.action.Apply(t)
	return true
}
