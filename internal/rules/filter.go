package rules

import (
	"fmt"

	"github.com/spending-frustration/spending/internal/model"
)

// Logic joins the conditions of a filter.
type Logic string

const (
	LogicAnd Logic = "AND"
	LogicOr  Logic = "OR"
)

// Filter is a non-empty list of conditions sharing one logical operator.
type Filter struct {
	logic      Logic
	conditions []*Condition
}

// NewFilter builds a filter. It needs at least one condition and a known logic.
func NewFilter(logic Logic, conditions ...*Condition) (*Filter, error) {
	if len(conditions) == 0 {
		return nil, parseErrorf("Empty filter")
	}
	if logic != LogicAnd && logic != LogicOr {
		return nil, validationErrorf("Unsupported logical operator '%s'", logic)
	}
	return &Filter{logic: logic, conditions: conditions}, nil
}

func (f *Filter) Logic() Logic              { return f.logic }
func (f *Filter) Conditions() []*Condition { return f.conditions }

// Matches evaluates the conditions against t.
func (f *Filter) Matches(t *model.Transaction) bool {
	switch f.logic {
	case LogicAnd:
		for _, c := range f.conditions {
			if !c.Evaluate(t) {
				return false
			}
		}
		return true
	case LogicOr:
		for _, c := range f.conditions {
			if c.Evaluate(t) {
				return true
			}
		}
		return false
	default:
		panic(fmt.Sprintf("rules: filter with invalid logical operator %q", f.logic))
	}
}
