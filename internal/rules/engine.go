package rules

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/spending-frustration/spending/internal/logger"
	"github.com/spending-frustration/spending/internal/model"
)

// RuleSource loads a user's persisted rules in storage order.
type RuleSource interface {
	UserRules(ctx context.Context, userID string) ([]model.RuleRecord, error)
}

// Engine applies one user's active rules in load order.
type Engine struct {
	userID string
	rules  []*Rule
	log    zerolog.Logger
}

// NewEngine loads and parses the active rules of userID. Inactive rules are
// skipped without parsing; a malformed active rule fails construction.
func NewEngine(ctx context.Context, src RuleSource, userID string) (*Engine, error) {
	records, err := src.UserRules(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading rules for %s: %w", userID, err)
	}

	e := &Engine{
		userID: userID,
		log:    logger.FromContext(ctx).With().Str("user", userID).Logger(),
	}
	for _, rec := range records {
		if !rec.Active {
			continue
		}
		r, err := ParseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("parsing rule %s: %w", rec.ID, err)
		}
		e.rules = append(e.rules, r)
	}
	e.log.Debug().Int("rules", len(e.rules)).Int("skipped", len(records)-len(e.rules)).Msg("rules loaded")
	return e, nil
}

// Rules returns the loaded rules in application order.
func (e *Engine) Rules() []*Rule { return e.rules }

// ApplyRules runs every rule over every transaction, mutating in place. Later
// rules see the changes of earlier ones. Returns the transactions matched by at
// least one rule, each once, in input order.
func (e *Engine) ApplyRules(txns []*model.Transaction) []*model.Transaction {
	var matched []*model.Transaction
	for _, t := range txns {
		hit := false
		for _, r := range e.rules {
			if r.Evaluate(t) {
				hit = true
			}
		}
		if hit {
			matched = append(matched, t)
		}
	}
	e.log.Debug().Int("transactions", len(txns)).Int("matched", len(matched)).Msg("rules applied")
	return matched
}
