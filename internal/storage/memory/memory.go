// Package memory is an in-process store for rules and transactions, used by
// tests and by the CLI when no database path is configured.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spending-frustration/spending/internal/model"
)

type txnEntry struct {
	seq int
	txn *model.Transaction
}

// Store keeps everything in maps guarded by one mutex.
type Store struct {
	mu      sync.RWMutex
	rules   []model.RuleRecord
	txns    map[string]txnEntry
	nextSeq int
}

// New returns an empty store.
func New() *Store {
	return &Store{txns: make(map[string]txnEntry)}
}

// AddRule appends a rule to the user's list.
func (s *Store) AddRule(_ context.Context, userID, text string, active bool) (model.RuleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addRuleLocked(userID, text, active), nil
}

// AddRules appends several rules at once. Only Text and Active of each
// draft are used.
func (s *Store) AddRules(_ context.Context, userID string, drafts []model.RuleRecord) ([]model.RuleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs := make([]model.RuleRecord, 0, len(drafts))
	for _, d := range drafts {
		recs = append(recs, s.addRuleLocked(userID, d.Text, d.Active))
	}
	return recs, nil
}

func (s *Store) addRuleLocked(userID, text string, active bool) model.RuleRecord {
	s.nextSeq++
	rec := model.RuleRecord{
		ID:       uuid.NewString(),
		UserID:   userID,
		Text:     text,
		Active:   active,
		Position: s.nextSeq,
	}
	s.rules = append(s.rules, rec)
	return rec
}

// UserRules returns the user's rules in insertion order.
func (s *Store) UserRules(_ context.Context, userID string) ([]model.RuleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.RuleRecord
	for _, r := range s.rules {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Rule returns one rule owned by userID.
func (s *Store) Rule(_ context.Context, userID, id string) (model.RuleRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, err := s.findRuleLocked(userID, id)
	if err != nil {
		return model.RuleRecord{}, err
	}
	return s.rules[i], nil
}

// UpdateRule replaces the text and active flag of an existing rule.
func (s *Store) UpdateRule(_ context.Context, rec model.RuleRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.findRuleLocked(rec.UserID, rec.ID)
	if err != nil {
		return err
	}
	s.rules[i].Text = rec.Text
	s.rules[i].Active = rec.Active
	return nil
}

// DeleteRule removes a rule owned by userID.
func (s *Store) DeleteRule(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, err := s.findRuleLocked(userID, id)
	if err != nil {
		return err
	}
	s.rules = slices.Delete(s.rules, i, i+1)
	return nil
}

func (s *Store) findRuleLocked(userID, id string) (int, error) {
	for i, r := range s.rules {
		if r.ID != id {
			continue
		}
		if r.UserID != userID {
			return -1, fmt.Errorf("rule %s: %w", id, model.ErrForbidden)
		}
		return i, nil
	}
	return -1, fmt.Errorf("rule %s: %w", id, model.ErrRuleNotFound)
}

// Save inserts t when it has no ID, assigning one, or replaces the stored copy.
func (s *Store) Save(_ context.Context, t *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(t)
}

// SaveMany saves every transaction. Nothing is written if one fails.
func (s *Store) SaveMany(_ context.Context, txns []*model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range txns {
		if t.ID == "" {
			continue
		}
		if err := s.checkOwnerLocked(t); err != nil {
			return err
		}
	}
	for _, t := range txns {
		if err := s.saveLocked(t); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveLocked(t *model.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
		s.nextSeq++
		s.txns[t.ID] = txnEntry{seq: s.nextSeq, txn: t.Clone()}
		return nil
	}
	if err := s.checkOwnerLocked(t); err != nil {
		return err
	}
	e := s.txns[t.ID]
	e.txn = t.Clone()
	s.txns[t.ID] = e
	return nil
}

func (s *Store) checkOwnerLocked(t *model.Transaction) error {
	e, ok := s.txns[t.ID]
	if !ok {
		return fmt.Errorf("transaction %s: %w", t.ID, model.ErrTransactionNotFound)
	}
	if e.txn.UserID != t.UserID {
		return fmt.Errorf("transaction %s: %w", t.ID, model.ErrForbidden)
	}
	return nil
}

// Transactions returns copies of the user's transactions by date, then insertion.
func (s *Store) Transactions(_ context.Context, userID string) ([]*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var entries []txnEntry
	for _, e := range s.txns {
		if e.txn.UserID == userID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.txn.Date.Equal(b.txn.Date) {
			return a.txn.Date.Before(b.txn.Date)
		}
		return a.seq < b.seq
	})
	out := make([]*model.Transaction, len(entries))
	for i, e := range entries {
		out[i] = e.txn.Clone()
	}
	return out, nil
}

// Transaction returns one transaction owned by userID.
func (s *Store) Transaction(_ context.Context, userID, id string) (*model.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.txns[id]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", id, model.ErrTransactionNotFound)
	}
	if e.txn.UserID != userID {
		return nil, fmt.Errorf("transaction %s: %w", id, model.ErrForbidden)
	}
	return e.txn.Clone(), nil
}

// Categories returns the distinct non-empty categories of the user, sorted.
func (s *Store) Categories(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, e := range s.txns {
		if e.txn.UserID == userID && e.txn.Category != "" {
			seen[e.txn.Category] = true
		}
	}
	return sortedKeys(seen), nil
}

// Tags returns the distinct tags of the user, sorted.
func (s *Store) Tags(_ context.Context, userID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for _, e := range s.txns {
		if e.txn.UserID != userID {
			continue
		}
		for _, tag := range e.txn.Tags {
			seen[tag] = true
		}
	}
	return sortedKeys(seen), nil
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
