package rules

import "github.com/spending-frustration/spending/internal/model"

// Action sets a category and/or appends tags on a matched transaction.
type Action struct {
	category string
	tags     []string
}

// NewAction builds an action. Duplicate tags are dropped, first occurrence wins.
func NewAction(category string, tags ...string) (*Action, error) {
	a := &Action{category: category}
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if tag == "" {
			return nil, parseErrorf("Empty tag token '#'")
		}
		if seen[tag] {
			continue
		}
		seen[tag] = true
		a.tags = append(a.tags, tag)
	}
	if a.category == "" && len(a.tags) == 0 {
		return nil, parseErrorf("Empty action")
	}
	return a, nil
}

// Category returns the category to set, or "" when the action leaves it alone.
func (a *Action) Category() string { return a.category }

func (a *Action) Tags() []string { return a.tags }

// Apply mutates t in place. Applying the same action twice is a no-op the second time.
func (a *Action) Apply(t *model.Transaction) {
	if a.category != "" {
		t.Category = a.category
	}
	for _, tag := range a.tags {
		t.AddTag(tag)
	}
}
