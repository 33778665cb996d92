package rules

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spending-frustration/spending/internal/model"
)

const arrow = "->"

var (
	logicalKeyword = regexp.MustCompile(`(?i)\s+(AND|OR)\s+`)
	// Alternation is leftmost-first, so >= wins over > at the same offset.
	operatorToken = regexp.MustCompile(`==|contains|>=|<=|>|<`)
	actionSep     = regexp.MustCompile(`[\s,]+`)
)

// ParseRule compiles one line of rule text. The returned rule is active.
func ParseRule(text string) (*Rule, error) {
	filterPart, actionPart, ok := strings.Cut(text, arrow)
	if !ok {
		return nil, withText(parseErrorf("Rule must contain '->' separating filter and action"), text)
	}

	filter, err := ParseFilter(filterPart)
	if err != nil {
		return nil, withText(err, text)
	}
	action, err := ParseAction(actionPart)
	if err != nil {
		return nil, withText(err, text)
	}
	return &Rule{filter: filter, action: action, text: text, active: true}, nil
}

// ParseRecord parses a stored rule and carries over its active flag.
func ParseRecord(rec model.RuleRecord) (*Rule, error) {
	r, err := ParseRule(rec.Text)
	if err != nil {
		return nil, err
	}
	r.active = rec.Active
	return r, nil
}

// ParseFilter parses the part left of "->".
func ParseFilter(text string) (*Filter, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, parseErrorf("Empty filter")
	}

	logic := LogicAnd
	var clauses []string
	matches := logicalKeyword.FindAllStringSubmatchIndex(text, -1)
	start := 0
	for i, m := range matches {
		kw := Logic(strings.ToUpper(text[m[2]:m[3]]))
		if i == 0 {
			logic = kw
		} else if kw != logic {
			return nil, parseErrorf("Mixed logical operators not supported")
		}
		clauses = append(clauses, text[start:m[0]])
		start = m[1]
	}
	clauses = append(clauses, text[start:])

	conditions := make([]*Condition, 0, len(clauses))
	for _, clause := range clauses {
		c, err := ParseCondition(clause)
		if err != nil {
			return nil, err
		}
		conditions = append(conditions, c)
	}
	return NewFilter(logic, conditions...)
}

// ParseCondition parses "<field> <operator> <value>".
func ParseCondition(text string) (*Condition, error) {
	text = strings.TrimSpace(text)
	loc := operatorToken.FindStringIndex(text)
	if loc == nil {
		return nil, parseErrorf("No operator found in condition '%s'", text)
	}

	field := strings.TrimSpace(text[:loc[0]])
	op := Operator(text[loc[0]:loc[1]])
	raw := strings.TrimSpace(text[loc[1]:])
	if raw == "" {
		return nil, parseErrorf("Empty value in condition '%s'", text)
	}
	return newCondition(Field(field), op, parseValue(raw))
}

// parseValue types a literal: quoted text is a string, otherwise a number if it parses,
// otherwise a bare string.
func parseValue(raw string) literal {
	if len(raw) >= 2 {
		first, last := raw[0], raw[len(raw)-1]
		if (first == '"' || first == '\'') && first == last {
			return literal{kind: literalString, str: raw[1 : len(raw)-1]}
		}
	}

	if strings.Contains(raw, ".") {
		if d, err := decimal.NewFromString(raw); err == nil {
			return literal{kind: literalFloat, num: d}
		}
	} else if isInteger(raw) {
		if d, err := decimal.NewFromString(raw); err == nil {
			return literal{kind: literalInt, num: d}
		}
	}
	return literal{kind: literalString, str: raw}
}

func isInteger(s string) bool {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// ParseAction parses the part right of "->".
func ParseAction(text string) (*Action, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, parseErrorf("Empty action")
	}

	var category string
	var tags []string
	for _, tok := range actionSep.Split(text, -1) {
		switch {
		case tok == "":
			continue
		case strings.HasPrefix(tok, "@"):
			if category != "" {
				return nil, parseErrorf("Multiple categories specified")
			}
			category = tok[1:]
			if category == "" {
				return nil, parseErrorf("Empty category token '@'")
			}
		case strings.HasPrefix(tok, "#"):
			if tok == "#" {
				return nil, parseErrorf("Empty tag token '#'")
			}
			tags = append(tags, tok[1:])
		default:
			return nil, parseErrorf("Unexpected action token '%s' (expected @category or #tag)", tok)
		}
	}
	return NewAction(category, tags...)
}

// ParseLines parses a rule file. Blank lines and lines starting with '#' are skipped.
// The first malformed line aborts the batch.
func ParseLines(lines []string) ([]*Rule, error) {
	return parseLines(lines, false)
}

func parseLines(lines []string, markers bool) ([]*Rule, error) {
	var rules []*Rule
	for i, line := range lines {
		line = strings.TrimSpace(line)
		active := true
		if markers && strings.HasPrefix(line, DisabledMarker) {
			line = strings.TrimSpace(strings.TrimPrefix(line, DisabledMarker))
			active = false
		} else if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := ParseRule(line)
		if err != nil {
			var pe *ParseError
			if errors.As(err, &pe) {
				pe.Line = i + 1
			}
			return nil, err
		}
		r.active = active
		rules = append(rules, r)
	}
	return rules, nil
}

// ParseText splits text into lines and parses them with ParseLines.
func ParseText(text string) ([]*Rule, error) {
	return ParseLines(strings.Split(text, "\n"))
}

func withText(err error, text string) error {
	var pe *ParseError
	if errors.As(err, &pe) && pe.Text == "" {
		pe.Text = text
	}
	return err
}
