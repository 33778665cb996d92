package rules

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/spending-frustration/spending/internal/model"
)

// Field names a transaction attribute a condition can test.
type Field string

const (
	FieldMerchant Field = "merchant"
	FieldAmount   Field = "amount"
	FieldNotes    Field = "notes"
	FieldCategory Field = "category"
	FieldTags     Field = "tags"
)

// Operator is a comparison between a field and a literal.
type Operator string

const (
	OpEqual        Operator = "=="
	OpContains     Operator = "contains"
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
)

var operators = map[Operator]bool{
	OpEqual: true, OpContains: true,
	OpGreater: true, OpGreaterEqual: true,
	OpLess: true, OpLessEqual: true,
}

type kind int

const (
	kindString kind = iota
	kindNumber
	kindList // tags; no operator applies to it
)

// fieldValue is the runtime value of a field. ok is false when the field is absent.
type fieldValue struct {
	kind kind
	str  string
	num  decimal.Decimal
	ok   bool
}

type accessor func(*model.Transaction) fieldValue

func stringValue(s string) fieldValue { return fieldValue{kind: kindString, str: s, ok: true} }

func optionalString(s string) fieldValue {
	if s == "" {
		return fieldValue{}
	}
	return stringValue(s)
}

var accessors = map[Field]accessor{
	FieldMerchant: func(t *model.Transaction) fieldValue { return stringValue(t.Merchant) },
	FieldAmount: func(t *model.Transaction) fieldValue {
		return fieldValue{kind: kindNumber, num: t.Amount, ok: true}
	},
	FieldNotes:    func(t *model.Transaction) fieldValue { return optionalString(t.Notes) },
	FieldCategory: func(t *model.Transaction) fieldValue { return optionalString(t.Category) },
	FieldTags: func(t *model.Transaction) fieldValue {
		if len(t.Tags) == 0 {
			return fieldValue{}
		}
		return fieldValue{kind: kindList, ok: true}
	},
}

// Fields returns the names accepted in conditions.
func Fields() []Field {
	return []Field{FieldMerchant, FieldAmount, FieldNotes, FieldCategory, FieldTags}
}

type literalKind int

const (
	literalString literalKind = iota
	literalInt
	literalFloat
)

// literal is a typed condition value. Numbers keep their exact decimal form.
type literal struct {
	kind literalKind
	str  string
	num  decimal.Decimal
}

func (l literal) numeric() bool { return l.kind != literalString }

// Condition is a single predicate over one transaction field.
type Condition struct {
	field Field
	op    Operator
	value literal
	get   accessor
}

// NewCondition builds a condition. value must be a string, an int or a float64.
func NewCondition(field Field, op Operator, value any) (*Condition, error) {
	var lit literal
	switch v := value.(type) {
	case string:
		lit = literal{kind: literalString, str: v}
	case int:
		lit = literal{kind: literalInt, num: decimal.NewFromInt(int64(v))}
	case int64:
		lit = literal{kind: literalInt, num: decimal.NewFromInt(v)}
	case float64:
		lit = literal{kind: literalFloat, num: decimal.NewFromFloat(v)}
	case decimal.Decimal:
		lit = literal{kind: literalFloat, num: v}
	default:
		return nil, validationErrorf("Unsupported value type %T", value)
	}
	return newCondition(field, op, lit)
}

func newCondition(field Field, op Operator, lit literal) (*Condition, error) {
	get, ok := accessors[field]
	if !ok {
		return nil, validationErrorf("Unknown field '%s'", field)
	}
	if !operators[op] {
		return nil, validationErrorf("Unsupported operator '%s'", op)
	}
	return &Condition{field: field, op: op, value: lit, get: get}, nil
}

func (c *Condition) Field() Field       { return c.field }
func (c *Condition) Operator() Operator { return c.op }

// Value returns the literal as int64, float64 or string.
func (c *Condition) Value() any {
	switch c.value.kind {
	case literalInt:
		return c.value.num.IntPart()
	case literalFloat:
		return c.value.num.InexactFloat64()
	default:
		return c.value.str
	}
}

// IsNumeric reports whether the literal is a number.
func (c *Condition) IsNumeric() bool { return c.value.numeric() }

// Evaluate tests the condition against t. Absent fields and type mismatches are false.
func (c *Condition) Evaluate(t *model.Transaction) bool {
	fv := c.get(t)
	if !fv.ok {
		return false
	}

	switch c.op {
	case OpEqual:
		switch fv.kind {
		case kindString:
			return !c.value.numeric() && fv.str == c.value.str
		case kindNumber:
			return c.value.numeric() && fv.num.Equal(c.value.num)
		}
		return false
	case OpContains:
		if c.value.numeric() {
			return false
		}
		return fv.kind == kindString && strings.Contains(fv.str, c.value.str)
	}

	if fv.kind != kindNumber || !c.value.numeric() {
		return false
	}
	cmp := fv.num.Cmp(c.value.num)
	switch c.op {
	case OpGreater:
		return cmp > 0
	case OpGreaterEqual:
		return cmp >= 0
	case OpLess:
		return cmp < 0
	case OpLessEqual:
		return cmp <= 0
	}
	return false
}
