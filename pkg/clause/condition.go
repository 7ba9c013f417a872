package clause

import (
	"fmt"
	"strings"
)

// Op names one comparison inside a Condition.
type Op string

const (
	OpEquals             Op = "equals"
	OpNotEquals          Op = "notEquals"
	OpContains           Op = "contains"
	OpNotContains        Op = "notContains"
	OpIn                 Op = "in"
	OpNotIn              Op = "notIn"
	OpGreaterThan        Op = "gt"
	OpGreaterOrEqual     Op = "gte"
	OpLessThan           Op = "lt"
	OpLessOrEqual        Op = "lte"
	OpArrayContains      Op = "arrayContains"
	OpArrayIsContainedBy Op = "arrayIsContainedBy"
	OpArrayOverlap       Op = "arrayOverlap"
)

// Entry pairs an Op with its value. List operators carry a []any.
type Entry struct {
	Op    Op
	Value any
}

// Condition is an ordered set of comparisons against one field, combined with
// AND. Order is preserved so rendering is deterministic.
type Condition []Entry

// Get returns the value of the first entry with the given op.
func (c Condition) Get(op Op) (any, bool) {
	for _, e := range c {
		if e.Op == op {
			return e.Value, true
		}
	}
	return nil, false
}

// ConditionMap renders every entry of a Condition against one field.
type ConditionMap struct {
	field     string
	condition Condition
	transform TransformFunc
}

func (*ConditionMap) clauseNode() {}

func NewConditionMap(field string, condition Condition, opts ...Option) (*ConditionMap, error) {
	if err := requireField(field); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &ConditionMap{field: field, condition: condition, transform: o.transform}, nil
}

func (m *ConditionMap) Field() string {
	return m.field
}

func (m *ConditionMap) Condition() Condition {
	return m.condition
}

// Build renders each entry as "(fragment)" and joins them with AND. Entries
// whose value is absent are skipped; contains values are wrapped in %.
func (m *ConditionMap) Build() (string, error) {
	parts := make([]string, 0, len(m.condition))
	for _, e := range m.condition {
		frag, err := m.render(e)
		if err != nil {
			return "", fieldError(m.field, err)
		}
		if frag != "" {
			parts = append(parts, "("+frag+")")
		}
	}
	return strings.Join(parts, " AND "), nil
}

func (m *ConditionMap) render(e Entry) (string, error) {
	if list, ok := e.Value.([]any); ok {
		v, err := NewList(list, m.transform).SQL()
		if err != nil || v == "" {
			return "", err
		}
		switch e.Op {
		case OpIn:
			return m.field + " IN (" + v + ")", nil
		case OpNotIn:
			return "NOT " + m.field + " IN (" + v + ")", nil
		case OpArrayContains:
			return m.field + " " + ArrayContainsOp + " ARRAY[" + v + "]", nil
		case OpArrayIsContainedBy:
			return m.field + " " + ArrayContainedByOp + " ARRAY[" + v + "]", nil
		case OpArrayOverlap:
			return m.field + " " + ArrayOverlapOp + " ARRAY[" + v + "]", nil
		}
		return "", fmt.Errorf("%w: list value for %s", ErrUnsupportedValue, e.Op)
	}

	raw := e.Value
	if e.Op == OpContains || e.Op == OpNotContains {
		raw = wildcard(NewValue(raw, m.transform).resolved())
		if raw == nil {
			return "", nil
		}
	} else if m.transform != nil {
		raw = m.transform(raw)
	}

	v, err := Literal(raw)
	if err != nil || v == "" {
		return "", err
	}

	switch e.Op {
	case OpNotEquals:
		return m.field + " <> " + v, nil
	case OpContains:
		return m.field + " ILIKE " + v, nil
	case OpNotContains:
		return "NOT " + m.field + " ILIKE " + v, nil
	case OpIn:
		return m.field + " IN (" + v + ")", nil
	case OpNotIn:
		return "NOT " + m.field + " IN (" + v + ")", nil
	case OpGreaterThan:
		return m.field + " > " + v, nil
	case OpGreaterOrEqual:
		return m.field + " >= " + v, nil
	case OpLessThan:
		return m.field + " < " + v, nil
	case OpLessOrEqual:
		return m.field + " <= " + v, nil
	case OpArrayContains:
		return m.field + " " + ArrayContainsOp + " ARRAY[" + v + "]", nil
	case OpArrayIsContainedBy:
		return m.field + " " + ArrayContainedByOp + " ARRAY[" + v + "]", nil
	case OpArrayOverlap:
		return m.field + " " + ArrayOverlapOp + " ARRAY[" + v + "]", nil
	default:
		return m.field + " = " + v, nil
	}
}

func wildcard(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		if x == "" {
			return nil
		}
		return "%" + x + "%"
	case fmt.Stringer:
		return "%" + x.String() + "%"
	default:
		return fmt.Sprintf("%%%v%%", x)
	}
}
