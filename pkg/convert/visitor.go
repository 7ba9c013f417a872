// Package convert turns parsed operators into target representations: SQL
// clause trees, ORM predicates and MongoDB filter documents.
package convert

import (
	"fmt"

	"github.com/vantutran2k1/rsql/pkg/operator"
)

// Visitor renders one operator kind into T. Values arrive already parsed: nil
// means absent, list kinds receive a slice and between receives either an
// operator.Range or a single scalar.
type Visitor[T any] interface {
	Equals(field string, value any) (T, error)
	NotEquals(field string, value any) (T, error)
	Contains(field string, value string) (T, error)
	NotContains(field string, value string) (T, error)
	In(field string, values []any) (T, error)
	NotIn(field string, values []any) (T, error)
	GreaterThan(field string, value any) (T, error)
	GreaterOrEqual(field string, value any) (T, error)
	LessThan(field string, value any) (T, error)
	LessOrEqual(field string, value any) (T, error)
	Between(field string, value any) (T, error)
	ArrayContains(field string, values []any) (T, error)
	ArrayIsContainedBy(field string, values []any) (T, error)
	ArrayOverlap(field string, values []any) (T, error)
	Unknown(field string, value any) (T, error)
}

// Accept parses op's value and dispatches it to the matching visitor method.
func Accept[T any](op operator.Operator, v Visitor[T], field string) (T, error) {
	var zero T

	value, err := op.Value()
	if err != nil {
		return zero, fmt.Errorf("field %s: %w", field, err)
	}

	switch op.Kind() {
	case operator.Equals:
		return v.Equals(field, value)
	case operator.NotEquals:
		return v.NotEquals(field, value)
	case operator.Contains:
		return v.Contains(field, text(value))
	case operator.NotContains:
		return v.NotContains(field, text(value))
	case operator.In:
		return v.In(field, list(value))
	case operator.NotIn:
		return v.NotIn(field, list(value))
	case operator.GreaterThan:
		return v.GreaterThan(field, value)
	case operator.GreaterOrEqual:
		return v.GreaterOrEqual(field, value)
	case operator.LessThan:
		return v.LessThan(field, value)
	case operator.LessOrEqual:
		return v.LessOrEqual(field, value)
	case operator.Between:
		return v.Between(field, value)
	case operator.ArrayContains:
		return v.ArrayContains(field, list(value))
	case operator.ArrayIsContainedBy:
		return v.ArrayIsContainedBy(field, list(value))
	case operator.ArrayOverlap:
		return v.ArrayOverlap(field, list(value))
	case operator.Unknown:
		return v.Unknown(field, value)
	default:
		return zero, fmt.Errorf("field %s: unsupported operator %s", field, op.Kind())
	}
}

func text(v any) string {
	s, _ := v.(string)
	return s
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}
