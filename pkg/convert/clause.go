package convert

import (
	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/operator"
)

// ClauseVisitor builds SQL clause nodes.
type ClauseVisitor struct {
	Options []clause.Option
}

var _ Visitor[clause.Clause] = ClauseVisitor{}

func (c ClauseVisitor) Equals(field string, value any) (clause.Clause, error) {
	return clause.Equals(field, value, c.Options...)
}

func (c ClauseVisitor) NotEquals(field string, value any) (clause.Clause, error) {
	return clause.NotEquals(field, value, c.Options...)
}

func (c ClauseVisitor) Contains(field string, value string) (clause.Clause, error) {
	if value == "" {
		return clause.Noop(), nil
	}
	return clause.ILike(field, "%"+value+"%", c.Options...)
}

func (c ClauseVisitor) NotContains(field string, value string) (clause.Clause, error) {
	if value == "" {
		return clause.Noop(), nil
	}
	return clause.NotILike(field, "%"+value+"%", c.Options...)
}

func (c ClauseVisitor) In(field string, values []any) (clause.Clause, error) {
	return clause.In(field, values, c.Options...)
}

func (c ClauseVisitor) NotIn(field string, values []any) (clause.Clause, error) {
	return clause.NotIn(field, values, c.Options...)
}

func (c ClauseVisitor) GreaterThan(field string, value any) (clause.Clause, error) {
	return clause.GreaterThan(field, value, c.Options...)
}

func (c ClauseVisitor) GreaterOrEqual(field string, value any) (clause.Clause, error) {
	return clause.GreaterOrEqual(field, value, c.Options...)
}

func (c ClauseVisitor) LessThan(field string, value any) (clause.Clause, error) {
	return clause.LessThan(field, value, c.Options...)
}

func (c ClauseVisitor) LessOrEqual(field string, value any) (clause.Clause, error) {
	return clause.LessOrEqual(field, value, c.Options...)
}

// Between falls back to equality when the value is not a two-part range.
func (c ClauseVisitor) Between(field string, value any) (clause.Clause, error) {
	if r, ok := value.(operator.Range); ok {
		return clause.Between(field, r.Gte, r.Lte, c.Options...)
	}
	return clause.Equals(field, value, c.Options...)
}

func (c ClauseVisitor) ArrayContains(field string, values []any) (clause.Clause, error) {
	return clause.ArrayContains(field, values, c.Options...)
}

func (c ClauseVisitor) ArrayIsContainedBy(field string, values []any) (clause.Clause, error) {
	return clause.ArrayIsContainedBy(field, values, c.Options...)
}

func (c ClauseVisitor) ArrayOverlap(field string, values []any) (clause.Clause, error) {
	return clause.ArrayOverlap(field, values, c.Options...)
}

func (c ClauseVisitor) Unknown(field string, value any) (clause.Clause, error) {
	if value == nil {
		return clause.Noop(), nil
	}
	return clause.Equals(field, value, c.Options...)
}
