package convert

import "github.com/vantutran2k1/rsql/pkg/operator"

// Predicate is an ORM where-object such as {"age": {"gt": 18}}. Nested
// objects are Predicates too.
type Predicate map[string]any

// PredicateVisitor builds Prisma-style where objects. Absent values produce an
// empty Predicate.
type PredicateVisitor struct{}

var _ Visitor[Predicate] = PredicateVisitor{}

func wrap(field, key string, value any) Predicate {
	if value == nil {
		return Predicate{}
	}
	return Predicate{field: Predicate{key: value}}
}

func wrapList(field, key string, values []any) Predicate {
	if len(values) == 0 {
		return Predicate{}
	}
	return Predicate{field: Predicate{key: values}}
}

func (PredicateVisitor) Equals(field string, value any) (Predicate, error) {
	if value == nil {
		return Predicate{}, nil
	}
	return Predicate{field: value}, nil
}

func (PredicateVisitor) NotEquals(field string, value any) (Predicate, error) {
	return wrap(field, "not", value), nil
}

func (PredicateVisitor) Contains(field string, value string) (Predicate, error) {
	if value == "" {
		return Predicate{}, nil
	}
	return Predicate{field: Predicate{"contains": value, "mode": "insensitive"}}, nil
}

func (PredicateVisitor) NotContains(field string, value string) (Predicate, error) {
	if value == "" {
		return Predicate{}, nil
	}
	return Predicate{field: Predicate{"not": Predicate{"contains": value, "mode": "insensitive"}}}, nil
}

func (PredicateVisitor) In(field string, values []any) (Predicate, error) {
	return wrapList(field, "in", values), nil
}

func (PredicateVisitor) NotIn(field string, values []any) (Predicate, error) {
	return wrapList(field, "notIn", values), nil
}

func (PredicateVisitor) GreaterThan(field string, value any) (Predicate, error) {
	return wrap(field, "gt", value), nil
}

func (PredicateVisitor) GreaterOrEqual(field string, value any) (Predicate, error) {
	return wrap(field, "gte", value), nil
}

func (PredicateVisitor) LessThan(field string, value any) (Predicate, error) {
	return wrap(field, "lt", value), nil
}

func (PredicateVisitor) LessOrEqual(field string, value any) (Predicate, error) {
	return wrap(field, "lte", value), nil
}

func (v PredicateVisitor) Between(field string, value any) (Predicate, error) {
	if r, ok := value.(operator.Range); ok {
		return Predicate{field: Predicate{"gte": r.Gte, "lte": r.Lte}}, nil
	}
	return v.Equals(field, value)
}

func (PredicateVisitor) ArrayContains(field string, values []any) (Predicate, error) {
	return wrapList(field, "hasEvery", values), nil
}

// ArrayIsContainedBy has no Prisma equivalent and yields an empty Predicate.
func (PredicateVisitor) ArrayIsContainedBy(string, []any) (Predicate, error) {
	return Predicate{}, nil
}

func (PredicateVisitor) ArrayOverlap(field string, values []any) (Predicate, error) {
	return wrapList(field, "hasSome", values), nil
}

func (v PredicateVisitor) Unknown(field string, value any) (Predicate, error) {
	return v.Equals(field, value)
}
