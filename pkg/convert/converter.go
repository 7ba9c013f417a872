package convert

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/operator"
)

// Converter holds operators grouped by field. Fields keep the order in which
// they were first added.
type Converter struct {
	fields []operator.Field
	index  map[string]int
}

func NewConverter(fields ...operator.Field) *Converter {
	c := &Converter{index: make(map[string]int, len(fields))}
	for _, f := range fields {
		c.Add(f.Name, f.Operators...)
	}
	return c
}

// Add appends ops to field.
func (c *Converter) Add(field string, ops ...operator.Operator) {
	if i, ok := c.index[field]; ok {
		c.fields[i].Operators = append(c.fields[i].Operators, ops...)
		return
	}
	c.index[field] = len(c.fields)
	c.fields = append(c.fields, operator.Field{Name: field, Operators: append([]operator.Operator(nil), ops...)})
}

func (c *Converter) Fields() []operator.Field {
	return c.fields
}

// Converted is the output of one field, one entry per operator.
type Converted[T any] struct {
	Field  string
	Values []T
}

// Convert runs every operator through v in field order.
func Convert[T any](c *Converter, v Visitor[T]) ([]Converted[T], error) {
	out := make([]Converted[T], 0, len(c.fields))
	for _, f := range c.fields {
		values := make([]T, 0, len(f.Operators))
		for _, op := range f.Operators {
			r, err := Accept(op, v, f.Name)
			if err != nil {
				return nil, err
			}
			values = append(values, r)
		}
		out = append(out, Converted[T]{Field: f.Name, Values: values})
	}
	return out, nil
}

// Clauses returns every operator as a clause, in field order.
func (c *Converter) Clauses(opts ...clause.Option) ([]clause.Clause, error) {
	converted, err := Convert[clause.Clause](c, ClauseVisitor{Options: opts})
	if err != nil {
		return nil, err
	}
	var out []clause.Clause
	for _, f := range converted {
		out = append(out, f.Values...)
	}
	return out, nil
}

// Clause ANDs every operator clause together.
func (c *Converter) Clause(opts ...clause.Option) (clause.Clause, error) {
	clauses, err := c.Clauses(opts...)
	if err != nil {
		return nil, err
	}
	return clause.And(clauses...), nil
}

// Predicate merges the ORM fragments of every field. See merge for how
// several operators on one field combine.
func (c *Converter) Predicate() (Predicate, error) {
	converted, err := Convert[Predicate](c, PredicateVisitor{})
	if err != nil {
		return nil, err
	}
	out := Predicate{}
	for _, f := range converted {
		if v, ok := merge(f.Field, f.Values); ok {
			out[f.Field] = v
		}
	}
	return out, nil
}

// Document merges the MongoDB filter of every field the same way Predicate
// does.
func (c *Converter) Document() (bson.M, error) {
	converted, err := Convert[bson.M](c, DocumentVisitor{})
	if err != nil {
		return nil, err
	}
	out := bson.M{}
	for _, f := range converted {
		if v, ok := merge(f.Field, f.Values); ok {
			out[f.Field] = v
		}
	}
	return out, nil
}

// merge combines the fragments produced for one field. Empty fragments are
// ignored. When every remaining fragment holds an object for the field, the
// objects are unioned with later keys winning; otherwise the last fragment
// wins.
func merge[M ~map[string]any](field string, frags []M) (any, bool) {
	values := make([]any, 0, len(frags))
	for _, f := range frags {
		if v, ok := f[field]; ok {
			values = append(values, v)
		}
	}
	switch len(values) {
	case 0:
		return nil, false
	case 1:
		return values[0], true
	}

	union := M{}
	for _, v := range values {
		obj, ok := v.(M)
		if !ok {
			return values[len(values)-1], true
		}
		for k, x := range obj {
			union[k] = x
		}
	}
	return union, true
}
