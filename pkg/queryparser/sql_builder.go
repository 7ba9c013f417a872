package queryparser

import (
	"fmt"

	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/operator"
)

// BuildSQL parses filter and renders the WHERE fragment. Blank or absent
// filters return "".
func BuildSQL(filter string, opts ...Option) (string, error) {
	c, err := Parse(filter, opts...)
	if err != nil || c == nil {
		return "", err
	}
	return c.Build()
}

// ApplyTo parses filter and appends it to b as a single WHERE clause. b is
// unchanged when the filter fails to parse or render.
func ApplyTo(b *clause.Builder, filter string, opts ...Option) error {
	c, err := Parse(filter, opts...)
	if err != nil {
		return err
	}
	if c == nil {
		return nil
	}
	return b.WhereClause(c)
}

// ApplyFields appends one ConditionMap per field. Every operator of a field
// is ANDed together. The builder's own column map applies on top of names
// already resolved by the parser.
func ApplyFields(b *clause.Builder, fields []operator.Field) error {
	next := b.Clone()
	for _, f := range fields {
		cond, err := f.Condition()
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
		if len(cond) == 0 {
			continue
		}
		if err := next.WhereCondition(f.Name, cond, nil); err != nil {
			return err
		}
	}
	*b = *next
	return nil
}
