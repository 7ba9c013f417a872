// Package queryparser compiles filter strings such as
// "(status==ACTIVE;age=gt=18),status==PENDING" into clause trees.
//
// Commas outside parentheses separate OR branches, semicolons separate AND
// parts, and a part wrapped in matching parentheses is parsed as a nested
// expression. A leaf is "field<op>value" where <op> is the operator symbol
// found at the smallest index of the leaf.
package queryparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/operator"
)

var (
	ErrInvalidCondition = errors.New("invalid condition")
	ErrMaxDepth         = errors.New("maximum nesting depth exceeded")
)

// ConditionError reports the leaf text that failed to parse.
type ConditionError struct {
	Condition string
	Err       error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %q: %v", e.Condition, e.Err)
}

func (e *ConditionError) Unwrap() error {
	return e.Err
}

type Option func(*Parser)

// WithFieldMap renames filter fields to physical columns. Mapped columns are
// trusted as written.
func WithFieldMap(fields map[string]string) Option {
	return func(p *Parser) { p.fields = fields }
}

// WithSchema pins the value type of the named filter fields.
func WithSchema(s operator.Schema) Option {
	return func(p *Parser) { p.schema = s }
}

// WithMaxDepth bounds parenthesis nesting. Zero means unbounded.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) { p.maxDepth = depth }
}

type Parser struct {
	fields   map[string]string
	schema   operator.Schema
	maxDepth int
}

func New(opts ...Option) *Parser {
	p := &Parser{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse is shorthand for New(opts...).Parse(filter).
func Parse(filter string, opts ...Option) (clause.Clause, error) {
	return New(opts...).Parse(filter)
}

// Parse returns nil for blank input.
func (p *Parser) Parse(filter string) (clause.Clause, error) {
	filter = strings.TrimSpace(filter)
	if filter == "" {
		return nil, nil
	}
	return p.expression(filter, 0)
}

func (p *Parser) expression(text string, depth int) (clause.Clause, error) {
	if p.maxDepth > 0 && depth > p.maxDepth {
		return nil, fmt.Errorf("%w: %d", ErrMaxDepth, p.maxDepth)
	}

	branches := splitTopLevel(text, ',')
	if len(branches) == 1 {
		return p.term(branches[0], depth)
	}

	children := make([]clause.Clause, 0, len(branches))
	for _, b := range branches {
		c, err := p.term(b, depth)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return clause.Or(children...), nil
}

func (p *Parser) term(text string, depth int) (clause.Clause, error) {
	parts := splitTopLevel(text, ';')
	if len(parts) == 1 {
		return p.factor(parts[0], depth)
	}

	children := make([]clause.Clause, 0, len(parts))
	for _, part := range parts {
		c, err := p.factor(part, depth)
		if err != nil {
			return nil, err
		}
		children = append(children, c)
	}
	return clause.And(children...), nil
}

func (p *Parser) factor(text string, depth int) (clause.Clause, error) {
	text = strings.TrimSpace(text)
	if enclosed(text) {
		return p.expression(text[1:len(text)-1], depth+1)
	}
	return p.condition(text)
}

func (p *Parser) condition(text string) (clause.Clause, error) {
	field, op, ok := splitCondition(text)
	if !ok {
		return nil, &ConditionError{Condition: text, Err: ErrInvalidCondition}
	}

	column, err := p.column(field)
	if err != nil {
		return nil, &ConditionError{Condition: text, Err: err}
	}
	if p.schema != nil {
		if op, err = p.schema.Apply(field, op); err != nil {
			return nil, &ConditionError{Condition: text, Err: err}
		}
	}

	cond, err := op.Query()
	if err != nil {
		return nil, &ConditionError{Condition: text, Err: err}
	}
	c, err := clause.NewConditionMap(column, cond)
	if err != nil {
		return nil, &ConditionError{Condition: text, Err: err}
	}
	return c, nil
}

func (p *Parser) column(field string) (string, error) {
	if col, ok := p.fields[field]; ok && col != "" {
		return col, nil
	}
	if field == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidCondition, clause.ErrFieldRequired)
	}
	if !clause.ValidIdentifier(field) {
		return "", fmt.Errorf("%w: %w: %q", ErrInvalidCondition, clause.ErrInvalidField, field)
	}
	return field, nil
}

// splitCondition finds the operator symbol with the smallest index in text.
// Ties go to the symbol listed first in operator.Tokens. A single "=" left at
// the end of the field is dropped when the symbol does not start with "=", so
// "age=gt=18" reads as field "age" with gt=.
func splitCondition(text string) (string, operator.Operator, bool) {
	idx := -1
	var kind operator.Kind
	for _, k := range operator.Tokens {
		i := strings.Index(text, k.Symbol())
		if i >= 0 && (idx < 0 || i < idx) {
			idx, kind = i, k
		}
	}
	if idx < 0 {
		return "", operator.Operator{}, false
	}

	sym := kind.Symbol()
	field := strings.TrimSpace(text[:idx])
	if strings.HasSuffix(field, "=") && !strings.HasPrefix(sym, "=") {
		field = strings.TrimSpace(field[:len(field)-1])
	}
	return field, operator.New(kind, text[idx+len(sym):]), true
}

// splitTopLevel splits on sep where the parenthesis depth is zero.
func splitTopLevel(text string, sep byte) []string {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
		case sep:
			if depth == 0 {
				parts = append(parts, strings.TrimSpace(text[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(text[start:]))
}

// enclosed reports whether the opening parenthesis at the start of text is
// closed by the one at its end.
func enclosed(text string) bool {
	if len(text) < 2 || text[0] != '(' || text[len(text)-1] != ')' {
		return false
	}
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i == len(text)-1
			}
		}
	}
	return false
}
