package queryparser

import (
	"net/url"
	"sort"
	"strings"

	"github.com/vantutran2k1/rsql/pkg/operator"
)

// Params maps fields to raw operator strings such as "==John" or "gt=18". A
// field may repeat. Fields keep the order in which they first appeared.
type Params struct {
	order  []string
	values map[string][]string
}

func (p *Params) Add(field, raw string) {
	if p.values == nil {
		p.values = make(map[string][]string)
	}
	if _, ok := p.values[field]; !ok {
		p.order = append(p.order, field)
	}
	p.values[field] = append(p.values[field], raw)
}

func (p Params) Fields() []string {
	return p.order
}

func (p Params) Get(field string) []string {
	return p.values[field]
}

func (p Params) Len() int {
	return len(p.order)
}

// ParamsFromValues takes query parameters such as ?age=gt=18&name=John. Keys
// are visited in sorted order.
func ParamsFromValues(values url.Values) Params {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var p Params
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			continue
		}
		for _, v := range values[k] {
			if v == "" {
				continue
			}
			p.Add(k, v)
		}
	}
	return p
}

// ParseFlat reads a filter without grouping into Params. It splits on every
// ";" and on "," only when the text after the comma starts a new condition,
// so "tags@>a,b;name==x" keeps "a,b" together. Parts without an operator are
// skipped.
func ParseFlat(filter string) Params {
	var p Params
	if strings.TrimSpace(filter) == "" {
		return p
	}

	for _, andPart := range strings.Split(filter, ";") {
		for _, part := range splitOr(andPart) {
			field, op, ok := splitCondition(part)
			if !ok || field == "" || strings.TrimSpace(op.Raw()) == "" {
				continue
			}
			p.Add(field, op.String())
		}
	}
	return p
}

func splitOr(part string) []string {
	var out []string
	current := ""
	for i, chunk := range strings.Split(part, ",") {
		if i == 0 {
			current = chunk
			continue
		}
		if hasOperator(chunk) {
			out = append(out, current)
			current = chunk
			continue
		}
		current += "," + chunk
	}
	return append(out, current)
}

func hasOperator(text string) bool {
	for _, k := range operator.Tokens {
		if strings.Contains(text, k.Symbol()) {
			return true
		}
	}
	return false
}

// ParseParams turns Params into operators grouped by field, applying the
// parser's field map and schema. Raw values without a symbol become Unknown
// operators, which compare for equality.
func (p *Parser) ParseParams(params Params) ([]operator.Field, error) {
	out := make([]operator.Field, 0, params.Len())
	for _, field := range params.Fields() {
		column, err := p.column(field)
		if err != nil {
			return nil, &ConditionError{Condition: field, Err: err}
		}

		ops := make([]operator.Operator, 0, len(params.Get(field)))
		for _, raw := range params.Get(field) {
			op := operator.Parse(raw)
			if p.schema != nil {
				if op, err = p.schema.Apply(field, op); err != nil {
					return nil, &ConditionError{Condition: field + raw, Err: err}
				}
			}
			ops = append(ops, op)
		}
		out = append(out, operator.Field{Name: column, Operators: ops})
	}
	return out, nil
}

// ParseParams is shorthand for New(opts...).ParseParams(params).
func ParseParams(params Params, opts ...Option) ([]operator.Field, error) {
	return New(opts...).ParseParams(params)
}
