// Package operator models a single filter comparison such as "=gt=18": its
// kind, the raw text after the symbol, and how that text becomes typed values.
package operator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/coerce"
)

var (
	ErrMixedTypes         = errors.New("array elements must share one type")
	ErrEmptyList          = errors.New("array operator requires at least one value")
	ErrOperatorNotAllowed = errors.New("operator not allowed for field type")
)

type Kind int

const (
	Unknown Kind = iota
	Equals
	NotEquals
	Contains
	NotContains
	In
	NotIn
	GreaterThan
	GreaterOrEqual
	LessThan
	LessOrEqual
	Between
	ArrayContains
	ArrayIsContainedBy
	ArrayOverlap
)

var symbols = map[Kind]string{
	Equals:             "==",
	NotEquals:          "!=",
	Contains:           "~=",
	NotContains:        "!~=",
	In:                 "in=",
	NotIn:              "out=",
	Between:            "btw=",
	GreaterThan:        "gt=",
	GreaterOrEqual:     "gte=",
	LessThan:           "lt=",
	LessOrEqual:        "lte=",
	ArrayIsContainedBy: "<@",
	ArrayContains:      "@>",
	ArrayOverlap:       "&&",
}

var names = map[Kind]string{
	Unknown:            "unknown",
	Equals:             "equals",
	NotEquals:          "notEquals",
	Contains:           "contains",
	NotContains:        "notContains",
	In:                 "in",
	NotIn:              "notIn",
	GreaterThan:        "gt",
	GreaterOrEqual:     "gte",
	LessThan:           "lt",
	LessOrEqual:        "lte",
	Between:            "between",
	ArrayContains:      "arrayContains",
	ArrayIsContainedBy: "arrayIsContainedBy",
	ArrayOverlap:       "arrayOverlap",
}

// Tokens lists every kind with a symbol in scan order. When two symbols are
// found at the same position the earlier entry wins.
var Tokens = []Kind{
	Equals, NotEquals, Contains, NotContains, In, NotIn, Between,
	GreaterThan, GreaterOrEqual, LessThan, LessOrEqual,
	ArrayIsContainedBy, ArrayContains, ArrayOverlap,
}

func (k Kind) Symbol() string {
	return symbols[k]
}

func (k Kind) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

func (k Kind) IsList() bool {
	switch k {
	case In, NotIn, ArrayContains, ArrayIsContainedBy, ArrayOverlap:
		return true
	}
	return false
}

func (k Kind) IsArray() bool {
	return k == ArrayContains || k == ArrayIsContainedBy || k == ArrayOverlap
}

// Operator is immutable once built.
type Operator struct {
	kind  Kind
	raw   string
	typed bool
	as    coerce.Kind
}

func New(kind Kind, raw string) Operator {
	return Operator{kind: kind, raw: raw}
}

// Parse reads text that begins with an operator symbol, such as "=gt=18" with
// the field already removed. Text with no leading symbol is Unknown and keeps
// all of it as the raw value.
func Parse(text string) Operator {
	for _, k := range Tokens {
		sym := k.Symbol()
		if strings.HasPrefix(text, sym) {
			return Operator{kind: k, raw: text[len(sym):]}
		}
	}
	return Operator{kind: Unknown, raw: text}
}

func (o Operator) Kind() Kind {
	return o.kind
}

func (o Operator) Raw() string {
	return o.raw
}

func (o Operator) String() string {
	return o.kind.Symbol() + o.raw
}

// WithType pins value parsing to kind instead of inference. It fails when the
// operator makes no sense for that type, such as gt= on a boolean.
func (o Operator) WithType(kind coerce.Kind) (Operator, error) {
	if !Allowed(kind, o.kind) {
		return Operator{}, fmt.Errorf("%w: %s on %s", ErrOperatorNotAllowed, o.kind, kind)
	}
	o.typed = true
	o.as = kind
	return o, nil
}

// Range holds the two bounds of a between operator.
type Range struct {
	Gte any
	Lte any
}

// Value parses the raw text. The result is nil when absent, a []any for list
// kinds, a Range for a two-part between, and a scalar otherwise.
func (o Operator) Value() (any, error) {
	switch o.kind {
	case Contains, NotContains:
		s := strings.TrimSpace(o.raw)
		if s == "" {
			return nil, nil
		}
		return s, nil
	case In, NotIn:
		parts := coerce.Split(stripParens(o.raw))
		if len(parts) == 0 {
			return nil, nil
		}
		return o.list(parts)
	case Between:
		parts := coerce.Split(stripParens(o.raw))
		switch len(parts) {
		case 0:
			return nil, nil
		case 2:
			lo, err := o.scalar(parts[0])
			if err != nil {
				return nil, err
			}
			hi, err := o.scalar(parts[1])
			if err != nil {
				return nil, err
			}
			return Range{Gte: lo, Lte: hi}, nil
		default:
			return o.scalar(parts[0])
		}
	case ArrayContains, ArrayIsContainedBy, ArrayOverlap:
		return o.array()
	default:
		s := strings.TrimSpace(o.raw)
		if s == "" {
			return nil, nil
		}
		return o.scalar(s)
	}
}

func (o Operator) scalar(s string) (any, error) {
	if o.typed {
		return coerce.As(o.as, s)
	}
	return coerce.Infer(s), nil
}

func (o Operator) list(parts []string) ([]any, error) {
	out := make([]any, 0, len(parts))
	for _, p := range parts {
		v, err := o.scalar(p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (o Operator) array() ([]any, error) {
	parts := coerce.Split(stripParens(o.raw))
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyList, o)
	}
	if o.typed {
		return o.list(parts)
	}

	out := make([]any, 0, len(parts))
	var first coerce.Kind
	for i, p := range parts {
		v := coerce.InferElement(p)
		k := coerce.KindOf(v)
		if i == 0 {
			first = k
		} else if k != first {
			return nil, fmt.Errorf("%w: %q is %s, expected %s", ErrMixedTypes, p, k, first)
		}
		out = append(out, v)
	}
	return out, nil
}

// Query returns the normalized condition fragment for the operator, or nil
// when its value is absent.
func (o Operator) Query() (clause.Condition, error) {
	v, err := o.Value()
	if err != nil || v == nil {
		return nil, err
	}

	switch o.kind {
	case NotEquals:
		return clause.Condition{{Op: clause.OpNotEquals, Value: v}}, nil
	case Contains:
		return clause.Condition{{Op: clause.OpContains, Value: v}}, nil
	case NotContains:
		return clause.Condition{{Op: clause.OpNotContains, Value: v}}, nil
	case In:
		return clause.Condition{{Op: clause.OpIn, Value: v}}, nil
	case NotIn:
		return clause.Condition{{Op: clause.OpNotIn, Value: v}}, nil
	case GreaterThan:
		return clause.Condition{{Op: clause.OpGreaterThan, Value: v}}, nil
	case GreaterOrEqual:
		return clause.Condition{{Op: clause.OpGreaterOrEqual, Value: v}}, nil
	case LessThan:
		return clause.Condition{{Op: clause.OpLessThan, Value: v}}, nil
	case LessOrEqual:
		return clause.Condition{{Op: clause.OpLessOrEqual, Value: v}}, nil
	case Between:
		if r, ok := v.(Range); ok {
			return clause.Condition{
				{Op: clause.OpGreaterOrEqual, Value: r.Gte},
				{Op: clause.OpLessOrEqual, Value: r.Lte},
			}, nil
		}
		return clause.Condition{{Op: clause.OpEquals, Value: v}}, nil
	case ArrayContains:
		return clause.Condition{{Op: clause.OpArrayContains, Value: v}}, nil
	case ArrayIsContainedBy:
		return clause.Condition{{Op: clause.OpArrayIsContainedBy, Value: v}}, nil
	case ArrayOverlap:
		return clause.Condition{{Op: clause.OpArrayOverlap, Value: v}}, nil
	default:
		return clause.Condition{{Op: clause.OpEquals, Value: v}}, nil
	}
}

// stripParens removes one enclosing pair so that lists can be written as
// "in=(a,b)".
func stripParens(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		return s[1 : len(s)-1]
	}
	return s
}
