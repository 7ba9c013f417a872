package clause

import (
	"fmt"
	"strings"

	"github.com/vantutran2k1/rsql/pkg/injection"
)

// Logical joins child clauses with AND or OR. Absent children are dropped.
type Logical struct {
	keyword  string
	children []Clause
}

func (*Logical) clauseNode() {}

// And wraps its output in parentheses only when two or more children render.
func And(children ...Clause) *Logical {
	return &Logical{keyword: "AND", children: children}
}

// Or always parenthesizes a non-empty result.
func Or(children ...Clause) *Logical {
	return &Logical{keyword: "OR", children: children}
}

func (l *Logical) Children() []Clause {
	return l.children
}

func (l *Logical) Build() (string, error) {
	parts := make([]string, 0, len(l.children))
	for _, c := range l.children {
		if c == nil {
			continue
		}
		s, err := c.Build()
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}

	switch {
	case len(parts) == 0:
		return "", nil
	case len(parts) == 1 && l.keyword == "AND":
		return parts[0], nil
	}
	return "(" + strings.Join(parts, " "+l.keyword+" ") + ")", nil
}

// Existence renders EXISTS or NOT EXISTS around a SELECT subquery.
type Existence struct {
	subquery string
	negate   bool
}

func (*Existence) clauseNode() {}

func newExistence(subquery string, negate bool) (*Existence, error) {
	sql := strings.TrimSpace(subquery)
	if sql == "" {
		return &Existence{negate: negate}, nil
	}
	if len(sql) < 6 || !strings.EqualFold(sql[:6], "SELECT") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSubquery, truncate(sql))
	}
	if err := injection.Validate(sql); err != nil {
		return nil, err
	}
	return &Existence{subquery: sql, negate: negate}, nil
}

// Exists validates the subquery up front; an empty subquery is absent.
func Exists(subquery string) (*Existence, error) {
	return newExistence(subquery, false)
}

func NotExists(subquery string) (*Existence, error) {
	return newExistence(subquery, true)
}

func (e *Existence) Build() (string, error) {
	if e.subquery == "" {
		return "", nil
	}
	if e.negate {
		return "NOT EXISTS (" + e.subquery + ")", nil
	}
	return "EXISTS (" + e.subquery + ")", nil
}

// Text is trusted SQL rendered verbatim.
type Text struct {
	sql string
}

func (Text) clauseNode() {}

func Raw(sql string) Text {
	return Text{sql: strings.TrimSpace(sql)}
}

func (t Text) Build() (string, error) {
	return t.sql, nil
}

type noop struct{}

func (noop) clauseNode() {}

func (noop) Build() (string, error) {
	return "", nil
}

// Noop is a clause that is always absent.
func Noop() Clause {
	return noop{}
}

func truncate(s string) string {
	if len(s) > 50 {
		return s[:50] + "..."
	}
	return s
}
