package clause

import (
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

type Limits struct {
	MaxWhere   int `mapstructure:"max_where"`
	MaxOrderBy int `mapstructure:"max_order_by"`
	MaxGroupBy int `mapstructure:"max_group_by"`
	MaxLimit   int `mapstructure:"max_limit"`
}

func DefaultLimits() Limits {
	return Limits{
		MaxWhere:   50,
		MaxOrderBy: 10,
		MaxGroupBy: 10,
		MaxLimit:   1000,
	}
}

// withDefaults fills zero ceilings from DefaultLimits.
func (l Limits) withDefaults() Limits {
	d := DefaultLimits()
	if l.MaxWhere <= 0 {
		l.MaxWhere = d.MaxWhere
	}
	if l.MaxOrderBy <= 0 {
		l.MaxOrderBy = d.MaxOrderBy
	}
	if l.MaxGroupBy <= 0 {
		l.MaxGroupBy = d.MaxGroupBy
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = d.MaxLimit
	}
	return l
}

type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ASC":
		return Asc, nil
	case "DESC":
		return Desc, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Builder accumulates the pieces of a SELECT statement. Every mutating method
// either applies fully or returns an error and leaves the builder unchanged.
type Builder struct {
	base    string
	where   []string
	order   []string
	group   []string
	limit   int
	offset  int
	columns map[string]string
	limits  Limits

	hasLimit  bool
	hasOffset bool
}

type BuilderOption func(*Builder)

func WithLimits(l Limits) BuilderOption {
	return func(b *Builder) { b.limits = l.withDefaults() }
}

// WithColumns maps logical field names to physical columns. Mapped columns are
// trusted and skip identifier validation.
func WithColumns(columns map[string]string) BuilderOption {
	return func(b *Builder) {
		b.columns = make(map[string]string, len(columns))
		for k, v := range columns {
			b.columns[k] = v
		}
	}
}

func NewBuilder(base string, opts ...BuilderOption) *Builder {
	b := &Builder{
		base:   strings.TrimSpace(base),
		limits: DefaultLimits(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builder) column(field string) (string, error) {
	if col, ok := b.columns[field]; ok && col != "" {
		return col, nil
	}
	if field == "" {
		return "", ErrFieldRequired
	}
	if !ValidIdentifier(field) {
		return "", fmt.Errorf("%w: %q", ErrInvalidField, field)
	}
	return field, nil
}

// WhereClause renders c and appends it wrapped in parentheses. An absent
// clause still has to fit under the ceiling but is not appended.
func (b *Builder) WhereClause(c Clause) error {
	if len(b.where) >= b.limits.MaxWhere {
		return fmt.Errorf("%w: maximum WHERE clauses is %d", ErrLimitExceeded, b.limits.MaxWhere)
	}
	if c == nil {
		return nil
	}
	frag, err := c.Build()
	if err != nil {
		return err
	}
	if frag != "" {
		b.where = append(b.where, "("+frag+")")
	}
	return nil
}

type leafFunc func(field string, value any, opts ...Option) (*Comparison, error)

func (b *Builder) whereLeaf(fn leafFunc, field string, value any) error {
	col, err := b.column(field)
	if err != nil {
		return err
	}
	c, err := fn(col, value)
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

func (b *Builder) WhereEquals(field string, value any) error {
	return b.whereLeaf(Equals, field, value)
}

func (b *Builder) WhereNotEquals(field string, value any) error {
	return b.whereLeaf(NotEquals, field, value)
}

func (b *Builder) WhereLike(field string, value string) error {
	return b.whereLeaf(Like, field, value)
}

func (b *Builder) WhereILike(field string, value string) error {
	return b.whereLeaf(ILike, field, value)
}

func (b *Builder) WhereGreaterThan(field string, value any) error {
	return b.whereLeaf(GreaterThan, field, value)
}

func (b *Builder) WhereGreaterOrEqual(field string, value any) error {
	return b.whereLeaf(GreaterOrEqual, field, value)
}

func (b *Builder) WhereLessThan(field string, value any) error {
	return b.whereLeaf(LessThan, field, value)
}

func (b *Builder) WhereLessOrEqual(field string, value any) error {
	return b.whereLeaf(LessOrEqual, field, value)
}

func (b *Builder) WhereIn(field string, values ...any) error {
	col, err := b.column(field)
	if err != nil {
		return err
	}
	c, err := In(col, values)
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

func (b *Builder) WhereNotIn(field string, values ...any) error {
	col, err := b.column(field)
	if err != nil {
		return err
	}
	c, err := NotIn(col, values)
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

func (b *Builder) WhereBetween(field string, start, end any) error {
	col, err := b.column(field)
	if err != nil {
		return err
	}
	c, err := Between(col, start, end)
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

// WhereArrayContains uses @> by default; pass ArrayContainedByOp for <@.
func (b *Builder) WhereArrayContains(field string, values []any, containment string) error {
	col, err := b.column(field)
	if err != nil {
		return err
	}
	var c *ArrayMatch
	switch containment {
	case "", ArrayContainsOp:
		c, err = ArrayContains(col, values)
	case ArrayContainedByOp:
		c, err = ArrayIsContainedBy(col, values)
	default:
		return fmt.Errorf("%w: containment operator %q", ErrUnsupportedValue, containment)
	}
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

func (b *Builder) WhereCondition(field string, cond Condition, transform TransformFunc) error {
	col, err := b.column(field)
	if err != nil {
		return err
	}
	c, err := NewConditionMap(col, cond, WithTransform(transform))
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

// WhereConditions adds one ConditionMap per field in sorted field order. It is
// all or nothing.
func (b *Builder) WhereConditions(conds map[string]Condition, transform TransformFunc) error {
	fields := make([]string, 0, len(conds))
	for f := range conds {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	next := b.Clone()
	for _, f := range fields {
		if err := next.WhereCondition(f, conds[f], transform); err != nil {
			return err
		}
	}
	b.where = next.where
	return nil
}

func (b *Builder) WhereExists(subquery string) error {
	c, err := Exists(subquery)
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

func (b *Builder) WhereNotExists(subquery string) error {
	c, err := NotExists(subquery)
	if err != nil {
		return err
	}
	return b.WhereClause(c)
}

// WhereRaw appends trusted SQL without validation. It counts toward MaxWhere.
func (b *Builder) WhereRaw(sql string) error {
	return b.WhereClause(Raw(sql))
}

func (b *Builder) OrFilter(clauses ...Clause) error {
	return b.WhereClause(Or(clauses...))
}

func (b *Builder) AddOrder(dir Direction, fields ...string) error {
	if dir != Asc && dir != Desc {
		return fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
	if len(b.order)+len(fields) > b.limits.MaxOrderBy {
		return fmt.Errorf("%w: maximum ORDER BY clauses is %d", ErrLimitExceeded, b.limits.MaxOrderBy)
	}
	entries := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := b.column(f)
		if err != nil {
			return err
		}
		entries = append(entries, col+" "+string(dir))
	}
	b.order = append(b.order, entries...)
	return nil
}

func (b *Builder) AddGroup(fields ...string) error {
	if len(b.group)+len(fields) > b.limits.MaxGroupBy {
		return fmt.Errorf("%w: maximum GROUP BY clauses is %d", ErrLimitExceeded, b.limits.MaxGroupBy)
	}
	entries := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := b.column(f)
		if err != nil {
			return err
		}
		entries = append(entries, col)
	}
	b.group = append(b.group, entries...)
	return nil
}

func (b *Builder) AddLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidLimit, limit)
	}
	if limit > b.limits.MaxLimit {
		return fmt.Errorf("%w: limit %d exceeds maximum %d", ErrInvalidLimit, limit, b.limits.MaxLimit)
	}
	b.limit = limit
	b.hasLimit = true
	return nil
}

func (b *Builder) AddOffset(offset int) error {
	if offset < 0 {
		return fmt.Errorf("%w: offset must be non-negative, got %d", ErrInvalidLimit, offset)
	}
	b.offset = offset
	b.hasOffset = true
	return nil
}

// BuildWhere returns the WHERE fragments joined with AND, without the keyword.
func (b *Builder) BuildWhere() string {
	return strings.Join(b.where, " AND ")
}

func (b *Builder) Build() string {
	var sb strings.Builder
	sb.WriteString(b.base)

	if len(b.where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(b.BuildWhere())
	}
	if len(b.group) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(b.group, ", "))
	}
	if len(b.order) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(b.order, ", "))
	}
	if b.hasLimit {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	if b.hasOffset {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(b.offset))
	}
	return strings.TrimSpace(sb.String())
}

func (b *Builder) Clone() *Builder {
	c := *b
	c.where = slices.Clone(b.where)
	c.order = slices.Clone(b.order)
	c.group = slices.Clone(b.group)
	return &c
}

func (b *Builder) String() string {
	return fmt.Sprintf("Builder{base: %q, where: %q, order: %q, group: %q, limit: %d, offset: %d}",
		b.base, b.where, b.order, b.group, b.limit, b.offset)
}

func (b *Builder) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Base   string   `json:"base"`
		Where  []string `json:"where"`
		Order  []string `json:"order"`
		Group  []string `json:"group"`
		Limit  *int     `json:"limit,omitempty"`
		Offset *int     `json:"offset,omitempty"`
		SQL    string   `json:"sql"`
	}{
		Base:   b.base,
		Where:  nonNil(b.where),
		Order:  nonNil(b.order),
		Group:  nonNil(b.group),
		Limit:  optional(b.limit, b.hasLimit),
		Offset: optional(b.offset, b.hasOffset),
		SQL:    b.Build(),
	})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func optional(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}
