package clause

// Comparison is a binary predicate between a column and a single value.
type Comparison struct {
	field    string
	operator string
	textOnly bool
	value    Value
}

func (*Comparison) clauseNode() {}

func newComparison(field, operator string, value any, opts []Option) (*Comparison, error) {
	if err := requireField(field); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Comparison{
		field:    field,
		operator: operator,
		value:    NewValue(value, o.transform),
	}, nil
}

func Equals(field string, value any, opts ...Option) (*Comparison, error) {
	return newComparison(field, "=", value, opts)
}

func NotEquals(field string, value any, opts ...Option) (*Comparison, error) {
	return newComparison(field, "<>", value, opts)
}

func GreaterThan(field string, value any, opts ...Option) (*Comparison, error) {
	return newComparison(field, ">", value, opts)
}

func GreaterOrEqual(field string, value any, opts ...Option) (*Comparison, error) {
	return newComparison(field, ">=", value, opts)
}

func LessThan(field string, value any, opts ...Option) (*Comparison, error) {
	return newComparison(field, "<", value, opts)
}

func LessOrEqual(field string, value any, opts ...Option) (*Comparison, error) {
	return newComparison(field, "<=", value, opts)
}

// Like, ILike and NotILike only render string values; anything else is absent.
func Like(field string, value any, opts ...Option) (*Comparison, error) {
	c, err := newComparison(field, "LIKE", value, opts)
	if err == nil {
		c.textOnly = true
	}
	return c, err
}

func ILike(field string, value any, opts ...Option) (*Comparison, error) {
	c, err := newComparison(field, "ILIKE", value, opts)
	if err == nil {
		c.textOnly = true
	}
	return c, err
}

func NotILike(field string, value any, opts ...Option) (*Comparison, error) {
	c, err := newComparison(field, "NOT ILIKE", value, opts)
	if err == nil {
		c.textOnly = true
	}
	return c, err
}

func (c *Comparison) Build() (string, error) {
	if c.textOnly && !c.value.IsString() {
		return "", nil
	}
	v, err := c.value.SQL()
	if err != nil {
		return "", fieldError(c.field, err)
	}
	if v == "" {
		return "", nil
	}
	return c.field + " " + c.operator + " " + v, nil
}

// Membership tests a column against a list of values.
type Membership struct {
	field  string
	negate bool
	values List
}

func (*Membership) clauseNode() {}

func newMembership(field string, values []any, negate bool, opts []Option) (*Membership, error) {
	if err := requireField(field); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Membership{field: field, negate: negate, values: NewList(values, o.transform)}, nil
}

func In(field string, values []any, opts ...Option) (*Membership, error) {
	return newMembership(field, values, false, opts)
}

func NotIn(field string, values []any, opts ...Option) (*Membership, error) {
	return newMembership(field, values, true, opts)
}

func (m *Membership) Build() (string, error) {
	v, err := m.values.SQL()
	if err != nil {
		return "", fieldError(m.field, err)
	}
	if v == "" {
		return "", nil
	}
	if m.negate {
		return "NOT " + m.field + " IN (" + v + ")", nil
	}
	return m.field + " IN (" + v + ")", nil
}

// Range is an inclusive BETWEEN. It is absent unless both bounds render.
type Range struct {
	field      string
	start, end Value
}

func (*Range) clauseNode() {}

func Between(field string, start, end any, opts ...Option) (*Range, error) {
	if err := requireField(field); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &Range{
		field: field,
		start: NewValue(start, o.transform),
		end:   NewValue(end, o.transform),
	}, nil
}

func (r *Range) Build() (string, error) {
	start, err := r.start.SQL()
	if err != nil {
		return "", fieldError(r.field, err)
	}
	end, err := r.end.SQL()
	if err != nil {
		return "", fieldError(r.field, err)
	}
	if start == "" || end == "" {
		return "", nil
	}
	return r.field + " BETWEEN " + start + " AND " + end, nil
}

// Array operators understood by ArrayMatch.
const (
	ArrayContainsOp    = "@>"
	ArrayContainedByOp = "<@"
	ArrayOverlapOp     = "&&"
)

// ArrayMatch compares an array column with an ARRAY literal.
type ArrayMatch struct {
	field    string
	operator string
	values   List
}

func (*ArrayMatch) clauseNode() {}

func newArrayMatch(field, operator string, values []any, opts []Option) (*ArrayMatch, error) {
	if err := requireField(field); err != nil {
		return nil, err
	}
	o := applyOptions(opts)
	return &ArrayMatch{field: field, operator: operator, values: NewList(values, o.transform)}, nil
}

func ArrayContains(field string, values []any, opts ...Option) (*ArrayMatch, error) {
	return newArrayMatch(field, ArrayContainsOp, values, opts)
}

func ArrayIsContainedBy(field string, values []any, opts ...Option) (*ArrayMatch, error) {
	return newArrayMatch(field, ArrayContainedByOp, values, opts)
}

func ArrayOverlap(field string, values []any, opts ...Option) (*ArrayMatch, error) {
	return newArrayMatch(field, ArrayOverlapOp, values, opts)
}

func (a *ArrayMatch) Build() (string, error) {
	v, err := a.values.SQL()
	if err != nil {
		return "", fieldError(a.field, err)
	}
	if v == "" {
		return "", nil
	}
	return a.field + " " + a.operator + " ARRAY[" + v + "]", nil
}
