package clause

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, c Clause) string {
	t.Helper()
	s, err := c.Build()
	require.NoError(t, err)
	return s
}

func must[T Clause](t *testing.T) func(T, error) T {
	return func(c T, err error) T {
		t.Helper()
		require.NoError(t, err)
		return c
	}
}

func TestComparisons(t *testing.T) {
	cmp := must[*Comparison](t)

	tests := []struct {
		name string
		c    Clause
		want string
	}{
		{"equals", cmp(Equals("name", "John")), "name = 'John'"},
		{"not equals", cmp(NotEquals("age", 18.0)), "age <> 18"},
		{"greater than", cmp(GreaterThan("age", 18)), "age > 18"},
		{"greater or equal", cmp(GreaterOrEqual("age", 18)), "age >= 18"},
		{"less than", cmp(LessThan("created_at", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))), "created_at < '02/01/2024'"},
		{"less or equal", cmp(LessOrEqual("score", 9.5)), "score <= 9.5"},
		{"like", cmp(Like("name", "Jo%")), "name LIKE 'Jo%'"},
		{"ilike", cmp(ILike("name", "%jo%")), "name ILIKE '%jo%'"},
		{"not ilike", cmp(NotILike("name", "%jo%")), "name NOT ILIKE '%jo%'"},
		{"ilike of a number is absent", cmp(ILike("name", 10)), ""},
		{"null is absent", cmp(Equals("name", nil)), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, build(t, tt.c))
		})
	}
}

func TestFieldRequired(t *testing.T) {
	_, err := Equals("", "x")
	assert.ErrorIs(t, err, ErrFieldRequired)

	_, err = In("", []any{1})
	assert.ErrorIs(t, err, ErrFieldRequired)

	_, err = Between("", 1, 2)
	assert.ErrorIs(t, err, ErrFieldRequired)

	_, err = ArrayOverlap("", []any{1})
	assert.ErrorIs(t, err, ErrFieldRequired)

	_, err = NewConditionMap("", Condition{{Op: OpEquals, Value: 1}})
	assert.ErrorIs(t, err, ErrFieldRequired)
}

func TestSetAndRange(t *testing.T) {
	in, err := In("status", []any{"A", "B"})
	require.NoError(t, err)
	assert.Equal(t, "status IN ('A', 'B')", build(t, in))

	notIn, err := NotIn("id", []any{1, 2, nil})
	require.NoError(t, err)
	assert.Equal(t, "NOT id IN (1, 2)", build(t, notIn))

	empty, err := In("id", nil)
	require.NoError(t, err)
	assert.Empty(t, build(t, empty))

	btw, err := Between("age", 18, 30)
	require.NoError(t, err)
	assert.Equal(t, "age BETWEEN 18 AND 30", build(t, btw))

	open, err := Between("age", 18, nil)
	require.NoError(t, err)
	assert.Empty(t, build(t, open))

	contains, err := ArrayContains("tags", []any{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "tags @> ARRAY['a', 'b']", build(t, contains))

	containedBy, err := ArrayIsContainedBy("ids", []any{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "ids <@ ARRAY[1, 2]", build(t, containedBy))

	overlap, err := ArrayOverlap("flags", []any{true})
	require.NoError(t, err)
	assert.Equal(t, "flags && ARRAY[true]", build(t, overlap))
}

func TestInjectionSurfacesFromBuild(t *testing.T) {
	c, err := Equals("name", "x' OR 'a'='a")
	require.NoError(t, err)

	_, err = c.Build()
	assert.ErrorIs(t, err, ErrInjectionDetected)
	assert.Contains(t, err.Error(), "name")
}

func TestLogical(t *testing.T) {
	a, _ := Equals("a", 1)
	b, _ := Equals("b", 2)
	absent, _ := Equals("c", nil)

	assert.Equal(t, "(a = 1 AND b = 2)", build(t, And(a, b)))
	assert.Equal(t, "a = 1", build(t, And(a, absent)))
	assert.Equal(t, "(a = 1 OR b = 2)", build(t, Or(a, b)))
	assert.Equal(t, "(a = 1)", build(t, Or(a, absent)))
	assert.Empty(t, build(t, And(absent, Noop())))
	assert.Empty(t, build(t, Or(absent, nil)))
	assert.Empty(t, build(t, Or()))

	nested := Or(And(a, b), And(absent, b))
	assert.Equal(t, "((a = 1 AND b = 2) OR b = 2)", build(t, nested))
	assert.Len(t, nested.Children(), 2)
}

func TestLogicalPropagatesErrors(t *testing.T) {
	a, _ := Equals("a", 1)
	bad, _ := Equals("b", "1; DROP TABLE users")

	_, err := And(a, bad).Build()
	assert.ErrorIs(t, err, ErrInjectionDetected)
}

func TestExists(t *testing.T) {
	e, err := Exists("  select 1 from orders o where o.user_id = users.id ")
	require.NoError(t, err)
	assert.Equal(t, "EXISTS (select 1 from orders o where o.user_id = users.id)", build(t, e))

	ne, err := NotExists("SELECT 1 FROM bans")
	require.NoError(t, err)
	assert.Equal(t, "NOT EXISTS (SELECT 1 FROM bans)", build(t, ne))

	empty, err := Exists("   ")
	require.NoError(t, err)
	assert.Empty(t, build(t, empty))

	_, err = Exists("DELETE FROM users")
	assert.ErrorIs(t, err, ErrInvalidSubquery)

	_, err = Exists("SELECT 1 UNION SELECT password FROM users")
	assert.ErrorIs(t, err, ErrInjectionDetected)
}

func TestRaw(t *testing.T) {
	assert.Equal(t, "deleted_at IS NULL", build(t, Raw(" deleted_at IS NULL ")))
	assert.Empty(t, build(t, Raw("")))
}

func TestConditionMap(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"equals", Condition{{OpEquals, "John"}}, "(name = 'John')"},
		{"not equals", Condition{{OpNotEquals, 3.0}}, "(name <> 3)"},
		{"contains", Condition{{OpContains, "jo"}}, "(name ILIKE '%jo%')"},
		{"not contains", Condition{{OpNotContains, "jo"}}, "(NOT name ILIKE '%jo%')"},
		{"in", Condition{{OpIn, []any{"a", 1.0}}}, "(name IN ('a', 1))"},
		{"not in", Condition{{OpNotIn, []any{"a"}}}, "(NOT name IN ('a'))"},
		{"empty in is absent", Condition{{OpIn, []any{}}}, ""},
		{"range", Condition{{OpGreaterOrEqual, 1.0}, {OpLessOrEqual, 5.0}}, "(name >= 1) AND (name <= 5)"},
		{"gt lt", Condition{{OpGreaterThan, 1.0}, {OpLessThan, 5.0}}, "(name > 1) AND (name < 5)"},
		{"array contains", Condition{{OpArrayContains, []any{"x"}}}, "(name @> ARRAY['x'])"},
		{"array contained by", Condition{{OpArrayIsContainedBy, []any{1.0, 2.0}}}, "(name <@ ARRAY[1, 2])"},
		{"array overlap", Condition{{OpArrayOverlap, []any{true}}}, "(name && ARRAY[true])"},
		{"null equals is absent", Condition{{OpEquals, nil}}, ""},
		{"empty contains is absent", Condition{{OpContains, ""}}, ""},
		{"absent entries are skipped", Condition{{OpEquals, nil}, {OpGreaterThan, 2.0}}, "(name > 2)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewConditionMap("name", tt.cond)
			require.NoError(t, err)
			assert.Equal(t, tt.want, build(t, c))
		})
	}
}

func TestConditionMapTransform(t *testing.T) {
	double := func(v any) any {
		if f, ok := v.(float64); ok {
			return f * 2
		}
		return v
	}
	c, err := NewConditionMap("qty", Condition{{OpGreaterThan, 2.0}, {OpIn, []any{1.0, 3.0}}}, WithTransform(double))
	require.NoError(t, err)
	assert.Equal(t, "(qty > 4) AND (qty IN (2, 6))", build(t, c))

	v, ok := c.Condition().Get(OpGreaterThan)
	assert.True(t, ok)
	assert.Equal(t, 2.0, v)
	assert.Equal(t, "qty", c.Field())
}

func TestConditionMapErrors(t *testing.T) {
	c, err := NewConditionMap("name", Condition{{OpGreaterThan, []any{1.0}}})
	require.NoError(t, err)
	_, err = c.Build()
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	c, err = NewConditionMap("name", Condition{{OpEquals, "' OR 1=1"}})
	require.NoError(t, err)
	_, err = c.Build()
	assert.ErrorIs(t, err, ErrInjectionDetected)
}

func TestValidIdentifier(t *testing.T) {
	for _, ok := range []string{"name", "_x", "users.created_at", "a1"} {
		assert.True(t, ValidIdentifier(ok), ok)
	}
	for _, bad := range []string{"", "1a", "name;", "a b", "a.", "lower(name)"} {
		assert.False(t, ValidIdentifier(bad), bad)
	}
}
