package queryparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/coerce"
	"github.com/vantutran2k1/rsql/pkg/operator"
)

func build(t *testing.T, filter string, opts ...Option) string {
	t.Helper()
	c, err := Parse(filter, opts...)
	require.NoError(t, err)
	require.NotNil(t, c)
	sql, err := c.Build()
	require.NoError(t, err)
	return sql
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		want   string
	}{
		{"single equals", "name==John", "(name = 'John')"},
		{"and", "name==John;age=gt=18", "((name = 'John') AND (age > 18))"},
		{
			"grouped or",
			"(status==ACTIVE;age=gt=18),status==PENDING",
			"(((status = 'ACTIVE') AND (age > 18)) OR (status = 'PENDING'))",
		},
		{
			"nested groups",
			"((a==1,b==2);c==3),d==4",
			"((((a = 1) OR (b = 2)) AND (c = 3)) OR (d = 4))",
		},
		{"not equals", "status!=DONE", "(status <> 'DONE')"},
		{"contains", "name~=jo", "(name ILIKE '%jo%')"},
		{"not contains", "name!~=jo", "(NOT name ILIKE '%jo%')"},
		{"gte", "age=gte=21", "(age >= 21)"},
		{"lt", "age=lt=65", "(age < 65)"},
		{"lte", "age=lte=65", "(age <= 65)"},
		{"in", "status=in=(A,B)", "(status IN ('A', 'B'))"},
		{"out", "status=out=(A)", "(NOT status IN ('A'))"},
		{"between", "age=btw=(18,30)", "(age >= 18) AND (age <= 30)"},
		{"between single", "age=btw=18", "(age = 18)"},
		{"date", "created=gt=2024-01-15", "(created > '15/01/2024')"},
		{"array contains", "tags@>(a,b)", "(tags @> ARRAY['a', 'b'])"},
		{"array contained by", "tags<@(1,2)", "(tags <@ ARRAY[1, 2])"},
		{"array overlap", "flags&&(true,false)", "(flags && ARRAY[true, false])"},
		{"quote escaped", "name==O'Brien", "(name = 'O''Brien')"},
		{"spaces around parts", " name==John ; age=gt=18 ", "((name = 'John') AND (age > 18))"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, build(t, tt.filter))
		})
	}
}

// The operator scan picks the earliest symbol, so values that contain another
// symbol are kept as part of the value.
func TestParseEarliestSymbolWins(t *testing.T) {
	assert.Equal(t, "(age = '18!=20')", build(t, "age==18!=20"))
	assert.Equal(t, "(item ILIKE '%val==other%')", build(t, "item~=val==other"))
	assert.Equal(t, "(age >= 18)", build(t, "age=gte=18"))
}

func TestParseBareListSplitsOnComma(t *testing.T) {
	_, err := Parse("status=in=A,B")
	assert.ErrorIs(t, err, ErrInvalidCondition)
}

func TestParseAbsent(t *testing.T) {
	for _, filter := range []string{"", "   ", "\t\n"} {
		c, err := Parse(filter)
		require.NoError(t, err)
		assert.Nil(t, c)
	}

	c, err := Parse("name=in=")
	require.NoError(t, err)
	require.NotNil(t, c)
	sql, err := c.Build()
	require.NoError(t, err)
	assert.Empty(t, sql)

	c, err = Parse("name=in=;age=gt=1")
	require.NoError(t, err)
	sql, err = c.Build()
	require.NoError(t, err)
	assert.Equal(t, "(age > 1)", sql)
}

func TestParseErrors(t *testing.T) {
	_, err := Parse("field_without_operator")
	require.ErrorIs(t, err, ErrInvalidCondition)
	var ce *ConditionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "field_without_operator", ce.Condition)

	_, err = Parse("==John")
	assert.ErrorIs(t, err, ErrInvalidCondition)
	assert.ErrorIs(t, err, clause.ErrFieldRequired)

	_, err = Parse("na me==John")
	assert.ErrorIs(t, err, clause.ErrInvalidField)

	c, err := Parse("name==x' OR 1=1")
	require.NoError(t, err, "literals are checked when rendered")
	_, err = c.Build()
	assert.ErrorIs(t, err, clause.ErrInjectionDetected)

	_, err = Parse("tags@>a,1")
	assert.ErrorIs(t, err, ErrInvalidCondition, "the bare 1 is a separate branch")

	_, err = Parse("tags@>(a,1)")
	assert.ErrorIs(t, err, operator.ErrMixedTypes)
}

func TestParseIsDeterministic(t *testing.T) {
	filter := "(status==ACTIVE;age=gt=18),name~=jo;tags@>(x,y)"
	first := build(t, filter)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, build(t, filter))
	}
}

func TestWithFieldMap(t *testing.T) {
	opt := WithFieldMap(map[string]string{"nameProp": "real_name", "org": "o.org_id"})

	assert.Equal(t, "(real_name = 'raian')", build(t, "nameProp==raian", opt))
	assert.Equal(t, "((o.org_id = 7) AND (other = 'x'))", build(t, "org==7;other==x", opt))
}

func TestWithSchema(t *testing.T) {
	schema := operator.Schema{"code": coerce.KindString, "active": coerce.KindBool}

	assert.Equal(t, "(code = '0012')", build(t, "code==0012", WithSchema(schema)))
	assert.Equal(t, "(active = true)", build(t, "active==S", WithSchema(schema)))

	_, err := Parse("active=gt=1", WithSchema(schema))
	assert.ErrorIs(t, err, operator.ErrOperatorNotAllowed)
}

func TestWithMaxDepth(t *testing.T) {
	_, err := Parse("((a==1))", WithMaxDepth(1))
	assert.ErrorIs(t, err, ErrMaxDepth)

	assert.Equal(t, "(a = 1)", build(t, "(a==1)", WithMaxDepth(1)))
}

func TestSplitTopLevel(t *testing.T) {
	assert.Equal(t, []string{"a==1", "(b==2,c==3)"}, splitTopLevel("a==1, (b==2,c==3)", ','))
	assert.Equal(t, []string{"x"}, splitTopLevel("x", ';'))
}

func TestEnclosed(t *testing.T) {
	assert.True(t, enclosed("(a==1)"))
	assert.True(t, enclosed("((a==1),b==2)"))
	assert.False(t, enclosed("(a==1),(b==2)"))
	assert.False(t, enclosed("a==1"))
	assert.False(t, enclosed("("))
}
