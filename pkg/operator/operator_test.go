package operator

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vantutran2k1/rsql/pkg/clause"
	"github.com/vantutran2k1/rsql/pkg/coerce"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		kind Kind
		raw  string
	}{
		{"==John", Equals, "John"},
		{"!=3", NotEquals, "3"},
		{"~=jo", Contains, "jo"},
		{"!~=jo", NotContains, "jo"},
		{"in=a,b", In, "a,b"},
		{"out=a", NotIn, "a"},
		{"btw=1,5", Between, "1,5"},
		{"gt=18", GreaterThan, "18"},
		{"gte=18", GreaterOrEqual, "18"},
		{"lt=18", LessThan, "18"},
		{"lte=18", LessOrEqual, "18"},
		{"<@a,b", ArrayIsContainedBy, "a,b"},
		{"@>a,b", ArrayContains, "a,b"},
		{"&&a,b", ArrayOverlap, "a,b"},
		{"plain", Unknown, "plain"},
		{"==a==b", Equals, "a==b"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			op := Parse(tt.text)
			assert.Equal(t, tt.kind, op.Kind())
			assert.Equal(t, tt.raw, op.Raw())
		})
	}
}

func TestKindMetadata(t *testing.T) {
	assert.Equal(t, "gte=", GreaterOrEqual.Symbol())
	assert.Equal(t, "", Unknown.Symbol())
	assert.Equal(t, "arrayOverlap", ArrayOverlap.String())
	assert.Equal(t, "Kind(99)", Kind(99).String())
	assert.True(t, In.IsList())
	assert.True(t, ArrayContains.IsList())
	assert.False(t, Between.IsList())
	assert.True(t, ArrayOverlap.IsArray())
	assert.False(t, In.IsArray())
	assert.Equal(t, "=gt=18", "="+New(GreaterThan, "18").String())
	assert.Len(t, Tokens, 14)
}

func TestScalarValues(t *testing.T) {
	v, err := New(Equals, "18").Value()
	require.NoError(t, err)
	assert.Equal(t, 18.0, v)

	v, err = New(Equals, "2024-01-15").Value()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), v)

	v, err = New(NotEquals, "John").Value()
	require.NoError(t, err)
	assert.Equal(t, "John", v)

	v, err = New(Equals, "true").Value()
	require.NoError(t, err)
	assert.Equal(t, "true", v, "booleans are not inferred")

	v, err = New(Unknown, "  ").Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = New(GreaterThan, "").Value()
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = New(Contains, "  123 ").Value()
	require.NoError(t, err)
	assert.Equal(t, "123", v, "contains keeps text")
}

func TestListValues(t *testing.T) {
	v, err := New(In, " A, 2 ,,2024-01-15 ").Value()
	require.NoError(t, err)
	assert.Equal(t, []any{"A", 2.0, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)}, v)

	v, err = New(NotIn, "(A,B)").Value()
	require.NoError(t, err)
	assert.Equal(t, []any{"A", "B"}, v)

	v, err = New(In, "").Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestBetweenValues(t *testing.T) {
	v, err := New(Between, "1,5").Value()
	require.NoError(t, err)
	assert.Equal(t, Range{Gte: 1.0, Lte: 5.0}, v)

	v, err = New(Between, "2024-01-01,2024-12-31").Value()
	require.NoError(t, err)
	r, ok := v.(Range)
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC), r.Lte)

	v, err = New(Between, "7").Value()
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)

	v, err = New(Between, "1,2,3").Value()
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)

	v, err = New(Between, "").Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestArrayValues(t *testing.T) {
	v, err := New(ArrayContains, "a,b").Value()
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, v)

	v, err = New(ArrayOverlap, "1, 2").Value()
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, v)

	v, err = New(ArrayIsContainedBy, "TRUE,false").Value()
	require.NoError(t, err)
	assert.Equal(t, []any{true, false}, v)

	_, err = New(ArrayContains, "a,1").Value()
	assert.ErrorIs(t, err, ErrMixedTypes)

	_, err = New(ArrayContains, " , ").Value()
	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestQuery(t *testing.T) {
	tests := []struct {
		op   Operator
		want clause.Condition
	}{
		{New(Equals, "John"), clause.Condition{{Op: clause.OpEquals, Value: "John"}}},
		{New(Unknown, "John"), clause.Condition{{Op: clause.OpEquals, Value: "John"}}},
		{New(NotEquals, "1"), clause.Condition{{Op: clause.OpNotEquals, Value: 1.0}}},
		{New(Contains, "jo"), clause.Condition{{Op: clause.OpContains, Value: "jo"}}},
		{New(NotContains, "jo"), clause.Condition{{Op: clause.OpNotContains, Value: "jo"}}},
		{New(In, "a"), clause.Condition{{Op: clause.OpIn, Value: []any{"a"}}}},
		{New(NotIn, "a"), clause.Condition{{Op: clause.OpNotIn, Value: []any{"a"}}}},
		{New(GreaterThan, "1"), clause.Condition{{Op: clause.OpGreaterThan, Value: 1.0}}},
		{New(GreaterOrEqual, "1"), clause.Condition{{Op: clause.OpGreaterOrEqual, Value: 1.0}}},
		{New(LessThan, "1"), clause.Condition{{Op: clause.OpLessThan, Value: 1.0}}},
		{New(LessOrEqual, "1"), clause.Condition{{Op: clause.OpLessOrEqual, Value: 1.0}}},
		{New(Between, "1,2"), clause.Condition{{Op: clause.OpGreaterOrEqual, Value: 1.0}, {Op: clause.OpLessOrEqual, Value: 2.0}}},
		{New(Between, "1"), clause.Condition{{Op: clause.OpEquals, Value: 1.0}}},
		{New(ArrayContains, "x"), clause.Condition{{Op: clause.OpArrayContains, Value: []any{"x"}}}},
		{New(ArrayIsContainedBy, "x"), clause.Condition{{Op: clause.OpArrayIsContainedBy, Value: []any{"x"}}}},
		{New(ArrayOverlap, "x"), clause.Condition{{Op: clause.OpArrayOverlap, Value: []any{"x"}}}},
		{New(In, ""), nil},
		{New(Equals, ""), nil},
	}

	for _, tt := range tests {
		t.Run(tt.op.Kind().String()+":"+tt.op.Raw(), func(t *testing.T) {
			got, err := tt.op.Query()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := New(ArrayContains, "").Query()
	assert.ErrorIs(t, err, ErrEmptyList)
}

func TestWithType(t *testing.T) {
	op, err := New(Equals, "S").WithType(coerce.KindBool)
	require.NoError(t, err)
	v, err := op.Value()
	require.NoError(t, err)
	assert.Equal(t, true, v)

	op, err = New(In, "1,2").WithType(coerce.KindSerial)
	require.NoError(t, err)
	v, err = op.Value()
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(2)}, v)

	op, err = New(Equals, "550e8400-e29b-411d-a716-446655440000").WithType(coerce.KindUUID)
	require.NoError(t, err)
	v, err = op.Value()
	require.NoError(t, err)
	assert.Equal(t, uuid.MustParse("550e8400-e29b-411d-a716-446655440000"), v)

	op, err = New(Equals, "18").WithType(coerce.KindString)
	require.NoError(t, err)
	v, err = op.Value()
	require.NoError(t, err)
	assert.Equal(t, "18", v)

	op, err = New(GreaterThan, "abc").WithType(coerce.KindNumber)
	require.NoError(t, err)
	_, err = op.Value()
	assert.ErrorIs(t, err, coerce.ErrInvalidNumber)

	_, err = New(GreaterThan, "1").WithType(coerce.KindBool)
	assert.ErrorIs(t, err, ErrOperatorNotAllowed)

	_, err = New(Contains, "x").WithType(coerce.KindNumber)
	assert.ErrorIs(t, err, ErrOperatorNotAllowed)
}

func TestSchema(t *testing.T) {
	s, err := ParseSchema(map[string]string{"age": "number", "active": "boolean"})
	require.NoError(t, err)

	op, err := s.Apply("age", New(GreaterThan, "18"))
	require.NoError(t, err)
	v, err := op.Value()
	require.NoError(t, err)
	assert.Equal(t, 18.0, v)

	op, err = s.Apply("name", New(Equals, "18"))
	require.NoError(t, err)
	v, err = op.Value()
	require.NoError(t, err)
	assert.Equal(t, 18.0, v, "unknown fields keep inference")

	_, err = s.Apply("active", New(Between, "1,2"))
	assert.ErrorIs(t, err, ErrOperatorNotAllowed)

	_, err = ParseSchema(map[string]string{"x": "blob"})
	assert.Error(t, err)
}

func TestFieldCondition(t *testing.T) {
	f := Field{Name: "age", Operators: []Operator{New(GreaterOrEqual, "18"), New(In, ""), New(LessThan, "65")}}
	got, err := f.Condition()
	require.NoError(t, err)
	assert.Equal(t, clause.Condition{
		{Op: clause.OpGreaterOrEqual, Value: 18.0},
		{Op: clause.OpLessThan, Value: 65.0},
	}, got)

	_, err = Field{Name: "tags", Operators: []Operator{New(ArrayOverlap, "a,1")}}.Condition()
	assert.ErrorIs(t, err, ErrMixedTypes)
}
