package clause

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil is absent", nil, ""},
		{"string", "John", "'John'"},
		{"empty string", "", "''"},
		{"single quote", "O'Brien", "'O''Brien'"},
		{"backslash", `C:\temp`, `'C:\\temp'`},
		{"nul stripped", "a\x00b", "'ab'"},
		{"integer float", float64(18), "18"},
		{"fraction", 1.25, "1.25"},
		{"negative", -0.5, "-0.5"},
		{"large", 1e21, "1000000000000000000000"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"date", time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), "'09/03/2024'"},
		{"date in other zone is rendered in utc", time.Date(2024, 3, 10, 1, 0, 0, 0, time.FixedZone("x", 3*3600)), "'09/03/2024'"},
		{"uuid", uuid.MustParse("550e8400-e29b-411d-a716-446655440000"), "'550e8400-e29b-411d-a716-446655440000'"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Literal(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLiteralErrors(t *testing.T) {
	_, err := Literal(math.NaN())
	assert.ErrorIs(t, err, ErrNumericRange)

	_, err = Literal(math.Inf(-1))
	assert.ErrorIs(t, err, ErrNumericRange)

	_, err = Literal([]int{1})
	assert.ErrorIs(t, err, ErrUnsupportedValue)

	for _, s := range []string{"test -- comment", "test UNION SELECT x", "' OR 1=1"} {
		_, err := Literal(s)
		assert.ErrorIs(t, err, ErrInjectionDetected, s)
	}

	var nilTime *time.Time
	got, err := Literal(nilTime)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQuoteRoundTrip(t *testing.T) {
	for _, s := range []string{"O'Brien", "''", "it's a 'test'", "'", "a'b'c'd"} {
		got, err := Literal(s)
		require.NoError(t, err)

		inner := strings.TrimSuffix(strings.TrimPrefix(got, "'"), "'")
		assert.Equal(t, s, strings.ReplaceAll(inner, "''", "'"))
	}
}

func TestValueTransform(t *testing.T) {
	upper := func(v any) any {
		if s, ok := v.(string); ok {
			return strings.ToUpper(s)
		}
		return v
	}

	got, err := NewValue("john", upper).SQL()
	require.NoError(t, err)
	assert.Equal(t, "'JOHN'", got)

	assert.True(t, NewValue("x", nil).IsString())
	assert.False(t, NewValue(1.0, nil).IsString())
}

func TestList(t *testing.T) {
	got, err := NewList([]any{"a", nil, 2.0, true}, nil).SQL()
	require.NoError(t, err)
	assert.Equal(t, "'a', 2, true", got)

	got, err = NewList(nil, nil).SQL()
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewList([]any{"ok", "x -- y"}, nil).SQL()
	assert.ErrorIs(t, err, ErrInjectionDetected)
}
