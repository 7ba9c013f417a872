package clause

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/vantutran2k1/rsql/pkg/injection"
)

// DateLayout is the literal format of every rendered date.
const DateLayout = "02/01/2006"

// TransformFunc rewrites a value before it is rendered.
type TransformFunc func(any) any

// Value is a scalar waiting to be rendered as a SQL literal. The zero Value is
// null and renders absent.
type Value struct {
	raw       any
	transform TransformFunc
}

func NewValue(raw any, transform TransformFunc) Value {
	return Value{raw: raw, transform: transform}
}

func (v Value) resolved() any {
	if v.transform != nil {
		return v.transform(v.raw)
	}
	return v.raw
}

func (v Value) IsString() bool {
	_, ok := v.resolved().(string)
	return ok
}

// SQL renders the value. An empty result with a nil error means absent.
func (v Value) SQL() (string, error) {
	return Literal(v.resolved())
}

// Literal renders a Go scalar as SQL text. Strings are checked for injection
// patterns before and after escaping and fail hard on a match.
func Literal(raw any) (string, error) {
	switch x := raw.(type) {
	case nil:
		return "", nil
	case string:
		return quote(x)
	case bool:
		return strconv.FormatBool(x), nil
	case time.Time:
		return "'" + x.UTC().Format(DateLayout) + "'", nil
	case *time.Time:
		if x == nil {
			return "", nil
		}
		return Literal(*x)
	case float64:
		return number(x)
	case float32:
		return number(float64(x))
	case int:
		return strconv.Itoa(x), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case fmt.Stringer:
		return quote(x.String())
	}
	return "", fmt.Errorf("%w: %T", ErrUnsupportedValue, raw)
}

func number(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("%w: %v", ErrNumericRange, f)
	}
	return strconv.FormatFloat(f, 'f', -1, 64), nil
}

var escaper = strings.NewReplacer("\x00", "", `\`, `\\`, "'", "''")

func quote(s string) (string, error) {
	if err := injection.Validate(s); err != nil {
		return "", err
	}
	sanitized := escaper.Replace(s)
	if err := injection.Validate(sanitized); err != nil {
		return "", err
	}
	return "'" + sanitized + "'", nil
}

// List renders as comma separated literals. Null members are skipped and an
// empty list is absent.
type List []Value

func NewList(raw []any, transform TransformFunc) List {
	l := make(List, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		l = append(l, NewValue(r, transform))
	}
	return l
}

func (l List) SQL() (string, error) {
	parts := make([]string, 0, len(l))
	for _, v := range l {
		s, err := v.SQL()
		if err != nil {
			return "", err
		}
		if s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", "), nil
}
