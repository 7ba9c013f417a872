// Package clause models SQL boolean conditions as an immutable tree. Every node
// renders to a complete fragment or to nothing; "" with a nil error is the
// absent result and is never an error.
package clause

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/vantutran2k1/rsql/pkg/injection"
)

var (
	ErrFieldRequired     = errors.New("field is required")
	ErrInvalidField      = errors.New("invalid field name")
	ErrInjectionDetected = injection.ErrDetected
	ErrNumericRange      = errors.New("numeric value out of range")
	ErrUnsupportedValue  = errors.New("unsupported value type")
	ErrInvalidSubquery   = errors.New("subquery must be a SELECT statement")
	ErrLimitExceeded     = errors.New("clause limit exceeded")
	ErrInvalidLimit      = errors.New("invalid limit or offset")
	ErrInvalidDirection  = errors.New("invalid sort direction")
)

type Clause interface {
	Build() (string, error)
	clauseNode()
}

type Option func(*options)

type options struct {
	transform TransformFunc
}

// WithTransform applies fn to every value of the clause before rendering.
func WithTransform(fn TransformFunc) Option {
	return func(o *options) { o.transform = fn }
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

// ValidIdentifier reports whether name is a plain or dotted SQL identifier.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

func requireField(field string) error {
	if field == "" {
		return ErrFieldRequired
	}
	return nil
}

func fieldError(field string, err error) error {
	return fmt.Errorf("%s: %w", field, err)
}
