package operator

import (
	"fmt"

	"github.com/vantutran2k1/rsql/pkg/coerce"
)

var allowed = map[coerce.Kind][]Kind{
	coerce.KindString: {Equals, NotEquals, Contains, NotContains, In, NotIn},
	coerce.KindUUID:   {Equals, NotEquals, Contains, NotContains, In, NotIn},
	coerce.KindBool:   {Equals, NotEquals, In, NotIn},
	coerce.KindNumber: {Equals, NotEquals, In, NotIn, GreaterThan, GreaterOrEqual, LessThan, LessOrEqual, Between},
	coerce.KindSerial: {Equals, NotEquals, In, NotIn, GreaterThan, GreaterOrEqual, LessThan, LessOrEqual, Between},
	coerce.KindDate:   {Equals, NotEquals, In, NotIn, GreaterThan, GreaterOrEqual, LessThan, LessOrEqual, Between},
}

// Allowed reports whether an operator kind applies to a field type. Array
// operators and bare values are accepted for every type; for array operators
// the type describes the elements.
func Allowed(t coerce.Kind, k Kind) bool {
	if k == Unknown || k.IsArray() {
		return true
	}
	for _, a := range allowed[t] {
		if a == k {
			return true
		}
	}
	return false
}

// Schema declares the value type of known fields. Fields it does not mention
// keep inferred values.
type Schema map[string]coerce.Kind

// ParseSchema builds a Schema from type names such as "number" or "date".
func ParseSchema(types map[string]string) (Schema, error) {
	s := make(Schema, len(types))
	for field, name := range types {
		k, err := coerce.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field, err)
		}
		s[field] = k
	}
	return s, nil
}

// Apply pins op to the declared type of field, if there is one.
func (s Schema) Apply(field string, op Operator) (Operator, error) {
	kind, ok := s[field]
	if !ok {
		return op, nil
	}
	typed, err := op.WithType(kind)
	if err != nil {
		return Operator{}, fmt.Errorf("field %s: %w", field, err)
	}
	return typed, nil
}
