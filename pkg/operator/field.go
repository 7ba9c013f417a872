package operator

import "github.com/vantutran2k1/rsql/pkg/clause"

// Field groups the operators applied to one column.
type Field struct {
	Name      string
	Operators []Operator
}

// Condition concatenates the condition of every operator in order. It is nil
// when all of them are absent.
func (f Field) Condition() (clause.Condition, error) {
	var out clause.Condition
	for _, op := range f.Operators {
		c, err := op.Query()
		if err != nil {
			return nil, err
		}
		out = append(out, c...)
	}
	return out, nil
}
