package convert

import (
	"regexp"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/vantutran2k1/rsql/pkg/operator"
)

// DocumentVisitor builds MongoDB query filters. Absent values produce an empty
// document. Contains matches are case-insensitive regular expressions over the
// escaped value.
type DocumentVisitor struct{}

var _ Visitor[bson.M] = DocumentVisitor{}

func docValue(v any) any {
	if id, ok := v.(uuid.UUID); ok {
		return id.String()
	}
	return v
}

func docList(values []any) bson.A {
	out := make(bson.A, 0, len(values))
	for _, v := range values {
		out = append(out, docValue(v))
	}
	return out
}

func fieldOp(field, op string, value any) bson.M {
	if value == nil {
		return bson.M{}
	}
	return bson.M{field: bson.M{op: docValue(value)}}
}

func fieldListOp(field, op string, values []any) bson.M {
	if len(values) == 0 {
		return bson.M{}
	}
	return bson.M{field: bson.M{op: docList(values)}}
}

func insensitive(value string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(value), "$options": "i"}
}

func (DocumentVisitor) Equals(field string, value any) (bson.M, error) {
	if value == nil {
		return bson.M{}, nil
	}
	return bson.M{field: docValue(value)}, nil
}

func (DocumentVisitor) NotEquals(field string, value any) (bson.M, error) {
	return fieldOp(field, "$ne", value), nil
}

func (DocumentVisitor) Contains(field string, value string) (bson.M, error) {
	if value == "" {
		return bson.M{}, nil
	}
	return bson.M{field: insensitive(value)}, nil
}

func (DocumentVisitor) NotContains(field string, value string) (bson.M, error) {
	if value == "" {
		return bson.M{}, nil
	}
	return bson.M{field: bson.M{"$not": insensitive(value)}}, nil
}

func (DocumentVisitor) In(field string, values []any) (bson.M, error) {
	return fieldListOp(field, "$in", values), nil
}

func (DocumentVisitor) NotIn(field string, values []any) (bson.M, error) {
	return fieldListOp(field, "$nin", values), nil
}

func (DocumentVisitor) GreaterThan(field string, value any) (bson.M, error) {
	return fieldOp(field, "$gt", value), nil
}

func (DocumentVisitor) GreaterOrEqual(field string, value any) (bson.M, error) {
	return fieldOp(field, "$gte", value), nil
}

func (DocumentVisitor) LessThan(field string, value any) (bson.M, error) {
	return fieldOp(field, "$lt", value), nil
}

func (DocumentVisitor) LessOrEqual(field string, value any) (bson.M, error) {
	return fieldOp(field, "$lte", value), nil
}

func (v DocumentVisitor) Between(field string, value any) (bson.M, error) {
	if r, ok := value.(operator.Range); ok {
		return bson.M{field: bson.M{"$gte": docValue(r.Gte), "$lte": docValue(r.Lte)}}, nil
	}
	return v.Equals(field, value)
}

func (DocumentVisitor) ArrayContains(field string, values []any) (bson.M, error) {
	return fieldListOp(field, "$all", values), nil
}

// ArrayIsContainedBy matches documents with no element outside values.
func (DocumentVisitor) ArrayIsContainedBy(field string, values []any) (bson.M, error) {
	if len(values) == 0 {
		return bson.M{}, nil
	}
	return bson.M{field: bson.M{"$not": bson.M{"$elemMatch": bson.M{"$nin": docList(values)}}}}, nil
}

func (DocumentVisitor) ArrayOverlap(field string, values []any) (bson.M, error) {
	return fieldListOp(field, "$in", values), nil
}

func (v DocumentVisitor) Unknown(field string, value any) (bson.M, error) {
	return v.Equals(field, value)
}
