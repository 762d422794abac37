package types

import (
	"io"
	"pagedb/pkg/primitives"
	"strconv"
)

// IntField represents a 64-bit signed integer field
type IntField struct {
	Value int64
}

func NewIntField(value int64) *IntField {
	return &IntField{Value: value}
}

func (f *IntField) Serialize(w io.Writer) error {
	return serializeUint64(w, uint64(f.Value)) // #nosec G115
}

// Compare compares against another int, or numerically against a double.
func (f *IntField) Compare(op primitives.Predicate, other Field) (bool, error) {
	if o, ok := other.(*IntField); ok {
		return compareOrdered(f.Value, o.Value, op), nil
	}
	c, err := CompareFields(f, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (f *IntField) Type() Type {
	return IntType
}

func (f *IntField) String() string {
	return strconv.FormatInt(f.Value, 10)
}

func (f *IntField) Equals(other Field) bool {
	o, ok := other.(*IntField)
	if !ok {
		return false
	}
	return f.Value == o.Value
}

func (f *IntField) Hash() primitives.HashCode {
	return hashBytes(toBytes64(uint64(f.Value))) // #nosec G115
}

func (f *IntField) Length() uint32 {
	return 8
}

func (f *IntField) ToBool() bool {
	return f.Value != 0
}

func (f *IntField) ToInt() int64 {
	return f.Value
}

func (f *IntField) ToFloat() float64 {
	return float64(f.Value)
}
