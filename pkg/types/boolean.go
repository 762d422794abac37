package types

import (
	"io"
	"pagedb/pkg/primitives"
	"strconv"
)

// BoolField represents a boolean attribute. It is the result type of every
// comparison and logical operator.
type BoolField struct {
	Value bool
}

func NewBoolField(value bool) *BoolField {
	return &BoolField{Value: value}
}

// Serialize writes the value as a single byte (1 for true).
func (b *BoolField) Serialize(w io.Writer) error {
	var byteValue byte
	if b.Value {
		byteValue = 1
	}
	_, err := w.Write([]byte{byteValue})
	return err
}

// Compare orders false before true.
func (b *BoolField) Compare(op primitives.Predicate, other Field) (bool, error) {
	c, err := CompareFields(b, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (b *BoolField) Type() Type {
	return BoolType
}

func (b *BoolField) String() string {
	return strconv.FormatBool(b.Value)
}

func (b *BoolField) Equals(other Field) bool {
	o, ok := other.(*BoolField)
	if !ok {
		return false
	}
	return b.Value == o.Value
}

func (b *BoolField) Hash() primitives.HashCode {
	if b.Value {
		return hashBytes([]byte{1})
	}
	return hashBytes([]byte{0})
}

func (b *BoolField) Length() uint32 {
	return 1
}

func (b *BoolField) ToBool() bool {
	return b.Value
}

func (b *BoolField) ToInt() int64 {
	if b.Value {
		return 1
	}
	return 0
}

func (b *BoolField) ToFloat() float64 {
	return float64(b.ToInt())
}
