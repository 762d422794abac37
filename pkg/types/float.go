package types

import (
	"io"
	"math"
	"pagedb/pkg/primitives"
	"strconv"
)

const (
	epsilon = 1e-9
)

type Float64Field struct {
	Value float64
}

func NewFloat64Field(value float64) *Float64Field {
	return &Float64Field{Value: value}
}

func (f *Float64Field) Serialize(w io.Writer) error {
	return serializeUint64(w, math.Float64bits(f.Value))
}

func (f *Float64Field) Compare(op primitives.Predicate, other Field) (bool, error) {
	c, err := CompareFields(f, other)
	if err != nil {
		return false, err
	}
	return op.Holds(c), nil
}

func (f *Float64Field) Type() Type {
	return FloatType
}

// String returns string representation of the float64
func (f *Float64Field) String() string {
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// Equals is exact: two doubles are equal when they hash alike. Compare is
// the epsilon-tolerant comparison.
func (f *Float64Field) Equals(other Field) bool {
	o, ok := other.(*Float64Field)
	if !ok {
		return false
	}
	return f.bits() == o.bits()
}

// Hash hashes the bit pattern of the value.
func (f *Float64Field) Hash() primitives.HashCode {
	return hashBytes(toBytes64(f.bits()))
}

// bits is the bit pattern of the value with negative zero folded into zero.
func (f *Float64Field) bits() uint64 {
	if f.Value == 0 {
		return 0
	}
	return math.Float64bits(f.Value)
}

func (f *Float64Field) Length() uint32 {
	return 8
}

func (f *Float64Field) ToBool() bool {
	return f.Value != 0
}

func (f *Float64Field) ToInt() int64 {
	return int64(f.Value)
}

func (f *Float64Field) ToFloat() float64 {
	return f.Value
}
