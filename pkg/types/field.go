package types

import (
	"io"
	"pagedb/pkg/primitives"
)

// Field is one typed attribute value. Every field is also the result value of
// a compiled expression and can be coerced to the scalar kinds the operators
// need.
type Field interface {
	Serialize(w io.Writer) error

	Compare(op primitives.Predicate, other Field) (bool, error)

	Type() Type

	String() string

	Equals(other Field) bool

	Hash() primitives.HashCode

	Length() uint32

	ToBool() bool

	ToInt() int64

	ToFloat() float64
}
