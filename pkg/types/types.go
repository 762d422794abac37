package types

import (
	"fmt"
	"strings"
)

// Type identifies the type of an attribute value.
type Type int

const (
	IntType Type = iota
	FloatType
	StringType
	BoolType
)

// String returns a string representation of the type
func (t Type) String() string {
	switch t {
	case IntType:
		return "int"
	case FloatType:
		return "double"
	case StringType:
		return "string"
	case BoolType:
		return "bool"
	default:
		return "unknown"
	}
}

// Size returns the number of bytes a value of this type occupies on a page.
// Every type is fixed width so a record can be rewritten in place.
func (t Type) Size() uint32 {
	switch t {
	case IntType, FloatType:
		return 8
	case StringType:
		return 4 + StringMaxSize
	case BoolType:
		return 1
	default:
		return 0
	}
}

// IsNumeric reports whether values of this type take part in arithmetic.
func (t Type) IsNumeric() bool {
	return t == IntType || t == FloatType
}

// Comparable reports whether values of the two types can be ordered against
// each other. Int and double compare numerically.
func Comparable(a, b Type) bool {
	if a == b {
		return true
	}
	return a.IsNumeric() && b.IsNumeric()
}

// ParseType maps a type name as written in catalogs and query documents to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "int", "integer":
		return IntType, nil
	case "double", "float":
		return FloatType, nil
	case "string", "text":
		return StringType, nil
	case "bool", "boolean":
		return BoolType, nil
	default:
		return 0, fmt.Errorf("unknown type name %q", name)
	}
}
