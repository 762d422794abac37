package types

import (
	"cmp"
	"fmt"
	"strings"
)

// CompareFields orders two fields and returns a negative number, zero or a
// positive number. Int and double compare numerically; double equality is
// within epsilon. Any other pair of distinct types is an error.
func CompareFields(a, b Field) (int, error) {
	if a == nil || b == nil {
		return 0, fmt.Errorf("cannot compare nil fields")
	}

	switch av := a.(type) {
	case *IntField:
		switch bv := b.(type) {
		case *IntField:
			return cmp.Compare(av.Value, bv.Value), nil
		case *Float64Field:
			return compareFloats(float64(av.Value), bv.Value), nil
		}
	case *Float64Field:
		if b.Type().IsNumeric() {
			return compareFloats(av.Value, b.ToFloat()), nil
		}
	case *StringField:
		if bv, ok := b.(*StringField); ok {
			return strings.Compare(av.Value, bv.Value), nil
		}
	case *BoolField:
		if bv, ok := b.(*BoolField); ok {
			return cmp.Compare(av.ToInt(), bv.ToInt()), nil
		}
	}

	return 0, fmt.Errorf("cannot compare %v with %v", a.Type(), b.Type())
}

func compareFloats(a, b float64) int {
	if a-b < epsilon && b-a < epsilon {
		return 0
	}
	return cmp.Compare(a, b)
}
