package aggregation

import (
	"fmt"
	"pagedb/pkg/types"
	"strings"
)

// AggKind is an aggregate function.
type AggKind int

const (
	Sum AggKind = iota
	Avg
	Count
)

func (k AggKind) String() string {
	switch k {
	case Sum:
		return "sum"
	case Avg:
		return "avg"
	case Count:
		return "cnt"
	default:
		return "unknown"
	}
}

// ResultType is the type of the output attribute holding the aggregate.
func (k AggKind) ResultType() types.Type {
	if k == Count {
		return types.IntType
	}
	return types.FloatType
}

// ParseAggKind maps "sum", "avg" and "count" (or "cnt") to an AggKind.
func ParseAggKind(s string) (AggKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sum":
		return Sum, nil
	case "avg", "average":
		return Avg, nil
	case "count", "cnt":
		return Count, nil
	default:
		return 0, fmt.Errorf("unknown aggregate %q", s)
	}
}

// AggSpec is one aggregate of a run: its kind and the operand expression
// text. The operand of a Count is compiled but never used.
type AggSpec struct {
	Kind AggKind
	Expr string
}

func (s AggSpec) String() string {
	return fmt.Sprintf("%s(%s)", s.Kind, s.Expr)
}
