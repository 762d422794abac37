package planner

import (
	"pagedb/pkg/execution/aggregation"
	"pagedb/pkg/execution/join"
	"pagedb/pkg/expr"
	"strings"
)

// conjoin folds conjuncts into one predicate. No conjuncts is the empty
// predicate, which accepts everything.
func conjoin(conjuncts []string) string {
	if len(conjuncts) == 0 {
		return ""
	}
	out := conjuncts[0]
	for _, c := range conjuncts[1:] {
		out = "&& ( " + out + "," + c + ")"
	}
	return out
}

// joinPredicates is the where clause of a two-table query split by the
// inputs each conjunct reads.
type joinPredicates struct {
	left, right []string
	final       []string
	keys        join.EqualityCheck
	found       bool
}

// splitJoinPredicates sorts conjuncts into left filters, right filters and
// the final predicate. A conjunct that reads neither input filters the left
// one. The first conjunct of the form == (x, y) with x and y on opposite
// sides supplies the join keys.
func splitJoinPredicates(where []string, lb, rb expr.Binding) (*joinPredicates, error) {
	var p joinPredicates
	for _, w := range where {
		c, err := expr.CompilePredicate(w, lb, rb)
		if err != nil {
			return nil, err
		}

		usesLeft, usesRight := c.Uses(0), c.Uses(1)
		switch {
		case usesLeft && usesRight:
			p.final = append(p.final, w)
			if !p.found {
				p.keys, p.found = equalityPair(w, lb, rb)
			}
		case usesRight:
			p.right = append(p.right, w)
		default:
			p.left = append(p.left, w)
		}
	}
	return &p, nil
}

// equalityPair extracts the join keys from an == whose operands each read one
// side.
func equalityPair(text string, lb, rb expr.Binding) (join.EqualityCheck, bool) {
	n, err := expr.Parse(text)
	if err != nil || n.Kind != expr.OperatorNode || n.Op != "==" {
		return join.EqualityCheck{}, false
	}

	a, b := n.Children[0].String(), n.Children[1].String()
	switch {
	case readsOnly(a, lb) && readsOnly(b, rb):
		return join.EqualityCheck{LeftKey: a, RightKey: b}, true
	case readsOnly(b, lb) && readsOnly(a, rb):
		return join.EqualityCheck{LeftKey: b, RightKey: a}, true
	}
	return join.EqualityCheck{}, false
}

// readsOnly reports whether text compiles against scope alone and reads it.
func readsOnly(text string, scope expr.Binding) bool {
	c, err := expr.Compile(text, scope)
	return err == nil && c.Uses(0)
}

// aggregateSpec turns a select item into the aggregate it computes. sum of
// the constant 1 is a count.
func aggregateSpec(item SelectItem) (aggregation.AggSpec, error) {
	kind, err := aggregation.ParseAggKind(item.Agg)
	if err != nil {
		return aggregation.AggSpec{}, err
	}
	text := strings.TrimSpace(item.Expr)
	if kind == aggregation.Sum && isConstantOne(text) {
		return aggregation.AggSpec{Kind: aggregation.Count, Expr: "int[0]"}, nil
	}
	if kind == aggregation.Count {
		text = "int[0]"
	}
	return aggregation.AggSpec{Kind: kind, Expr: text}, nil
}

func isConstantOne(text string) bool {
	n, err := expr.Parse(text)
	return err == nil && n.Kind == expr.LiteralNode && n.LiteralType == "int" && strings.TrimSpace(n.Literal) == "1"
}
