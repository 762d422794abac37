package expr

import (
	"fmt"

	"pagedb/pkg/primitives"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

type evaluator interface {
	eval(rows []*tuple.Tuple) (types.Field, error)
	resultType() types.Type
}

type constant struct {
	value types.Field
}

func (c *constant) eval([]*tuple.Tuple) (types.Field, error) { return c.value, nil }
func (c *constant) resultType() types.Type { return c.value.Type() }

type attribute struct {
	row   int
	field int
	typ   types.Type
}

func (a *attribute) eval(rows []*tuple.Tuple) (types.Field, error) {
	f, err := rows[a.row].GetField(a.field)
	if err != nil {
		return nil, err
	}
	if f == nil {
		return nil, fmt.Errorf("field %d of record %d is not set", a.field, a.row)
	}
	return f, nil
}

func (a *attribute) resultType() types.Type { return a.typ }

var comparisons = map[string]primitives.Predicate{
	"==": primitives.Equals,
	"!=": primitives.NotEqual,
	"<":  primitives.LessThan,
	">":  primitives.GreaterThan,
	"<=": primitives.LessThanOrEqual,
	">=": primitives.GreaterThanOrEqual,
}

type compare struct {
	pred        primitives.Predicate
	left, right evaluator
}

func (c *compare) eval(rows []*tuple.Tuple) (types.Field, error) {
	l, err := c.left.eval(rows)
	if err != nil {
		return nil, err
	}
	r, err := c.right.eval(rows)
	if err != nil {
		return nil, err
	}
	order, err := types.CompareFields(l, r)
	if err != nil {
		return nil, err
	}
	return types.NewBoolField(c.pred.Holds(order)), nil
}

func (c *compare) resultType() types.Type { return types.BoolType }

type logical struct {
	and         bool
	left, right evaluator
}

func (l *logical) eval(rows []*tuple.Tuple) (types.Field, error) {
	lv, err := l.left.eval(rows)
	if err != nil {
		return nil, err
	}
	if lv.ToBool() != l.and {
		return types.NewBoolField(!l.and), nil
	}
	rv, err := l.right.eval(rows)
	if err != nil {
		return nil, err
	}
	return types.NewBoolField(rv.ToBool()), nil
}

func (l *logical) resultType() types.Type { return types.BoolType }

type not struct {
	operand evaluator
}

func (n *not) eval(rows []*tuple.Tuple) (types.Field, error) {
	v, err := n.operand.eval(rows)
	if err != nil {
		return nil, err
	}
	return types.NewBoolField(!v.ToBool()), nil
}

func (n *not) resultType() types.Type { return types.BoolType }

type arithmetic struct {
	op          string
	typ         types.Type
	left, right evaluator
}

func (a *arithmetic) eval(rows []*tuple.Tuple) (types.Field, error) {
	l, err := a.left.eval(rows)
	if err != nil {
		return nil, err
	}
	r, err := a.right.eval(rows)
	if err != nil {
		return nil, err
	}

	switch a.typ {
	case types.StringType:
		return types.NewStringField(l.String() + r.String()), nil
	case types.IntType:
		x, y := l.ToInt(), r.ToInt()
		switch a.op {
		case "+":
			return types.NewIntField(x + y), nil
		case "-":
			return types.NewIntField(x - y), nil
		default:
			return types.NewIntField(x * y), nil
		}
	default:
		x, y := l.ToFloat(), r.ToFloat()
		switch a.op {
		case "+":
			return types.NewFloat64Field(x + y), nil
		case "-":
			return types.NewFloat64Field(x - y), nil
		case "*":
			return types.NewFloat64Field(x * y), nil
		default:
			return types.NewFloat64Field(x / y), nil
		}
	}
}

func (a *arithmetic) resultType() types.Type { return a.typ }

// bindOperator type-checks an operator application.
//
// Comparisons require comparable operands. && || and ! require bool
// operands. + - * require numeric operands and yield int only when both
// operands are int; + over two strings concatenates. / always yields double.
func bindOperator(op string, children []evaluator) (evaluator, error) {
	if op == "!" {
		if t := children[0].resultType(); t != types.BoolType {
			return nil, fmt.Errorf("! needs a bool operand, got %v", t)
		}
		return &not{operand: children[0]}, nil
	}

	left, right := children[0], children[1]
	lt, rt := left.resultType(), right.resultType()

	if pred, ok := comparisons[op]; ok {
		if !types.Comparable(lt, rt) {
			return nil, fmt.Errorf("cannot compare %v with %v using %s", lt, rt, op)
		}
		return &compare{pred: pred, left: left, right: right}, nil
	}

	switch op {
	case "&&", "||":
		if lt != types.BoolType || rt != types.BoolType {
			return nil, fmt.Errorf("%s needs bool operands, got %v and %v", op, lt, rt)
		}
		return &logical{and: op == "&&", left: left, right: right}, nil

	case "+", "-", "*", "/":
		if op == "+" && lt == types.StringType && rt == types.StringType {
			return &arithmetic{op: op, typ: types.StringType, left: left, right: right}, nil
		}
		if !lt.IsNumeric() || !rt.IsNumeric() {
			return nil, fmt.Errorf("%s needs numeric operands, got %v and %v", op, lt, rt)
		}
		typ := types.FloatType
		if op != "/" && lt == types.IntType && rt == types.IntType {
			typ = types.IntType
		}
		return &arithmetic{op: op, typ: typ, left: left, right: right}, nil
	}

	return nil, fmt.Errorf("unknown operator %q", op)
}
