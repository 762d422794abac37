// Package expr compiles textual prefix expressions into evaluators over
// records.
//
// An expression is compiled once against a scope, an ordered list of
// (alias, schema) bindings, and then evaluated for every record (or pair of
// records) by passing the records explicitly, in scope order:
//
//	key, err := expr.Compile("[o.cust]", expr.Bind("o", orders))
//	v, err := key.Eval(rec)
//
// Compilation resolves every attribute reference to a (binding, field) pair
// and fixes the result type, so evaluation never looks names up.
package expr

import (
	"fmt"
	"strings"

	"pagedb/pkg/dberror"
	"pagedb/pkg/tuple"
	"pagedb/pkg/types"
)

// Binding names a schema in a compilation scope.
type Binding struct {
	Alias  string
	Schema *tuple.TupleDescription
}

// Bind is shorthand for a Binding literal.
func Bind(alias string, schema *tuple.TupleDescription) Binding {
	return Binding{Alias: alias, Schema: schema}
}

// AlwaysTrue is the text used for an empty filter or predicate.
const AlwaysTrue = "bool[true]"

// Compiled is an expression bound to a scope.
type Compiled struct {
	Text  string
	Type  types.Type
	root  evaluator
	scope []Binding
	used  []bool
}

// Compile parses text and binds it against scope. An empty or blank text
// compiles to the constant true. Errors are CompileErrors.
func Compile(text string, scope ...Binding) (*Compiled, error) {
	if strings.TrimSpace(text) == "" {
		text = AlwaysTrue
	}

	n, err := Parse(text)
	if err != nil {
		return nil, err
	}

	c := &Compiled{Text: text, scope: scope, used: make([]bool, len(scope))}
	root, err := c.bind(n)
	if err != nil {
		return nil, dberror.Compile(text, err)
	}
	c.root = root
	c.Type = root.resultType()
	return c, nil
}

// CompilePredicate compiles text and requires a boolean result.
func CompilePredicate(text string, scope ...Binding) (*Compiled, error) {
	c, err := Compile(text, scope...)
	if err != nil {
		return nil, err
	}
	if c.Type != types.BoolType {
		return nil, dberror.Compile(c.Text, fmt.Errorf("predicate has type %v, want bool", c.Type))
	}
	return c, nil
}

// Eval evaluates the expression. rows must hold one record per scope
// binding, in scope order.
func (c *Compiled) Eval(rows ...*tuple.Tuple) (types.Field, error) {
	if len(rows) < len(c.scope) {
		return nil, fmt.Errorf("expression %s needs %d records, got %d", c.Text, len(c.scope), len(rows))
	}
	return c.root.eval(rows)
}

// Holds evaluates a predicate and coerces the result to bool.
func (c *Compiled) Holds(rows ...*tuple.Tuple) (bool, error) {
	v, err := c.Eval(rows...)
	if err != nil {
		return false, err
	}
	return v.ToBool(), nil
}

// Uses reports whether the expression references binding i of its scope.
func (c *Compiled) Uses(i int) bool {
	return i >= 0 && i < len(c.used) && c.used[i]
}

// IsConstant reports whether the expression references no attribute.
func (c *Compiled) IsConstant() bool {
	for _, u := range c.used {
		if u {
			return false
		}
	}
	return true
}

func (c *Compiled) String() string {
	return fmt.Sprintf("%s : %v", c.Text, c.Type)
}

func (c *Compiled) bind(n *Node) (evaluator, error) {
	switch n.Kind {
	case LiteralNode:
		return bindLiteral(n)
	case AttributeNode:
		return c.bindAttribute(n)
	default:
		children := make([]evaluator, len(n.Children))
		for i, child := range n.Children {
			e, err := c.bind(child)
			if err != nil {
				return nil, err
			}
			children[i] = e
		}
		return bindOperator(n.Op, children)
	}
}

func bindLiteral(n *Node) (evaluator, error) {
	var t types.Type
	switch n.LiteralType {
	case "int":
		t = types.IntType
	case "double", "float":
		t = types.FloatType
	case "string":
		t = types.StringType
	case "bool":
		t = types.BoolType
	default:
		return nil, fmt.Errorf("unknown literal type %q", n.LiteralType)
	}

	v, err := types.ParseText(n.Literal, t)
	if err != nil {
		return nil, err
	}
	return &constant{value: v}, nil
}

func (c *Compiled) bindAttribute(n *Node) (evaluator, error) {
	found := -1
	field := -1
	for i, b := range c.scope {
		if n.Alias != "" && n.Alias != b.Alias {
			continue
		}
		idx, err := b.Schema.FindFieldIndex(n.Name)
		if err != nil {
			continue
		}
		if found >= 0 {
			return nil, fmt.Errorf("attribute %s is ambiguous between %q and %q", n, c.scope[found].Alias, b.Alias)
		}
		found, field = i, idx
	}
	if found < 0 {
		return nil, fmt.Errorf("attribute %s not found", n)
	}

	c.used[found] = true
	t, _ := c.scope[found].Schema.TypeAtIndex(field)
	return &attribute{row: found, field: field, typ: t}, nil
}
