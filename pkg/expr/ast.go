package expr

import (
	"strings"
)

// NodeKind distinguishes the three forms an expression can take.
type NodeKind int

const (
	LiteralNode NodeKind = iota
	AttributeNode
	OperatorNode
)

// Node is a parsed, unbound expression.
//
// Text forms:
//
//	int[5]  double[1.5]  string[abc]  bool[true]   literals
//	[name]  [alias.name]                           attribute references
//	== ([a], int[1])  ! ([flag])                   prefix operators
type Node struct {
	Kind NodeKind

	// Literal
	LiteralType string
	Literal     string

	// Attribute
	Alias string
	Name  string

	// Operator
	Op       string
	Children []*Node
}

// String renders the node in canonical text form. Parsing the result yields
// an equal node.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	switch n.Kind {
	case LiteralNode:
		b.WriteString(n.LiteralType)
		b.WriteByte('[')
		b.WriteString(n.Literal)
		b.WriteByte(']')
	case AttributeNode:
		b.WriteByte('[')
		if n.Alias != "" {
			b.WriteString(n.Alias)
			b.WriteByte('.')
		}
		b.WriteString(n.Name)
		b.WriteByte(']')
	case OperatorNode:
		b.WriteString(n.Op)
		b.WriteString(" (")
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			c.write(b)
		}
		b.WriteByte(')')
	}
}

// Attributes returns every attribute reference under n, in textual order.
func (n *Node) Attributes() []*Node {
	var out []*Node
	n.walk(func(c *Node) {
		if c.Kind == AttributeNode {
			out = append(out, c)
		}
	})
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, c := range n.Children {
		c.walk(fn)
	}
}
