package expr

import (
	"fmt"
	"strings"

	"pagedb/pkg/dberror"
)

var arity = map[string]int{
	"==": 2, "!=": 2, "<": 2, ">": 2, "<=": 2, ">=": 2,
	"&&": 2, "||": 2,
	"+": 2, "-": 2, "*": 2, "/": 2,
	"!": 1,
}

type parser struct {
	lex  *lexer
	look token
}

// Parse parses text into an unbound expression tree. Malformed text is
// reported as a CompileError.
func Parse(text string) (*Node, error) {
	p := &parser{lex: &lexer{src: text}}
	if err := p.advance(); err != nil {
		return nil, dberror.Compile(text, err)
	}

	n, err := p.parseExpr()
	if err != nil {
		return nil, dberror.Compile(text, err)
	}
	if p.look.kind != tokEOF {
		return nil, dberror.Compile(text, fmt.Errorf("unexpected trailing input at offset %d", p.look.pos))
	}
	return n, nil
}

func (p *parser) advance() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.look = t
	return nil
}

func (p *parser) expect(kind tokenKind, what string) error {
	if p.look.kind != kind {
		return fmt.Errorf("expected %s at offset %d", what, p.look.pos)
	}
	return p.advance()
}

func (p *parser) parseExpr() (*Node, error) {
	t := p.look
	switch t.kind {
	case tokLiteral:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &Node{Kind: LiteralNode, LiteralType: strings.ToLower(t.typ), Literal: t.text}, nil

	case tokAttr:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return attributeNode(t)

	case tokOp:
		if err := p.advance(); err != nil {
			return nil, err
		}
		return p.parseOperator(t)

	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	default:
		return nil, fmt.Errorf("unexpected token at offset %d", t.pos)
	}
}

func (p *parser) parseOperator(t token) (*Node, error) {
	if err := p.expect(tokLParen, "'(' after "+t.text); err != nil {
		return nil, err
	}

	n := &Node{Kind: OperatorNode, Op: t.text}
	for {
		child, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
		if p.look.kind != tokComma {
			break
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	if want := arity[t.text]; len(n.Children) != want {
		return nil, fmt.Errorf("operator %s takes %d operand(s), got %d", t.text, want, len(n.Children))
	}
	return n, nil
}

func attributeNode(t token) (*Node, error) {
	if t.text == "" {
		return nil, fmt.Errorf("empty attribute reference at offset %d", t.pos)
	}

	alias, name, qualified := strings.Cut(t.text, ".")
	if !qualified {
		return &Node{Kind: AttributeNode, Name: t.text}, nil
	}
	if alias == "" || name == "" {
		return nil, fmt.Errorf("malformed attribute reference [%s]", t.text)
	}
	return &Node{Kind: AttributeNode, Alias: alias, Name: name}, nil
}
