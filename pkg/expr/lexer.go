package expr

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLParen
	tokRParen
	tokComma
	tokAttr    // [name] or [alias.name]
	tokLiteral // int[..], double[..], string[..], bool[..]
	tokOp
)

type token struct {
	kind tokenKind
	text string // operator, attribute reference or literal body
	typ  string // literal type name
	pos  int
}

var operators = []string{"==", "!=", "<=", ">=", "&&", "||", "<", ">", "!", "+", "-", "*", "/"}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(rune(l.src[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	switch c := l.src[l.pos]; {
	case c == '(':
		l.pos++
		return token{kind: tokLParen, pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokRParen, pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokComma, pos: start}, nil
	case c == '[':
		body, err := l.bracketed()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokAttr, text: strings.TrimSpace(body), pos: start}, nil
	case isLetter(c):
		for l.pos < len(l.src) && isLetter(l.src[l.pos]) {
			l.pos++
		}
		typ := l.src[start:l.pos]
		if l.pos >= len(l.src) || l.src[l.pos] != '[' {
			return token{}, fmt.Errorf("expected '[' after %q at offset %d", typ, start)
		}
		body, err := l.bracketed()
		if err != nil {
			return token{}, err
		}
		return token{kind: tokLiteral, typ: typ, text: body, pos: start}, nil
	}

	for _, op := range operators {
		if strings.HasPrefix(l.src[l.pos:], op) {
			l.pos += len(op)
			return token{kind: tokOp, text: op, pos: start}, nil
		}
	}
	return token{}, fmt.Errorf("unexpected %q at offset %d", l.src[l.pos], l.pos)
}

// bracketed consumes "[...]" and returns the text between the brackets.
func (l *lexer) bracketed() (string, error) {
	open := l.pos
	end := strings.IndexByte(l.src[open:], ']')
	if end < 0 {
		return "", fmt.Errorf("unterminated '[' at offset %d", open)
	}
	l.pos = open + end + 1
	return l.src[open+1 : open+end], nil
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
