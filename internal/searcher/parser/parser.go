// Package parser reads interval-algebra queries written as S-expressions,
// rewrites them into binary form, and compiles them into cursor graphs.
//
//	query := term | "(" op operand* ")" | "(" "#" width ")"
//	term  := bare | '"' ... '"' | "'" ... "'" | "`" ... "`"
//
// Double-quoted terms are phrases: ExpandPhrases rewrites them into a window
// of adjacent tokens.
package parser

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/concordance/pkg/errors"
)

const maxDepth = 128

// ParseError reports where and why a query failed to parse.
type ParseError struct {
	Offset int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at offset %d: %s", e.Offset, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return apperrors.ErrInvalidQuery
}

// Expr is one node of a parsed query. Term nodes carry the unescaped text
// and the quote they were written with (0 for bare terms); Fixed nodes carry
// Width; operator nodes carry Args.
type Expr struct {
	Op    Op
	Term  string
	Quote byte
	Width int64
	Args  []*Expr
}

func NewTerm(term string) *Expr {
	return &Expr{Op: Term, Term: term}
}

func NewFixed(width int64) *Expr {
	return &Expr{Op: Fixed, Width: width}
}

func NewOp(op Op, args ...*Expr) *Expr {
	return &Expr{Op: op, Args: args}
}

// String renders the canonical form: symbolic operators, single spaces, and
// terms re-quoted with their original quote.
func (e *Expr) String() string {
	var b strings.Builder
	e.write(&b)
	return b.String()
}

func (e *Expr) write(b *strings.Builder) {
	switch e.Op {
	case Term:
		if e.Quote == 0 {
			b.WriteString(e.Term)
			return
		}
		b.WriteByte(e.Quote)
		for i := 0; i < len(e.Term); i++ {
			if c := e.Term[i]; c == e.Quote || c == '\\' {
				b.WriteByte('\\')
			}
			b.WriteByte(e.Term[i])
		}
		b.WriteByte(e.Quote)
	case Fixed:
		fmt.Fprintf(b, "(# %d)", e.Width)
	default:
		b.WriteByte('(')
		b.WriteString(e.Op.String())
		for _, arg := range e.Args {
			b.WriteByte(' ')
			arg.write(b)
		}
		b.WriteByte(')')
	}
}

// Parse reads a complete query. Anything after the first expression other
// than whitespace is an error.
func Parse(query string) (*Expr, error) {
	p := &parser{src: query}
	p.skipSpace()
	if p.eof() {
		return nil, p.fail(p.pos, "empty query")
	}
	expr, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if !p.eof() {
		return nil, p.fail(p.pos, "unexpected trailing input %q", p.src[p.pos:])
	}
	return expr, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *parser) peek() byte {
	return p.src[p.pos]
}

func (p *parser) fail(offset int, format string, args ...any) *ParseError {
	return &ParseError{Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isTermByte(c byte) bool {
	return !isSpace(c) && c != '(' && c != ')'
}

func isQuote(c byte) bool {
	return c == '"' || c == '\'' || c == '`'
}

func (p *parser) skipSpace() {
	for !p.eof() && isSpace(p.peek()) {
		p.pos++
	}
}

func (p *parser) expr(depth int) (*Expr, error) {
	if depth > maxDepth {
		return nil, p.fail(p.pos, "expression nested deeper than %d", maxDepth)
	}
	switch c := p.peek(); {
	case c == '(':
		return p.application(depth)
	case c == ')':
		return nil, p.fail(p.pos, "unbalanced parentheses: unexpected ')'")
	case isQuote(c):
		return p.quoted()
	default:
		start := p.pos
		for !p.eof() && isTermByte(p.peek()) {
			p.pos++
		}
		return NewTerm(p.src[start:p.pos]), nil
	}
}

func (p *parser) quoted() (*Expr, error) {
	start := p.pos
	quote := p.peek()
	p.pos++
	var b strings.Builder
	for {
		if p.eof() {
			return nil, p.fail(start, "unterminated quote")
		}
		c := p.peek()
		p.pos++
		switch {
		case c == quote:
			return &Expr{Op: Term, Term: b.String(), Quote: quote}, nil
		case c == '\\' && !p.eof():
			b.WriteByte(p.peek())
			p.pos++
		default:
			b.WriteByte(c)
		}
	}
}

func (p *parser) application(depth int) (*Expr, error) {
	open := p.pos
	p.pos++
	p.skipSpace()
	start := p.pos
	for !p.eof() && isTermByte(p.peek()) {
		p.pos++
	}
	if start == p.pos {
		if p.eof() {
			return nil, p.fail(open, "unbalanced parentheses: missing ')'")
		}
		return nil, p.fail(start, "missing operator")
	}
	name := p.src[start:p.pos]
	op, ok := lookup(name)
	if !ok {
		return nil, p.fail(start, "unknown operator %q", name)
	}
	p.skipSpace()

	if op == Fixed {
		return p.fixed(open)
	}

	expr := NewOp(op)
	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.fail(open, "unbalanced parentheses: missing ')'")
		}
		if p.peek() == ')' {
			break
		}
		arg, err := p.expr(depth + 1)
		if err != nil {
			return nil, err
		}
		expr.Args = append(expr.Args, arg)
	}
	info := operators[op]
	if n := len(expr.Args); n < info.min || (info.max > 0 && n > info.max) {
		return nil, p.fail(p.pos, "operator %s takes %s, got %d", op, info.arity(), n)
	}
	p.pos++
	return expr, nil
}

func (p *parser) fixed(open int) (*Expr, error) {
	start := p.pos
	var width int64
	for !p.eof() && p.peek() >= '0' && p.peek() <= '9' {
		width = 10*width + int64(p.peek()-'0')
		if width > 1<<40 {
			return nil, p.fail(start, "width too large")
		}
		p.pos++
	}
	if start == p.pos {
		return nil, p.fail(p.pos, "operator # needs a width")
	}
	p.skipSpace()
	if p.eof() {
		return nil, p.fail(open, "unbalanced parentheses: missing ')'")
	}
	if p.peek() != ')' {
		return nil, p.fail(p.pos, "operator # takes only a width")
	}
	p.pos++
	return NewFixed(width), nil
}
