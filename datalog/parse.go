package datalog

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/internal/syntax"
)

// ErrSyntax is the sentinel behind every *ParseError.
var ErrSyntax = errors.New("rule syntax error")

// ParseError reports malformed rule text.
type ParseError struct {
	Message     string
	Pos         syntax.Position
	Token       string
	Suggestions []string
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s at line %d, column %d", e.Message, e.Pos.Line, e.Pos.Column)
	if e.Token != "" {
		msg += fmt.Sprintf(" (near %q)", e.Token)
	}
	if len(e.Suggestions) > 0 {
		msg += ". " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

// Unwrap lets errors.Is match ErrSyntax.
func (e *ParseError) Unwrap() error { return ErrSyntax }

// Clause is one parsed statement. Mapping statements may have several heads;
// a plain rule has exactly one.
type Clause struct {
	Name    string
	Negated bool
	Heads   []*Atom
	Body    []*Atom
}

// Rules returns one rule per head, each sharing the clause body atoms.
func (c *Clause) Rules() []*Rule {
	out := make([]*Rule, len(c.Heads))
	for i, h := range c.Heads {
		out[i] = &Rule{Name: c.Name, Head: h, Body: c.Body, NegatedHead: c.Negated}
	}
	return out
}

// ParseRule parses a single rule:
//
//	[label:] [NOT] head(args) [:- atom(args), ...] [.]
func ParseRule(src string) (*Rule, error) {
	p := newParser(src)
	start := p.s.Mark()
	c, err := p.clause()
	if err != nil {
		return nil, err
	}
	if !p.s.AtEOF() {
		return nil, p.errorf("unexpected input after rule")
	}
	if len(c.Heads) != 1 {
		return nil, &ParseError{Message: "rule must have exactly one head", Pos: start}
	}
	return c.Rules()[0], nil
}

// ParseClause parses one statement that may carry several comma-separated
// heads, as mapping definitions do.
func ParseClause(src string) (*Clause, error) {
	p := newParser(src)
	c, err := p.clause()
	if err != nil {
		return nil, err
	}
	if !p.s.AtEOF() {
		return nil, p.errorf("unexpected input after clause")
	}
	return c, nil
}

// ParseProgram parses a sequence of rules separated by '.'. Lines starting
// with '%' are comments.
func ParseProgram(src string) ([]*Rule, error) {
	p := newParser(src)
	var rules []*Rule
	for !p.s.AtEOF() {
		start := p.s.Mark()
		c, err := p.clause()
		if err != nil {
			return nil, err
		}
		if len(c.Heads) != 1 {
			return nil, &ParseError{Message: "rule must have exactly one head", Pos: start}
		}
		rules = append(rules, c.Rules()[0])
	}
	return rules, nil
}

type parser struct {
	s *syntax.Scanner
}

func newParser(src string) *parser {
	s := syntax.NewScanner(src)
	s.LineComment = "%"
	return &parser{s: s}
}

func (p *parser) errorf(format string, args ...interface{}) *ParseError {
	p.s.SkipSpace()
	tok := p.s.Rest()
	if i := strings.IndexFunc(tok, unicode.IsSpace); i >= 0 {
		tok = tok[:i]
	}
	if len(tok) > 16 {
		tok = tok[:16]
	}
	return &ParseError{Message: fmt.Sprintf(format, args...), Pos: p.s.Mark(), Token: tok}
}

func (p *parser) clause() (*Clause, error) {
	c := &Clause{}

	// optional label: ident ':' (but not ':-')
	p.s.SkipSpace()
	mark := p.s.Mark()
	if id := p.s.TakeWhile(syntax.IsIdentRune); id != "" {
		p.s.SkipSpace()
		if p.s.HasPrefix(":") && !p.s.HasPrefix(":-") {
			p.s.Advance(":")
			c.Name = id
		} else {
			p.s.Reset(mark)
		}
	}

	c.Negated = p.s.ConsumeKeyword("NOT")

	for {
		head, err := p.atom()
		if err != nil {
			return nil, err
		}
		c.Heads = append(c.Heads, head)
		if !p.s.Consume(",") {
			break
		}
	}

	if p.s.Consume(":-") && !p.s.AtEOF() && !p.s.HasPrefix(".") {
		for {
			a, err := p.atom()
			if err != nil {
				return nil, err
			}
			c.Body = append(c.Body, a)
			if !p.s.Consume(",") {
				break
			}
		}
	}

	if !p.s.Consume(".") && !p.s.AtEOF() {
		e := p.errorf("expected '.' or ','")
		e.Suggestions = append(e.Suggestions, "terminate each rule with '.'")
		return nil, e
	}
	return c, nil
}

func (p *parser) atom() (*Atom, error) {
	p.s.SkipSpace()
	if !syntax.IsIdentStart(p.s.Peek()) {
		return nil, p.errorf("expected relation name")
	}
	parts := []string{p.s.TakeWhile(syntax.IsIdentRune)}
	for p.s.HasPrefix(".") {
		rest := p.s.Rest()
		if len(rest) < 2 || !syntax.IsIdentStart(rune(rest[1])) {
			break
		}
		p.s.Advance(".")
		parts = append(parts, p.s.TakeWhile(syntax.IsIdentRune))
	}
	a := &Atom{Relation: ParseRelationKey(strings.Join(parts, "."))}

	if !p.s.Consume("(") {
		return nil, p.errorf("expected '(' after %s", a.Key())
	}
	if p.s.Consume(")") {
		return a, nil
	}
	for {
		t, err := p.term()
		if err != nil {
			return nil, err
		}
		a.Args = append(a.Args, t)
		if p.s.Consume(")") {
			return a, nil
		}
		if !p.s.Consume(",") {
			return nil, p.errorf("expected ',' or ')' in arguments of %s", a.Key())
		}
	}
}

func (p *parser) term() (Term, error) {
	p.s.SkipSpace()
	r := p.s.Peek()
	switch {
	case r == '"' || r == '\'':
		text, ok := p.s.Quoted(r)
		if !ok {
			return Term{}, p.errorf("unterminated string")
		}
		return Const(text), nil
	case r == '-' || unicode.IsDigit(r):
		num := p.s.TakeWhile(func(c rune) bool { return c == '-' || c == '.' || unicode.IsDigit(c) })
		if !isNumber(num) {
			return Term{}, p.errorf("malformed number %q", num)
		}
		return Const(num), nil
	case r == '_' || unicode.IsLower(r):
		return Var(p.s.TakeWhile(syntax.IsIdentRune)), nil
	case unicode.IsUpper(r):
		return Const(p.s.TakeWhile(syntax.IsIdentRune)), nil
	default:
		return Term{}, p.errorf("expected variable or constant")
	}
}
