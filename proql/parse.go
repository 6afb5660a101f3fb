package proql

import (
	"strings"
	"unicode"

	"github.com/gobwas/glob"

	"github.com/teranos/orx/internal/syntax"
)

// ParsePattern parses a bare pattern.
func ParsePattern(text string) (*Pattern, error) {
	p := newParser(text)
	pat, err := p.pattern()
	if err != nil {
		return nil, err
	}
	if !p.s.AtEOF() {
		return nil, p.unexpected("unexpected input after pattern")
	}
	return pat, nil
}

// ParseQuery parses
//
//	[EVALUATE semiring OF] pattern [RETURN $var]
func ParseQuery(text string) (*Query, error) {
	p := newParser(text)
	q := &Query{}

	if p.s.ConsumeKeyword("EVALUATE") {
		p.s.SkipSpace()
		q.Semiring = strings.ToUpper(p.s.TakeWhile(syntax.IsIdentRune))
		if q.Semiring == "" {
			return nil, p.unexpected("expected semiring name after EVALUATE").
				WithSuggestion("EVALUATE BOOLEAN OF [R1] <- []")
		}
		if !p.s.ConsumeKeyword("OF") {
			return nil, p.unexpected("expected OF after EVALUATE " + q.Semiring)
		}
	}

	pat, err := p.pattern()
	if err != nil {
		return nil, err
	}
	q.Pattern = pat

	if p.s.ConsumeKeyword("RETURN") {
		p.s.SkipSpace()
		at := p.s.Mark()
		v, ok := p.variable()
		if !ok {
			return nil, p.unexpected("expected $variable after RETURN")
		}
		bound := false
		for _, b := range pat.Variables() {
			if b == v {
				bound = true
			}
		}
		if !bound {
			return nil, newParseError(ErrorKindSemantic, at, "RETURN variable $%s is not bound in the pattern", v).
				WithToken("$" + v).
				WithSuggestion("bind it on a group ([R1 $r]) or an edge ($m <-)")
		}
		q.Return = v
	}

	if !p.s.AtEOF() {
		return nil, p.unexpected("unexpected input after query")
	}
	return q, nil
}

type parser struct {
	s *syntax.Scanner
}

func newParser(text string) *parser {
	return &parser{s: syntax.NewScanner(text)}
}

// unexpected builds a syntax error at the current position, quoting the
// next token.
func (p *parser) unexpected(msg string) *ParseError {
	p.s.SkipSpace()
	tok := p.s.Rest()
	if i := strings.IndexFunc(tok, unicode.IsSpace); i >= 0 {
		tok = tok[:i]
	}
	e := newParseError(ErrorKindSyntax, p.s.Mark(), "%s", msg)
	if tok == "" {
		return e.WithToken("<end of input>")
	}
	return e.WithToken(tok)
}

// pattern := group+ (edge group+)*
func (p *parser) pattern() (*Pattern, error) {
	targets, err := p.groups()
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, p.unexpected("pattern must start with a group").
			WithSuggestion("[R1] <- []")
	}

	pat := &Pattern{}
	for {
		p.s.SkipSpace()
		if p.s.AtEOF() || p.atKeyword("RETURN") {
			break
		}
		step, err := p.edge()
		if err != nil {
			return nil, err
		}
		sources, err := p.groups()
		if err != nil {
			return nil, err
		}
		if len(sources) == 0 {
			return nil, p.unexpected("expected a group after the edge").
				WithSuggestion("use [] to match any relation")
		}
		h := step.Base()
		h.Targets = targets
		h.Sources = sources
		pat.Steps = append(pat.Steps, step)
		targets = sources
	}

	if len(pat.Steps) == 0 {
		return nil, p.unexpected("pattern needs at least one edge").
			WithSuggestion("derivation edge: [R1] <- [R2]").
			WithSuggestion("chain edge: [R1] ** []")
	}
	return pat, nil
}

func (p *parser) atKeyword(kw string) bool {
	mark := p.s.Mark()
	ok := p.s.ConsumeKeyword(kw)
	p.s.Reset(mark)
	return ok
}

// groups parses zero or more adjacent "[name? $var?]" groups.
func (p *parser) groups() ([]TupleMatch, error) {
	var out []TupleMatch
	for {
		p.s.SkipSpace()
		open := p.s.Mark()
		if !p.s.Consume("[") {
			return out, nil
		}
		p.s.SkipSpace()
		name := p.name()
		p.s.SkipSpace()
		v, _ := p.variable()
		if !p.s.Consume("]") {
			if p.s.AtEOF() {
				return nil, newParseError(ErrorKindSyntax, open, "unclosed group").
					WithToken("[").
					WithSuggestion("close the group with ']'")
			}
			return nil, p.unexpected("expected ']' to close the group")
		}
		m, err := NewTupleMatch(name, v)
		if err != nil {
			return nil, newParseError(ErrorKindGlob, open, "invalid relation pattern %q", name).
				WithToken(name).
				WithUnderlying(err)
		}
		out = append(out, m)
	}
}

// edge := name? $var? "<-" | $var? "**"
func (p *parser) edge() (Step, error) {
	p.s.SkipSpace()
	start := p.s.Mark()
	if p.s.Consume("**") {
		return &ChainStep{}, nil
	}

	var name string
	if !p.s.HasPrefix("$") && !p.s.HasPrefix("<-") {
		name = p.name()
	}
	p.s.SkipSpace()
	v, _ := p.variable()

	switch {
	case p.s.Consume("<-"):
		step := &DerivationStep{Hop: Hop{Var: v}, Mapping: name}
		if name != "" {
			g, err := glob.Compile(name)
			if err != nil {
				return nil, newParseError(ErrorKindGlob, start, "invalid mapping pattern %q", name).
					WithToken(name).
					WithUnderlying(err)
			}
			step.mapping = g
		}
		return step, nil
	case p.s.Consume("**"):
		if name != "" {
			return nil, newParseError(ErrorKindSyntax, start, "chain edges cannot name a mapping").
				WithToken(name).
				WithSuggestion("use '" + name + " <-' for a single named hop")
		}
		return &ChainStep{Hop: Hop{Var: v}}, nil
	default:
		e := p.unexpected("expected an edge")
		return nil, e.WithSuggestion("derivation edge '<-'").WithSuggestion("chain edge '**'")
	}
}

// name reads a relation or mapping name with glob metacharacters. Brackets
// nest, so character classes like R[12] stay inside the name.
func (p *parser) name() string {
	rest := p.s.Rest()
	depth := 0
	n := 0
	for n < len(rest) {
		c := rest[n]
		if c == '[' {
			depth++
		} else if c == ']' {
			if depth == 0 {
				break
			}
			depth--
		} else if depth == 0 && !isNameByte(c) {
			break
		}
		if depth == 0 && c == '*' && strings.HasPrefix(rest[n:], "**") && n == 0 {
			break
		}
		n++
	}
	p.s.Advance(rest[:n])
	return rest[:n]
}

func isNameByte(c byte) bool {
	return c == '_' || c == '.' || c == '*' || c == '?' || c == '{' || c == '}' || c == ',' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c >= 0x80
}

// variable reads "$ident".
func (p *parser) variable() (string, bool) {
	if !p.s.HasPrefix("$") {
		return "", false
	}
	mark := p.s.Mark()
	p.s.Advance("$")
	v := p.s.TakeWhile(syntax.IsIdentRune)
	if v == "" {
		p.s.Reset(mark)
		return "", false
	}
	return v, true
}
