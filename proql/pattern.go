// Package proql parses and evaluates path patterns over a schema derivation
// graph.
//
// A pattern reads right to left along derivations:
//
//	[R1] <- [R2] ** []
//
// matches mappings that derive R1 from R2, followed by any number of hops
// into whatever derives R2.
package proql

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"

	"github.com/teranos/orx/schema"
)

// Outcome is the result of matching one step against one derivation node.
type Outcome uint8

const (
	// MatchAdvance: the derivation matched; continue with the next step.
	MatchAdvance Outcome = iota
	// MatchNoAdvance: the derivation matched a repeatable step; the same
	// step may match again further up.
	MatchNoAdvance
	// NoMatchAdvance: the derivation does not match; abandon this branch.
	NoMatchAdvance
	// NoMatchNoAdvance: the derivation does not match a repeatable step;
	// keep looking further up with the same step.
	NoMatchNoAdvance
)

func (o Outcome) String() string {
	switch o {
	case MatchAdvance:
		return "MATCH_ADVANCE"
	case MatchNoAdvance:
		return "MATCH_NOADVANCE"
	case NoMatchAdvance:
		return "NOMATCH_ADVANCE"
	case NoMatchNoAdvance:
		return "NOMATCH_NOADVANCE"
	default:
		return fmt.Sprintf("Outcome(%d)", uint8(o))
	}
}

// TupleMatch matches relations by name. An empty Name matches any relation.
// Names may use glob syntax; a name containing '.' is matched against the
// qualified relation key, otherwise against the bare relation name.
type TupleMatch struct {
	Name string
	Var  string
	g    glob.Glob
}

// NewTupleMatch compiles name.
func NewTupleMatch(name, variable string) (TupleMatch, error) {
	m := TupleMatch{Name: name, Var: variable}
	if name == "" {
		return m, nil
	}
	g, err := compileName(name)
	if err != nil {
		return m, err
	}
	m.g = g
	return m, nil
}

func compileName(name string) (glob.Glob, error) {
	if strings.Contains(name, ".") {
		return glob.Compile(name, '.')
	}
	return glob.Compile(name)
}

// Matches reports whether n satisfies m.
func (m TupleMatch) Matches(n schema.TupleNode) bool {
	if m.Name == "" {
		return true
	}
	if m.g == nil {
		return m.Name == n.Relation || m.Name == n.Key()
	}
	if strings.Contains(m.Name, ".") {
		return m.g.Match(n.Key())
	}
	return m.g.Match(n.Relation)
}

func (m TupleMatch) String() string {
	var parts []string
	if m.Name != "" {
		parts = append(parts, m.Name)
	}
	if m.Var != "" {
		parts = append(parts, "$"+m.Var)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Hop holds what every step has: the groups it derives (Targets), the
// groups it derives from (Sources) and an optional variable bound to the
// matched derivation.
type Hop struct {
	Var     string
	Targets []TupleMatch
	Sources []TupleMatch
}

// Step is a DerivationStep or a ChainStep.
type Step interface {
	Match(d *schema.DerivationNode) (Outcome, []schema.TupleNode)
	Base() *Hop
	String() string
}

// DerivationStep is exactly one mapping hop, optionally restricted to a
// mapping name.
type DerivationStep struct {
	Hop
	Mapping string
	mapping glob.Glob
}

// ChainStep is an unconstrained hop that may repeat.
type ChainStep struct {
	Hop
}

// Base returns the step's groups.
func (h *Hop) Base() *Hop { return h }

// Match checks d's targets, its name and its sources, in that order. The
// connectors are the sources that matched.
func (s *DerivationStep) Match(d *schema.DerivationNode) (Outcome, []schema.TupleNode) {
	if !allMatch(s.Targets, d.Targets) {
		return NoMatchAdvance, nil
	}
	if s.Mapping != "" && !s.mapping.Match(d.Name) {
		return NoMatchAdvance, nil
	}
	connectors, ok := collect(s.Sources, d.Sources)
	if !ok {
		return NoMatchAdvance, nil
	}
	return MatchAdvance, connectors
}

// Match ignores targets. When every source group matches, the matched
// sources are the connectors; otherwise the search continues through all of
// d's sources.
func (s *ChainStep) Match(d *schema.DerivationNode) (Outcome, []schema.TupleNode) {
	if connectors, ok := collect(s.Sources, d.Sources); ok {
		return MatchNoAdvance, connectors
	}
	return NoMatchNoAdvance, d.Sources
}

func (s *DerivationStep) String() string {
	var parts []string
	if s.Mapping != "" {
		parts = append(parts, s.Mapping)
	}
	if s.Var != "" {
		parts = append(parts, "$"+s.Var)
	}
	return strings.Join(append(parts, "<-"), " ")
}

func (s *ChainStep) String() string {
	if s.Var != "" {
		return "$" + s.Var + " **"
	}
	return "**"
}

// allMatch reports whether every matcher hits at least one node.
func allMatch(matchers []TupleMatch, nodes []schema.TupleNode) bool {
	for _, m := range matchers {
		hit := false
		for _, n := range nodes {
			if m.Matches(n) {
				hit = true
				break
			}
		}
		if !hit {
			return false
		}
	}
	return true
}

// collect returns the nodes hit by any matcher, in node order. It fails when
// some matcher hits nothing.
func collect(matchers []TupleMatch, nodes []schema.TupleNode) ([]schema.TupleNode, bool) {
	hits := make([]bool, len(nodes))
	for _, m := range matchers {
		matched := false
		for i, n := range nodes {
			if m.Matches(n) {
				hits[i] = true
				matched = true
			}
		}
		if !matched {
			return nil, false
		}
	}
	var out []schema.TupleNode
	for i, n := range nodes {
		if hits[i] {
			out = append(out, n)
		}
	}
	return out, true
}

// Pattern is an ordered list of steps.
type Pattern struct {
	Steps []Step
}

// First returns the first step, or nil for an empty pattern.
func (p *Pattern) First() Step {
	if len(p.Steps) == 0 {
		return nil
	}
	return p.Steps[0]
}

// Next returns the step after s, or nil when s is the last one.
func (p *Pattern) Next(s Step) Step {
	for i, st := range p.Steps {
		if st == s && i+1 < len(p.Steps) {
			return p.Steps[i+1]
		}
	}
	return nil
}

// Variables returns every variable bound in the pattern.
func (p *Pattern) Variables() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	for _, s := range p.Steps {
		h := s.Base()
		for _, m := range h.Targets {
			add(m.Var)
		}
		add(h.Var)
		for _, m := range h.Sources {
			add(m.Var)
		}
	}
	return out
}

// String renders the pattern in ProQL syntax.
func (p *Pattern) String() string {
	var b strings.Builder
	for i, s := range p.Steps {
		h := s.Base()
		if i == 0 {
			writeGroups(&b, h.Targets)
		}
		b.WriteByte(' ')
		b.WriteString(s.String())
		b.WriteByte(' ')
		writeGroups(&b, h.Sources)
	}
	return b.String()
}

func writeGroups(b *strings.Builder, groups []TupleMatch) {
	for _, g := range groups {
		b.WriteString(g.String())
	}
}

// Query is a pattern with its optional EVALUATE and RETURN clauses.
type Query struct {
	Semiring string
	Pattern  *Pattern
	Return   string
}

func (q *Query) String() string {
	var b strings.Builder
	if q.Semiring != "" {
		b.WriteString("EVALUATE " + q.Semiring + " OF ")
	}
	b.WriteString(q.Pattern.String())
	if q.Return != "" {
		b.WriteString(" RETURN $" + q.Return)
	}
	return b.String()
}
