package datalog

import (
	"strconv"
	"strings"

	"github.com/teranos/orx/provenance"
)

// Rule is a head atom derived from a conjunction of body atoms.
//
// NegatedHead gives the rule deletion semantics. Fake rules are placeholders
// that are never materialised. Mapping marks rules whose head is the output
// of a schema mapping (a provenance relation).
type Rule struct {
	Name        string
	Head        *Atom
	Body        []*Atom
	NegatedHead bool
	Fake        bool
	Mapping     bool
	Provenance  *provenance.Annotation
}

// NewRule builds a rule from its head and body.
func NewRule(head *Atom, body ...*Atom) *Rule {
	return &Rule{Head: head, Body: body}
}

// Clone deep-copies the head and body atoms. The provenance annotation is
// shared.
func (r *Rule) Clone() *Rule {
	c := *r
	c.Head = r.Head.Clone()
	c.Body = make([]*Atom, len(r.Body))
	for i, a := range r.Body {
		c.Body[i] = a.Clone()
	}
	return &c
}

// SetProvenance attaches provenance to the rule.
func (r *Rule) SetProvenance(a *provenance.Annotation) {
	r.Provenance = a
}

// Variables returns the rule's variables in first-occurrence order, head
// first.
func (r *Rule) Variables() []string {
	seen := make(map[string]bool)
	var out []string
	visit := func(a *Atom) {
		for _, t := range a.Args {
			if t.IsVar() && !seen[t.Value] {
				seen[t.Value] = true
				out = append(out, t.Value)
			}
		}
	}
	visit(r.Head)
	for _, a := range r.Body {
		visit(a)
	}
	return out
}

// BodyVariables returns the variables occurring in the body in
// first-occurrence order.
func (r *Rule) BodyVariables() []string {
	body := &Rule{Head: &Atom{}, Body: r.Body}
	return body.Variables()
}

// String renders the rule in the syntax accepted by ParseRule.
func (r *Rule) String() string {
	var b strings.Builder
	if r.Name != "" {
		b.WriteString(r.Name)
		b.WriteString(": ")
	}
	b.WriteString(r.clause())
	return b.String()
}

// clause renders the rule without its label.
func (r *Rule) clause() string {
	var b strings.Builder
	if r.NegatedHead {
		b.WriteString("NOT ")
	}
	b.WriteString(r.Head.String())
	b.WriteString(" :- ")
	for i, a := range r.Body {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(a.String())
	}
	b.WriteByte('.')
	return b.String()
}

// Canonical renders the rule without its label and with variables renamed
// v0, v1, ... in first-occurrence order, so rules equal up to renaming
// render identically.
func (r *Rule) Canonical() string {
	names := make(map[string]string)
	for i, v := range r.Variables() {
		names[v] = "v" + strconv.Itoa(i)
	}
	body := make([]*Atom, len(r.Body))
	for i, a := range r.Body {
		body[i] = renameVars(a, names)
	}
	c := &Rule{Head: renameVars(r.Head, names), Body: body, NegatedHead: r.NegatedHead}
	return c.clause()
}

// renameVars returns a copy of a with variables renamed through names.
// Unlike Bindings, renaming is applied in one step and never chains.
func renameVars(a *Atom, names map[string]string) *Atom {
	out := a.Clone()
	for i, t := range out.Args {
		if n, ok := names[t.Value]; ok && t.IsVar() {
			out.Args[i] = Var(n)
		}
	}
	return out
}
