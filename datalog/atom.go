package datalog

import (
	"slices"
	"strings"
)

// Relation identifies a relation by peer, schema and name. Keys lists the
// key-argument positions; it is metadata and does not take part in identity.
type Relation struct {
	Peer   string `json:"peer,omitempty"`
	Schema string `json:"schema,omitempty"`
	Name   string `json:"name"`
	Keys   []int  `json:"keys,omitempty"`
}

// Key returns the identity key "peer.schema.name", leaving out empty leading
// parts.
func (r Relation) Key() string {
	parts := make([]string, 0, 3)
	if r.Peer != "" {
		parts = append(parts, r.Peer)
	}
	if r.Schema != "" || r.Peer != "" {
		parts = append(parts, r.Schema)
	}
	parts = append(parts, r.Name)
	return strings.Join(parts, ".")
}

// ParseRelationKey is the inverse of Relation.Key.
func ParseRelationKey(key string) Relation {
	parts := strings.Split(key, ".")
	switch len(parts) {
	case 1:
		return Relation{Name: parts[0]}
	case 2:
		return Relation{Schema: parts[0], Name: parts[1]}
	default:
		return Relation{
			Peer:   parts[0],
			Schema: strings.Join(parts[1:len(parts)-1], "."),
			Name:   parts[len(parts)-1],
		}
	}
}

// Atom is a relation applied to arguments. Atoms are handled by pointer and a
// pointer names one occurrence of an atom inside one rule.
type Atom struct {
	Relation Relation
	Args     []Term
}

// NewAtom builds an atom over rel.
func NewAtom(rel Relation, args ...Term) *Atom {
	return &Atom{Relation: rel, Args: args}
}

// Key returns the relation identity key.
func (a *Atom) Key() string { return a.Relation.Key() }

// Arguments returns the argument list.
func (a *Atom) Arguments() []Term { return a.Args }

// KeyArgumentIndices returns the declared key positions, or every position
// when the relation declares none.
func (a *Atom) KeyArgumentIndices() []int {
	if len(a.Relation.Keys) > 0 {
		return a.Relation.Keys
	}
	idx := make([]int, len(a.Args))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

// KeyArguments returns the terms at the key positions.
func (a *Atom) KeyArguments() []Term {
	idx := a.KeyArgumentIndices()
	out := make([]Term, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(a.Args) {
			out = append(out, a.Args[i])
		}
	}
	return out
}

// Equal reports whether a and b have the same relation identity and argument
// sequence.
func (a *Atom) Equal(b *Atom) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Key() == b.Key() && slices.Equal(a.Args, b.Args)
}

// Clone returns a copy that shares nothing with a.
func (a *Atom) Clone() *Atom {
	return &Atom{
		Relation: Relation{
			Peer:   a.Relation.Peer,
			Schema: a.Relation.Schema,
			Name:   a.Relation.Name,
			Keys:   slices.Clone(a.Relation.Keys),
		},
		Args: slices.Clone(a.Args),
	}
}

func (a *Atom) String() string {
	var b strings.Builder
	b.WriteString(a.Key())
	b.WriteByte('(')
	for i, t := range a.Args {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(t.String())
	}
	b.WriteByte(')')
	return b.String()
}
