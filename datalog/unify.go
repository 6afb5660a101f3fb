package datalog

// Bindings maps variable names to terms. Chains are followed by Resolve.
type Bindings map[string]Term

// Resolve follows variable bindings until it reaches a constant or an
// unbound variable.
func (b Bindings) Resolve(t Term) Term {
	for i := 0; t.IsVar() && i <= len(b); i++ {
		next, ok := b[t.Value]
		if !ok || next == t {
			return t
		}
		t = next
	}
	return t
}

// Unify extends b so that x and y resolve to the same term. When both are
// unbound variables, x is bound to y.
func (b Bindings) Unify(x, y Term) bool {
	x, y = b.Resolve(x), b.Resolve(y)
	switch {
	case x == y:
		return true
	case x.IsVar():
		b[x.Value] = y
		return true
	case y.IsVar():
		b[y.Value] = x
		return true
	default:
		return false
	}
}

// ApplyAtom returns a new atom with every argument resolved.
func (b Bindings) ApplyAtom(a *Atom) *Atom {
	out := a.Clone()
	for i, t := range out.Args {
		out.Args[i] = b.Resolve(t)
	}
	return out
}

// ApplyAtoms applies b to each atom.
func (b Bindings) ApplyAtoms(atoms []*Atom) []*Atom {
	out := make([]*Atom, len(atoms))
	for i, a := range atoms {
		out[i] = b.ApplyAtom(a)
	}
	return out
}
