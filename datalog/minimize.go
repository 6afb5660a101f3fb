package datalog

import "slices"

// Merge records one redundant body atom. Discarded stood at body position
// At when it was removed; every atom of the body maps onto the remaining
// atoms with Discarded landing on Kept, which is still in the body.
type Merge struct {
	At        int
	Kept      *Atom
	Discarded *Atom
}

// MergeComplementaryAtoms removes body atoms that the rest of the body makes
// redundant: an atom goes when some substitution that fixes the head
// variables maps the whole body onto the body without it. Removing such an
// atom never changes the rule's answers. Remaining atoms are left untouched.
// Only atoms accepted by filter are removed, though any atom may serve as an
// image; a nil filter accepts every atom. Atoms are tried from the end of the
// body, so earlier atoms survive when two are interchangeable.
func (r *Rule) MergeComplementaryAtoms(filter func(*Atom) bool) []Merge {
	var merges []Merge
	for i := len(r.Body) - 1; i >= 0; i-- {
		a := r.Body[i]
		if filter != nil && !filter(a) {
			continue
		}
		rest := slices.Delete(slices.Clone(r.Body), i, i+1)
		images, ok := r.homomorphism(rest)
		if !ok {
			continue
		}
		merges = append(merges, Merge{At: i, Kept: rest[images[i]], Discarded: a})
		r.Body = rest
	}
	return merges
}

// Minimize drops every redundant body atom, leaving the smallest equivalent
// body. Minimize is idempotent.
func (r *Rule) Minimize() []Merge {
	return r.MergeComplementaryAtoms(nil)
}

// homomorphism searches for a variable mapping, identity on head variables,
// that sends every body atom onto some atom of target. It returns the index
// in target chosen for each body atom.
func (r *Rule) homomorphism(target []*Atom) ([]int, bool) {
	fixed := make(Bindings)
	for _, t := range r.Head.Args {
		if t.IsVar() {
			fixed[t.Value] = t
		}
	}
	images := make([]int, len(r.Body))
	var search func(k int, b Bindings) bool
	search = func(k int, b Bindings) bool {
		if k == len(r.Body) {
			return true
		}
		src := r.Body[k]
		for _, j := range candidateOrder(src, target) {
			next, ok := extend(b, src, target[j])
			if !ok {
				continue
			}
			images[k] = j
			if search(k+1, next) {
				return true
			}
		}
		return false
	}
	return images, search(0, fixed)
}

// candidateOrder lists the atoms of target over src's relation, src itself
// first when present.
func candidateOrder(src *Atom, target []*Atom) []int {
	var out []int
	for j, t := range target {
		if t.Key() != src.Key() || len(t.Args) != len(src.Args) {
			continue
		}
		if t == src {
			out = append([]int{j}, out...)
			continue
		}
		out = append(out, j)
	}
	return out
}

// extend maps src's terms onto dst's, position by position. b is not
// modified.
func extend(b Bindings, src, dst *Atom) (Bindings, bool) {
	next := make(Bindings, len(b)+len(src.Args))
	for k, v := range b {
		next[k] = v
	}
	for i, s := range src.Args {
		d := dst.Args[i]
		if !s.IsVar() {
			if s != d {
				return nil, false
			}
			continue
		}
		if img, ok := next[s.Value]; ok {
			if img != d {
				return nil, false
			}
			continue
		}
		next[s.Value] = d
	}
	return next, true
}
