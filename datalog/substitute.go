package datalog

import (
	"strconv"

	"github.com/teranos/orx/errors"
)

// Substitution is one rule produced by SubstituteAtomAt. Bindings maps the
// outer rule's variables (and the renamed candidate variables) to the terms
// they were unified with, so atoms kept outside the body can follow along.
type Substitution struct {
	Rule      *Rule
	Candidate *Rule
	Bindings  Bindings
}

// SubstituteAtomAt replaces the body atom at pos with the body of each
// candidate whose head unifies with it, yielding one rule per candidate.
// Candidate variables are renamed apart from the rule's own variables.
//
// With keepOriginalArity the outer rule's variable names survive
// unification: candidate head variables are bound to the outer terms.
// Otherwise outer variables are bound to the candidate's head terms.
//
// Candidates whose head cannot be unified (conflicting constants) are
// skipped, so the result may be shorter than candidates.
func (r *Rule) SubstituteAtomAt(pos int, candidates []*Rule, keepOriginalArity bool) ([]Substitution, error) {
	if pos < 0 || pos >= len(r.Body) {
		return nil, errors.NewInvalidRequestError("substitute position %d out of range for %d body atoms", pos, len(r.Body))
	}
	target := r.Body[pos]

	used := make(map[string]bool)
	for _, v := range r.Variables() {
		used[v] = true
	}

	out := make([]Substitution, 0, len(candidates))
	for _, cand := range candidates {
		if cand.Head.Key() != target.Key() {
			return nil, errors.NewInvalidRequestError("candidate %s does not define %s", cand.Head.Key(), target.Key())
		}
		if len(cand.Head.Args) != len(target.Args) {
			return nil, errors.NewInvalidRequestError("candidate head %s has arity %d, atom %s has %d",
				cand.Head, len(cand.Head.Args), target, len(target.Args))
		}

		renamed := renameApart(cand, used)
		b := make(Bindings)
		ok := true
		for i := range target.Args {
			if keepOriginalArity {
				ok = b.Unify(renamed.Head.Args[i], target.Args[i])
			} else {
				ok = b.Unify(target.Args[i], renamed.Head.Args[i])
			}
			if !ok {
				break
			}
		}
		if !ok {
			continue
		}

		body := make([]*Atom, 0, len(r.Body)-1+len(renamed.Body))
		body = append(body, b.ApplyAtoms(r.Body[:pos])...)
		body = append(body, b.ApplyAtoms(renamed.Body)...)
		body = append(body, b.ApplyAtoms(r.Body[pos+1:])...)

		out = append(out, Substitution{
			Rule: &Rule{
				Name:        r.Name,
				Head:        b.ApplyAtom(r.Head),
				Body:        body,
				NegatedHead: r.NegatedHead,
				Fake:        r.Fake,
				Mapping:     r.Mapping,
			},
			Candidate: cand,
			Bindings:  b,
		})
	}
	return out, nil
}

// renameApart returns a copy of cand whose variables do not collide with
// used. Chosen names are added to used.
func renameApart(cand *Rule, used map[string]bool) *Rule {
	names := make(map[string]string)
	for _, v := range cand.Variables() {
		name := v
		for i := 1; used[name]; i++ {
			name = v + "_" + strconv.Itoa(i)
		}
		used[name] = true
		names[v] = name
	}
	body := make([]*Atom, len(cand.Body))
	for i, a := range cand.Body {
		body[i] = renameVars(a, names)
	}
	return &Rule{Name: cand.Name, Head: renameVars(cand.Head, names), Body: body}
}
