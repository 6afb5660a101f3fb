package schema

import (
	"slices"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
)

// ruleSet keeps rules in insertion order, deduplicated by pointer.
type ruleSet struct {
	rules []*datalog.Rule
	seen  map[*datalog.Rule]bool
}

func (rs *ruleSet) add(r *datalog.Rule) {
	if rs.seen[r] {
		return
	}
	rs.seen[r] = true
	rs.rules = append(rs.rules, r)
}

type lowering struct {
	sub   *Subgraph
	cat   Catalog
	rules []*datalog.Rule
	prov  map[string]bool
	out   *ruleSet
	done  map[*DerivationNode]bool
}

// ToQuerySet lowers the subgraph to the rules needed to unfold its root:
// the root's local delta rules, then, level by level along the matched
// derivations, each mapping's source-to-provenance rules and the
// provenance-to-target rules reaching the relations wanted at that level.
func (s *Subgraph) ToQuerySet(c Catalog) ([]*datalog.Rule, error) {
	l := &lowering{
		sub:   s,
		cat:   c,
		rules: c.DeltaAndTranslationRules(),
		prov:  make(map[string]bool),
		out:   &ruleSet{seen: make(map[*datalog.Rule]bool)},
		done:  make(map[*DerivationNode]bool),
	}
	for _, m := range c.Mappings() {
		if rel, ok := c.ProvenanceRelationForMapping(m.Name); ok {
			l.prov[rel.Key()] = true
		}
	}

	rootKey := s.Root.Key()
	for _, r := range l.rules {
		if r.Head.Key() == rootKey && !l.readsProvenance(r) {
			l.out.add(r)
		}
	}

	var frontier []*DerivationNode
	for _, d := range s.Graph.DerivationsOf(s.Root) {
		if s.Contains(d) {
			frontier = append(frontier, d)
		}
	}
	if err := l.expandTree(frontier, []TupleNode{s.Root}); err != nil {
		return nil, err
	}
	return l.out.rules, nil
}

// expandTree adds the rules of one frontier level and recurses into the
// matched derivations that produce the frontier's sources.
func (l *lowering) expandTree(frontier []*DerivationNode, wanted []TupleNode) error {
	var next []*DerivationNode
	var nextWanted []TupleNode
	for _, d := range frontier {
		if l.done[d] {
			continue
		}
		l.done[d] = true

		prov, ok := l.cat.ProvenanceRelationForMapping(d.Name)
		if !ok {
			return errors.NewNotFoundError("no provenance relation for mapping %s", d.Name)
		}
		provKey := prov.Key()
		for _, r := range l.rules {
			if r.Head.Key() == provKey {
				l.out.add(r)
			}
		}
		for _, r := range l.rules {
			target := NodeFor(r.Head.Relation)
			if slices.Contains(wanted, target) && d.HasTarget(target) && readsRelation(r, provKey) {
				l.out.add(r)
			}
		}

		for _, src := range d.Sources {
			for _, up := range l.sub.Graph.DerivationsOf(src) {
				if l.sub.Contains(up) && !l.done[up] {
					next = append(next, up)
					if !slices.Contains(nextWanted, src) {
						nextWanted = append(nextWanted, src)
					}
				}
			}
		}
	}
	if len(next) == 0 {
		return nil
	}
	return l.expandTree(next, nextWanted)
}

func (l *lowering) readsProvenance(r *datalog.Rule) bool {
	for _, a := range r.Body {
		if l.prov[a.Key()] {
			return true
		}
	}
	return false
}

func readsRelation(r *datalog.Rule, key string) bool {
	for _, a := range r.Body {
		if a.Key() == key {
			return true
		}
	}
	return false
}
