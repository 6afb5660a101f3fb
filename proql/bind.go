package proql

import (
	"sort"

	"github.com/teranos/orx/schema"
)

// Bindings returns, for every pattern variable, the sorted names it takes in
// s: mapping names for edge variables, relation keys for group variables.
// A variable is bound by every matched derivation its step accepts.
func (p *Pattern) Bindings(s *schema.Subgraph) map[string][]string {
	sets := make(map[string]map[string]bool)
	bind := func(v, value string) {
		if v == "" {
			return
		}
		if sets[v] == nil {
			sets[v] = make(map[string]bool)
		}
		sets[v][value] = true
	}
	bindGroups := func(groups []TupleMatch, nodes []schema.TupleNode) {
		for _, m := range groups {
			if m.Var == "" {
				continue
			}
			for _, n := range nodes {
				if m.Matches(n) {
					bind(m.Var, n.Key())
				}
			}
		}
	}

	for _, step := range p.Steps {
		h := step.Base()
		for _, d := range s.Matched() {
			if outcome, _ := step.Match(d); outcome != MatchAdvance && outcome != MatchNoAdvance {
				continue
			}
			bind(h.Var, d.Name)
			if _, chain := step.(*ChainStep); !chain {
				bindGroups(h.Targets, d.Targets)
			}
			bindGroups(h.Sources, d.Sources)
		}
	}

	out := make(map[string][]string, len(sets))
	for _, v := range p.Variables() {
		values := make([]string, 0, len(sets[v]))
		for value := range sets[v] {
			values = append(values, value)
		}
		sort.Strings(values)
		out[v] = values
	}
	return out
}
