package proql

import (
	"go.uber.org/zap"

	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/schema"
)

// Visited records tuple nodes already explored during one search.
type Visited map[schema.TupleNode]bool

// Match returns one subgraph per root relation that p matches, in root key
// order. Roots are the relations hit by the first step's target groups;
// subgraphs without a matched derivation are dropped.
func Match(g *schema.Graph, p *Pattern) []*schema.Subgraph {
	return MatchWithLogger(g, p, nil)
}

// MatchWithLogger is Match with an explicit logger.
func MatchWithLogger(g *schema.Graph, p *Pattern, log *zap.SugaredLogger) []*schema.Subgraph {
	first := p.First()
	if first == nil {
		return nil
	}
	log = logger.OrComponent(log, "proql")

	var roots []schema.TupleNode
	for _, n := range g.Nodes() {
		if matchesAny(first.Base().Targets, n) {
			roots = append(roots, n)
		}
	}

	var out []*schema.Subgraph
	for _, root := range roots {
		sub := schema.NewSubgraph(g, root)
		p.GetSubgraph(g, root, first, sub, make(Visited))
		logger.MatchDebugw(log, "searched root",
			logger.FieldRelation, root.Key(),
			logger.FieldCount, sub.Len())
		if sub.Len() > 0 {
			out = append(out, sub)
		}
	}
	return out
}

func matchesAny(matchers []TupleMatch, n schema.TupleNode) bool {
	for _, m := range matchers {
		if m.Matches(n) {
			return true
		}
	}
	return false
}

// GetSubgraph searches the derivations of root with step and records every
// derivation on a successful path in acc. A tuple node is explored at most
// once per visited set, which bounds the search on cyclic graphs.
func (p *Pattern) GetSubgraph(g *schema.Graph, root schema.TupleNode, step Step, acc *schema.Subgraph, visited Visited) bool {
	if visited[root] {
		return false
	}
	found := false
	for _, d := range g.DerivationsOf(root) {
		outcome, connectors := step.Match(d)
		next := p.Next(step)
		switch outcome {
		case MatchAdvance:
			if next == nil {
				acc.Add(d)
				found = true
				continue
			}
			visited[root] = true
			if p.recurseConnectors(g, connectors, next, acc, visited) {
				acc.Add(d)
				found = true
			}
		case MatchNoAdvance:
			visited[root] = true
			// Stopping the chain here is tried before extending it.
			ok := next != nil && p.recurseConnectors(g, connectors, next, acc, visited)
			if p.recurseConnectors(g, connectors, step, acc, visited) {
				ok = true
			}
			if ok || next == nil {
				acc.Add(d)
				found = true
			}
		case NoMatchAdvance:
		case NoMatchNoAdvance:
			visited[root] = true
			if p.recurseConnectors(g, connectors, step, acc, visited) {
				acc.Add(d)
				found = true
			}
		}
	}
	return found
}

// recurseConnectors continues the search from every connector with step.
// Every connector is explored even after one succeeds.
func (p *Pattern) recurseConnectors(g *schema.Graph, connectors []schema.TupleNode, step Step, acc *schema.Subgraph, visited Visited) bool {
	ok := false
	for _, c := range connectors {
		if p.GetSubgraph(g, c, step, acc, visited) {
			ok = true
		}
	}
	return ok
}
