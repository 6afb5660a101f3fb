package schema

import (
	"strings"
)

// Subgraph is the part of a graph matched from one root relation: the
// matched derivation nodes, in the order they were recorded.
type Subgraph struct {
	Graph   *Graph
	Root    TupleNode
	matched []*DerivationNode
	seen    map[*DerivationNode]bool
}

// NewSubgraph returns an empty subgraph of g rooted at root.
func NewSubgraph(g *Graph, root TupleNode) *Subgraph {
	return &Subgraph{Graph: g, Root: root, seen: make(map[*DerivationNode]bool)}
}

// Add records d as matched. It reports false when d was already recorded.
func (s *Subgraph) Add(d *DerivationNode) bool {
	if s.seen[d] {
		return false
	}
	s.seen[d] = true
	s.matched = append(s.matched, d)
	return true
}

// Contains reports whether d was matched.
func (s *Subgraph) Contains(d *DerivationNode) bool {
	return s.seen[d]
}

// Matched returns the matched derivation nodes in insertion order.
func (s *Subgraph) Matched() []*DerivationNode {
	return s.matched
}

// Len returns the number of matched derivation nodes.
func (s *Subgraph) Len() int {
	return len(s.matched)
}

func (s *Subgraph) String() string {
	names := make([]string, len(s.matched))
	for i, d := range s.matched {
		names[i] = d.Name
	}
	return s.Root.Key() + " <- {" + strings.Join(names, ", ") + "}"
}
