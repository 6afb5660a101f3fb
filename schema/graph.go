// Package schema builds the derivation graph of a mapping catalog:
// relations (tuple nodes) connected by mappings (derivation nodes). Graphs
// are rebuilt per query and never shared between requests.
package schema

import (
	"slices"
	"sort"

	"github.com/teranos/orx/datalog"
)

// TupleNode identifies a relation. It is comparable and used as a map key.
type TupleNode struct {
	Peer     string `json:"peer,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Relation string `json:"relation"`
}

// NodeFor returns the tuple node of rel.
func NodeFor(rel datalog.Relation) TupleNode {
	return TupleNode{Peer: rel.Peer, Schema: rel.Schema, Relation: rel.Name}
}

// Key returns the relation identity key, as datalog.Relation.Key does.
func (n TupleNode) Key() string {
	return datalog.Relation{Peer: n.Peer, Schema: n.Schema, Name: n.Relation}.Key()
}

func (n TupleNode) String() string { return n.Key() }

// DerivationNode is one mapping: its body relations are Sources and its head
// relations are Targets. Both lists are free of duplicates.
type DerivationNode struct {
	Name    string      `json:"name"`
	Sources []TupleNode `json:"sources"`
	Targets []TupleNode `json:"targets"`
}

// HasTarget reports whether n is one of d's targets.
func (d *DerivationNode) HasTarget(n TupleNode) bool {
	return slices.Contains(d.Targets, n)
}

// HasSource reports whether n is one of d's sources.
func (d *DerivationNode) HasSource(n TupleNode) bool {
	return slices.Contains(d.Sources, n)
}

// MappingInfo describes one catalog mapping for graph construction.
type MappingInfo struct {
	Name    string
	Sources []datalog.Relation
	Targets []datalog.Relation
}

// Catalog is what the graph builder and the lowering step need from a
// mapping catalog.
type Catalog interface {
	// DeltaAndTranslationRules returns every local delta rule,
	// source-to-provenance rule and provenance-to-target rule.
	DeltaAndTranslationRules() []*datalog.Rule
	// ProvenanceRelationForMapping returns the relation recording the
	// derivations of the named mapping.
	ProvenanceRelationForMapping(name string) (datalog.Relation, bool)
	// BuiltInSchemas lists schemas excluded from the derivation graph.
	BuiltInSchemas() []string
	Mappings() []MappingInfo
}

// Graph indexes derivation nodes by the tuple nodes they target.
type Graph struct {
	byTarget    map[TupleNode][]*DerivationNode
	nodes       map[TupleNode]struct{}
	derivations []*DerivationNode
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		byTarget: make(map[TupleNode][]*DerivationNode),
		nodes:    make(map[TupleNode]struct{}),
	}
}

// Add inserts d, removing duplicate sources and targets first.
func (g *Graph) Add(d *DerivationNode) {
	d.Sources = dedupe(d.Sources)
	d.Targets = dedupe(d.Targets)
	g.derivations = append(g.derivations, d)
	for _, n := range d.Sources {
		g.nodes[n] = struct{}{}
	}
	for _, n := range d.Targets {
		g.nodes[n] = struct{}{}
		g.byTarget[n] = append(g.byTarget[n], d)
	}
}

// AddNode registers a relation that no mapping mentions.
func (g *Graph) AddNode(n TupleNode) {
	g.nodes[n] = struct{}{}
}

// DerivationsOf returns the derivations whose targets include n.
func (g *Graph) DerivationsOf(n TupleNode) []*DerivationNode {
	return g.byTarget[n]
}

// Nodes returns every tuple node in key order.
func (g *Graph) Nodes() []TupleNode {
	out := make([]TupleNode, 0, len(g.nodes))
	for n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Derivations returns every derivation node in insertion order.
func (g *Graph) Derivations() []*DerivationNode {
	return g.derivations
}

// BuildGraph builds the derivation graph of c. Relations in built-in schemas
// are left out; a mapping left without targets is skipped.
func BuildGraph(c Catalog) *Graph {
	builtin := make(map[string]bool)
	for _, s := range c.BuiltInSchemas() {
		builtin[s] = true
	}
	keep := func(rels []datalog.Relation) []TupleNode {
		var out []TupleNode
		for _, r := range rels {
			if !builtin[r.Schema] {
				out = append(out, NodeFor(r))
			}
		}
		return out
	}

	g := NewGraph()
	for _, m := range c.Mappings() {
		d := &DerivationNode{Name: m.Name, Sources: keep(m.Sources), Targets: keep(m.Targets)}
		if len(d.Targets) == 0 {
			continue
		}
		g.Add(d)
	}
	return g
}

func dedupe(nodes []TupleNode) []TupleNode {
	seen := make(map[TupleNode]bool, len(nodes))
	out := nodes[:0:0]
	for _, n := range nodes {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
