package schema

import (
	"strings"
	"time"
)

// View is a nodes-and-links rendering of a derivation graph, used for JSON
// output of matches.
type View struct {
	Nodes []ViewNode `json:"nodes"`
	Links []Link     `json:"links"`
	Meta  Meta       `json:"meta"`
}

// ViewNode is a relation or a mapping.
type ViewNode struct {
	ID      string `json:"id"`
	Type    string `json:"type"` // "relation" or "mapping"
	Label   string `json:"label"`
	Matched bool   `json:"matched,omitempty"`
}

// Link connects a source relation to a mapping ("source") or a mapping to
// a target relation ("target").
type Link struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// Meta describes a view.
type Meta struct {
	GeneratedAt time.Time `json:"generated_at"`
	Root        string    `json:"root,omitempty"`
	Stats       Stats     `json:"stats"`
}

// Stats counts view elements.
type Stats struct {
	TotalNodes int `json:"total_nodes"`
	TotalEdges int `json:"total_edges"`
}

// View renders the whole graph.
func (g *Graph) View() *View {
	return buildView(g.Nodes(), g.derivations, nil, "")
}

// View renders the matched derivations and the relations they touch.
func (s *Subgraph) View() *View {
	seen := map[TupleNode]bool{s.Root: true}
	nodes := []TupleNode{s.Root}
	for _, d := range s.matched {
		for _, n := range append(append([]TupleNode(nil), d.Targets...), d.Sources...) {
			if !seen[n] {
				seen[n] = true
				nodes = append(nodes, n)
			}
		}
	}
	return buildView(nodes, s.matched, s.seen, s.Root.Key())
}

func buildView(nodes []TupleNode, derivations []*DerivationNode, matched map[*DerivationNode]bool, root string) *View {
	v := &View{Meta: Meta{GeneratedAt: time.Now(), Root: root}}
	for _, n := range nodes {
		v.Nodes = append(v.Nodes, ViewNode{ID: relationID(n), Type: "relation", Label: n.Key()})
	}
	for _, d := range derivations {
		id := mappingID(d.Name)
		v.Nodes = append(v.Nodes, ViewNode{ID: id, Type: "mapping", Label: d.Name, Matched: matched[d]})
		for _, src := range d.Sources {
			v.Links = append(v.Links, Link{Source: relationID(src), Target: id, Type: "source"})
		}
		for _, tgt := range d.Targets {
			v.Links = append(v.Links, Link{Source: id, Target: relationID(tgt), Type: "target"})
		}
	}
	v.Meta.Stats = Stats{TotalNodes: len(v.Nodes), TotalEdges: len(v.Links)}
	return v
}

func relationID(n TupleNode) string { return "rel_" + normalizeNodeID(n.Key()) }
func mappingID(name string) string  { return "map_" + normalizeNodeID(name) }

// normalizeNodeID keeps letters, digits, '_' and '-' and replaces anything
// else with '_', so IDs are safe for graph renderers.
func normalizeNodeID(id string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			return r
		}
		return '_'
	}, id)
}
