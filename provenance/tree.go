// Package provenance records why a derived fact exists. Provenance is kept as
// an arena of nodes addressed by NodeID; parents are stored as indices, so a
// deep copy yields a remap table instead of requiring structural search.
package provenance

import (
	"fmt"
	"strings"
)

// Kind tags a provenance node.
type Kind uint8

const (
	// Idb is a derived fact justified by its children, in body order.
	Idb Kind = iota
	// Edb is a leaf referencing a base fact by its key arguments.
	Edb
	// Fake is a placeholder for a slot whose content is not known yet.
	Fake
)

func (k Kind) String() string {
	switch k {
	case Idb:
		return "idb"
	case Edb:
		return "edb"
	case Fake:
		return "fake"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// NodeID addresses a node inside one Tree.
type NodeID int

// None is the parent of a root.
const None NodeID = -1

// Node is one provenance node. Which fields are meaningful depends on Kind:
// Children and IsMapping for Idb, KeyArguments and AssignmentExpr for Edb.
type Node struct {
	Kind           Kind
	Name           string
	Semiring       string
	Parent         NodeID
	Children       []NodeID
	IsMapping      bool
	KeyArguments   []string
	AssignmentExpr string
}

// Tree is an arena of provenance nodes. Several roots may live in one arena;
// the zero value is ready to use.
type Tree struct {
	nodes []Node
}

// NewTree returns an empty arena.
func NewTree() *Tree {
	return &Tree{}
}

// Len returns the number of nodes in the arena.
func (t *Tree) Len() int { return len(t.nodes) }

// Node returns the node stored at id.
func (t *Tree) Node(id NodeID) Node {
	return t.nodes[id]
}

// Valid reports whether id addresses a node of t.
func (t *Tree) Valid(id NodeID) bool {
	return id >= 0 && int(id) < len(t.nodes)
}

func (t *Tree) add(parent NodeID, n Node) NodeID {
	id := NodeID(len(t.nodes))
	n.Parent = parent
	t.nodes = append(t.nodes, n)
	if parent != None {
		t.nodes[parent].Children = append(t.nodes[parent].Children, id)
	}
	return id
}

// NewIdb adds an Idb node under parent (None for a root).
func (t *Tree) NewIdb(parent NodeID, name, semiring string, isMapping bool) NodeID {
	return t.add(parent, Node{Kind: Idb, Name: name, Semiring: semiring, IsMapping: isMapping})
}

// NewEdb adds an Edb leaf under parent.
func (t *Tree) NewEdb(parent NodeID, name string, keyArgs []string, semiring, assignmentExpr string) NodeID {
	return t.add(parent, Node{
		Kind:           Edb,
		Name:           name,
		Semiring:       semiring,
		KeyArguments:   append([]string(nil), keyArgs...),
		AssignmentExpr: assignmentExpr,
	})
}

// SetKeyArguments replaces the key arguments of the Edb leaf id. Other
// kinds are left alone.
func (t *Tree) SetKeyArguments(id NodeID, keyArgs []string) {
	if t.nodes[id].Kind != Edb {
		return
	}
	t.nodes[id].KeyArguments = append([]string(nil), keyArgs...)
}

// NewFake adds a placeholder under parent.
func (t *Tree) NewFake(parent NodeID, semiring string) NodeID {
	return t.add(parent, Node{Kind: Fake, Semiring: semiring})
}

// Parent returns the parent of id, or None for a root.
func (t *Tree) Parent(id NodeID) NodeID {
	return t.nodes[id].Parent
}

// Children returns the children of id in order.
func (t *Tree) Children(id NodeID) []NodeID {
	return t.nodes[id].Children
}

// Siblings returns the other children of id's parent, in order.
func (t *Tree) Siblings(id NodeID) []NodeID {
	parent := t.nodes[id].Parent
	if parent == None {
		return nil
	}
	var out []NodeID
	for _, c := range t.nodes[parent].Children {
		if c != id {
			out = append(out, c)
		}
	}
	return out
}

// Remap maps node IDs of an original subtree to the IDs of its copy.
type Remap map[NodeID]NodeID

// Lookup returns the copy of id. IDs outside the copied subtree map to
// themselves.
func (r Remap) Lookup(id NodeID) NodeID {
	if c, ok := r[id]; ok {
		return c
	}
	return id
}

// Copy deep-copies the subtree rooted at root into the same arena. The copy
// is a new root (its parent is None) and the returned Remap gives the
// corresponding copy of every node in the subtree.
func (t *Tree) Copy(root NodeID) (NodeID, Remap) {
	remap := make(Remap)
	var walk func(id, parent NodeID) NodeID
	walk = func(id, parent NodeID) NodeID {
		n := t.nodes[id]
		n.Children = nil
		n.KeyArguments = append([]string(nil), n.KeyArguments...)
		nid := t.add(parent, n)
		remap[id] = nid
		// children are read by index because add may grow t.nodes
		for i := 0; i < len(t.nodes[id].Children); i++ {
			walk(t.nodes[id].Children[i], nid)
		}
		return nid
	}
	return walk(root, None), remap
}

// Walk visits the subtree rooted at id in pre-order.
func (t *Tree) Walk(id NodeID, fn func(NodeID, Node) bool) {
	if !fn(id, t.nodes[id]) {
		return
	}
	for _, c := range t.nodes[id].Children {
		t.Walk(c, fn)
	}
}

// Leaves returns the Edb leaves below id in order.
func (t *Tree) Leaves(id NodeID) []NodeID {
	var out []NodeID
	t.Walk(id, func(nid NodeID, n Node) bool {
		if n.Kind == Edb {
			out = append(out, nid)
		}
		return true
	})
	return out
}

// Render writes the subtree rooted at id as a semiring-style expression,
// for example Ans(P(Q1[1]), R[2]).
func (t *Tree) Render(id NodeID) string {
	var b strings.Builder
	t.render(&b, id)
	return b.String()
}

func (t *Tree) render(b *strings.Builder, id NodeID) {
	n := t.nodes[id]
	switch n.Kind {
	case Edb:
		b.WriteString(n.Name)
		b.WriteByte('[')
		b.WriteString(strings.Join(n.KeyArguments, ","))
		b.WriteByte(']')
	case Fake:
		b.WriteString("_")
	default:
		b.WriteString(n.Name)
		if len(n.Children) == 0 {
			return
		}
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			t.render(b, c)
		}
		b.WriteByte(')')
	}
}

// Annotation is the provenance attached to one rule: a root in a shared arena
// and one node per body atom, aligned with the rule body.
type Annotation struct {
	Tree *Tree
	Root NodeID
	Body []NodeID
}

// String renders the annotation's root expression.
func (a *Annotation) String() string {
	if a == nil || a.Tree == nil || !a.Tree.Valid(a.Root) {
		return ""
	}
	return a.Tree.Render(a.Root)
}
