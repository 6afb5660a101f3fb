// Package unfold flattens a view definition into directly executable rules.
//
// Starting from the rules that define a query relation, every body atom that
// is itself the head of some rule is replaced by that rule's body. A relation
// defined by several rules multiplies the rule into a union. While
// substituting, the unfolder grows one provenance tree per resulting rule
// recording which rules and base facts justify it.
package unfold

import (
	"strings"

	"go.uber.org/zap"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/provenance"
)

// Order selects the expansion traversal.
type Order int

const (
	// DepthFirst fully expands one rule, atom by atom, before the next.
	DepthFirst Order = iota
	// BreadthFirst expands one atom of every pending rule per pass and
	// merges complementary provenance-relation atoms after each step.
	BreadthFirst
)

func (o Order) String() string {
	if o == BreadthFirst {
		return "bfs"
	}
	return "dfs"
}

// ParseOrder accepts "dfs"/"depth-first" and "bfs"/"breadth-first".
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dfs", "depth-first":
		return DepthFirst, nil
	case "bfs", "breadth-first":
		return BreadthFirst, nil
	default:
		return DepthFirst, errors.NewInvalidRequestError("unknown unfold order %q (want dfs or bfs)", s)
	}
}

// Options configures one Unfold call.
type Options struct {
	// ProvenanceRelations are relation keys whose atoms are kept in the
	// flattened body after being substituted.
	ProvenanceRelations []string
	Semiring            string
	AssignmentExpr      string
	Order               Order
	// StrictProvenance turns provenance warnings into an error.
	StrictProvenance bool
	Logger           *zap.SugaredLogger
}

// Result is the flattened rule list. Every rule carries a provenance
// annotation into Tree.
type Result struct {
	Rules    []*datalog.Rule
	Tree     *provenance.Tree
	Warnings []ProvenanceWarning
}

// item is one rule under expansion.
type item struct {
	rule  *datalog.Rule
	root  provenance.NodeID
	nodes map[*datalog.Atom]provenance.NodeID
	// extra holds provenance-relation atoms that were substituted away and
	// are appended back to the body once expansion ends.
	extra []*datalog.Atom
	done  bool
}

type unfolder struct {
	opts     Options
	index    Index
	prov     map[string]bool
	tree     *provenance.Tree
	log      *zap.SugaredLogger
	warnings []ProvenanceWarning
}

// Unfold flattens the rules defining queryKey. It fails with a
// *RecursionError, before doing any expansion, when the definition is
// cyclic.
func Unfold(rules []*datalog.Rule, queryKey string, opts Options) (*Result, error) {
	u := &unfolder{
		opts:  opts,
		index: NewIndex(rules),
		prov:  make(map[string]bool, len(opts.ProvenanceRelations)),
		tree:  provenance.NewTree(),
		log:   logger.OrComponent(opts.Logger, "unfold"),
	}
	for _, k := range opts.ProvenanceRelations {
		u.prov[k] = true
	}

	seeds := u.index[queryKey]
	if len(seeds) == 0 {
		return nil, errors.WithHint(
			errors.NewNotFoundError("no rule defines %s", queryKey),
			"check the query relation key (peer.schema.relation)")
	}
	if err := checkRecursion(u.index, queryKey, seeds); err != nil {
		return nil, err
	}

	logger.UnfoldDebugw(u.log, "unfolding",
		logger.FieldQuery, queryKey,
		logger.FieldOrder, opts.Order.String(),
		logger.FieldCount, len(seeds))

	items := u.seed(seeds)
	var err error
	if opts.Order == BreadthFirst {
		items, err = u.breadthFirst(items)
	} else {
		items, err = u.depthFirst(items)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unfold %s", queryKey)
	}
	return u.finish(items)
}

func (u *unfolder) seed(seeds []*datalog.Rule) []*item {
	items := make([]*item, 0, len(seeds))
	for _, s := range seeds {
		r := s.Clone()
		r.Provenance = nil
		it := &item{
			rule:  r,
			root:  u.tree.NewIdb(provenance.None, r.Head.Key(), u.opts.Semiring, r.Mapping),
			nodes: make(map[*datalog.Atom]provenance.NodeID, len(r.Body)),
		}
		for _, a := range r.Body {
			u.bind(it, a, u.child(it.root, a))
		}
		items = append(items, it)
	}
	return items
}

// child adds the provenance node for atom a under parent: an Idb node when a
// can be expanded further, an Edb leaf keyed by its key arguments otherwise.
func (u *unfolder) child(parent provenance.NodeID, a *datalog.Atom) provenance.NodeID {
	if u.index.Defines(a.Key()) {
		return u.tree.NewIdb(parent, a.Key(), u.opts.Semiring, u.prov[a.Key()])
	}
	return u.tree.NewEdb(parent, a.Key(), keyStrings(a), u.opts.Semiring, u.opts.AssignmentExpr)
}

func keyStrings(a *datalog.Atom) []string {
	keys := a.KeyArguments()
	args := make([]string, len(keys))
	for i, t := range keys {
		args[i] = t.String()
	}
	return args
}

// eligible returns the position of the first substitutable body atom, or -1.
func (u *unfolder) eligible(it *item) int {
	for i, a := range it.rule.Body {
		if u.index.Defines(a.Key()) {
			return i
		}
	}
	return -1
}

func (u *unfolder) depthFirst(items []*item) ([]*item, error) {
	for i := 0; i < len(items); {
		it := items[i]
		pos := u.eligible(it)
		if pos < 0 {
			it.done = true
			i++
			continue
		}
		next, err := u.expand(it, pos)
		if err != nil {
			return nil, err
		}
		// the first replacement is expanded next, before any sibling
		items = append(items[:i], append(next, items[i+1:]...)...)
	}
	return items, nil
}

func (u *unfolder) breadthFirst(items []*item) ([]*item, error) {
	for changed := true; changed; {
		changed = false
		next := make([]*item, 0, len(items))
		for _, it := range items {
			if it.done {
				next = append(next, it)
				continue
			}
			pos := u.eligible(it)
			if pos < 0 {
				it.done = true
				next = append(next, it)
				continue
			}
			expanded, err := u.expand(it, pos)
			if err != nil {
				return nil, err
			}
			for _, n := range expanded {
				u.mergeProvenanceAtoms(n)
			}
			next = append(next, expanded...)
			changed = true
		}
		items = next
	}
	return items, nil
}

// expand substitutes the atom at pos with every candidate definition.
// The original provenance tree serves the first new rule; every further rule
// gets a deep copy taken before the substituted node grows children, and its
// atoms are rebound through the copy's remap table.
func (u *unfolder) expand(it *item, pos int) ([]*item, error) {
	target := it.rule.Body[pos]
	targetNode, ok := u.node(it, target)
	if !ok {
		targetNode = u.child(it.root, target)
	}

	subs, err := it.rule.SubstituteAtomAt(pos, u.index[target.Key()], true)
	if err != nil {
		return nil, errors.Wrapf(err, "substitute %s in %s", target, it.rule)
	}
	if len(subs) == 0 {
		logger.UnfoldDebugw(u.log, "dropping unsatisfiable rule",
			logger.FieldRule, it.rule.String(),
			logger.FieldRelation, target.Key())
		return nil, nil
	}

	roots := make([]provenance.NodeID, len(subs))
	remaps := make([]provenance.Remap, len(subs))
	roots[0] = it.root
	for i := 1; i < len(subs); i++ {
		roots[i], remaps[i] = u.tree.Copy(it.root)
	}

	out := make([]*item, len(subs))
	for i, s := range subs {
		remap := remaps[i]
		n := &item{
			rule:  s.Rule,
			root:  roots[i],
			nodes: make(map[*datalog.Atom]provenance.NodeID, len(s.Rule.Body)),
		}
		expanded := remap.Lookup(targetNode)
		candLen := len(s.Rule.Body) - len(it.rule.Body) + 1

		for j, a := range s.Rule.Body {
			o := originOf(j, pos, candLen)
			if o.fromCandidate {
				u.bind(n, a, u.child(expanded, a))
				continue
			}
			if id, ok := u.node(it, it.rule.Body[o.index]); ok {
				u.bind(n, a, remap.Lookup(id))
			}
		}
		if candLen == 0 {
			u.tree.NewFake(expanded, u.opts.Semiring)
		}

		for _, x := range it.extra {
			nx := s.Bindings.ApplyAtom(x)
			n.extra = append(n.extra, nx)
			if id, ok := u.node(it, x); ok {
				u.bind(n, nx, remap.Lookup(id))
			}
		}
		if u.prov[target.Key()] {
			nx := s.Bindings.ApplyAtom(target)
			n.extra = append(n.extra, nx)
			u.bind(n, nx, expanded)
		}
		out[i] = n
	}

	logger.UnfoldDebugw(u.log, "substituted",
		logger.FieldRule, it.rule.String(),
		logger.FieldRelation, target.Key(),
		logger.FieldCount, len(out))
	return out, nil
}

// origin says where body atom j of a new rule came from: the candidate body
// spliced in at pos, or the outer rule's atom at index.
type origin struct {
	fromCandidate bool
	index         int
}

func originOf(j, pos, candLen int) origin {
	switch {
	case j < pos:
		return origin{index: j}
	case j < pos+candLen:
		return origin{fromCandidate: true, index: j - pos}
	default:
		return origin{index: j - candLen + 1}
	}
}

// mergeProvenanceAtoms removes redundant provenance-relation atoms across
// the body and the pending extra atoms. The body/extra boundary moves left
// for every removed body atom. A removed atom keeps resolving to the node of
// the atom it was mapped onto.
func (u *unfolder) mergeProvenanceAtoms(n *item) {
	boundary := len(n.rule.Body)
	scratch := &datalog.Rule{
		Head: n.rule.Head,
		Body: append(append(make([]*datalog.Atom, 0, boundary+len(n.extra)), n.rule.Body...), n.extra...),
	}
	merges := scratch.MergeComplementaryAtoms(func(a *datalog.Atom) bool { return u.prov[a.Key()] })
	if len(merges) == 0 {
		return
	}
	for _, m := range merges {
		if id, ok := n.nodes[m.Kept]; ok {
			n.nodes[m.Discarded] = id
		}
		if m.At < boundary {
			boundary--
		}
	}
	n.rule.Body = scratch.Body[:boundary:boundary]
	n.extra = append([]*datalog.Atom(nil), scratch.Body[boundary:]...)

	logger.UnfoldDebugw(u.log, "merged complementary provenance atoms",
		logger.FieldRule, n.rule.String(),
		logger.FieldCount, len(merges))
}

func (u *unfolder) finish(items []*item) (*Result, error) {
	res := &Result{Tree: u.tree}
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		r := it.rule
		r.Body = append(r.Body[:len(r.Body):len(r.Body)], it.extra...)
		for _, m := range r.Minimize() {
			if id, ok := it.nodes[m.Kept]; ok {
				it.nodes[m.Discarded] = id
			}
		}

		ann := &provenance.Annotation{Tree: u.tree, Root: it.root, Body: make([]provenance.NodeID, len(r.Body))}
		for j, a := range r.Body {
			id, ok := u.node(it, a)
			if !ok {
				id = provenance.None
			}
			ann.Body[j] = id
			if ok && u.tree.Node(id).Kind == provenance.Edb {
				// substitutions after the leaf was made may have bound its keys
				u.tree.SetKeyArguments(id, keyStrings(a))
			}
		}
		r.SetProvenance(ann)

		key := r.Name + "\x00" + r.Canonical()
		if seen[key] {
			continue
		}
		seen[key] = true
		res.Rules = append(res.Rules, r)
	}
	res.Warnings = u.warnings

	if u.opts.StrictProvenance && len(u.warnings) > 0 {
		details := make([]string, len(u.warnings))
		for i, w := range u.warnings {
			details[i] = w.String()
		}
		return nil, errors.WithDetail(
			errors.Wrapf(ErrProvenance, "%d provenance warnings", len(u.warnings)),
			strings.Join(details, "\n"))
	}
	return res, nil
}
