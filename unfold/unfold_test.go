package unfold

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/provenance"
)

func parse(t *testing.T, src string) []*datalog.Rule {
	t.Helper()
	rules, err := datalog.ParseProgram(src)
	require.NoError(t, err)
	return rules
}

func canonical(rules []*datalog.Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.Canonical()
	}
	sort.Strings(out)
	return out
}

var orders = []Order{DepthFirst, BreadthFirst}

func TestUnionFanOut(t *testing.T) {
	for _, order := range orders {
		t.Run(order.String(), func(t *testing.T) {
			rules := parse(t, `
				Ans(x) :- P(x), R(x).
				P(x) :- Q1(x).
				P(x) :- Q2(x).
			`)
			res, err := Unfold(rules, "Ans", Options{Order: order, Semiring: "BOOLEAN", Logger: zaptest.NewLogger(t).Sugar()})
			require.NoError(t, err)
			require.Len(t, res.Rules, 2)

			assert.Equal(t, "Ans(x) :- Q1(x), R(x).", res.Rules[0].String())
			assert.Equal(t, "Ans(x) :- Q2(x), R(x).", res.Rules[1].String())

			for i, want := range []string{"Q1", "Q2"} {
				ann := res.Rules[i].Provenance
				require.NotNil(t, ann)
				first := res.Tree.Children(ann.Root)[0]
				assert.Equal(t, "P", res.Tree.Node(first).Name)
				assert.Equal(t, want, res.Tree.Node(res.Tree.Children(first)[0]).Name)
			}
			assert.Equal(t, "Ans(P(Q1[x]), R[x])", res.Rules[0].Provenance.String())
			assert.Equal(t, "Ans(P(Q2[x]), R[x])", res.Rules[1].Provenance.String())
			assert.NotEqual(t, res.Rules[0].Provenance.Root, res.Rules[1].Provenance.Root)
			assert.Empty(t, res.Warnings)
		})
	}
}

func TestRecursionDetected(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		query string
		cycle []string
	}{
		{"mutual", "A(x) :- B(x).\nB(x) :- A(x).", "A", []string{"A", "B", "A"}},
		{"self", "A(x) :- A(x), E(x).", "A", []string{"A", "A"}},
		{"below the query", "Ans(x) :- C(x).\nC(x) :- D(x).\nD(x) :- C(x).", "Ans", []string{"C", "D", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unfold(parse(t, tt.src), tt.query, Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrRecursive))

			var re *RecursionError
			require.True(t, errors.As(err, &re))
			assert.Equal(t, tt.query, re.Query)
			assert.Equal(t, tt.cycle, re.Cycle)
			assert.Contains(t, errors.FlattenHints(err), "materialized")
		})
	}
}

func TestDiamondIsNotRecursive(t *testing.T) {
	rules := parse(t, `
		Ans(x) :- P(x), Q(x).
		P(x) :- S(x).
		Q(x) :- S(x).
		S(x) :- T(x).
	`)
	res, err := Unfold(rules, "Ans", Options{})
	require.NoError(t, err)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "Ans(x) :- T(x).", res.Rules[0].String())
}

func TestQueryNotDefined(t *testing.T) {
	_, err := Unfold(parse(t, "A(x) :- B(x)."), "Missing", Options{})
	assert.True(t, errors.IsNotFoundError(err))
}

var acyclicPrograms = map[string]string{
	"chain": `
		Ans(x, y) :- A(x, z), B(z, y).
		A(x, y) :- C(x, y).
		B(x, y) :- D(x, w), E(w, y).
		D(x, y) :- F(x, y).`,
	"union at depth": `
		Ans(x) :- P(x), Q(x).
		P(x) :- P1(x).
		P(x) :- P2(x).
		Q(x) :- Q1(x, y), S(y).
		S(y) :- S1(y).
		S(y) :- S2(y).`,
	"constants": `
		Ans(x) :- P(x, 1).
		P(x, y) :- Base(x, y, "k").
		P(x, 2) :- Other(x).`,
	"mapping shape": `
		R1(x, y) :- R1_L(x, y).
		R1(x, y) :- P_M1(x, z, y).
		P_M1(x, z, y) :- R2(x, z), R3(z, y).
		R2(x, z) :- R2_L(x, z).`,
}

func TestFlatnessAndCompleteness(t *testing.T) {
	for name, src := range acyclicPrograms {
		for _, order := range orders {
			t.Run(name+"/"+order.String(), func(t *testing.T) {
				rules := parse(t, src)
				ix := NewIndex(rules)
				query := rules[0].Head.Key()

				res, err := Unfold(rules, query, Options{Order: order, StrictProvenance: true})
				require.NoError(t, err)
				require.NotEmpty(t, res.Rules)

				for _, r := range res.Rules {
					ann := r.Provenance
					require.NotNil(t, ann, r.String())
					require.Len(t, ann.Body, len(r.Body))
					for j, a := range r.Body {
						assert.False(t, ix.Defines(a.Key()), "%s still references %s", r, a.Key())
						require.True(t, res.Tree.Valid(ann.Body[j]), "%s: no provenance for %s", r, a)
						assert.Equal(t, a.Key(), res.Tree.Node(ann.Body[j]).Name)
					}
				}
			})
		}
	}
}

func TestDepthFirstMatchesBreadthFirst(t *testing.T) {
	for name, src := range acyclicPrograms {
		t.Run(name, func(t *testing.T) {
			rules := parse(t, src)
			query := rules[0].Head.Key()

			dfs, err := Unfold(rules, query, Options{Order: DepthFirst})
			require.NoError(t, err)
			bfs, err := Unfold(rules, query, Options{Order: BreadthFirst})
			require.NoError(t, err)

			assert.Equal(t, canonical(dfs.Rules), canonical(bfs.Rules))
		})
	}
}

func TestDepthFirstMatchesBreadthFirstWithProvenanceRelations(t *testing.T) {
	tests := []struct {
		name string
		src  string
		prov []string
		want []string
	}{
		{
			name: "repeated mapping atom",
			src: `
				Ans(x) :- R2(x, u), R2(x, w).
				R2(x, y) :- P_M(x, y).
				P_M(x, y) :- R5(x, y).`,
			prov: []string{"P_M"},
			want: []string{"Ans(v0) :- R5(v0, v1), P_M(v0, v1)."},
		},
		{
			name: "union through a mapping",
			src: `
				Ans(x, y) :- R1(x, y).
				R1(x, y) :- R1_L(x, y).
				R1(x, y) :- P_M1(x, z, y).
				P_M1(x, z, y) :- R2(x, z), R3(z, y).`,
			prov: []string{"P_M1"},
			want: []string{
				"Ans(v0, v1) :- R1_L(v0, v1).",
				"Ans(v0, v1) :- R2(v0, v2), R3(v2, v1), P_M1(v0, v2, v1).",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := parse(t, tt.src)
			dfs, err := Unfold(rules, "Ans", Options{Order: DepthFirst, ProvenanceRelations: tt.prov, StrictProvenance: true})
			require.NoError(t, err)
			bfs, err := Unfold(rules, "Ans", Options{Order: BreadthFirst, ProvenanceRelations: tt.prov, StrictProvenance: true})
			require.NoError(t, err)

			assert.Equal(t, tt.want, canonical(dfs.Rules))
			assert.Equal(t, canonical(dfs.Rules), canonical(bfs.Rules))
		})
	}
}

func TestProvenanceRelationsSurvive(t *testing.T) {
	for _, order := range orders {
		t.Run(order.String(), func(t *testing.T) {
			rules := parse(t, `
				R1(x, y) :- P_M1(x, z, y).
				P_M1(x, z, y) :- R2(x, z), R3(z, y).
			`)
			res, err := Unfold(rules, "R1", Options{Order: order, ProvenanceRelations: []string{"P_M1"}})
			require.NoError(t, err)
			require.Len(t, res.Rules, 1)

			r := res.Rules[0]
			assert.Equal(t, "R1(x, y) :- R2(x, z), R3(z, y), P_M1(x, z, y).", r.String())
			assert.Equal(t, "R1(P_M1(R2[x,z], R3[z,y]))", r.Provenance.String())

			pm := res.Tree.Node(r.Provenance.Body[2])
			assert.Equal(t, provenance.Idb, pm.Kind)
			assert.True(t, pm.IsMapping)
		})
	}
}

func TestBreadthFirstMergeBoundaries(t *testing.T) {
	tests := []struct {
		name string
		src  string
		prov []string
		want []string
	}{
		{
			// both merged atoms lie in the body, after the substitution point
			name: "merge inside body",
			src:  "Ans(x) :- S(x), Pr(x, a), Pr(x, b).\nS(x) :- T(x).",
			prov: []string{"Pr"},
			want: []string{"Ans(x) :- T(x), Pr(x, a)."},
		},
		{
			// the candidate body brings an atom that absorbs one after it
			name: "merge spliced atom",
			src:  "Ans(x) :- S(x), Pr(x, a).\nS(x) :- T(x), Pr(x, b).",
			prov: []string{"Pr"},
			want: []string{"Ans(x) :- T(x), Pr(x, b)."},
		},
		{
			// a body atom merges with a re-appended extra atom
			name: "merge across body and extras",
			src:  "Ans(x) :- Pm(x, u), Pm(x, w).\nPm(x, y) :- B(x, y).",
			prov: []string{"Pm"},
			want: []string{"Ans(x) :- B(x, u), Pm(x, u)."},
		},
		{
			// head variables keep both atoms
			name: "no merge of distinct answers",
			src:  "Ans(x, y) :- S(x), Pr(x, a), Pr(y, b).\nS(x) :- T(x).",
			prov: []string{"Pr"},
			want: []string{"Ans(x, y) :- T(x), Pr(x, a), Pr(y, b)."},
		},
		{
			name: "no merge across relations",
			src:  "Ans(x) :- S(x), Pr(x, a), Ps(x, b).\nS(x) :- T(x).",
			prov: []string{"Pr", "Ps"},
			want: []string{"Ans(x) :- T(x), Pr(x, a), Ps(x, b)."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Unfold(parse(t, tt.src), "Ans", Options{
				Order:               BreadthFirst,
				ProvenanceRelations: tt.prov,
				StrictProvenance:    true,
			})
			require.NoError(t, err)

			got := make([]string, len(res.Rules))
			for i, r := range res.Rules {
				got[i] = r.String()
				for j, a := range r.Body {
					assert.Equal(t, a.Key(), res.Tree.Node(r.Provenance.Body[j]).Name)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMergeProvenanceAtomsMovesBoundary(t *testing.T) {
	u := &unfolder{prov: map[string]bool{"Pm": true}, tree: provenance.NewTree()}
	rule, err := datalog.ParseRule("Ans(x) :- B(x, u), Pm(x, w).")
	require.NoError(t, err)
	extra, err := datalog.ParseRule("X(x) :- Pm(x, u).")
	require.NoError(t, err)

	it := &item{rule: rule, nodes: make(map[*datalog.Atom]provenance.NodeID)}
	it.extra = extra.Body
	root := u.tree.NewIdb(provenance.None, "Ans", "", false)
	it.nodes[rule.Body[1]] = u.tree.NewIdb(root, "Pm", "", true)
	extraNode := u.tree.NewIdb(root, "Pm", "", true)
	it.nodes[extra.Body[0]] = extraNode

	discarded := rule.Body[1]
	kept := extra.Body[0]
	u.mergeProvenanceAtoms(it)

	require.Len(t, it.rule.Body, 1)
	assert.Equal(t, "B(x, u)", it.rule.Body[0].String())
	require.Len(t, it.extra, 1)
	assert.Same(t, kept, it.extra[0])
	assert.Equal(t, extraNode, it.nodes[discarded])
}

func TestOriginOf(t *testing.T) {
	// body [a0 a1 A a3] with A at 2 replaced by three candidate atoms
	tests := []struct {
		j    int
		want origin
	}{
		{0, origin{index: 0}},
		{1, origin{index: 1}},
		{2, origin{fromCandidate: true, index: 0}},
		{4, origin{fromCandidate: true, index: 2}},
		{5, origin{index: 3}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, originOf(tt.j, 2, 3), "j=%d", tt.j)
	}
	// an empty candidate body shifts nothing before pos and pulls the tail left
	assert.Equal(t, origin{index: 3}, originOf(2, 2, 0))
}

func TestUnsatisfiableRulesDropped(t *testing.T) {
	rules := parse(t, `
		Ans(x) :- P(1, x).
		P(2, y) :- Q(y).
	`)
	res, err := Unfold(rules, "Ans", Options{})
	require.NoError(t, err)
	assert.Empty(t, res.Rules)
}

func TestEmptyCandidateBodyGetsFakeNode(t *testing.T) {
	rules := parse(t, `
		Ans(x) :- P(x), R(x).
		P(1) :- .
	`)
	res, err := Unfold(rules, "Ans", Options{})
	require.NoError(t, err)
	require.Len(t, res.Rules, 1)
	assert.Equal(t, "Ans(1) :- R(1).", res.Rules[0].String())
	assert.Equal(t, "Ans(P(_), R[1])", res.Rules[0].Provenance.String())
}

func TestEdbKeysFollowBindings(t *testing.T) {
	for _, order := range orders {
		t.Run(order.String(), func(t *testing.T) {
			rules := parse(t, `
				Ans(x) :- P(x), R(x).
				P(1) :- Q(1).
			`)
			res, err := Unfold(rules, "Ans", Options{Order: order, StrictProvenance: true})
			require.NoError(t, err)
			require.Len(t, res.Rules, 1)
			assert.Equal(t, "Ans(1) :- Q(1), R(1).", res.Rules[0].String())
			assert.Equal(t, "Ans(P(Q[1]), R[1])", res.Rules[0].Provenance.String())
		})
	}
}

func TestIndependentAtomsAreNotMerged(t *testing.T) {
	for _, order := range orders {
		t.Run(order.String(), func(t *testing.T) {
			rules := parse(t, `
				Ans(x, w) :- A(x), B(w).
				A(x) :- R(x, u).
				B(w) :- R(v, w).
			`)
			res, err := Unfold(rules, "Ans", Options{Order: order})
			require.NoError(t, err)
			require.Len(t, res.Rules, 1)
			assert.Equal(t, "Ans(x, w) :- R(x, u), R(v, w).", res.Rules[0].String())
		})
	}
}

func TestDuplicateRulesRemoved(t *testing.T) {
	rules := parse(t, `
		Ans(x) :- P(x).
		P(x) :- Q(x).
		P(y) :- Q(y).
	`)
	res, err := Unfold(rules, "Ans", Options{})
	require.NoError(t, err)
	require.Len(t, res.Rules, 1)
}

func TestProvenanceWarnings(t *testing.T) {
	u := &unfolder{prov: map[string]bool{}, tree: provenance.NewTree(), opts: Options{StrictProvenance: true}}
	u.log = zaptest.NewLogger(t).Sugar()
	r, err := datalog.ParseRule("Ans(x) :- Q(x).")
	require.NoError(t, err)

	it := &item{rule: r, root: u.tree.NewIdb(provenance.None, "Ans", "", false), nodes: make(map[*datalog.Atom]provenance.NodeID)}
	_, ok := u.node(it, r.Body[0])
	assert.False(t, ok)

	u.bind(it, r.Body[0], u.tree.NewEdb(it.root, "Q", nil, "", ""))
	u.bind(it, r.Body[0], u.tree.NewEdb(it.root, "Q", nil, "", ""))

	require.Len(t, u.warnings, 2)
	assert.Equal(t, WarningMissing, u.warnings[0].Kind)
	assert.Equal(t, WarningOverwritten, u.warnings[1].Kind)

	_, err = u.finish([]*item{it})
	assert.True(t, errors.Is(err, ErrProvenance))
}

func TestParseOrder(t *testing.T) {
	for in, want := range map[string]Order{"": DepthFirst, "dfs": DepthFirst, "BFS": BreadthFirst, "breadth-first": BreadthFirst} {
		got, err := ParseOrder(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOrder("sideways")
	assert.True(t, errors.IsInvalidRequestError(err))
}
