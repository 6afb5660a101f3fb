package datalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/orx/errors"
)

func mustRule(t *testing.T, src string) *Rule {
	t.Helper()
	r, err := ParseRule(src)
	require.NoError(t, err, src)
	return r
}

func TestRelationKey(t *testing.T) {
	tests := []struct {
		rel  Relation
		want string
	}{
		{Relation{Name: "R1"}, "R1"},
		{Relation{Schema: "s", Name: "R1"}, "s.R1"},
		{Relation{Peer: "p", Schema: "s", Name: "R1", Keys: []int{0}}, "p.s.R1"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rel.Key())
			back := ParseRelationKey(tt.want)
			assert.Equal(t, tt.want, back.Key())
		})
	}
}

func TestAtomKeyArguments(t *testing.T) {
	a := NewAtom(Relation{Name: "R", Keys: []int{1}}, Var("x"), Const("7"), Var("y"))
	assert.Equal(t, []Term{Const("7")}, a.KeyArguments())

	b := NewAtom(Relation{Name: "R"}, Var("x"), Const("7"))
	assert.Equal(t, []int{0, 1}, b.KeyArgumentIndices())
	assert.Equal(t, []Term{Var("x"), Const("7")}, b.KeyArguments())
}

func TestAtomEqual(t *testing.T) {
	a := NewAtom(Relation{Name: "R", Keys: []int{0}}, Var("x"))
	b := NewAtom(Relation{Name: "R"}, Var("x"))
	c := NewAtom(Relation{Name: "R"}, Var("y"))

	assert.True(t, a.Equal(b), "keys do not take part in identity")
	assert.False(t, a.Equal(c))
	assert.False(t, a.Equal(nil))
}

func TestRuleStringRoundTrip(t *testing.T) {
	tests := []string{
		`A(x) :- B(x).`,
		`M1: p.s.R1(x, y) :- p.s.R2(x, z), p.s.R3(z, y).`,
		`NOT R(x, "abc") :- Del(x).`,
		`Fact(1, "two") :- .`,
	}
	for _, src := range tests {
		t.Run(src, func(t *testing.T) {
			r := mustRule(t, src)
			assert.Equal(t, src, r.String())
			again := mustRule(t, r.String())
			assert.Equal(t, r.String(), again.String())
		})
	}
}

func TestCanonical(t *testing.T) {
	a := mustRule(t, `L1: Ans(x) :- P(x, y), R(y).`)
	b := mustRule(t, `L2: Ans(u) :- P(u, w), R(w).`)
	c := mustRule(t, `Ans(u) :- P(w, u), R(w).`)

	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.NotEqual(t, a.Canonical(), c.Canonical())
	assert.Equal(t, `Ans(v0) :- P(v0, v1), R(v1).`, a.Canonical())
}

func TestVariables(t *testing.T) {
	r := mustRule(t, `H(y, x) :- A(x, z), B(z, w).`)
	assert.Equal(t, []string{"y", "x", "z", "w"}, r.Variables())
	assert.Equal(t, []string{"x", "z", "w"}, r.BodyVariables())
}

func TestClone(t *testing.T) {
	r := mustRule(t, `H(x) :- A(x).`)
	c := r.Clone()
	c.Body[0].Args[0] = Const("1")
	assert.Equal(t, `H(x) :- A(x).`, r.String())
}

func TestSubstituteAtomAt(t *testing.T) {
	t.Run("union fan-out", func(t *testing.T) {
		r := mustRule(t, `Ans(x) :- P(x), R(x).`)
		p1 := mustRule(t, `P(y) :- Q1(y).`)
		p2 := mustRule(t, `P(y) :- Q2(y, z).`)

		subs, err := r.SubstituteAtomAt(0, []*Rule{p1, p2}, true)
		require.NoError(t, err)
		require.Len(t, subs, 2)
		assert.Equal(t, `Ans(x) :- Q1(x), R(x).`, subs[0].Rule.String())
		assert.Equal(t, `Ans(x) :- Q2(x, z), R(x).`, subs[1].Rule.String())
		assert.Same(t, p2, subs[1].Candidate)
	})

	t.Run("renames apart", func(t *testing.T) {
		r := mustRule(t, `Ans(x, z) :- P(x), S(z).`)
		p := mustRule(t, `P(x) :- Q(x, z).`)

		subs, err := r.SubstituteAtomAt(0, []*Rule{p}, true)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, `Ans(x, z) :- Q(x, z_1), S(z).`, subs[0].Rule.String())
	})

	t.Run("constants propagate to head", func(t *testing.T) {
		r := mustRule(t, `Ans(x) :- P(x).`)
		p := mustRule(t, `P(1) :- Q(2).`)

		subs, err := r.SubstituteAtomAt(0, []*Rule{p}, true)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, `Ans(1) :- Q(2).`, subs[0].Rule.String())
		assert.Equal(t, Const("1"), subs[0].Bindings.Resolve(Var("x")))
	})

	t.Run("conflicting constants skip candidate", func(t *testing.T) {
		r := mustRule(t, `Ans(x) :- P(1, x).`)
		p1 := mustRule(t, `P(2, y) :- Q(y).`)
		p2 := mustRule(t, `P(1, y) :- S(y).`)

		subs, err := r.SubstituteAtomAt(0, []*Rule{p1, p2}, true)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, `Ans(x) :- S(x).`, subs[0].Rule.String())
	})

	t.Run("candidate names win without keepOriginalArity", func(t *testing.T) {
		r := mustRule(t, `Ans(x) :- P(x).`)
		p := mustRule(t, `P(y) :- Q(y).`)

		subs, err := r.SubstituteAtomAt(0, []*Rule{p}, false)
		require.NoError(t, err)
		assert.Equal(t, `Ans(y) :- Q(y).`, subs[0].Rule.String())
	})

	t.Run("errors", func(t *testing.T) {
		r := mustRule(t, `Ans(x) :- P(x).`)
		_, err := r.SubstituteAtomAt(3, nil, true)
		assert.True(t, errors.IsInvalidRequestError(err))

		_, err = r.SubstituteAtomAt(0, []*Rule{mustRule(t, `P(x, y) :- Q(x, y).`)}, true)
		assert.True(t, errors.IsInvalidRequestError(err))

		_, err = r.SubstituteAtomAt(0, []*Rule{mustRule(t, `Other(x) :- Q(x).`)}, true)
		assert.True(t, errors.IsInvalidRequestError(err))
	})
}

func TestMergeComplementaryAtoms(t *testing.T) {
	tests := []struct {
		name   string
		rule   string
		filter func(*Atom) bool
		want   string
		merges int
	}{
		{
			name:   "existential variable absorbed",
			rule:   `H(x) :- P(x, s), P(x, y), Q(y).`,
			want:   `H(x) :- P(x, y), Q(y).`,
			merges: 1,
		},
		{
			name: "shared variables conflict",
			rule: `H(x, y) :- P(x, y), P(y, x).`,
			want: `H(x, y) :- P(x, y), P(y, x).`,
		},
		{
			name:   "duplicates collapse",
			rule:   `H(x) :- P(x), Q(x), P(x).`,
			want:   `H(x) :- P(x), Q(x).`,
			merges: 1,
		},
		{
			name:   "filter limits merging",
			rule:   `H(x) :- P(x), P(x), Prov(x, a), Prov(x, b).`,
			filter: func(a *Atom) bool { return a.Relation.Name == "Prov" },
			want:   `H(x) :- P(x), P(x), Prov(x, a).`,
			merges: 1,
		},
		{
			name:   "constants are kept",
			rule:   `H(x) :- P(x, s), P(x, 3).`,
			want:   `H(x) :- P(x, 3).`,
			merges: 1,
		},
		{
			name: "cross product is not a lookup",
			rule: `Ans(x, w) :- R(x, u), R(v, w).`,
			want: `Ans(x, w) :- R(x, u), R(v, w).`,
		},
		{
			name: "head variables stay apart",
			rule: `H(x, y) :- P(x, a), P(y, b).`,
			want: `H(x, y) :- P(x, a), P(y, b).`,
		},
		{
			name:   "redundant join removed as a whole",
			rule:   `H(x) :- R(x, u), S(u), R(x, w), S(w).`,
			want:   `H(x) :- R(x, u), S(u).`,
			merges: 2,
		},
		{
			name:   "existential shared with another atom",
			rule:   `H(x) :- R(x, u), R(x, w), S(w).`,
			want:   `H(x) :- R(x, w), S(w).`,
			merges: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := mustRule(t, tt.rule)
			merges := r.MergeComplementaryAtoms(tt.filter)
			assert.Len(t, merges, tt.merges)
			assert.Equal(t, tt.want, r.String())
		})
	}
}

func TestMergeRecordsPositions(t *testing.T) {
	r := mustRule(t, `H(x) :- Q(x), P(x, s), R(x), P(x, 4).`)
	kept := r.Body[3]
	discarded := r.Body[1]
	merges := r.Minimize()
	require.Len(t, merges, 1)

	m := merges[0]
	assert.Equal(t, 1, m.At)
	assert.Same(t, discarded, m.Discarded)
	assert.Same(t, kept, m.Kept)
	assert.Equal(t, `H(x) :- Q(x), R(x), P(x, 4).`, r.String())
	assert.Same(t, kept, r.Body[2])
}

func TestMinimizeIdempotent(t *testing.T) {
	tests := []struct {
		rule string
		want string
	}{
		{`H(x) :- P(x, s), P(x, y), Q(y), Q(y).`, `H(x) :- P(x, y), Q(y).`},
		{`H(x, y) :- P(x, y), P(y, x), P(x, a).`, `H(x, y) :- P(x, y), P(y, x).`},
		{`H(x) :- P(a, b), P(b, c), P(c, x).`, `H(x) :- P(a, b), P(b, c), P(c, x).`},
		{`H(x) :- P(x, a, b), P(x, 1, c), P(x, d, 2).`, `H(x) :- P(x, 1, c), P(x, d, 2).`},
		{`Ans(x, w) :- R(x, u), R(v, w).`, `Ans(x, w) :- R(x, u), R(v, w).`},
		{`H() :- .`, `H() :- .`},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			r := mustRule(t, tt.rule)
			r.Minimize()
			assert.Equal(t, tt.want, r.String())
			assert.Empty(t, r.Minimize())
			assert.Equal(t, tt.want, r.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
		col  int
	}{
		{"missing paren", `A(x :- B(x).`, 1, 4},
		{"missing relation", `A(x) :- (x).`, 1, 8},
		{"bad term", `A(x) :- B(#).`, 1, 10},
		{"missing terminator", "A(x) :- B(x)\nC(y) :- D(y).", 2, 0},
		{"unterminated string", `A("abc) :- B(x).`, 1, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProgram(tt.src)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var pe *ParseError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Pos.Line, pe.Error())
			assert.Equal(t, tt.col, pe.Pos.Column, pe.Error())
		})
	}
}

func TestParseProgram(t *testing.T) {
	rules, err := ParseProgram(`
		% view definitions
		Ans(x) :- P(x), R(x).
		P(x) :- Q1(x).
		p2: P(x) :- Q2(x).
	`)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "p2", rules[2].Name)
	assert.Equal(t, "Q2", rules[2].Body[0].Key())
}

func TestParseClauseMultipleHeads(t *testing.T) {
	c, err := ParseClause(`M1: R1(x, y), R4(x) :- R2(x, z), R3(z, y)`)
	require.NoError(t, err)
	assert.Equal(t, "M1", c.Name)
	require.Len(t, c.Heads, 2)

	rules := c.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, `M1: R4(x) :- R2(x, z), R3(z, y).`, rules[1].String())

	_, err = ParseRule(`R1(x), R4(x) :- R2(x).`)
	assert.True(t, errors.Is(err, ErrSyntax))
}
