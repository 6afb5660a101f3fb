package proql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/schema"
)

func tn(name string) schema.TupleNode { return schema.TupleNode{Relation: name} }

func derivation(name string, sources []string, targets ...string) *schema.DerivationNode {
	d := &schema.DerivationNode{Name: name}
	for _, s := range sources {
		d.Sources = append(d.Sources, tn(s))
	}
	for _, t := range targets {
		d.Targets = append(d.Targets, tn(t))
	}
	return d
}

// M1: R2,R3 -> R1
func singleMapping() *schema.Graph {
	g := schema.NewGraph()
	g.Add(derivation("M1", []string{"R2", "R3"}, "R1"))
	return g
}

// M1: R2,R3 -> R1 and M2: R5 -> R2
func twoLevels() *schema.Graph {
	g := singleMapping()
	g.Add(derivation("M2", []string{"R5"}, "R2"))
	return g
}

func mustParse(t *testing.T, text string) *Pattern {
	t.Helper()
	p, err := ParsePattern(text)
	require.NoError(t, err, text)
	return p
}

func matchedNames(subs []*schema.Subgraph) [][]string {
	var out [][]string
	for _, s := range subs {
		var names []string
		for _, d := range s.Matched() {
			names = append(names, d.Name)
		}
		out = append(out, names)
	}
	return out
}

func TestMatchSingleMapping(t *testing.T) {
	g := singleMapping()

	t.Run("derivation edge", func(t *testing.T) {
		subs := Match(g, mustParse(t, "[R1] <- []"))
		require.Len(t, subs, 1)
		assert.Equal(t, tn("R1"), subs[0].Root)
		assert.Equal(t, [][]string{{"M1"}}, matchedNames(subs))
	})

	t.Run("chain edge", func(t *testing.T) {
		subs := Match(g, mustParse(t, "[R1] ** []"))
		require.Len(t, subs, 1)
		assert.Equal(t, [][]string{{"M1"}}, matchedNames(subs))
	})

	t.Run("unknown relation", func(t *testing.T) {
		assert.Empty(t, Match(g, mustParse(t, "[R9] <- []")))
	})
}

func TestMatchPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		want    [][]string
	}{
		{"named source", "[R1] <- [R2]", [][]string{{"M1"}}},
		{"all sources required", "[R1] <- [R2][R3]", [][]string{{"M1"}}},
		{"missing source", "[R1] <- [R5]", nil},
		{"two hops", "[R1] <- [R2] <- [R5]", [][]string{{"M2", "M1"}}},
		{"second hop fails", "[R1] <- [R3] <- []", nil},
		{"mapping name", "[R1] M1 <- []", [][]string{{"M1"}}},
		{"wrong mapping name", "[R1] M2 <- []", nil},
		{"mapping glob", "[R1] M? <- []", [][]string{{"M1"}}},
		{"relation glob", "[R*] <- []", [][]string{{"M1"}, {"M2"}}},
		{"character class", "[R[12]] <- []", [][]string{{"M1"}, {"M2"}}},
		{"chain then named hop", "[R1] ** [] M2 <- [R5]", [][]string{{"M2", "M1"}}},
		{"chain reaches base relation", "[R1] ** [R5]", [][]string{{"M2", "M1"}}},
	}

	g := twoLevels()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matchedNames(Match(g, mustParse(t, tt.pattern))))
		})
	}
}

func TestMatchQualifiedNames(t *testing.T) {
	g := schema.NewGraph()
	g.Add(&schema.DerivationNode{
		Name:    "M1",
		Sources: []schema.TupleNode{{Peer: "p", Schema: "s", Relation: "R2"}},
		Targets: []schema.TupleNode{{Peer: "p", Schema: "s", Relation: "R1"}},
	})

	subs := Match(g, mustParse(t, "[p.s.R*] <- []"))
	require.Len(t, subs, 1)
	assert.Equal(t, "p.s.R1", subs[0].Root.Key())

	assert.Empty(t, Match(g, mustParse(t, "[q.*.R1] <- []")))
	assert.Len(t, Match(g, mustParse(t, "[R1] <- []")), 1)
}

func TestMatchCycleTerminates(t *testing.T) {
	g := schema.NewGraph()
	g.Add(derivation("M1", []string{"R2"}, "R1"))
	g.Add(derivation("M2", []string{"R1"}, "R2"))

	subs := Match(g, mustParse(t, "[R1] ** []"))
	require.Len(t, subs, 1)
	assert.Equal(t, [][]string{{"M2", "M1"}}, matchedNames(subs))
}

func TestGetSubgraphVisited(t *testing.T) {
	g := twoLevels()
	p := mustParse(t, "[R1] <- [R2] <- []")
	visited := Visited{tn("R1"): true}
	sub := schema.NewSubgraph(g, tn("R1"))

	assert.False(t, p.GetSubgraph(g, tn("R1"), p.First(), sub, visited))
	assert.Zero(t, sub.Len())

	visited = make(Visited)
	assert.True(t, p.GetSubgraph(g, tn("R1"), p.First(), sub, visited))
	assert.True(t, visited[tn("R1")])
	assert.Equal(t, 2, sub.Len())
}

func TestMatchLogsRoots(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	MatchWithLogger(twoLevels(), mustParse(t, "[R*] <- []"), zap.New(core).Sugar())

	entries := logs.FilterMessageSnippet("searched root").All()
	require.Len(t, entries, 4)
	assert.Equal(t, "R1", entries[0].ContextMap()["relation"])
}

func TestStepOutcomes(t *testing.T) {
	d := derivation("M1", []string{"R2", "R3"}, "R1")

	p := mustParse(t, "[R1] <- [R2]")
	outcome, connectors := p.First().Match(d)
	assert.Equal(t, MatchAdvance, outcome)
	assert.Equal(t, []schema.TupleNode{tn("R2")}, connectors)

	p = mustParse(t, "[R4] <- []")
	outcome, _ = p.First().Match(d)
	assert.Equal(t, NoMatchAdvance, outcome)

	p = mustParse(t, "[] ** [R3]")
	outcome, connectors = p.First().Match(d)
	assert.Equal(t, MatchNoAdvance, outcome)
	assert.Equal(t, []schema.TupleNode{tn("R3")}, connectors)

	p = mustParse(t, "[] ** [R9]")
	outcome, connectors = p.First().Match(d)
	assert.Equal(t, NoMatchNoAdvance, outcome)
	assert.Equal(t, d.Sources, connectors)

	assert.Equal(t, "NOMATCH_NOADVANCE", NoMatchNoAdvance.String())
}

func TestParseQuery(t *testing.T) {
	q, err := ParseQuery("evaluate boolean of [R1 $r] M1 $m <- [] ** [R5 $s] return $m")
	require.NoError(t, err)

	assert.Equal(t, "BOOLEAN", q.Semiring)
	assert.Equal(t, "m", q.Return)
	require.Len(t, q.Pattern.Steps, 2)
	assert.IsType(t, &DerivationStep{}, q.Pattern.Steps[0])
	assert.IsType(t, &ChainStep{}, q.Pattern.Steps[1])
	assert.Equal(t, []string{"r", "m", "s"}, q.Pattern.Variables())
	assert.Equal(t, "EVALUATE BOOLEAN OF [R1 $r] M1 $m <- [] ** [R5 $s] RETURN $m", q.String())

	// Sources of one step are the targets of the next.
	assert.Equal(t, q.Pattern.Steps[0].Base().Sources, q.Pattern.Steps[1].Base().Targets)
	assert.Nil(t, q.Pattern.Next(q.Pattern.Steps[1]))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		kind   ErrorKind
		offset int
		token  string
	}{
		{"no edge", "[R1]", ErrorKindSyntax, 4, "<end of input>"},
		{"unclosed group", "[R1 <- []", ErrorKindSyntax, 4, "<-"},
		{"missing group after edge", "[R1] <-", ErrorKindSyntax, 7, "<end of input>"},
		{"no leading group", "<- [R1]", ErrorKindSyntax, 0, "<-"},
		{"bad edge", "[R1] -> [R2]", ErrorKindSyntax, 5, "->"},
		{"named chain", "[R1] M1 ** []", ErrorKindSyntax, 5, "M1"},
		{"unbound return", "[R1 $r] <- [] RETURN $x", ErrorKindSemantic, 21, "$x"},
		{"invalid glob", "[R[b-a]] <- []", ErrorKindGlob, 0, "R[b-a]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQuery(tt.text)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrSyntax))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.kind, perr.Kind)
			assert.Equal(t, tt.offset, perr.Offset())
			assert.Equal(t, tt.token, perr.Token)
		})
	}
}

func TestParseErrorFormatting(t *testing.T) {
	_, err := ParsePattern("[R1]")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))

	plain := perr.FormatError(ErrorContextPlain)
	assert.Contains(t, plain, "at offset 4")
	assert.Contains(t, plain, "Suggestions: derivation edge: [R1] <- [R2]")
	assert.Equal(t, plain, perr.Error())

	term := perr.FormatError(ErrorContextTerminal)
	assert.Contains(t, term, "pattern needs at least one edge")
	assert.Contains(t, term, "Suggestions:")
	assert.Contains(t, term, "chain edge: [R1] ** []")
}

func TestGlobErrorKeepsCause(t *testing.T) {
	_, err := ParsePattern("[R1] M[b-a] <- []")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, ErrorKindGlob, perr.Kind)
	assert.Error(t, perr.Err)
}

func TestBindings(t *testing.T) {
	g := twoLevels()
	q, err := ParseQuery("[R1 $r] M1 $m <- [$src] ** [R5 $s] RETURN $m")
	require.NoError(t, err)

	subs := Match(g, q.Pattern)
	require.Len(t, subs, 1)

	got := q.Pattern.Bindings(subs[0])
	assert.Equal(t, map[string][]string{
		"r":   {"R1"},
		"m":   {"M1"},
		"src": {"R2", "R3"},
		"s":   {"R5"},
	}, got)
}
