package engine

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/orx/am"
	"github.com/teranos/orx/catalog"
	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/db"
	"github.com/teranos/orx/errors"
	qtest "github.com/teranos/orx/internal/testing"
	"github.com/teranos/orx/proql"
	"github.com/teranos/orx/schema"
	"github.com/teranos/orx/sqlexec"
	"github.com/teranos/orx/unfold"
)

func newEngine(t *testing.T, file string, mutate func(*am.Config)) *Engine {
	t.Helper()
	log := zaptest.NewLogger(t).Sugar()

	cat, err := catalog.Load(filepath.Join("testdata", file))
	require.NoError(t, err)

	conn := qtest.CreateTestDB(t)
	require.NoError(t, db.Migrate(conn, log))
	backend, err := sqlexec.New(conn, sqlexec.Options{Logger: log})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	cfg := am.DefaultConfig()
	cfg.Fixpoint.FailurePolicy = "strict"
	if mutate != nil {
		mutate(cfg)
	}
	e := New(cat, backend, cfg, log)
	e.RunLog = conn
	return e
}

func rel(key string) datalog.Relation { return datalog.ParseRelationKey(key) }

func TestExchange(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, "chain.toml", nil)

	total, err := e.Exchange(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), total)
	assert.Equal(t, 3, e.Stats().Passes)
	assert.Zero(t, e.Stats().Failures)

	rows, err := e.Backend.Rows(ctx, rel("pa.s.R1"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"p", "r"}}, rows)

	rows, err = e.Backend.Rows(ctx, rel("pb.s.R2"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c"}, {"p", "q"}}, rows)

	rows, err = e.Backend.Rows(ctx, rel("P_M1"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "c", "b"}, {"p", "q", "r"}}, rows)

	// A second exchange finds nothing new.
	total, err = e.Exchange(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	runs, err := db.ListRuns(ctx, e.RunLog, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		assert.Equal(t, db.RunExchange, r.Kind)
		assert.Equal(t, "exchange", r.Label)
		assert.Empty(t, r.Error)
	}
}

func TestExchangeCycleConverges(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, "cycle.toml", nil)

	total, err := e.Exchange(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), total)

	for _, key := range []string{"pa.s.A", "pb.s.B"} {
		rows, err := e.Backend.Rows(ctx, rel(key))
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"x"}, {"y"}}, rows, key)
	}
}

func TestExchangeRoundLimit(t *testing.T) {
	e := newEngine(t, "chain.toml", func(c *am.Config) { c.Fixpoint.MaxRounds = 1 })

	_, err := e.Exchange(context.Background())
	require.Error(t, err)

	runs, err2 := db.ListRuns(context.Background(), e.RunLog, 1)
	require.NoError(t, err2)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "round limit")
}

func TestQueryAndAnswer(t *testing.T) {
	tests := []struct {
		name  string
		query string
		order string
		edges []string
	}{
		{name: "one level", query: "[R1] <- []", order: "dfs", edges: []string{"M1"}},
		{name: "two levels dfs", query: "[R1] <- [R2] <- [R5]", order: "dfs", edges: []string{"M2", "M1"}},
		{name: "two levels bfs", query: "[R1] <- [R2] <- [R5]", order: "bfs", edges: []string{"M2", "M1"}},
		{name: "chain", query: "[R1] ** [R5]", order: "bfs", edges: []string{"M2", "M1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t, "chain.toml", func(c *am.Config) { c.Unfold.Order = tt.order })
			_, err := e.Exchange(ctx)
			require.NoError(t, err)

			res, err := e.Query(ctx, tt.query)
			require.NoError(t, err)
			require.Len(t, res.Subgraphs, 1)
			sg := res.Subgraphs[0]
			require.NoError(t, sg.Err)
			assert.Equal(t, "pa.s.R1", sg.Subgraph.Root.Key())

			var names []string
			for _, d := range sg.Subgraph.Matched() {
				names = append(names, d.Name)
			}
			assert.Equal(t, tt.edges, names)
			assert.Equal(t, "BOOLEAN", res.Semiring)
			for _, r := range sg.Unfolded.Rules {
				assert.Equal(t, "pa.s.R1", r.Head.Key())
				assert.NotNil(t, r.Provenance)
			}

			n, err := e.Answer(ctx, res)
			require.NoError(t, err)
			rows, err := e.AnswerRows(ctx, sg)
			require.NoError(t, err)
			assert.Equal(t, [][]string{{"a", "b"}, {"p", "r"}}, rows)
			assert.Equal(t, int64(len(rows)), n)

			// Answering again replaces the previous answers.
			_, err = e.Answer(ctx, res)
			require.NoError(t, err)
			again, err := e.AnswerRows(ctx, sg)
			require.NoError(t, err)
			assert.Equal(t, rows, again)
		})
	}
}

func TestQuerySemiringAndReturn(t *testing.T) {
	e := newEngine(t, "chain.toml", nil)

	res, err := e.Query(context.Background(), "EVALUATE counting OF [R1 $r] M1 $m <- [] RETURN $m")
	require.NoError(t, err)
	assert.Equal(t, "COUNTING", res.Semiring)
	assert.Equal(t, []string{"M1"}, res.Returned())
	assert.Equal(t, []string{"pa.s.R1"}, res.Subgraphs[0].Bindings["r"])
}

func TestQueryErrors(t *testing.T) {
	e := newEngine(t, "chain.toml", nil)
	ctx := context.Background()

	_, err := e.Query(ctx, "[R1] <-")
	require.Error(t, err)
	assert.True(t, errors.Is(err, proql.ErrSyntax))

	_, err = e.Query(ctx, "[R9] <- []")
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestRecursiveViewIsReportedPerSubgraph(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t, "cycle.toml", nil)

	res, err := e.Query(ctx, "[A] ** []")
	require.NoError(t, err)
	require.Len(t, res.Subgraphs, 1)

	sg := res.Subgraphs[0]
	require.Error(t, sg.Err)
	assert.True(t, errors.Is(sg.Err, unfold.ErrRecursive))
	assert.Nil(t, sg.Unfolded)

	_, err = e.Answer(ctx, res)
	require.Error(t, err)
	assert.True(t, errors.IsInvalidRequestError(err))
}

func TestSetCatalog(t *testing.T) {
	e := newEngine(t, "chain.toml", nil)
	other, err := catalog.Load("testdata/cycle.toml")
	require.NoError(t, err)

	require.NoError(t, e.SetCatalog(other))
	assert.Same(t, other, e.Catalog())
	assert.Error(t, e.SetCatalog(nil))
}

func TestAnswerRelation(t *testing.T) {
	root := schema.TupleNode{Peer: "pa", Schema: "s", Relation: "R1"}
	assert.Equal(t, "pa.s.ans_R1", AnswerRelation(root).Key())
}

func TestExchangeSequence(t *testing.T) {
	cat, err := catalog.Load("testdata/chain.toml")
	require.NoError(t, err)

	seq := ExchangeSequence(cat.DeltaAndTranslationRules(), false)
	assert.True(t, seq.Recursive)
	assert.True(t, seq.CountsForFixpoint)
	require.Len(t, seq.Children, len(cat.DeltaAndTranslationRules()))
	assert.Equal(t, "delta_R1", seq.Children[0].Label())
}
