// Package engine ties the pieces together: it matches ProQL queries against
// a catalog's derivation graph, unfolds the matched views, runs update
// exchange over the SQLite backend and answers unfolded queries there.
package engine

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/orx/am"
	"github.com/teranos/orx/catalog"
	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/db"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/fixpoint"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/proql"
	"github.com/teranos/orx/schema"
	"github.com/teranos/orx/sqlexec"
	"github.com/teranos/orx/unfold"
)

// AnswerPrefix names the relation an unfolded query is materialised into.
const AnswerPrefix = "ans_"

// Engine runs queries and exchange against one catalog and one backend.
type Engine struct {
	Backend *sqlexec.Backend
	Config  *am.Config
	Logger  *zap.SugaredLogger
	// RunLog, when set, receives one row per Exchange and Answer call.
	RunLog *sql.DB

	mu      sync.RWMutex
	catalog *catalog.Catalog
	stats   fixpoint.Stats
}

// New returns an engine. A nil cfg uses the defaults.
func New(cat *catalog.Catalog, backend *sqlexec.Backend, cfg *am.Config, log *zap.SugaredLogger) *Engine {
	if cfg == nil {
		cfg = am.DefaultConfig()
	}
	return &Engine{
		Backend: backend,
		Config:  cfg,
		Logger:  logger.OrComponent(log, "engine"),
		catalog: cat,
	}
}

// Catalog returns the current catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.catalog
}

// SetCatalog swaps the catalog. It serves as a catalog.Watcher callback.
func (e *Engine) SetCatalog(c *catalog.Catalog) error {
	if c == nil {
		return errors.NewInvalidRequestError("nil catalog")
	}
	e.mu.Lock()
	e.catalog = c
	e.mu.Unlock()
	return nil
}

// Stats returns the evaluation statistics of the last Exchange or Answer.
func (e *Engine) Stats() fixpoint.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// SubgraphResult is one matched subgraph with its lowered and unfolded
// rules. Err holds a per-subgraph failure, such as a recursive view, that
// did not stop the other subgraphs.
type SubgraphResult struct {
	Subgraph *schema.Subgraph
	Lowered  []*datalog.Rule
	Unfolded *unfold.Result
	Bindings map[string][]string
	Err      error
}

// QueryResult is everything Query produced.
type QueryResult struct {
	Query     *proql.Query
	Semiring  string
	Subgraphs []SubgraphResult
}

// Returned lists the values of the RETURN variable across every subgraph.
func (r *QueryResult) Returned() []string {
	if r.Query.Return == "" {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, sg := range r.Subgraphs {
		for _, v := range sg.Bindings[r.Query.Return] {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Query parses text, matches it against the catalog's derivation graph and
// unfolds the root relation of every matched subgraph.
func (e *Engine) Query(ctx context.Context, text string) (*QueryResult, error) {
	q, err := proql.ParseQuery(text)
	if err != nil {
		return nil, err
	}
	cat := e.Catalog()
	res := &QueryResult{Query: q, Semiring: q.Semiring}
	if res.Semiring == "" {
		res.Semiring = e.Config.Unfold.Semiring
	}
	opts, err := e.unfoldOptions(cat, res.Semiring)
	if err != nil {
		return nil, err
	}

	g := schema.BuildGraph(cat)
	for _, sub := range proql.MatchWithLogger(g, q.Pattern, e.Logger) {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, "query")
		}
		sr := SubgraphResult{Subgraph: sub, Bindings: q.Pattern.Bindings(sub)}
		sr.Lowered, err = sub.ToQuerySet(cat)
		if err != nil {
			return nil, errors.Wrapf(err, "lower %s", sub)
		}
		sr.Unfolded, err = unfold.Unfold(sr.Lowered, sub.Root.Key(), opts)
		if err != nil {
			if !errors.IsAny(err, unfold.ErrRecursive, unfold.ErrProvenance) {
				return nil, errors.Wrapf(err, "unfold %s", sub.Root)
			}
			logger.UnfoldWarnw(e.Logger, "subgraph not unfolded",
				logger.FieldRelation, sub.Root.Key(),
				logger.FieldError, err.Error())
			sr.Err = err
		}
		res.Subgraphs = append(res.Subgraphs, sr)
	}
	if len(res.Subgraphs) == 0 {
		return res, errors.WithHint(
			errors.NewNotFoundError("no derivations match %s", q.Pattern),
			"list the catalog mappings with `orx match '[] <- []'`")
	}
	return res, nil
}

func (e *Engine) unfoldOptions(cat *catalog.Catalog, semiring string) (unfold.Options, error) {
	order, err := unfold.ParseOrder(e.Config.Unfold.Order)
	if err != nil {
		return unfold.Options{}, err
	}
	return unfold.Options{
		ProvenanceRelations: cat.ProvenanceRelations(),
		Semiring:            semiring,
		AssignmentExpr:      e.Config.Unfold.AssignmentExpr,
		Order:               order,
		StrictProvenance:    e.Config.Unfold.StrictProvenance,
		Logger:              e.Logger,
	}, nil
}

func (e *Engine) fixpointOptions() (fixpoint.Options, error) {
	policy, err := fixpoint.ParseFailurePolicy(e.Config.Fixpoint.FailurePolicy)
	if err != nil {
		return fixpoint.Options{}, err
	}
	return fixpoint.Options{
		Prepare:       e.Config.Fixpoint.Prepare,
		FailurePolicy: policy,
		MaxRounds:     e.Config.Fixpoint.MaxRounds,
		Logger:        e.Logger,
	}, nil
}

// evaluate runs node, keeps its statistics and records the run.
func (e *Engine) evaluate(ctx context.Context, kind string, node fixpoint.Node) (int64, error) {
	opts, err := e.fixpointOptions()
	if err != nil {
		return 0, err
	}
	ev := fixpoint.New(e.Backend, opts)
	total, evalErr := ev.Evaluate(ctx, node, 0)
	stats := ev.Stats()

	e.mu.Lock()
	e.stats = stats
	e.mu.Unlock()

	e.record(ctx, kind, node.Label(), stats, evalErr)
	return total, evalErr
}

func (e *Engine) record(ctx context.Context, kind, label string, stats fixpoint.Stats, evalErr error) {
	if e.RunLog == nil {
		return
	}
	run := &db.Run{
		ID:        stats.RunID,
		Kind:      kind,
		Label:     label,
		Affected:  stats.Affected,
		Passes:    stats.Passes,
		Rounds:    stats.Rounds,
		Failures:  stats.Failures,
		Duration:  stats.Duration,
		StartedAt: time.Now().UTC().Add(-stats.Duration),
	}
	if evalErr != nil {
		run.Error = evalErr.Error()
	}
	if err := db.RecordRun(ctx, e.RunLog, run); err != nil {
		logger.ExchangeWarnw(e.Logger, "failed to record run",
			logger.FieldRunID, run.ID,
			logger.FieldError, err.Error())
	}
}
