// Package sqlexec executes rules against SQLite. Each relation is a table
// of text columns whose primary key spans every column, so an insertion
// reports only tuples that are new and recursive programs converge.
package sqlexec

import (
	"context"
	"database/sql"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/fixpoint"
	"github.com/teranos/orx/logger"
)

// DefaultCacheSize bounds the compiled-statement cache.
const DefaultCacheSize = 256

// Options configure a Backend.
type Options struct {
	CacheSize int
	Logger    *zap.SugaredLogger
}

// Query is one compiled rule.
type Query struct {
	Rule *datalog.Rule
	Statement
	stmt *sql.Stmt
}

// Prepared reports whether Prepare created a statement for q.
func (q *Query) Prepared() bool { return q.stmt != nil }

func (q *Query) String() string { return q.SQL }

// Backend compiles rules to SQL and runs them on a database handle.
type Backend struct {
	db     *sql.DB
	cache  *lru.Cache[string, *Query]
	log    *zap.SugaredLogger
	mu     sync.Mutex
	tables map[string]int
}

var _ fixpoint.Backend = (*Backend)(nil)

// New returns a backend over db.
func New(db *sql.DB, opts Options) (*Backend, error) {
	size := opts.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	b := &Backend{
		db:     db,
		log:    logger.OrComponent(opts.Logger, "sqlexec"),
		tables: make(map[string]int),
	}
	cache, err := lru.NewWithEvict[string, *Query](size, b.handleEviction)
	if err != nil {
		return nil, errors.Wrap(err, "create statement cache")
	}
	b.cache = cache
	return b, nil
}

// handleEviction closes the prepared statement of an evicted query.
func (b *Backend) handleEviction(key string, q *Query) {
	if q.stmt == nil {
		return
	}
	if err := q.stmt.Close(); err != nil {
		b.log.Warnw("failed to close evicted statement", logger.FieldRule, key, logger.FieldError, err)
	}
	q.stmt = nil
}

// DB returns the underlying handle.
func (b *Backend) DB() *sql.DB { return b.db }

// Compile creates the tables rule touches and translates it to SQL. Queries
// are cached by rule text, prepared statement included, unless recompute is
// set.
func (b *Backend) Compile(ctx context.Context, rule *datalog.Rule, round int, recompute bool) (fixpoint.Query, error) {
	if rule.Fake {
		return nil, errors.Mark(errors.Newf("rule %s is a placeholder", rule), errors.ErrUnsupported)
	}
	for _, a := range append([]*datalog.Atom{rule.Head}, rule.Body...) {
		if err := b.EnsureRelation(ctx, a.Relation, len(a.Args)); err != nil {
			return nil, err
		}
	}

	key := rule.String()
	if recompute {
		b.cache.Remove(key)
	} else if q, ok := b.cache.Get(key); ok {
		return q, nil
	}
	st, err := CompileRule(rule)
	if err != nil {
		return nil, err
	}
	q := &Query{Rule: rule, Statement: st}
	b.cache.Add(key, q)
	b.log.Debugw("compiled rule",
		logger.FieldRule, key,
		logger.FieldRound, round,
		"sql", st.SQL)
	return q, nil
}

// Prepare creates a prepared statement for q.
func (b *Backend) Prepare(ctx context.Context, q fixpoint.Query) error {
	query, err := asQuery(q)
	if err != nil {
		return err
	}
	if query.stmt != nil {
		return nil
	}
	stmt, err := b.db.PrepareContext(ctx, query.SQL)
	if err != nil {
		return errors.Wrapf(err, "prepare %s", query.Rule)
	}
	query.stmt = stmt
	return nil
}

// Execute runs q and returns the number of rows it inserted or deleted.
func (b *Backend) Execute(ctx context.Context, q fixpoint.Query, round int) (int64, error) {
	query, err := asQuery(q)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	var res sql.Result
	if query.stmt != nil {
		res, err = query.stmt.ExecContext(ctx, query.Args...)
	} else {
		res, err = b.db.ExecContext(ctx, query.SQL, query.Args...)
	}
	if err != nil {
		return 0, errors.Wrapf(err, "execute %s (round %d)", query.Rule, round)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrapf(err, "rows affected by %s", query.Rule)
	}
	b.log.Debugw("executed rule",
		logger.FieldRule, query.Rule.String(),
		logger.FieldRound, round,
		logger.FieldAffected, n,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	return n, nil
}

// CacheLen returns the number of cached queries.
func (b *Backend) CacheLen() int { return b.cache.Len() }

// Close drops the query cache and its prepared statements. The database
// handle stays open.
func (b *Backend) Close() error {
	b.cache.Purge()
	return nil
}

func asQuery(q fixpoint.Query) (*Query, error) {
	query, ok := q.(*Query)
	if !ok {
		return nil, errors.AssertionFailedf("query %T was not compiled by sqlexec", q)
	}
	return query, nil
}
