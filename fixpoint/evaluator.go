package fixpoint

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
)

// ErrRoundLimit is returned when a loop exceeds Options.MaxRounds.
var ErrRoundLimit = errors.New("fixpoint round limit exceeded")

// FailurePolicy decides what a backend error does to the evaluation.
type FailurePolicy uint8

const (
	// FailureBestEffort logs the error and counts the rule as affecting
	// zero rows, so surrounding loops still terminate.
	FailureBestEffort FailurePolicy = iota
	// FailureStrict aborts the evaluation with the backend error.
	FailureStrict
)

func (p FailurePolicy) String() string {
	if p == FailureStrict {
		return "strict"
	}
	return "best-effort"
}

// ParseFailurePolicy accepts "best-effort" and "strict".
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "best-effort", "besteffort":
		return FailureBestEffort, nil
	case "strict":
		return FailureStrict, nil
	default:
		return FailureBestEffort, errors.NewInvalidRequestError("unknown failure policy %q (want best-effort or strict)", s)
	}
}

// Options configures an Evaluator.
type Options struct {
	// Prepare prepares compiled queries before their first execution.
	Prepare bool
	// Recompute asks the backend to bypass its compilation cache.
	Recompute     bool
	FailurePolicy FailurePolicy
	// MaxRounds bounds every recursive loop; 0 means unbounded.
	MaxRounds int
	Logger    *zap.SugaredLogger
}

// Stats describes the last Evaluate call.
type Stats struct {
	RunID      string
	Passes     int // sequence passes
	Rounds     int // recursive program rounds
	Executions int
	Failures   int
	Affected   int64
	Duration   time.Duration
}

// Evaluator drives a Backend over programs and sequences. An Evaluator is
// not safe for concurrent Evaluate calls.
type Evaluator struct {
	backend Backend
	opts    Options
	base    *zap.SugaredLogger
	log     *zap.SugaredLogger
	stats   Stats
}

// New returns an evaluator over backend.
func New(backend Backend, opts Options) *Evaluator {
	base := logger.OrComponent(opts.Logger, "fixpoint")
	return &Evaluator{backend: backend, opts: opts, base: base, log: base}
}

// Stats returns the bookkeeping of the last Evaluate call.
func (e *Evaluator) Stats() Stats {
	return e.stats
}

// Evaluate runs node starting at roundHint and returns the affected-row
// total. For a top-level sequence the total of all passes is returned
// whether or not the sequence counts for an enclosing fixpoint.
func (e *Evaluator) Evaluate(ctx context.Context, node Node, roundHint int) (int64, error) {
	if node == nil {
		return 0, errors.NewInvalidRequestError("nothing to evaluate")
	}
	runID := uuid.NewString()
	ctx = logger.WithRunID(ctx, runID)
	e.log = logger.LoggerFromContext(ctx, e.base)
	e.stats = Stats{RunID: runID}
	start := time.Now()

	var total int64
	var err error
	switch n := node.(type) {
	case *Sequence:
		total, err = e.sequence(ctx, n, roundHint)
	case *Program:
		total, err = e.program(ctx, n, roundHint)
	default:
		err = errors.AssertionFailedf("unknown fixpoint node %T", node)
	}

	e.stats.Affected = total
	e.stats.Duration = time.Since(start)
	logger.FixpointInfow(e.log, "evaluation finished",
		logger.FieldSequence, node.Label(),
		logger.FieldAffected, total,
		logger.FieldRound, e.stats.Rounds,
		logger.FieldDurationMS, e.stats.Duration.Milliseconds())
	return total, err
}

// child evaluates a nested node and returns what it contributes to the
// enclosing pass.
func (e *Evaluator) child(ctx context.Context, node Node, round int) (int64, error) {
	switch n := node.(type) {
	case *Sequence:
		total, err := e.sequence(ctx, n, round)
		if !n.CountsForFixpoint {
			return 0, err
		}
		return total, err
	case *Program:
		return e.program(ctx, n, round)
	default:
		return 0, errors.AssertionFailedf("unknown fixpoint node %T", node)
	}
}

func (e *Evaluator) sequence(ctx context.Context, s *Sequence, round int) (int64, error) {
	var total int64
	for pass := 0; ; pass++ {
		if err := ctx.Err(); err != nil {
			return total, errors.Wrapf(err, "sequence %s pass %d", s.Label(), pass)
		}
		if s.Recursive && e.opts.MaxRounds > 0 && pass >= e.opts.MaxRounds {
			return total, errors.Wrapf(ErrRoundLimit, "sequence %s after %d passes", s.Label(), pass)
		}

		var passTotal int64
		for _, c := range s.Children {
			n, err := e.child(ctx, c, round+pass)
			if err != nil {
				return total + passTotal, err
			}
			passTotal += n
		}
		total += passTotal
		e.stats.Passes++

		logger.FixpointInfow(e.log, "sequence pass",
			logger.FieldSequence, s.Label(),
			logger.FieldRound, round+pass,
			logger.FieldAffected, passTotal)

		if !s.Recursive || passTotal == 0 {
			return total, nil
		}
	}
}

func (e *Evaluator) program(ctx context.Context, p *Program, start int) (int64, error) {
	if p.Kind == NonRecursive {
		return e.round(ctx, p, start)
	}

	var total int64
	for round := start; ; round++ {
		if err := ctx.Err(); err != nil {
			return total, errors.Wrapf(err, "program %s round %d", p.Label(), round)
		}
		if e.opts.MaxRounds > 0 && round-start >= e.opts.MaxRounds {
			return total, errors.Wrapf(ErrRoundLimit, "program %s after %d rounds", p.Label(), round-start)
		}

		n, err := e.round(ctx, p, round)
		e.stats.Rounds++
		if err != nil {
			return total, err
		}
		total += n
		if n == 0 {
			logger.FixpointInfow(e.log, "converged",
				logger.FieldProgram, p.Label(),
				logger.FieldRound, round,
				logger.FieldAffected, total)
			return total, nil
		}
	}
}

// round executes every rule of p once and returns the counted rows.
func (e *Evaluator) round(ctx context.Context, p *Program, round int) (int64, error) {
	var counted int64
	for _, r := range p.Rules {
		n, err := e.rule(ctx, p, r, round)
		if err != nil {
			return counted, err
		}
		if r.NegatedHead || !p.CountsForFixpoint {
			continue
		}
		counted += n
	}
	return counted, nil
}

func (e *Evaluator) rule(ctx context.Context, p *Program, r *datalog.Rule, round int) (int64, error) {
	if r.Fake {
		return 0, nil
	}

	q, err := e.backend.Compile(ctx, r, round, e.opts.Recompute)
	if err != nil {
		return e.fail(err, "compile", p, r, round)
	}
	if e.opts.Prepare && !q.Prepared() {
		if err := e.backend.Prepare(ctx, q); err != nil {
			return e.fail(err, "prepare", p, r, round)
		}
	}

	start := time.Now()
	n, err := e.backend.Execute(ctx, q, round)
	e.stats.Executions++
	if p.MeasureExecTime {
		logger.FixpointInfow(e.log, "executed",
			logger.FieldProgram, p.Label(),
			logger.FieldRule, r.String(),
			logger.FieldRound, round,
			logger.FieldAffected, n,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}
	if err != nil {
		return e.fail(err, "execute", p, r, round)
	}
	return n, nil
}

func (e *Evaluator) fail(err error, stage string, p *Program, r *datalog.Rule, round int) (int64, error) {
	e.stats.Failures++
	if e.opts.FailurePolicy == FailureStrict {
		return 0, errors.Wrapf(err, "%s %s in program %s round %d", stage, r.Head.Key(), p.Label(), round)
	}
	logger.FixpointErrorw(e.log, "backend failure, counting zero rows",
		logger.FieldOperation, stage,
		logger.FieldProgram, p.Label(),
		logger.FieldRule, r.String(),
		logger.FieldRound, round,
		logger.FieldError, err.Error())
	return 0, nil
}
