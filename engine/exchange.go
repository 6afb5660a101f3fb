package engine

import (
	"context"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/db"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/fixpoint"
	"github.com/teranos/orx/logger"
)

// Exchange loads every peer's local facts and propagates them along the
// catalog's mappings until no relation changes. It returns the rows the
// propagation added; loaded local facts are not counted.
func (e *Engine) Exchange(ctx context.Context) (int64, error) {
	cat := e.Catalog()
	for _, rel := range cat.Relations() {
		if err := e.Backend.EnsureRelation(ctx, rel.Relation, rel.Arity); err != nil {
			return 0, errors.Wrap(err, "exchange")
		}
	}

	var loaded int64
	for _, f := range cat.LocalFacts() {
		arity, ok := cat.Arity(f.Relation.Key())
		if !ok {
			return 0, errors.AssertionFailedf("local facts for undeclared relation %s", f.Relation.Key())
		}
		n, err := e.Backend.LoadFacts(ctx, f.Relation, arity, f.Rows)
		if err != nil {
			return 0, errors.Wrap(err, "exchange")
		}
		loaded += n
	}

	seq := ExchangeSequence(cat.DeltaAndTranslationRules(), e.Config.Fixpoint.MeasureExecTime)
	total, err := e.evaluate(ctx, db.RunExchange, seq)
	logger.ExchangeInfow(e.Logger, "exchange finished",
		logger.FieldCount, loaded,
		logger.FieldAffected, total)
	return total, err
}

// ExchangeSequence wraps every rule in its own counting non-recursive
// program and repeats the lot until a pass adds nothing.
func ExchangeSequence(rules []*datalog.Rule, measure bool) *fixpoint.Sequence {
	seq := &fixpoint.Sequence{Name: "exchange", Recursive: true, CountsForFixpoint: true}
	for _, r := range rules {
		seq.Children = append(seq.Children, &fixpoint.Program{
			Kind:              fixpoint.NonRecursive,
			Name:              r.Name,
			Rules:             []*datalog.Rule{r},
			CountsForFixpoint: true,
			MeasureExecTime:   measure,
		})
	}
	return seq
}
