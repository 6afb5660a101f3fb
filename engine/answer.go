package engine

import (
	"context"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/db"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/fixpoint"
	"github.com/teranos/orx/schema"
)

// AnswerRelation is the relation holding the answers for root.
func AnswerRelation(root schema.TupleNode) datalog.Relation {
	return datalog.Relation{Peer: root.Peer, Schema: root.Schema, Name: AnswerPrefix + root.Relation}
}

// AnswerRules rewrites the unfolded rules of sr to derive the answer
// relation. Placeholder rules are dropped.
func AnswerRules(sr SubgraphResult) []*datalog.Rule {
	if sr.Unfolded == nil {
		return nil
	}
	ans := AnswerRelation(sr.Subgraph.Root)
	var out []*datalog.Rule
	for _, r := range sr.Unfolded.Rules {
		if r.Fake {
			continue
		}
		c := r.Clone()
		c.Head.Relation = ans
		out = append(out, c)
	}
	return out
}

// Answer materialises every unfolded subgraph of res into its answer
// relation, replacing earlier answers, and returns the rows written.
// Exchange must have run first: unfolded rules read the provenance
// relations it fills.
func (e *Engine) Answer(ctx context.Context, res *QueryResult) (int64, error) {
	if res == nil {
		return 0, errors.NewInvalidRequestError("no query result to answer")
	}
	seq := &fixpoint.Sequence{Name: "answer", CountsForFixpoint: true}
	cleared := make(map[string]bool)
	for _, sr := range res.Subgraphs {
		rules := AnswerRules(sr)
		if len(rules) == 0 {
			continue
		}
		ans := AnswerRelation(sr.Subgraph.Root)
		if !cleared[ans.Key()] {
			if err := e.Backend.EnsureRelation(ctx, ans, len(rules[0].Head.Args)); err != nil {
				return 0, errors.Wrap(err, "answer")
			}
			if err := e.Backend.Clear(ctx, ans); err != nil {
				return 0, errors.Wrap(err, "answer")
			}
			cleared[ans.Key()] = true
		}
		seq.Children = append(seq.Children, &fixpoint.Program{
			Kind:              fixpoint.NonRecursive,
			Name:              ans.Key(),
			Rules:             rules,
			CountsForFixpoint: true,
			MeasureExecTime:   e.Config.Fixpoint.MeasureExecTime,
		})
	}
	if len(seq.Children) == 0 {
		return 0, errors.WithHint(
			errors.NewInvalidRequestError("no subgraph was unfolded"),
			"recursive views cannot be answered by unfolding; run exchange and read the view directly")
	}
	return e.evaluate(ctx, db.RunAnswer, seq)
}

// AnswerRows returns the answers stored for sr's root.
func (e *Engine) AnswerRows(ctx context.Context, sr SubgraphResult) ([][]string, error) {
	return e.Backend.Rows(ctx, AnswerRelation(sr.Subgraph.Root))
}
