package unfold

import (
	"fmt"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/logger"
	"github.com/teranos/orx/provenance"
)

// ErrProvenance is returned when StrictProvenance is set and unfolding
// produced provenance warnings.
var ErrProvenance = errors.New("inconsistent provenance")

// WarningKind classifies a provenance inconsistency.
type WarningKind string

const (
	// WarningMissing means a body atom had no provenance node.
	WarningMissing WarningKind = "missing"
	// WarningOverwritten means an atom was rebound to a different node.
	WarningOverwritten WarningKind = "overwritten"
)

// ProvenanceWarning is a non-fatal provenance inconsistency.
type ProvenanceWarning struct {
	Kind WarningKind
	Rule string
	Atom string
}

func (w ProvenanceWarning) String() string {
	return fmt.Sprintf("%s provenance for %s in %s", w.Kind, w.Atom, w.Rule)
}

func (u *unfolder) warn(kind WarningKind, it *item, a *datalog.Atom) {
	w := ProvenanceWarning{Kind: kind, Rule: it.rule.String(), Atom: a.String()}
	u.warnings = append(u.warnings, w)
	logger.UnfoldWarnw(u.log, "provenance inconsistency",
		"kind", string(kind),
		logger.FieldRule, w.Rule,
		logger.FieldRelation, a.Key())
}

// node returns the provenance node bound to a, warning when there is none.
func (u *unfolder) node(it *item, a *datalog.Atom) (provenance.NodeID, bool) {
	id, ok := it.nodes[a]
	if !ok {
		u.warn(WarningMissing, it, a)
	}
	return id, ok
}

// bind records the node for a, warning when a different node was bound.
func (u *unfolder) bind(it *item, a *datalog.Atom, id provenance.NodeID) {
	if prev, ok := it.nodes[a]; ok && prev != id {
		u.warn(WarningOverwritten, it, a)
	}
	it.nodes[a] = id
}
