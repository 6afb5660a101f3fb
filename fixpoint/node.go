// Package fixpoint evaluates rule programs and nested program sequences,
// repeating recursive ones until a round affects no rows.
package fixpoint

import (
	"context"
	"fmt"

	"github.com/teranos/orx/datalog"
)

// Kind tells whether a program is evaluated once or to a fixpoint.
type Kind uint8

const (
	NonRecursive Kind = iota
	Recursive
)

func (k Kind) String() string {
	if k == Recursive {
		return "recursive"
	}
	return "non-recursive"
}

// Node is a Program or a Sequence. The set is closed: evaluation switches on
// the concrete type.
type Node interface {
	node()
	Label() string
}

// Program is one or more rules executed together.
type Program struct {
	Kind  Kind
	Name  string
	Rules []*datalog.Rule
	// CountsForFixpoint makes the program's affected rows drive the
	// enclosing fixpoint loops. Deletion rules never count.
	CountsForFixpoint bool
	// MeasureExecTime logs per-rule execution time.
	MeasureExecTime bool
}

// Sequence runs its children in order, repeating the whole pass while it
// is Recursive and the last pass affected rows.
type Sequence struct {
	Name              string
	Children          []Node
	Recursive         bool
	CountsForFixpoint bool
}

func (*Program) node()  {}
func (*Sequence) node() {}

// Label names the program for logs.
func (p *Program) Label() string {
	if p.Name != "" {
		return p.Name
	}
	if len(p.Rules) > 0 {
		return p.Rules[0].Head.Key()
	}
	return "program"
}

// Label names the sequence for logs.
func (s *Sequence) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("sequence(%d)", len(s.Children))
}

// Query is a compiled, executable form of one rule.
type Query interface {
	Prepared() bool
	String() string
}

// Backend compiles and executes rules. Calls may block; ctx is passed
// through unchanged.
type Backend interface {
	Compile(ctx context.Context, rule *datalog.Rule, round int, recompute bool) (Query, error)
	Prepare(ctx context.Context, q Query) error
	Execute(ctx context.Context, q Query, round int) (int64, error)
}
