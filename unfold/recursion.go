package unfold

import (
	"fmt"
	"strings"

	"github.com/teranos/orx/datalog"
	"github.com/teranos/orx/errors"
)

// ErrRecursive is the sentinel behind every *RecursionError.
var ErrRecursive = errors.New("recursive view")

// RecursionError reports that the query cannot be flattened because its
// definition is cyclic.
type RecursionError struct {
	Query string
	Rule  string
	Cycle []string
}

func (e *RecursionError) Error() string {
	return fmt.Sprintf("query %s is recursive through rule %q: %s", e.Query, e.Rule, strings.Join(e.Cycle, " -> "))
}

// Unwrap lets errors.Is match ErrRecursive.
func (e *RecursionError) Unwrap() error { return ErrRecursive }

type colour uint8

const (
	white colour = iota
	grey
	black
)

// recursionChecker runs a memoised three-colour DFS over relation keys.
// Black keys are known acyclic and are never revisited.
type recursionChecker struct {
	index Index
	state map[string]colour
	stack []string
}

// checkRecursion reports the first cycle reachable from the seeds of query,
// before any expansion happens.
func checkRecursion(index Index, query string, seeds []*datalog.Rule) error {
	c := &recursionChecker{index: index, state: make(map[string]colour)}
	c.state[query] = grey
	c.stack = append(c.stack, query)
	for _, seed := range seeds {
		for _, a := range seed.Body {
			if cycle := c.visit(a.Key()); cycle != nil {
				err := &RecursionError{Query: query, Rule: seed.String(), Cycle: cycle}
				return errors.WithHint(err, "evaluate the view materialized instead of unfolding it")
			}
		}
	}
	return nil
}

func (c *recursionChecker) visit(key string) []string {
	if !c.index.Defines(key) {
		return nil
	}
	switch c.state[key] {
	case black:
		return nil
	case grey:
		for i, k := range c.stack {
			if k == key {
				return append(append([]string(nil), c.stack[i:]...), key)
			}
		}
	}

	c.state[key] = grey
	c.stack = append(c.stack, key)
	for _, r := range c.index[key] {
		for _, a := range r.Body {
			if cycle := c.visit(a.Key()); cycle != nil {
				return cycle
			}
		}
	}
	c.stack = c.stack[:len(c.stack)-1]
	c.state[key] = black
	return nil
}
