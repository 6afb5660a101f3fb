// Package datalog is the rule model the compiler works on: relations, atoms,
// rules, their text syntax, and the rewriting primitives used by view
// unfolding (substitution, complementary-atom merging, minimization).
package datalog

import (
	"strconv"
	"strings"
	"unicode"
)

// TermKind distinguishes variables from constants.
type TermKind uint8

const (
	TermVar TermKind = iota
	TermConst
)

// Term is an atom argument. Constants keep their textual form; numbers are
// not normalised, so 1 and 1.0 are different constants.
type Term struct {
	Kind  TermKind
	Value string
}

// Var returns a variable term.
func Var(name string) Term { return Term{Kind: TermVar, Value: name} }

// Const returns a constant term.
func Const(value string) Term { return Term{Kind: TermConst, Value: value} }

// IsVar reports whether t is a variable.
func (t Term) IsVar() bool { return t.Kind == TermVar }

// String renders t in rule syntax. Constants that are not numbers are quoted.
func (t Term) String() string {
	if t.IsVar() || isNumber(t.Value) {
		return t.Value
	}
	return strconv.Quote(t.Value)
}

func isNumber(s string) bool {
	if s == "" {
		return false
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil && !strings.ContainsFunc(s, unicode.IsLetter)
}
