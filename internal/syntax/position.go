// Package syntax holds the source-position bookkeeping and character scanner
// shared by the rule parser and the ProQL parser.
package syntax

import "fmt"

// Position is a location in source text.
// Lines are 1-based, columns and offsets 0-based.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"` // byte offset in the whole source
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Range is a source span from Start (inclusive) to End (exclusive).
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Tracker maintains line/column/offset state while a scanner consumes input.
type Tracker struct {
	source string
	pos    Position
}

// NewTracker creates a tracker positioned at the beginning of source.
func NewTracker(source string) *Tracker {
	return &Tracker{source: source, pos: Position{Line: 1}}
}

// Advance moves the tracker past text, which must be the next bytes of the source.
func (t *Tracker) Advance(text string) {
	for _, ch := range text {
		if ch == '\n' {
			t.pos.Line++
			t.pos.Column = 0
		} else {
			t.pos.Column++
		}
		t.pos.Offset += len(string(ch))
	}
}

// Mark returns the current position.
func (t *Tracker) Mark() Position {
	return t.pos
}

// Rest returns the unconsumed part of the source.
func (t *Tracker) Rest() string {
	if t.pos.Offset >= len(t.source) {
		return ""
	}
	return t.source[t.pos.Offset:]
}

// Reset moves the tracker back to p, which must come from Mark on the same
// tracker.
func (t *Tracker) Reset(p Position) {
	t.pos = p
}
