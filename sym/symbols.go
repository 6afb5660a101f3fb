// Package sym defines canonical symbols for orx operations and system markers.
// These symbols are stable across CLI output and structured logs.
package sym

// Core operations, one glyph per command.
const (
	AM       = "≡" // am: configuration and system settings
	Unfold   = "⊳" // unfold: flatten views into executable rules
	Match    = "⋈" // match: ProQL path queries over the mapping graph
	Fixpoint = "↻" // fixpoint: iterate rule programs until no change
	Exchange = "⇄" // exchange: propagate local data across mappings
)

// Provenance building blocks.
const (
	Idb  = "◆" // derived node
	Edb  = "◇" // base fact leaf
	Fake = "○" // placeholder node
)

// System infrastructure symbols.
const (
	DB      = "⊔" // database/storage layer
	Catalog = "▤" // mapping catalog
)

// SymbolToCommand maps glyph strings to their text command equivalents.
var SymbolToCommand = map[string]string{
	AM:       "am",
	Unfold:   "unfold",
	Match:    "match",
	Fixpoint: "runs",
	Exchange: "exchange",
}

// CommandToSymbol maps text commands to their canonical glyph strings.
var CommandToSymbol = map[string]string{
	"am":       AM,
	"unfold":   Unfold,
	"match":    Match,
	"runs":     Fixpoint,
	"exchange": Exchange,
}

// CommandDescriptions provides one-line explanations used in CLI help.
var CommandDescriptions = map[string]string{
	"am":       "Configuration — System settings and state",
	"unfold":   "Unfold — Flatten views into rules with provenance",
	"match":    "Match — ProQL path queries over mappings",
	"runs":     "Fixpoint — Recorded exchange and answer evaluations",
	"exchange": "Exchange — Propagate local data across mappings",
}
