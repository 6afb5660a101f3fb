package proql

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"

	"github.com/teranos/orx/errors"
	"github.com/teranos/orx/internal/syntax"
)

// ErrSyntax is the sentinel behind every *ParseError.
var ErrSyntax = errors.New("pattern syntax error")

// ErrorKind categorizes pattern errors.
type ErrorKind string

const (
	ErrorKindSyntax   ErrorKind = "syntax"   // malformed pattern text
	ErrorKindSemantic ErrorKind = "semantic" // well-formed but meaningless (unbound RETURN variable)
	ErrorKindGlob     ErrorKind = "glob"     // invalid name pattern
)

// ErrorContext selects how a ParseError is rendered.
type ErrorContext int

const (
	ErrorContextPlain    ErrorContext = iota // logs, JSON output
	ErrorContextTerminal                     // colored CLI output
)

// ParseError reports malformed pattern text with the offending position.
type ParseError struct {
	Kind        ErrorKind
	Message     string
	Pos         syntax.Position
	Token       string
	Suggestions []string
	Err         error
}

// Offset returns the byte offset of the error in the pattern text.
func (e *ParseError) Offset() int { return e.Pos.Offset }

func (e *ParseError) Error() string {
	return e.FormatError(ErrorContextPlain)
}

// FormatError renders the error for ctx.
func (e *ParseError) FormatError(ctx ErrorContext) string {
	if ctx == ErrorContextTerminal {
		return e.formatTerminal()
	}
	msg := fmt.Sprintf("%s (at offset %d)", e.Message, e.Pos.Offset)
	if e.Token != "" {
		msg += fmt.Sprintf(" near %q", e.Token)
	}
	if len(e.Suggestions) > 0 {
		msg += ". Suggestions: " + strings.Join(e.Suggestions, ", ")
	}
	return msg
}

func (e *ParseError) formatTerminal() string {
	var b strings.Builder
	b.WriteString(pterm.Red(e.Message))
	b.WriteString("\n\n" + pterm.LightCyan("Context:"))
	b.WriteString(fmt.Sprintf("\n  %s %d (line %d, column %d)", pterm.Yellow("Offset:"), e.Pos.Offset, e.Pos.Line, e.Pos.Column))
	if e.Token != "" {
		b.WriteString(fmt.Sprintf("\n  %s '%s'", pterm.Yellow("Token:"), e.Token))
	}
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\n" + pterm.Green("Suggestions:"))
		for _, s := range e.Suggestions {
			b.WriteString("\n  • " + s)
		}
	}
	return b.String()
}

// Unwrap lets errors.Is match ErrSyntax. The cause, if any, is in Err.
func (e *ParseError) Unwrap() error { return ErrSyntax }

func newParseError(kind ErrorKind, pos syntax.Position, format string, args ...interface{}) *ParseError {
	return &ParseError{Kind: kind, Message: fmt.Sprintf(format, args...), Pos: pos}
}

// WithToken sets the offending token.
func (e *ParseError) WithToken(tok string) *ParseError {
	e.Token = tok
	return e
}

// WithSuggestion adds a possible fix.
func (e *ParseError) WithSuggestion(s string) *ParseError {
	e.Suggestions = append(e.Suggestions, s)
	return e
}

// WithUnderlying records the cause.
func (e *ParseError) WithUnderlying(err error) *ParseError {
	e.Err = err
	return e
}
