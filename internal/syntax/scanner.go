package syntax

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// EOF is returned by Peek when the input is exhausted.
const EOF rune = -1

// Scanner is a rune-level cursor over source text. Parsers build their
// token rules on top of it; it only knows about whitespace and comments.
type Scanner struct {
	*Tracker
	// LineComment starts a comment that runs to the end of the line ("%" or "#").
	LineComment string
}

// NewScanner returns a scanner over src.
func NewScanner(src string) *Scanner {
	return &Scanner{Tracker: NewTracker(src)}
}

// Peek returns the next rune without consuming it.
func (s *Scanner) Peek() rune {
	rest := s.Rest()
	if rest == "" {
		return EOF
	}
	r, _ := utf8.DecodeRuneInString(rest)
	return r
}

// Next consumes and returns the next rune.
func (s *Scanner) Next() rune {
	rest := s.Rest()
	if rest == "" {
		return EOF
	}
	r, size := utf8.DecodeRuneInString(rest)
	s.Advance(rest[:size])
	return r
}

// AtEOF reports whether only whitespace and comments remain.
func (s *Scanner) AtEOF() bool {
	s.SkipSpace()
	return s.Rest() == ""
}

// HasPrefix reports whether the unconsumed input starts with lit.
func (s *Scanner) HasPrefix(lit string) bool {
	return strings.HasPrefix(s.Rest(), lit)
}

// Consume skips whitespace and consumes lit if it is next.
func (s *Scanner) Consume(lit string) bool {
	s.SkipSpace()
	if !s.HasPrefix(lit) {
		return false
	}
	s.Advance(lit)
	return true
}

// ConsumeKeyword consumes kw case-insensitively when it is followed by a
// non-identifier rune.
func (s *Scanner) ConsumeKeyword(kw string) bool {
	s.SkipSpace()
	rest := s.Rest()
	if len(rest) < len(kw) || !strings.EqualFold(rest[:len(kw)], kw) {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(rest[len(kw):]); len(rest) > len(kw) && IsIdentRune(r) {
		return false
	}
	s.Advance(rest[:len(kw)])
	return true
}

// SkipSpace consumes whitespace and line comments.
func (s *Scanner) SkipSpace() {
	for {
		rest := s.Rest()
		trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
		s.Advance(rest[:len(rest)-len(trimmed)])
		if s.LineComment == "" || !strings.HasPrefix(trimmed, s.LineComment) {
			return
		}
		end := strings.IndexByte(trimmed, '\n')
		if end < 0 {
			end = len(trimmed)
		}
		s.Advance(trimmed[:end])
	}
}

// TakeWhile consumes the longest prefix whose runes satisfy ok.
func (s *Scanner) TakeWhile(ok func(rune) bool) string {
	rest := s.Rest()
	n := 0
	for n < len(rest) {
		r, size := utf8.DecodeRuneInString(rest[n:])
		if !ok(r) {
			break
		}
		n += size
	}
	s.Advance(rest[:n])
	return rest[:n]
}

// Quoted consumes a string delimited by quote, which must be the next rune.
// A backslash escapes the following rune. The returned text is unescaped.
func (s *Scanner) Quoted(quote rune) (string, bool) {
	if s.Peek() != quote {
		return "", false
	}
	s.Next()
	var b strings.Builder
	for {
		r := s.Next()
		switch r {
		case EOF:
			return b.String(), false
		case quote:
			return b.String(), true
		case '\\':
			esc := s.Next()
			if esc == EOF {
				return b.String(), false
			}
			b.WriteRune(esc)
		default:
			b.WriteRune(r)
		}
	}
}

// IsIdentRune reports whether r may continue an identifier.
func IsIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// IsIdentStart reports whether r may start an identifier.
func IsIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
