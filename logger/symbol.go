package logger

import (
	"github.com/teranos/orx/sym"
	"go.uber.org/zap"
)

// Symbol-aware logging helpers.
// These log with the symbol as a structured field, not in the message,
// which keeps messages clean and makes logs filterable by subsystem.

func withSymbol(l *zap.SugaredLogger, symbol string, keysAndValues []interface{}) (*zap.SugaredLogger, []interface{}) {
	if l == nil {
		l = Logger
	}
	return l, append([]interface{}{FieldSymbol, symbol}, keysAndValues...)
}

// FixpointInfow logs an info message with the Fixpoint symbol (↻)
func FixpointInfow(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	l, fields := withSymbol(l, sym.Fixpoint, keysAndValues)
	l.Infow(msg, fields...)
}

// FixpointErrorw logs an error message with the Fixpoint symbol (↻)
func FixpointErrorw(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	l, fields := withSymbol(l, sym.Fixpoint, keysAndValues)
	l.Errorw(msg, fields...)
}

// UnfoldDebugw logs a debug message with the Unfold symbol (⊳)
func UnfoldDebugw(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	l, fields := withSymbol(l, sym.Unfold, keysAndValues)
	l.Debugw(msg, fields...)
}

// UnfoldWarnw logs a warning message with the Unfold symbol (⊳)
func UnfoldWarnw(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	l, fields := withSymbol(l, sym.Unfold, keysAndValues)
	l.Warnw(msg, fields...)
}

// MatchDebugw logs a debug message with the Match symbol (⋈)
func MatchDebugw(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	l, fields := withSymbol(l, sym.Match, keysAndValues)
	l.Debugw(msg, fields...)
}

// ExchangeInfow logs an info message with the Exchange symbol (⇄)
func ExchangeInfow(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	l, fields := withSymbol(l, sym.Exchange, keysAndValues)
	l.Infow(msg, fields...)
}

// ExchangeWarnw logs a warning message with the Exchange symbol (⇄)
func ExchangeWarnw(l *zap.SugaredLogger, msg string, keysAndValues ...interface{}) {
	l, fields := withSymbol(l, sym.Exchange, keysAndValues)
	l.Warnw(msg, fields...)
}
