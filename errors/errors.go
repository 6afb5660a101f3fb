// Package errors provides error handling for orx.
//
// This package re-exports github.com/cockroachdb/errors so that every
// package wraps, annotates and inspects errors the same way:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - Hints for the user ("evaluate the view materialized instead")
//
// Usage:
//
//	if err := compile(rule); err != nil {
//	    return errors.Wrapf(err, "compile rule %s", rule.Name)
//	}
//
//	return errors.WithHint(err, "check the mapping catalog for cycles")
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
	Mark         = crdb.Mark
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// GetStack returns the reportable stack trace attached to err, if any.
var GetStack = crdb.GetReportableStackTrace

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Common sentinel errors. Wrap these with errors.Wrap() to add context while
// keeping errors.Is() working.
var (
	// ErrNotFound indicates a relation, mapping or file does not exist
	ErrNotFound = New("not found")

	// ErrInvalidRequest indicates malformed input (rule text, catalog, flags)
	ErrInvalidRequest = New("invalid request")

	// ErrUnsupported indicates a construct the compiler does not handle
	ErrUnsupported = New("unsupported")
)

// IsNotFoundError checks if an error is or wraps ErrNotFound
func IsNotFoundError(err error) bool {
	return err != nil && Is(err, ErrNotFound)
}

// IsInvalidRequestError checks if an error is or wraps ErrInvalidRequest
func IsInvalidRequestError(err error) bool {
	return err != nil && Is(err, ErrInvalidRequest)
}

// NewNotFoundError creates a not-found error with a formatted message
func NewNotFoundError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrNotFound)
}

// NewInvalidRequestError creates an invalid-request error with a formatted message
func NewInvalidRequestError(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrInvalidRequest)
}
