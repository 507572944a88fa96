// Package errs provides the unified error type used across all of ffiload.
//
// Every subsystem (store adapters, schema introspection, pivot, inserter,
// file sources) wraps its native errors into *errs.Error before returning
// them to callers. Callers use the Is* predicates to decide whether an error
// is contained (one table skipped) or aborts a dependency chain, without
// importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindTypeMismatch, "insert failed", pgErr)
//
//	// In the inserter, decide what to do:
//	if errs.IsTypeMismatch(err) {
//	    // log, skip the table, keep going
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL, SQL Server, SQLite, MinIO) map their native
// errors to one of these kinds.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // unknown table, no rows, no object
	ErrKindConnectionFailed         // cannot reach the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL or storage operation error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied / auth failure
	ErrKindConflict                 // pivot keys do not identify a subject
	ErrKindTypeMismatch             // value/type/constraint incompatibility on write
	ErrKindUnsupported              // capability not available for this table
	ErrKindCycle                    // foreign-key graph re-entered a table in progress
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindConflict:
		return "conflict"
	case ErrKindTypeMismatch:
		return "type_mismatch"
	case ErrKindUnsupported:
		return "unsupported"
	case ErrKindCycle:
		return "cycle"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all ffiload subsystems.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (unknown table, missing object, no rows).
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsConflict reports whether err is a pivot key collision.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

// IsTypeMismatch reports whether a write failed on a value, type or
// constraint incompatibility.
func IsTypeMismatch(err error) bool {
	return KindOf(err) == ErrKindTypeMismatch
}

// IsUnsupported reports whether the store declined an optional capability.
func IsUnsupported(err error) bool {
	return KindOf(err) == ErrKindUnsupported
}

// IsCycle reports whether err is a foreign-key cycle.
func IsCycle(err error) bool {
	return KindOf(err) == ErrKindCycle
}

// KindOf extracts the ErrKind of the outermost *Error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
