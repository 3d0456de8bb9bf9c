// Package apperr defines the typed failure categories surfaced by medtrack's
// background work, so callers can branch on the kind of failure instead of
// matching message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	// KindTransport means the external service could not be reached
	// (connectivity failure or timeout).
	KindTransport Kind = "transport"

	// KindService means the external service answered, but with a non-success
	// status or a payload that could not be decoded or lacked the text field.
	KindService Kind = "service"

	// KindPersistence means the profile store was unavailable, locked, or
	// rejected a write.
	KindPersistence Kind = "persistence"

	// KindConflict means the operation collided with another one already
	// running against the same profile.
	KindConflict Kind = "conflict"

	// KindConfig means required configuration (usually credentials) is missing
	// or invalid.
	KindConfig Kind = "config"

	// KindUnknown is reported by KindOf for errors that carry no Kind.
	KindUnknown Kind = "unknown"
)

// Error is a categorized failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "fetch description"
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

// Unwrap implements the unwrap interface.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on kind alone: errors.Is(err, &Error{Kind: KindService}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

// New creates an error of the given kind.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transport wraps err as a transport failure.
func Transport(op string, err error) *Error {
	return New(KindTransport, op, err)
}

// Service wraps err as a service failure.
func Service(op string, err error) *Error {
	return New(KindService, op, err)
}

// Persistence wraps err as a persistence failure.
func Persistence(op string, err error) *Error {
	return New(KindPersistence, op, err)
}

// Conflict wraps err as a conflict.
func Conflict(op string, err error) *Error {
	return New(KindConflict, op, err)
}

// Config wraps err as a configuration failure.
func Config(op string, err error) *Error {
	return New(KindConfig, op, err)
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
