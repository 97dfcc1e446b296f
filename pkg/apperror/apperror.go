// Package apperror defines the typed error kinds the workflow engines
// return. The HTTP layer maps kinds to status codes; the engines only care
// about the kind.
package apperror

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Unknown Kind = iota
	Validation
	NotFound
	Unauthorized
	Conflict
	InvalidState
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Unauthorized:
		return "unauthorized"
	case Conflict:
		return "conflict"
	case InvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Error carries a kind, a human-readable message, and an optional wrapped
// cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validationf(format string, args ...any) *Error { return newf(Validation, format, args...) }

func NotFoundf(format string, args ...any) *Error { return newf(NotFound, format, args...) }

func Unauthorizedf(format string, args ...any) *Error { return newf(Unauthorized, format, args...) }

func Conflictf(format string, args ...any) *Error { return newf(Conflict, format, args...) }

func InvalidStatef(format string, args ...any) *Error { return newf(InvalidState, format, args...) }

// Wrap attaches a kind and message to an underlying error.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from err, or Unknown if err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

func IsValidation(err error) bool   { return KindOf(err) == Validation }
func IsNotFound(err error) bool     { return KindOf(err) == NotFound }
func IsUnauthorized(err error) bool { return KindOf(err) == Unauthorized }
func IsConflict(err error) bool     { return KindOf(err) == Conflict }
func IsInvalidState(err error) bool { return KindOf(err) == InvalidState }
