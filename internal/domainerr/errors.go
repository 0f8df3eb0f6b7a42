// Package domainerr classifies request outcomes that end a cookbook operation
// without being infrastructure failures.
package domainerr

import (
	"errors"
	"fmt"
)

// Kind is the outcome class of a domain error.
type Kind string

const (
	// KindNotFound reports a missing or soft-deleted entity.
	KindNotFound Kind = "not_found"
	// KindForbidden reports an authorization failure, including self-actions.
	KindForbidden Kind = "forbidden"
	// KindValidation reports rejected input that the caller can correct.
	KindValidation Kind = "validation_failed"
	// KindOutOfRange reports a page request beyond the result bounds.
	KindOutOfRange Kind = "out_of_range"
)

var (
	// ErrNotFound matches any error of KindNotFound.
	ErrNotFound = &Error{Kind: KindNotFound}
	// ErrForbidden matches any error of KindForbidden.
	ErrForbidden = &Error{Kind: KindForbidden}
	// ErrValidation matches any error of KindValidation.
	ErrValidation = &Error{Kind: KindValidation}
	// ErrOutOfRange matches any error of KindOutOfRange.
	ErrOutOfRange = &Error{Kind: KindOutOfRange}
)

// Error carries a kind, a machine code and, for validation failures, the
// caller's original input so it can be re-surfaced.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Input   any
	cause   error
}

func (e *Error) Error() string {
	message := e.Message
	if message == "" {
		message = string(e.Kind)
	}
	if e.Code != "" {
		message = e.Code + ": " + message
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", message, e.cause)
	}
	return message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches on Kind so callers can use errors.Is(err, domainerr.ErrNotFound).
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Kind == other.Kind
}

// NotFound builds a KindNotFound error.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Forbidden builds a KindForbidden error.
func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

// Validation builds a KindValidation error preserving the caller's input.
func Validation(code, message string, input any) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Input: input}
}

// OutOfRange builds a KindOutOfRange error.
func OutOfRange(code, message string) *Error {
	return &Error{Kind: KindOutOfRange, Code: code, Message: message}
}

// KindOf returns the kind of err, or "" when err is not a domain error.
func KindOf(err error) Kind {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}
