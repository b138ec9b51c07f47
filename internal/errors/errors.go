// Package errors provides shared error types that map to both CLI exit
// codes and HTTP status codes, enabling consistent error handling
// across the CLI and the web UI.
package errors

import (
	"fmt"
	"net/http"
)

// Kind represents the category of an error, which determines both the
// CLI exit code and HTTP status code.
type Kind int

const (
	// KindValidation represents bad input (missing name tokens, empty
	// description, unknown status). Surfaced to the caller for
	// correction, never retried.
	// CLI exit code: 2, HTTP status: 400 Bad Request
	KindValidation Kind = iota

	// KindNotFound represents a missing ticket.
	// CLI exit code: 3, HTTP status: 404 Not Found
	KindNotFound

	// KindStorage represents a database or filesystem failure. Fatal to
	// the current operation; the store never retries internally.
	// CLI exit code: 5, HTTP status: 500 Internal Server Error
	KindStorage

	// KindNotification represents an email delivery failure. Always
	// non-fatal to the ticket operation it accompanies.
	// CLI exit code: 6, HTTP status: 502 Bad Gateway
	KindNotification

	// KindGeneral represents an error that fits no other category.
	// CLI exit code: 1, HTTP status: 500 Internal Server Error
	KindGeneral
)

// String returns a human-readable name for the error kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "Validation"
	case KindNotFound:
		return "NotFound"
	case KindStorage:
		return "Storage"
	case KindNotification:
		return "Notification"
	case KindGeneral:
		return "General"
	default:
		return "Unknown"
	}
}

// Error is a structured error with kind, message, and optional cause.
// It implements the standard error interface and maps to CLI exit codes
// and HTTP status codes.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// CLIExitCode returns the appropriate CLI exit code for this error.
func (e *Error) CLIExitCode() int {
	switch e.Kind {
	case KindValidation:
		return 2
	case KindNotFound:
		return 3
	case KindStorage:
		return 5
	case KindNotification:
		return 6
	default:
		return 1
	}
}

// HTTPStatus returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindStorage:
		return http.StatusInternalServerError
	case KindNotification:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Constructor functions

// Validation creates an error for bad input.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NotFound creates an error for a missing ticket.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Storage creates an error for a database or filesystem failure.
func Storage(format string, args ...interface{}) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...)}
}

// Notification creates an error for an email delivery failure.
func Notification(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotification, Message: fmt.Sprintf(format, args...)}
}

// General creates a general error.
func General(format string, args ...interface{}) *Error {
	return &Error{Kind: KindGeneral, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with a specific kind and message.
func Wrap(err error, kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WrapStorage wraps an error as a storage error.
func WrapStorage(err error, format string, args ...interface{}) *Error {
	return Wrap(err, KindStorage, format, args...)
}

// Helper functions for extracting error information

// GetKind extracts the Kind from an error, returning KindGeneral if the
// error is not an *Error.
func GetKind(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindGeneral
}

// GetCLIExitCode extracts the CLI exit code from an error.
func GetCLIExitCode(err error) int {
	if e, ok := err.(*Error); ok {
		return e.CLIExitCode()
	}
	return 1
}

// GetHTTPStatus extracts the HTTP status code from an error.
func GetHTTPStatus(err error) int {
	if e, ok := err.(*Error); ok {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// Is returns true if the error is of the specified kind.
func Is(err error, kind Kind) bool {
	if e, ok := err.(*Error); ok {
		return e.Kind == kind
	}
	return false
}
