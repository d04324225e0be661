// Package apperr provides coded errors shared by the service and transport
// layers. Each error carries a stable machine-readable Code that callers
// match with errors.Is and that the HTTP layer maps to a status.
package apperr

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeValidation     Code = "validation"
	CodeNotFound       Code = "not_found"
	CodeConflict       Code = "conflict"
	CodeFull           Code = "full"
	CodeNotOpen        Code = "not_open"
	CodeAlreadyStarted Code = "already_started"
	CodeUnauthorized   Code = "unauthorized"
	CodeForbidden      Code = "forbidden"
	CodeInternal       Code = "internal"
)

// HTTPStatus maps a code to the status returned to API clients.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeValidation, CodeNotOpen, CodeAlreadyStarted:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeFull:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Sentinels for errors.Is. Matching is by code, so any *Error with the same
// code satisfies errors.Is against these values.
var (
	ErrValidation     = New(CodeValidation, "invalid request")
	ErrNotFound       = New(CodeNotFound, "not found")
	ErrFull           = New(CodeFull, "event is full")
	ErrNotOpen        = New(CodeNotOpen, "event is not open for registration")
	ErrAlreadyStarted = New(CodeAlreadyStarted, "event has already started")
	ErrInternal       = New(CodeInternal, "internal error")
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil && e.Code == CodeInternal {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an error that wraps cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Validation is shorthand for a CodeValidation error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// Internal wraps an unexpected failure.
func Internal(message string, cause error) *Error {
	return Wrap(CodeInternal, message, cause)
}

// CodeOf returns the code of the first *Error in err's chain, or
// CodeInternal when there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Ensure converts any error into an *Error, leaving coded errors untouched
// and wrapping everything else as internal.
func Ensure(err error, message string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return Internal(message, err)
}
