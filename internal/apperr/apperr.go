// Package apperr defines the error taxonomy shared by every engine package.
package apperr

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeMissingInput Code = "MISSING_INPUT"
	CodeInvalidInput Code = "INVALID_INPUT"
	CodeNotFound     Code = "NOT_FOUND"
	CodeForbidden    Code = "FORBIDDEN"
	CodeConflict     Code = "CONFLICT"
	CodeStoreFailure Code = "STORE_FAILURE"
)

// Error carries a taxonomy code plus a human-readable message. Store
// failures additionally wrap the transport error for logging; the wrapped
// error never crosses the HTTP boundary.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func Missing(field string) *Error {
	return &Error{Code: CodeMissingInput, Message: field + " is required"}
}

func Invalid(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func NotFound(what string) *Error {
	return &Error{Code: CodeNotFound, Message: what + " not found"}
}

func Forbidden(msg string) *Error {
	return &Error{Code: CodeForbidden, Message: msg}
}

func Conflict(msg string) *Error {
	return &Error{Code: CodeConflict, Message: msg}
}

// Store wraps an underlying document-store error. The message is passed
// through so the caller can render something actionable.
func Store(err error) *Error {
	return &Error{Code: CodeStoreFailure, Message: err.Error(), Err: err}
}

// CodeOf extracts the taxonomy code from err, or STORE_FAILURE when err is
// not an *Error (a raw transport error that escaped a boundary).
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeStoreFailure
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
