// Package apperr defines the error kinds handlers map to HTTP responses.
// Every error carries a stable machine-readable Code next to the human Message,
// so clients never have to match on prose.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP mapping.
type Kind string

const (
	KindAuth       Kind = "auth"
	KindNotFound   Kind = "not_found"
	KindForbidden  Kind = "forbidden"
	KindValidation Kind = "validation"
	KindDataAccess Kind = "data_access"
	KindUnexpected Kind = "unexpected"
)

// Stable codes returned to clients.
const (
	CodeNoToken           = "no_token"
	CodeInvalidToken      = "invalid_token"
	CodeUserNotFound      = "user_not_found"
	CodeNotFound          = "not_found"
	CodeForbiddenNoAccess = "forbidden_no_access"
	CodeForbiddenRole     = "forbidden_role"
	CodeInvalidRequest    = "invalid_request"
	CodeTicketClosed      = "ticket_closed"
	CodeCapacityExceeded  = "capacity_exceeded"
	CodeAlreadyInStatus   = "already_in_status"
	CodeDataAccess        = "data_access"
	CodeUnexpected        = "unexpected"
	CodeRateLimited       = "rate_limited"
)

// Error is an application error with a kind, a stable code and a client-facing message.
// Reason is logged but never rendered. Err is the wrapped cause, if any.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Reason  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Status returns the HTTP status for the error kind.
func (e *Error) Status() int {
	return StatusFor(e.Kind)
}

// StatusFor maps a kind to its HTTP status.
func StatusFor(k Kind) int {
	switch k {
	case KindAuth:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindForbidden:
		return http.StatusForbidden
	case KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Auth creates a 401 error.
func Auth(code, message string) *Error {
	return &Error{Kind: KindAuth, Code: code, Message: message}
}

// NotFound creates a 404 error.
func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

// Forbidden creates a 403 error. reason distinguishes causes that share a status and body.
func Forbidden(code, message, reason string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message, Reason: reason}
}

// Validation creates a 400 error.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// DataAccess wraps a failed remote read or write. message names the step that failed.
func DataAccess(message string, err error) *Error {
	return &Error{Kind: KindDataAccess, Code: CodeDataAccess, Message: message, Err: err}
}

// Unexpected wraps an error that no handler anticipated.
func Unexpected(err error) *Error {
	return &Error{Kind: KindUnexpected, Code: CodeUnexpected, Message: "Internal server error", Err: err}
}

// As extracts an *Error from err. Errors that are not *Error become Unexpected.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Unexpected(err)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
