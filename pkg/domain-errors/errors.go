// Package domainerrors defines the coded error taxonomy shared by services and
// transports. Services return these; handlers translate them to HTTP via
// ToHTTPStatus without inspecting messages.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-visible error identifier.
type Code string

const (
	// CodeUnauthorized means no valid identity session exists (AuthError).
	CodeUnauthorized Code = "unauthorized"
	// CodeValidation means a required field is missing or malformed (ValidationError).
	CodeValidation Code = "validation_error"
	// CodeExternalService means a gateway, judge or ledger call failed or timed out.
	CodeExternalService Code = "external_service_error"
	// CodeVerdictRejected means a judge ran successfully but its threshold was not met.
	CodeVerdictRejected Code = "verdict_rejected"
	// CodeNotFound means the requested record does not exist.
	CodeNotFound Code = "not_found"

	CodeBadRequest   Code = "bad_request"
	CodeConflict     Code = "conflict"
	CodeInvalidState Code = "invalid_state"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"
)

// Error is a domain error carrying a Code and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a coded error.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error.
// Returns nil when err is nil so callers can wrap unconditionally.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// CodeOf returns the outermost domain code in the chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// HasCode reports whether the outermost domain error in the chain has code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// Is is an alias for HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// ToHTTPStatus maps a code to its HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeValidation, CodeBadRequest:
		return http.StatusBadRequest
	case CodeVerdictRejected:
		return http.StatusUnprocessableEntity
	case CodeExternalService:
		return http.StatusBadGateway
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeInvalidState:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
