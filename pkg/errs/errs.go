// Package errs defines the error taxonomy shared by the command pipeline and
// its transports. Stores and infrastructure return sentinel facts (see
// pkg/platform/sentinel); services translate those into coded errors here so
// callers and HTTP handlers never inspect infrastructure errors directly.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP translation.
type Code string

const (
	// CodeValidation marks malformed input (missing request ID, bad payload).
	// Never retried automatically.
	CodeValidation Code = "validation"
	// CodeConflict marks a duplicate request still in flight after the bounded
	// wait expired. Retryable by the caller after backoff.
	CodeConflict Code = "conflict"
	// CodeExecution marks a failure inside the wrapped business handler. The
	// request record is left Failed and the same request ID may be retried.
	CodeExecution Code = "execution"
	// CodeSanitization marks a telemetry-pipeline fault. Internal only: it is
	// always resolved by fail-closed substitution and never reaches a caller.
	CodeSanitization Code = "sanitization"
	// CodeInternal is the fallback for unclassified failures.
	CodeInternal Code = "internal"
)

// Error is a coded error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches two coded errors by code so sentinel instances like
// ErrRequestIDMissing work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code && e.Message == other.Message
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps an error code to an HTTP status for transport handlers.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	case CodeExecution:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ErrRequestIDMissing rejects command submissions without a request ID before
// any registry access. The message is part of the submission contract.
var ErrRequestIDMissing = New(CodeValidation, "RequestId is missing.")
