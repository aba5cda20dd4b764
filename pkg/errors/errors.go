// Package errors defines the typed error used across the bookstore services.
// Every error that reaches the HTTP layer is mapped through its Code onto a
// status, a public message and a flag saying whether details may be exposed.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeUnauthorized    Code = "UNAUTHORIZED"
	CodeForbidden       Code = "FORBIDDEN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeStateConflict   Code = "STATE_CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit       Code = "RATE_LIMIT_EXCEEDED"
	CodePaymentRejected Code = "PAYMENT_REJECTED"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
)

// Metadata is the transport-facing description of a Code.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

type exposure uint8

const (
	hideDetails exposure = iota
	showDetails
)

func describe(status int, retryable bool, msg string, exp exposure) Metadata {
	return Metadata{HTTPStatus: status, Retryable: retryable, PublicMessage: msg, DetailsAllowed: exp == showDetails}
}

var catalogue = map[Code]Metadata{
	CodeValidation:      describe(http.StatusBadRequest, false, "validation failed", showDetails),
	CodeUnauthorized:    describe(http.StatusUnauthorized, false, "authentication required", hideDetails),
	CodeForbidden:       describe(http.StatusForbidden, false, "access denied", hideDetails),
	CodeNotFound:        describe(http.StatusNotFound, false, "resource not found", hideDetails),
	CodeConflict:        describe(http.StatusConflict, false, "conflict detected", hideDetails),
	CodeStateConflict:   describe(http.StatusUnprocessableEntity, false, "state transition disallowed", showDetails),
	CodeIdempotency:     describe(http.StatusConflict, false, "idempotency key reused", showDetails),
	CodeRateLimit:       describe(http.StatusTooManyRequests, false, "rate limit exceeded", hideDetails),
	CodePaymentRejected: describe(http.StatusUnprocessableEntity, false, "payment provider rejected the request", showDetails),
	CodeInternal:        describe(http.StatusInternalServerError, true, "internal server error", hideDetails),
	CodeDependency:      describe(http.StatusServiceUnavailable, true, "dependency unavailable", showDetails),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	meta, ok := catalogue[code]
	if !ok {
		return catalogue[CodeInternal]
	}
	return meta
}

// Error carries a Code, a caller-facing message, optional structured details
// and the underlying cause. The cause is never rendered to clients.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Wrap attaches cause to a new typed error. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails sets details in place and returns the receiver for chaining.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	switch {
	case e == nil:
		return ""
	case e.cause == nil:
		return fmt.Sprintf("%s: %s", e.code, e.message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As finds the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	return As(err).Code()
}

// IsRetryable reports whether the caller may safely repeat the operation
// that produced err. An explicit "retryable" detail overrides the code.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if d := Diagnose(err); d.Timeout {
		return true
	}
	if details, ok := As(err).Details().(map[string]any); ok {
		if flag, ok := details["retryable"].(bool); ok {
			return flag
		}
	}
	return MetadataFor(CodeOf(err)).Retryable
}
