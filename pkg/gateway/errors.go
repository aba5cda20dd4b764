package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures so callers can decide whether a retry makes sense.
type Kind string

const (
	// KindConfig means the adapter cannot run at all (missing credentials).
	KindConfig Kind = "config"
	// KindNetwork covers timeouts, connection failures, gateway 5xx and an open breaker.
	KindNetwork Kind = "network"
	// KindValidation means the gateway rejected the request as malformed.
	KindValidation Kind = "validation"
)

// Error is the only error type returned by Client.
type Error struct {
	Kind       Kind
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("gateway %s error", e.Kind)
	if e.Op != "" {
		msg += " during " + e.Op
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether the same request may succeed later.
func (e *Error) Retryable() bool {
	return e != nil && e.Kind == KindNetwork
}

// KindOf extracts the failure kind from err.
func KindOf(err error) (Kind, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind, true
	}
	return "", false
}

func IsNetwork(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNetwork
}

func IsValidation(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindValidation
}

func IsConfig(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindConfig
}

func newError(kind Kind, op string, status int, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, StatusCode: status, Message: message, Err: cause}
}
