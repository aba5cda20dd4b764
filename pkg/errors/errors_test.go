package errors

import (
	"context"
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestCatalogueCoversEveryCode(t *testing.T) {
	type want struct {
		status    int
		retryable bool
		details   bool
	}
	expected := map[Code]want{
		CodeValidation:      {http.StatusBadRequest, false, true},
		CodeUnauthorized:    {http.StatusUnauthorized, false, false},
		CodeForbidden:       {http.StatusForbidden, false, false},
		CodeNotFound:        {http.StatusNotFound, false, false},
		CodeConflict:        {http.StatusConflict, false, false},
		CodeStateConflict:   {http.StatusUnprocessableEntity, false, true},
		CodeIdempotency:     {http.StatusConflict, false, true},
		CodeRateLimit:       {http.StatusTooManyRequests, false, false},
		CodePaymentRejected: {http.StatusUnprocessableEntity, false, true},
		CodeInternal:        {http.StatusInternalServerError, true, false},
		CodeDependency:      {http.StatusServiceUnavailable, true, true},
	}
	if len(catalogue) != len(expected) {
		t.Fatalf("catalogue has %d codes, want %d", len(catalogue), len(expected))
	}

	for code, w := range expected {
		meta := MetadataFor(code)
		if meta.HTTPStatus != w.status || meta.Retryable != w.retryable || meta.DetailsAllowed != w.details {
			t.Fatalf("%s: got %+v", code, meta)
		}
		if meta.PublicMessage == "" {
			t.Fatalf("%s: empty public message", code)
		}
	}
	if MetadataFor("SOMETHING_UNKNOWN") != MetadataFor(CodeInternal) {
		t.Fatal("unknown codes must fall back to internal")
	}
}

func TestNewAndWrap(t *testing.T) {
	plain := New(CodeValidation, "missing foo")
	if plain.Code() != CodeValidation || plain.Message() != "missing foo" {
		t.Fatalf("got %s %q", plain.Code(), plain.Message())
	}
	if plain.Details() != nil || plain.Unwrap() != nil {
		t.Fatal("new error must carry no details or cause")
	}

	if plain.WithDetails(map[string]any{"field": "foo"}) != plain {
		t.Fatal("WithDetails must return the receiver")
	}
	if plain.Details() == nil {
		t.Fatal("details not set")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) || wrapped.Code() != CodeConflict {
		t.Fatalf("wrap lost cause or code: %v", wrapped)
	}
}

func TestNilErrorIsSafe(t *testing.T) {
	var e *Error
	if e.Code() != CodeInternal || e.Message() != "" || e.Details() != nil {
		t.Fatal("nil error must report internal with no message or details")
	}
	if e.WithDetails("x") != nil {
		t.Fatal("WithDetails on nil must stay nil")
	}
}

func TestAsAndCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", New(CodeNotFound, "order not found"))
	if As(wrapped) == nil || CodeOf(wrapped) != CodeNotFound {
		t.Fatalf("wrapped code = %s", CodeOf(wrapped))
	}

	if As(nil) != nil || As(stdErrors.New("plain")) != nil {
		t.Fatal("As must be nil for untyped errors")
	}
	if CodeOf(stdErrors.New("plain")) != CodeInternal {
		t.Fatal("untyped errors map to internal")
	}
}

func TestDiagnoseCapturesPostgresFields(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "orders_user_idempotency_key", TableName: "orders"}
	err := Wrap(CodeDependency, pgErr, "insert order")

	diag := Diagnose(err)
	if diag.Code != CodeDependency {
		t.Fatalf("expected dependency code, got %s", diag.Code)
	}
	if diag.Postgres == nil || diag.Postgres.Code != "23505" || diag.Postgres.Constraint != "orders_user_idempotency_key" {
		t.Fatalf("unexpected pg fields %+v", diag.Postgres)
	}
	if len(diag.Chain) != 2 {
		t.Fatalf("expected two entries in chain, got %v", diag.Chain)
	}
	if diag.Timeout {
		t.Fatalf("constraint violation is not a timeout")
	}
}

func TestDiagnoseFlagsTimeouts(t *testing.T) {
	err := Wrap(CodeDependency, fmt.Errorf("call gateway: %w", context.DeadlineExceeded), "payment initiation failed")
	diag := Diagnose(err)
	if !diag.Timeout {
		t.Fatalf("expected timeout flag")
	}
	if diag.Postgres != nil {
		t.Fatalf("expected no postgres fields, got %+v", diag.Postgres)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation", New(CodeValidation, "bad"), false},
		{"dependency", New(CodeDependency, "db down"), true},
		{"untyped deadline", context.DeadlineExceeded, true},
		{"wrapped state conflict", fmt.Errorf("advance: %w", New(CodeStateConflict, "nope")), false},
		{"in-flight duplicate", New(CodeIdempotency, "busy").WithDetails(map[string]any{"retryable": true}), true},
		{"dependency marked final", New(CodeDependency, "gone").WithDetails(map[string]any{"retryable": false}), false},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Fatalf("%s: expected %v got %v", tc.name, tc.want, got)
		}
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("conn refused"), "load cart")
	if got := err.Error(); got != "DEPENDENCY_ERROR: load cart: conn refused" {
		t.Fatalf("unexpected error string %q", got)
	}
	if got := New(CodeNotFound, "order not found").Error(); got != "NOT_FOUND: order not found" {
		t.Fatalf("unexpected error string %q", got)
	}
}
