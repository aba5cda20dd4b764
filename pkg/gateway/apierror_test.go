package gateway

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
)

func TestAPIError(t *testing.T) {
	network := fmt.Errorf("create link: %w", newError(KindNetwork, opCreatePaymentLink, 0, "", context.DeadlineExceeded))
	mapped := APIError(network, "payment initiation failed, retry", map[string]any{"orderId": "o-1"})
	if mapped == nil {
		t.Fatal("expected mapped error")
	}
	if mapped.Code() != pkgerrors.CodeDependency || mapped.Message() != "payment initiation failed, retry" {
		t.Fatalf("network error mapped to %s %q", mapped.Code(), mapped.Message())
	}
	if want := map[string]any{"orderId": "o-1", "retryable": true}; !reflect.DeepEqual(mapped.Details(), want) {
		t.Fatalf("details = %v, want %v", mapped.Details(), want)
	}
	if !errors.Is(mapped, context.DeadlineExceeded) {
		t.Fatal("mapped error must keep its cause")
	}

	rejected := APIError(newError(KindValidation, opCreatePaymentLink, 400, "currency not supported", nil), "ignored", nil)
	if rejected.Code() != pkgerrors.CodePaymentRejected || rejected.Message() != "currency not supported" {
		t.Fatalf("rejection mapped to %s %q", rejected.Code(), rejected.Message())
	}

	blank := APIError(newError(KindValidation, opGetStatus, 404, "", nil), "ignored", nil)
	if blank.Message() != defaultRejectionMessage {
		t.Fatalf("blank rejection message = %q", blank.Message())
	}

	config := APIError(newError(KindConfig, "", 0, "missing key id", nil), "gateway unavailable", nil)
	if config.Code() != pkgerrors.CodeInternal {
		t.Fatalf("config error code = %s", config.Code())
	}

	plain := APIError(errors.New("boom"), "gateway unavailable", nil)
	if plain.Code() != pkgerrors.CodeInternal {
		t.Fatalf("plain error code = %s", plain.Code())
	}
}
