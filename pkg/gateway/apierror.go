package gateway

import (
	"errors"

	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
)

const defaultRejectionMessage = "payment provider rejected the request"

// APIError maps a gateway failure onto the API error taxonomy. Network
// failures are retryable DEPENDENCY_ERRORs, rejections surface the gateway's
// own message as PAYMENT_REJECTED, and anything else is internal.
func APIError(err error, message string, details map[string]any) *pkgerrors.Error {
	if details == nil {
		details = map[string]any{}
	}
	var gwErr *Error
	if !errors.As(err, &gwErr) {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
	}
	switch gwErr.Kind {
	case KindNetwork:
		details["retryable"] = true
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, message).WithDetails(details)
	case KindValidation:
		rejection := gwErr.Message
		if rejection == "" {
			rejection = defaultRejectionMessage
		}
		details["retryable"] = false
		return pkgerrors.Wrap(pkgerrors.CodePaymentRejected, err, rejection).WithDetails(details)
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, message)
	}
}
