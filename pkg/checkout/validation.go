package checkout

import (
	"fmt"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/bookstore-backend/pkg/errors"
	"github.com/angelmondragon/bookstore-backend/pkg/types"
)

// UnavailableItemDetail is returned for each cart entry that can no longer be sold.
type UnavailableItemDetail struct {
	BookID uuid.UUID `json:"bookId"`
}

// ValidateShippingAddress rejects addresses with blank required fields.
func ValidateShippingAddress(address types.ShippingAddress) error {
	missing := address.MissingFields()
	if len(missing) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").WithDetails(map[string]any{
		"missingFields": missing,
	})
}

// ValidateAvailability fails checkout when any cart entry dropped out of the catalog.
func ValidateAvailability(unavailable []uuid.UUID) error {
	if len(unavailable) == 0 {
		return nil
	}
	details := make([]UnavailableItemDetail, 0, len(unavailable))
	for _, id := range unavailable {
		details = append(details, UnavailableItemDetail{BookID: id})
	}
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("%d item(s) in the cart are no longer available", len(details))).WithDetails(map[string]any{
		"unavailable": details,
	})
}
