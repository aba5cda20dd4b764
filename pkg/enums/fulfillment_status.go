package enums

import "slices"

// FulfillmentStatus tracks the shipping lifecycle of an order.
type FulfillmentStatus string

const (
	FulfillmentStatusPending    FulfillmentStatus = "pending"
	FulfillmentStatusProcessing FulfillmentStatus = "processing"
	FulfillmentStatusShipped    FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered  FulfillmentStatus = "delivered"
	FulfillmentStatusCancelled  FulfillmentStatus = "cancelled"
)

var fulfillmentStatuses = newValueSet("fulfillment status",
	FulfillmentStatusPending,
	FulfillmentStatusProcessing,
	FulfillmentStatusShipped,
	FulfillmentStatusDelivered,
	FulfillmentStatusCancelled,
)

// Forward-only ladder. Delivered and cancelled have no exits.
var fulfillmentLadder = map[FulfillmentStatus][]FulfillmentStatus{
	FulfillmentStatusPending:    {FulfillmentStatusProcessing, FulfillmentStatusCancelled},
	FulfillmentStatusProcessing: {FulfillmentStatusShipped, FulfillmentStatusCancelled},
	FulfillmentStatusShipped:    {FulfillmentStatusDelivered},
}

func (f FulfillmentStatus) String() string { return string(f) }

func (f FulfillmentStatus) IsValid() bool { return fulfillmentStatuses.has(f) }

func (f FulfillmentStatus) CanTransitionTo(next FulfillmentStatus) bool {
	return slices.Contains(fulfillmentLadder[f], next)
}

// PredecessorsOf lists the statuses from which next may be entered, for use
// in a guarded UPDATE ... WHERE status IN (...).
func PredecessorsOf(next FulfillmentStatus) []FulfillmentStatus {
	var out []FulfillmentStatus
	for _, from := range fulfillmentStatuses.values {
		if from.CanTransitionTo(next) {
			out = append(out, from)
		}
	}
	return out
}

func ParseFulfillmentStatus(raw string) (FulfillmentStatus, error) {
	return fulfillmentStatuses.parse(raw)
}
