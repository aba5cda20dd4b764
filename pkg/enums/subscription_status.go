package enums

// SubscriptionStatus captures the lifecycle of a plan subscription. A
// subscription whose payment fails or whose link expires is cancelled.
type SubscriptionStatus string

const (
	SubscriptionStatusPending   SubscriptionStatus = "pending"
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

var subscriptionStatuses = newValueSet("subscription status",
	SubscriptionStatusPending, SubscriptionStatusActive, SubscriptionStatusCancelled)

func (s SubscriptionStatus) String() string { return string(s) }

func (s SubscriptionStatus) IsValid() bool { return subscriptionStatuses.has(s) }

// IsTerminal reports whether the subscription left the pending state.
func (s SubscriptionStatus) IsTerminal() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusCancelled
}
