package enums

// PaymentStatus tracks whether money has moved for an order. It only ever
// leaves pending once.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

var paymentStatuses = newValueSet("payment status",
	PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed)

func (p PaymentStatus) String() string { return string(p) }

func (p PaymentStatus) IsValid() bool { return paymentStatuses.has(p) }

// IsTerminal reports whether no further payment transition is allowed.
func (p PaymentStatus) IsTerminal() bool {
	return p == PaymentStatusCompleted || p == PaymentStatusFailed
}

func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	return paymentStatuses.parse(raw)
}
