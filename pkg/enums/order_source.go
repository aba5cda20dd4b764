package enums

// OrderSource distinguishes cart checkouts from direct single-book
// purchases. Only cart orders clear the cart on payment.
type OrderSource string

const (
	OrderSourceCart   OrderSource = "cart"
	OrderSourceDirect OrderSource = "direct"
)

var orderSources = newValueSet("order source", OrderSourceCart, OrderSourceDirect)

func (o OrderSource) String() string { return string(o) }

func (o OrderSource) IsValid() bool { return orderSources.has(o) }
