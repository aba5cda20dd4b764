package enums

// PaymentMethodType is the buyer's preferred instrument. It is recorded on
// the order; the hosted payment page still lets the buyer choose.
type PaymentMethodType string

const (
	PaymentMethodTypeCard       PaymentMethodType = "card"
	PaymentMethodTypeUPI        PaymentMethodType = "upi"
	PaymentMethodTypeNetBanking PaymentMethodType = "netbanking"
	PaymentMethodTypeWallet     PaymentMethodType = "wallet"
)

var paymentMethodTypes = newValueSet("payment method type",
	PaymentMethodTypeCard, PaymentMethodTypeUPI, PaymentMethodTypeNetBanking, PaymentMethodTypeWallet)

func (p PaymentMethodType) String() string { return string(p) }

func (p PaymentMethodType) IsValid() bool { return paymentMethodTypes.has(p) }

func ParsePaymentMethodType(raw string) (PaymentMethodType, error) {
	return paymentMethodTypes.parse(raw)
}
