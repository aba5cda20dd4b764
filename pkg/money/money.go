package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// minorExponent is the number of decimal places in one major unit (paise, cents).
const minorExponent = 2

// ToMinorUnits converts a major-unit amount into integer minor units,
// rounding half away from zero at the second decimal place.
func ToMinorUnits(amount decimal.Decimal) (int64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount %s must not be negative", amount.String())
	}
	return amount.Shift(minorExponent).Round(0).IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.NewFromInt(minor).Shift(-minorExponent)
}

// Sum adds the provided amounts without going through floats.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, amount := range amounts {
		total = total.Add(amount)
	}
	return total
}
