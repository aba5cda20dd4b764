package enums

import "time"

// BillingInterval is a plan's renewal cadence.
type BillingInterval string

const (
	BillingIntervalMonth BillingInterval = "month"
	BillingIntervalYear  BillingInterval = "year"
)

var billingIntervals = newValueSet("billing interval", BillingIntervalMonth, BillingIntervalYear)

func (b BillingInterval) String() string { return string(b) }

func (b BillingInterval) IsValid() bool { return billingIntervals.has(b) }

// AddTo returns the end of one billing cycle starting at start. Month ends
// follow time.AddDate normalisation, so Jan 31 + 1 month is Mar 3 (or 2).
func (b BillingInterval) AddTo(start time.Time) time.Time {
	if b == BillingIntervalYear {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}
