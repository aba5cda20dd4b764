package enums

// InitiationStatus records whether a payment link was obtained from the
// gateway. It is independent of PaymentStatus: a failed initiation leaves the
// payment pending and retryable.
type InitiationStatus string

const (
	InitiationStatusAwaiting    InitiationStatus = "awaiting"
	InitiationStatusLinkCreated InitiationStatus = "link_created"
	InitiationStatusFailed      InitiationStatus = "failed"
)

var initiationStatuses = newValueSet("initiation status",
	InitiationStatusAwaiting, InitiationStatusLinkCreated, InitiationStatusFailed)

func (i InitiationStatus) String() string { return string(i) }

func (i InitiationStatus) IsValid() bool { return initiationStatuses.has(i) }
