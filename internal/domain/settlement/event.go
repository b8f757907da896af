package settlement

import "fmt"

// Event is one observation from the settlement feed
type Event struct {
	SettleIndex    uint64
	PaymentRequest string
	State          InvoiceState
}

// String implements fmt.Stringer
func (e Event) String() string {
	return fmt.Sprintf("settle_index=%d state=%s", e.SettleIndex, e.State)
}

// Outcome classifies what the reconciler did with an event
type Outcome string

const (
	// OutcomeDuplicate: index at or below the cursor, or not settled.
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeUnmatched: no bid or contribution carries the payment request.
	OutcomeUnmatched Outcome = "unmatched"
	// OutcomeAlreadySettled: matched, but every match was settled before.
	OutcomeAlreadySettled Outcome = "already_settled"
	// OutcomeApplied: at least one record changed and the cursor advanced.
	OutcomeApplied Outcome = "applied"
	// OutcomeFailed: the transaction rolled back.
	OutcomeFailed Outcome = "failed"
)

// Result reports the effect of applying one event
type Result struct {
	Event               Event
	Outcome             Outcome
	BidSettled          bool
	EndDateExtended     bool
	ContributionSettled bool
	CursorAdvancedTo    uint64
}
