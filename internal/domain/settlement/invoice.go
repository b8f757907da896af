package settlement

import "time"

// InvoiceState is the lifecycle state of a Lightning invoice
type InvoiceState string

const (
	InvoiceStatePending InvoiceState = "pending"
	InvoiceStateSettled InvoiceState = "settled"
	InvoiceStateExpired InvoiceState = "expired"
	InvoiceStateError   InvoiceState = "error"
)

// IsValid checks if the state is known
func (s InvoiceState) IsValid() bool {
	switch s {
	case InvoiceStatePending, InvoiceStateSettled, InvoiceStateExpired, InvoiceStateError:
		return true
	}
	return false
}

// String returns the string representation of InvoiceState
func (s InvoiceState) String() string {
	return string(s)
}

// Invoice is a payable Lightning request as reported by the invoice backend
type Invoice struct {
	PaymentRequest string       `json:"payment_request"`
	PaymentHash    string       `json:"payment_hash,omitempty"`
	Amount         int64        `json:"amount"` // sats
	Description    string       `json:"description,omitempty"`
	State          InvoiceState `json:"state"`
	SettleIndex    uint64       `json:"settle_index,omitempty"`
	SettledAt      *time.Time   `json:"settled_at,omitempty"`
	ExpiresAt      *time.Time   `json:"expires_at,omitempty"`
}

// IsSettled reports whether the invoice has been paid
func (i *Invoice) IsSettled() bool {
	return i.State == InvoiceStateSettled
}
