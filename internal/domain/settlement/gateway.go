package settlement

import (
	"context"
	"errors"
)

// ErrPaymentOutcomeUnknown marks a PayInvoice failure after the payment
// request reached the wire without a usable answer. The payment may have
// gone through.
var ErrPaymentOutcomeUnknown = errors.New("settlement: payment outcome unknown")

// Payment is the result of paying an invoice
type Payment struct {
	PaymentRequest  string `json:"payment_request"`
	PaymentHash     string `json:"payment_hash"`
	PaymentPreimage string `json:"payment_preimage,omitempty"`
	Amount          int64  `json:"amount"`
	Fee             int64  `json:"fee"`
}

// InvoiceGateway creates, lists and pays Lightning invoices on behalf of the
// marketplace wallet.
type InvoiceGateway interface {
	// CreateInvoice issues an invoice described as "Payment for Order #<orderID>".
	CreateInvoice(ctx context.Context, orderID string, amountSats int64) (*Invoice, error)
	// ListIncomingInvoices returns received invoices keyed by payment request.
	ListIncomingInvoices(ctx context.Context) (map[string]Invoice, error)
	// PayInvoice resolves a Lightning address and pays the resulting invoice.
	// Errors wrapping ErrPaymentOutcomeUnknown must not be retried blindly.
	PayInvoice(ctx context.Context, address string, amountSats int64, comment string) (*Payment, error)
}

// AddressResolver turns a Lightning address into a payable invoice
type AddressResolver interface {
	Resolve(ctx context.Context, address string, amountSats int64, comment string) (string, error)
}
