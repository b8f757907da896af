package lightning

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/domain/settlement"
)

// Mock response values
const (
	MockPaymentRequestPrefix = "MOCK_PAYMENT_REQUEST"
	MockPaymentHash          = "MOCK_PAYMENT_HASH"
	MockInvoiceExpiry        = 10 * time.Minute
)

// MockLndHubClient is an in-process InvoiceGateway for development.
// Invoices it issues never settle on their own; the polling feed reports
// them as settled.
type MockLndHubClient struct {
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	invoices map[string]settlement.Invoice
	payments []settlement.Payment
}

// NewMockLndHubClient creates a new mock gateway
func NewMockLndHubClient(opts ...Option) *MockLndHubClient {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &MockLndHubClient{
		logger:   o.logger,
		now:      o.now,
		invoices: make(map[string]settlement.Invoice),
	}
}

// CreateInvoice returns a fabricated invoice. Each payment request carries
// a random suffix so it can be stored under a unique index.
func (m *MockLndHubClient) CreateInvoice(_ context.Context, orderID string, amountSats int64) (*settlement.Invoice, error) {
	if amountSats <= 0 {
		return nil, ErrMissingAmount
	}
	expires := m.now().Add(MockInvoiceExpiry)
	inv := settlement.Invoice{
		PaymentRequest: fmt.Sprintf("%s_%s", MockPaymentRequestPrefix, strings.ReplaceAll(uuid.NewString(), "-", "")[:12]),
		PaymentHash:    MockPaymentHash,
		Amount:         amountSats,
		Description:    fmt.Sprintf("Payment for Order #%s", orderID),
		State:          settlement.InvoiceStatePending,
		ExpiresAt:      &expires,
	}

	m.mu.Lock()
	m.invoices[inv.PaymentRequest] = inv
	m.mu.Unlock()

	m.logger.Debug("Mock invoice created",
		zap.String("payment_request", inv.PaymentRequest),
		zap.Int64("amount_sats", amountSats),
	)
	return &inv, nil
}

// ListIncomingInvoices returns every invoice this mock has issued
func (m *MockLndHubClient) ListIncomingInvoices(context.Context) (map[string]settlement.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]settlement.Invoice, len(m.invoices))
	for k, v := range m.invoices {
		out[k] = v
	}
	return out, nil
}

// PayInvoice records the payment without contacting any network
func (m *MockLndHubClient) PayInvoice(_ context.Context, address string, amountSats int64, comment string) (*settlement.Payment, error) {
	if strings.TrimSpace(address) == "" {
		return nil, ErrMissingAddress
	}
	if amountSats <= 0 {
		return nil, ErrMissingAmount
	}
	p := settlement.Payment{
		PaymentRequest: MockPaymentRequestPrefix,
		PaymentHash:    MockPaymentHash,
		Amount:         amountSats,
	}

	m.mu.Lock()
	m.payments = append(m.payments, p)
	m.mu.Unlock()

	m.logger.Info("Mock payment sent",
		zap.String("address", address),
		zap.Int64("amount_sats", amountSats),
		zap.String("comment", comment),
	)
	return &p, nil
}

// Payments returns the payments recorded so far
func (m *MockLndHubClient) Payments() []settlement.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]settlement.Payment(nil), m.payments...)
}

var _ settlement.InvoiceGateway = (*MockLndHubClient)(nil)
