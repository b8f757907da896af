package lightning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/plebmarket/backend/internal/domain/settlement"
	"go.uber.org/zap"
)

// LNDHub API paths
const (
	pathAuth             = "/auth"
	pathInvoices         = "/v2/invoices"
	pathIncomingInvoices = "/v2/invoices/incoming"
	pathPayBolt11        = "/v2/payments/bolt11"
)

// Operation names reported to the CallObserver
const (
	OpAuthenticate  = "lndhub_auth"
	OpCreateInvoice = "lndhub_create_invoice"
	OpListInvoices  = "lndhub_list_invoices"
	OpPayInvoice    = "lndhub_pay_invoice"
	OpResolve       = "address_resolve"
)

// Option customizes a client
type Option func(*clientOptions)

type clientOptions struct {
	logger     *zap.Logger
	observer   CallObserver
	httpClient *http.Client
	now        func() time.Time
}

func defaultOptions() clientOptions {
	return clientOptions{
		logger:   zap.NewNop(),
		observer: nopObserver{},
		now:      time.Now,
	}
}

// WithLogger sets the client logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *clientOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithObserver reports call durations and failures
func WithObserver(observer CallObserver) Option {
	return func(o *clientOptions) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		if client != nil {
			o.httpClient = client
		}
	}
}

// WithClock overrides the time source used for the login backoff
func WithClock(now func() time.Time) Option {
	return func(o *clientOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// LndHubClient talks to an LNDHub-compatible account API.
//
// The bearer token is shared by all callers. A request rejected as
// unauthorized triggers one fresh login and one retry; a second rejection
// is returned as ErrAuthRetryExhausted. After a rejected login no further
// login is attempted until AuthBackoff has elapsed.
type LndHubClient struct {
	config     *LndHubConfig
	httpClient *http.Client
	resolver   settlement.AddressResolver
	logger     *zap.Logger
	observer   CallObserver
	now        func() time.Time

	mu              sync.Mutex
	token           string
	lastAuthFailure time.Time
}

// NewLndHubClient creates a new LNDHub client
func NewLndHubClient(config *LndHubConfig, resolver settlement.AddressResolver, opts ...Option) (*LndHubClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &LndHubClient{
		config:     config,
		httpClient: httpClient,
		resolver:   resolver,
		logger:     o.logger,
		observer:   o.observer,
		now:        o.now,
	}, nil
}

type authResponse struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	Error        json.RawMessage `json:"error"`
	Message      string          `json:"message"`
}

// Authenticate logs in and stores a fresh bearer token
func (c *LndHubClient) Authenticate(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.observer.RecordGatewayCall(ctx, OpAuthenticate, time.Since(start), err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lastAuthFailure.IsZero() && c.now().Sub(c.lastAuthFailure) < c.config.AuthBackoff {
		return ErrAuthBackoff
	}

	form := url.Values{}
	form.Set("login", c.config.Login)
	form.Set("password", c.config.Password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(pathAuth), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	// a transport failure says nothing about the credentials
	status, body, err := c.send(req)
	if err != nil {
		return err
	}

	var resp authResponse
	if jsonErr := json.Unmarshal(body, &resp); jsonErr != nil {
		c.lastAuthFailure = c.now()
		return fmt.Errorf("%w: HTTP %d: %v", ErrAuthenticationFailed, status, jsonErr)
	}
	if status >= 400 || len(resp.Error) > 0 || resp.AccessToken == "" {
		c.lastAuthFailure = c.now()
		c.token = ""
		c.logger.Warn("LNDHub login rejected",
			zap.Int("status", status),
			zap.String("message", resp.Message),
		)
		return fmt.Errorf("%w: HTTP %d", ErrAuthenticationFailed, status)
	}

	c.token = resp.AccessToken
	c.lastAuthFailure = time.Time{}
	c.logger.Debug("LNDHub login succeeded")
	return nil
}

type createInvoiceRequest struct {
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
}

type invoiceResponse struct {
	PaymentRequest string     `json:"payment_request"`
	PaymentHash    string     `json:"payment_hash"`
	Amount         int64      `json:"amount"`
	Description    string     `json:"description"`
	Status         string     `json:"status"`
	Settled        bool       `json:"settled"`
	SettledAt      *time.Time `json:"settled_at"`
	ExpiresAt      *time.Time `json:"expires_at"`
}

func (r invoiceResponse) toDomain() settlement.Invoice {
	state := settlement.InvoiceStatePending
	switch strings.ToLower(r.Status) {
	case "settled":
		state = settlement.InvoiceStateSettled
	case "expired":
		state = settlement.InvoiceStateExpired
	case "error":
		state = settlement.InvoiceStateError
	}
	if r.Settled {
		state = settlement.InvoiceStateSettled
	}
	return settlement.Invoice{
		PaymentRequest: r.PaymentRequest,
		PaymentHash:    r.PaymentHash,
		Amount:         r.Amount,
		Description:    r.Description,
		State:          state,
		SettledAt:      r.SettledAt,
		ExpiresAt:      r.ExpiresAt,
	}
}

// CreateInvoice issues an invoice for the given order
func (c *LndHubClient) CreateInvoice(ctx context.Context, orderID string, amountSats int64) (inv *settlement.Invoice, err error) {
	start := time.Now()
	defer func() { c.observer.RecordGatewayCall(ctx, OpCreateInvoice, time.Since(start), err) }()

	if amountSats <= 0 {
		return nil, ErrMissingAmount
	}
	payload := createInvoiceRequest{
		Amount:      amountSats,
		Description: fmt.Sprintf("Payment for Order #%s", orderID),
	}
	body, err := c.doAuthorized(ctx, http.MethodPost, pathInvoices, payload, http.StatusUnauthorized)
	if err != nil {
		return nil, err
	}

	var resp invoiceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayInvalidResponse, err)
	}
	if resp.PaymentRequest == "" {
		return nil, fmt.Errorf("%w: missing payment_request", ErrGatewayInvalidResponse)
	}
	if resp.Amount == 0 {
		resp.Amount = amountSats
	}
	if resp.Description == "" {
		resp.Description = payload.Description
	}
	result := resp.toDomain()
	return &result, nil
}

// ListIncomingInvoices returns received invoices keyed by payment request
func (c *LndHubClient) ListIncomingInvoices(ctx context.Context) (invoices map[string]settlement.Invoice, err error) {
	start := time.Now()
	defer func() { c.observer.RecordGatewayCall(ctx, OpListInvoices, time.Since(start), err) }()

	body, err := c.doAuthorized(ctx, http.MethodGet, pathIncomingInvoices, nil, http.StatusUnauthorized)
	if err != nil {
		return nil, err
	}

	var list []invoiceResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayInvalidResponse, err)
	}
	invoices = make(map[string]settlement.Invoice, len(list))
	for _, r := range list {
		if r.PaymentRequest == "" {
			continue
		}
		invoices[r.PaymentRequest] = r.toDomain()
	}
	return invoices, nil
}

type payInvoiceRequest struct {
	Amount  int64  `json:"amount"`
	Invoice string `json:"invoice"`
}

// PayInvoice resolves address into an invoice and pays it.
// The payment endpoint reports an expired token as 400 or 401.
func (c *LndHubClient) PayInvoice(ctx context.Context, address string, amountSats int64, comment string) (payment *settlement.Payment, err error) {
	start := time.Now()
	defer func() { c.observer.RecordGatewayCall(ctx, OpPayInvoice, time.Since(start), err) }()

	if c.resolver == nil {
		return nil, fmt.Errorf("%w: no address resolver configured", ErrResolutionFailed)
	}
	pr, err := c.resolver.Resolve(ctx, address, amountSats, comment)
	if err != nil {
		return nil, err
	}

	body, err := c.doAuthorized(ctx, http.MethodPost, pathPayBolt11,
		payInvoiceRequest{Amount: amountSats, Invoice: pr},
		http.StatusBadRequest, http.StatusUnauthorized)
	if err != nil {
		if errors.Is(err, errNoResponse) {
			return nil, fmt.Errorf("%w: %w", settlement.ErrPaymentOutcomeUnknown, err)
		}
		return nil, err
	}

	var resp settlement.Payment
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %w: %v", settlement.ErrPaymentOutcomeUnknown, ErrGatewayInvalidResponse, err)
	}
	if resp.PaymentRequest == "" {
		resp.PaymentRequest = pr
	}
	if resp.Amount == 0 {
		resp.Amount = amountSats
	}
	c.logger.Info("Lightning payment sent",
		zap.Int64("amount_sats", resp.Amount),
		zap.String("payment_hash", resp.PaymentHash),
	)
	return &resp, nil
}

// doAuthorized sends an authenticated request. A response whose status is
// in expiry is treated as an expired token: the client logs in again and
// retries exactly once.
func (c *LndHubClient) doAuthorized(ctx context.Context, method, path string, payload any, expiry ...int) ([]byte, error) {
	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}

	if c.currentToken() == "" {
		if err := c.Authenticate(ctx); err != nil {
			return nil, err
		}
	}

	for attempt := 0; ; attempt++ {
		var reader io.Reader
		if raw != nil {
			reader = bytes.NewReader(raw)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+c.currentToken())
		req.Header.Set("Accept", "application/json")
		if raw != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		status, body, err := c.send(req)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errNoResponse, err)
		}

		if containsStatus(expiry, status) {
			if attempt > 0 {
				return nil, fmt.Errorf("%w: HTTP %d", ErrAuthRetryExhausted, status)
			}
			c.logger.Info("LNDHub token rejected, logging in again",
				zap.String("path", path),
				zap.Int("status", status),
			)
			c.clearToken()
			if err := c.Authenticate(ctx); err != nil {
				return nil, err
			}
			continue
		}
		if status >= 400 {
			return nil, fmt.Errorf("%w: HTTP %d", ErrGatewayRequestFailed, status)
		}
		return body, nil
	}
}

// send performs the request and reads the full body
func (c *LndHubClient) send(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	return resp.StatusCode, body, nil
}

func (c *LndHubClient) endpoint(path string) string {
	return strings.TrimRight(c.config.URL, "/") + path
}

func (c *LndHubClient) currentToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *LndHubClient) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func containsStatus(statuses []int, status int) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

var _ settlement.InvoiceGateway = (*LndHubClient)(nil)
