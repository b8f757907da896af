package lightning

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/domain/settlement"
)

// DefaultProxyURL is the public Lightning address proxy
const DefaultProxyURL = "https://lnaddressproxy.getalby.com"

// AddressResolver turns a Lightning address into a bolt11 invoice through an
// address proxy. Transport failures trip a circuit breaker; a proxy that
// answers with an error does not.
type AddressResolver struct {
	config     *ResolverConfig
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *zap.Logger
	observer   CallObserver
}

// NewAddressResolver creates a new resolver
func NewAddressResolver(config *ResolverConfig, opts ...Option) (*AddressResolver, error) {
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

	r := &AddressResolver{
		config:     config,
		httpClient: httpClient,
		logger:     o.logger,
		observer:   o.observer,
	}

	failures := config.BreakerFailures
	r.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "lightning-address-proxy",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrResolutionFailed)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn("Circuit breaker state transition",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return r, nil
}

type proxyInvoice struct {
	PR string `json:"pr"`
}

// Resolve asks the proxy for an invoice of amountSats paying address
func (r *AddressResolver) Resolve(ctx context.Context, address string, amountSats int64, comment string) (pr string, err error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrMissingAddress
	}
	if amountSats <= 0 {
		return "", ErrMissingAmount
	}

	start := time.Now()
	defer func() { r.observer.RecordGatewayCall(ctx, OpResolve, time.Since(start), err) }()

	q := url.Values{}
	q.Set("ln", address)
	q.Set("amount", strconv.FormatInt(amountSats*1000, 10))
	if comment != "" {
		q.Set("comment", comment)
	}
	target := strings.TrimRight(r.config.ProxyURL, "/") + "/generate-invoice?" + q.Encode()

	pr, err = r.breaker.Execute(func() (string, error) {
		return r.fetch(ctx, target)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrResolverUnavailable, err)
		}
		r.logger.Warn("Lightning address resolution failed",
			zap.String("address", address),
			zap.Int64("amount_sats", amountSats),
			zap.Error(err),
		)
		return "", err
	}
	return pr, nil
}

func (r *AddressResolver) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&fields); err != nil {
		if resp.StatusCode >= 500 {
			return "", fmt.Errorf("%w: HTTP %d", ErrGatewayUnavailable, resp.StatusCode)
		}
		return "", fmt.Errorf("%w: undecodable response: %v", ErrResolutionFailed, err)
	}
	if msg, ok := fields["error"]; ok {
		return "", fmt.Errorf("%w: %s", ErrResolutionFailed, string(msg))
	}
	if resp.StatusCode >= 500 {
		return "", fmt.Errorf("%w: HTTP %d", ErrGatewayUnavailable, resp.StatusCode)
	}

	var inv proxyInvoice
	if raw, ok := fields["invoice"]; ok {
		if err := json.Unmarshal(raw, &inv); err != nil {
			return "", fmt.Errorf("%w: malformed proxy response: %v", ErrResolutionFailed, err)
		}
	}
	if inv.PR == "" {
		return "", fmt.Errorf("%w: response has no invoice", ErrResolutionFailed)
	}
	return inv.PR, nil
}

// State reports the breaker state
func (r *AddressResolver) State() gobreaker.State {
	return r.breaker.State()
}

var _ settlement.AddressResolver = (*AddressResolver)(nil)
