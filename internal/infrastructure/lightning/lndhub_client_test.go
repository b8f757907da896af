package lightning

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/plebmarket/backend/internal/domain/settlement"
)

type fakeResolver struct {
	pr      string
	err     error
	address string
	amount  int64
}

func (f *fakeResolver) Resolve(_ context.Context, address string, amountSats int64, _ string) (string, error) {
	f.address = address
	f.amount = amountSats
	return f.pr, f.err
}

type recordingObserver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *recordingObserver) RecordGatewayCall(_ context.Context, op string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[op]++
}

// hubServer issues tokens tok-1, tok-2, ... and accepts tokens numbered
// validFrom or later. A negative validFrom rejects every token.
type hubServer struct {
	t          *testing.T
	authCalls  atomic.Int32
	apiCalls   atomic.Int32
	authFail   atomic.Bool
	validFrom  int32
	handleAPI  func(w http.ResponseWriter, r *http.Request)
	lastBodies []map[string]any
	mu         sync.Mutex
}

func (h *hubServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Path == pathAuth {
		n := h.authCalls.Add(1)
		assert.NoError(h.t, r.ParseForm())
		assert.Equal(h.t, "hub-user", r.PostForm.Get("login"))
		assert.Equal(h.t, "hub-pass", r.PostForm.Get("password"))
		if h.authFail.Load() {
			_ = json.NewEncoder(w).Encode(map[string]any{"error": true, "code": 1, "message": "bad auth"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"access_token":  tokenFor(n),
			"refresh_token": "refresh",
		})
		return
	}

	h.apiCalls.Add(1)
	if r.Body != nil && r.Method == http.MethodPost {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		h.mu.Lock()
		h.lastBodies = append(h.lastBodies, body)
		h.mu.Unlock()
	}
	if !h.tokenAccepted(r.Header.Get("Authorization")) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":true,"code":1,"message":"bad auth"}`))
		return
	}
	h.handleAPI(w, r)
}

func (h *hubServer) tokenAccepted(header string) bool {
	if h.validFrom < 0 {
		return false
	}
	for i := h.validFrom; i <= h.authCalls.Load(); i++ {
		if header == "Bearer "+tokenFor(i) {
			return true
		}
	}
	return false
}

func (h *hubServer) bodies() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]map[string]any(nil), h.lastBodies...)
}

func tokenFor(n int32) string {
	return fmt.Sprintf("tok-%d", n)
}

func newHub(t *testing.T, validFrom int32, api func(w http.ResponseWriter, r *http.Request)) (*hubServer, *httptest.Server) {
	h := &hubServer{t: t, validFrom: validFrom, handleAPI: api}
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return h, srv
}

func newTestClient(t *testing.T, url string, resolver settlement.AddressResolver, opts ...Option) *LndHubClient {
	t.Helper()
	opts = append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)
	c, err := NewLndHubClient(&LndHubConfig{
		URL:      url,
		Login:    "hub-user",
		Password: "hub-pass",
	}, resolver, opts...)
	require.NoError(t, err)
	return c
}

func incomingList(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte(`[
		{"payment_request":"lnbc1a","payment_hash":"h1","amount":1000,"status":"settled","settled_at":"2026-01-01T00:00:00Z"},
		{"payment_request":"lnbc1b","payment_hash":"h2","amount":2000,"status":"open"}
	]`))
}

func TestLndHubConfig_Validate(t *testing.T) {
	t.Run("requires URL", func(t *testing.T) {
		err := (&LndHubConfig{Login: "a", Password: "b"}).Validate()
		assert.ErrorIs(t, err, ErrMissingURL)
	})

	t.Run("requires credentials", func(t *testing.T) {
		err := (&LndHubConfig{URL: "https://hub.example"}).Validate()
		assert.ErrorIs(t, err, ErrMissingCredentials)
	})

	t.Run("rejects malformed URL", func(t *testing.T) {
		err := (&LndHubConfig{URL: "not a url", Login: "a", Password: "b"}).Validate()
		assert.Error(t, err)
	})

	t.Run("applies defaults and clamps backoff", func(t *testing.T) {
		cfg := &LndHubConfig{URL: "https://hub.example", Login: "a", Password: "b", AuthBackoff: time.Second}
		require.NoError(t, cfg.Validate())
		assert.Equal(t, 30*time.Second, cfg.Timeout)
		assert.Equal(t, MinAuthBackoff, cfg.AuthBackoff)
	})
}

func TestLndHubClient_Authenticate(t *testing.T) {
	h, srv := newHub(t, 1, incomingList)
	c := newTestClient(t, srv.URL, nil)

	require.NoError(t, c.Authenticate(context.Background()))
	assert.Equal(t, int32(1), h.authCalls.Load())
	assert.Equal(t, "tok-1", c.currentToken())
}

func TestLndHubClient_ListIncomingInvoices(t *testing.T) {
	t.Run("logs in lazily and keys invoices by payment request", func(t *testing.T) {
		h, srv := newHub(t, 1, incomingList)
		c := newTestClient(t, srv.URL, nil)

		invoices, err := c.ListIncomingInvoices(context.Background())
		require.NoError(t, err)
		require.Len(t, invoices, 2)
		assert.Equal(t, settlement.InvoiceStateSettled, invoices["lnbc1a"].State)
		assert.NotNil(t, invoices["lnbc1a"].SettledAt)
		assert.Equal(t, settlement.InvoiceStatePending, invoices["lnbc1b"].State)
		assert.Equal(t, int64(2000), invoices["lnbc1b"].Amount)
		assert.Equal(t, int32(1), h.authCalls.Load())
	})

	t.Run("re-authenticates once after 401 and returns the retried result", func(t *testing.T) {
		// only the second token is accepted
		h, srv := newHub(t, 2, incomingList)
		c := newTestClient(t, srv.URL, nil)

		invoices, err := c.ListIncomingInvoices(context.Background())
		require.NoError(t, err)
		assert.Len(t, invoices, 2)
		assert.Equal(t, int32(2), h.authCalls.Load())
		assert.Equal(t, int32(2), h.apiCalls.Load())
	})

	t.Run("gives up after one re-authentication", func(t *testing.T) {
		h, srv := newHub(t, -1, incomingList)
		c := newTestClient(t, srv.URL, nil)

		_, err := c.ListIncomingInvoices(context.Background())
		require.ErrorIs(t, err, ErrAuthRetryExhausted)
		assert.Equal(t, int32(2), h.authCalls.Load())
		assert.Equal(t, int32(2), h.apiCalls.Load())
	})

	t.Run("rejects malformed body", func(t *testing.T) {
		_, srv := newHub(t, 1, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"not":"a list"}`))
		})
		c := newTestClient(t, srv.URL, nil)

		_, err := c.ListIncomingInvoices(context.Background())
		assert.ErrorIs(t, err, ErrGatewayInvalidResponse)
	})

	t.Run("server error is a request failure", func(t *testing.T) {
		_, srv := newHub(t, 1, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		c := newTestClient(t, srv.URL, nil)

		_, err := c.ListIncomingInvoices(context.Background())
		assert.ErrorIs(t, err, ErrGatewayRequestFailed)
	})
}

func TestLndHubClient_AuthBackoff(t *testing.T) {
	h, srv := newHub(t, 1, incomingList)
	h.authFail.Store(true)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := newTestClient(t, srv.URL, nil, WithClock(clock))
	ctx := context.Background()

	err := c.Authenticate(ctx)
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Equal(t, int32(1), h.authCalls.Load())

	// within the backoff window no login is attempted
	now = now.Add(30 * time.Second)
	_, err = c.ListIncomingInvoices(ctx)
	require.ErrorIs(t, err, ErrAuthBackoff)
	assert.Equal(t, int32(1), h.authCalls.Load())
	assert.Equal(t, int32(0), h.apiCalls.Load())

	// after the window a new login goes out
	h.authFail.Store(false)
	now = now.Add(31 * time.Second)
	invoices, err := c.ListIncomingInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, invoices, 2)
	assert.Equal(t, int32(2), h.authCalls.Load())
}

func TestLndHubClient_CreateInvoice(t *testing.T) {
	t.Run("posts amount and order description", func(t *testing.T) {
		h, srv := newHub(t, 1, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathInvoices, r.URL.Path)
			_, _ = w.Write([]byte(`{"payment_request":"lnbc10u1new","payment_hash":"abc","expires_at":"2026-01-01T00:10:00Z"}`))
		})
		obs := &recordingObserver{}
		c := newTestClient(t, srv.URL, nil, WithObserver(obs))

		inv, err := c.CreateInvoice(context.Background(), "42", 1000)
		require.NoError(t, err)
		assert.Equal(t, "lnbc10u1new", inv.PaymentRequest)
		assert.Equal(t, "abc", inv.PaymentHash)
		assert.Equal(t, int64(1000), inv.Amount)
		assert.Equal(t, "Payment for Order #42", inv.Description)
		assert.Equal(t, settlement.InvoiceStatePending, inv.State)
		require.NotNil(t, inv.ExpiresAt)

		bodies := h.bodies()
		require.Len(t, bodies, 1)
		assert.Equal(t, float64(1000), bodies[0]["amount"])
		assert.Equal(t, "Payment for Order #42", bodies[0]["description"])
		assert.Equal(t, 1, obs.calls[OpCreateInvoice])
		assert.Equal(t, 1, obs.calls[OpAuthenticate])
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, srv := newHub(t, 1, incomingList)
		c := newTestClient(t, srv.URL, nil)

		_, err := c.CreateInvoice(context.Background(), "1", 0)
		assert.ErrorIs(t, err, ErrMissingAmount)
	})

	t.Run("missing payment request is invalid", func(t *testing.T) {
		_, srv := newHub(t, 1, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{}`))
		})
		c := newTestClient(t, srv.URL, nil)

		_, err := c.CreateInvoice(context.Background(), "1", 10)
		assert.ErrorIs(t, err, ErrGatewayInvalidResponse)
	})
}

func TestLndHubClient_LoginTransportFailureDoesNotBackOff(t *testing.T) {
	h, _ := newHub(t, 1, incomingList)
	var dropLogin atomic.Bool
	dropLogin.Store(true)
	front := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == pathAuth && dropLogin.Load() {
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			_ = conn.Close()
			return
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(front.Close)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c := newTestClient(t, front.URL, nil, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	err := c.Authenticate(ctx)
	require.ErrorIs(t, err, ErrGatewayUnavailable)
	assert.NotErrorIs(t, err, ErrAuthBackoff)

	dropLogin.Store(false)
	invoices, err := c.ListIncomingInvoices(ctx)
	require.NoError(t, err)
	assert.Len(t, invoices, 2)
	assert.Equal(t, int32(1), h.authCalls.Load())
}

func TestLndHubClient_PayInvoice(t *testing.T) {
	t.Run("resolves address and pays the invoice", func(t *testing.T) {
		h, srv := newHub(t, 1, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, pathPayBolt11, r.URL.Path)
			_, _ = w.Write([]byte(`{"payment_hash":"ph","payment_preimage":"pre","fee":2}`))
		})
		resolver := &fakeResolver{pr: "lnbc-resolved"}
		c := newTestClient(t, srv.URL, resolver)

		p, err := c.PayInvoice(context.Background(), "seller@getalby.com", 5000, "Payout for auction #7")
		require.NoError(t, err)
		assert.Equal(t, "seller@getalby.com", resolver.address)
		assert.Equal(t, int64(5000), resolver.amount)
		assert.Equal(t, "ph", p.PaymentHash)
		assert.Equal(t, "pre", p.PaymentPreimage)
		assert.Equal(t, int64(2), p.Fee)
		assert.Equal(t, "lnbc-resolved", p.PaymentRequest)
		assert.Equal(t, int64(5000), p.Amount)

		bodies := h.bodies()
		require.Len(t, bodies, 1)
		assert.Equal(t, "lnbc-resolved", bodies[0]["invoice"])
		assert.Equal(t, float64(5000), bodies[0]["amount"])
	})

	t.Run("treats 400 as an expired token", func(t *testing.T) {
		var payCalls atomic.Int32
		h, srv := newHub(t, 1, func(w http.ResponseWriter, _ *http.Request) {
			if payCalls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = w.Write([]byte(`{"payment_hash":"ph"}`))
		})
		c := newTestClient(t, srv.URL, &fakeResolver{pr: "lnbc-resolved"})

		p, err := c.PayInvoice(context.Background(), "seller@getalby.com", 100, "")
		require.NoError(t, err)
		assert.Equal(t, "ph", p.PaymentHash)
		assert.Equal(t, int32(2), h.authCalls.Load())
		assert.Equal(t, int32(2), payCalls.Load())
	})

	t.Run("timeout after sending leaves the outcome unknown", func(t *testing.T) {
		var payCalls atomic.Int32
		_, srv := newHub(t, 1, func(w http.ResponseWriter, _ *http.Request) {
			payCalls.Add(1)
			time.Sleep(300 * time.Millisecond)
			_, _ = w.Write([]byte(`{"payment_hash":"ph"}`))
		})
		c := newTestClient(t, srv.URL, &fakeResolver{pr: "lnbc-resolved"},
			WithHTTPClient(&http.Client{Timeout: 100 * time.Millisecond}))

		_, err := c.PayInvoice(context.Background(), "seller@getalby.com", 100, "")
		require.ErrorIs(t, err, settlement.ErrPaymentOutcomeUnknown)
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.Equal(t, int32(1), payCalls.Load())
	})

	t.Run("malformed payment response leaves the outcome unknown", func(t *testing.T) {
		_, srv := newHub(t, 1, func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>ok</html>`))
		})
		c := newTestClient(t, srv.URL, &fakeResolver{pr: "lnbc-resolved"})

		_, err := c.PayInvoice(context.Background(), "seller@getalby.com", 100, "")
		require.ErrorIs(t, err, settlement.ErrPaymentOutcomeUnknown)
		assert.ErrorIs(t, err, ErrGatewayInvalidResponse)
	})

	t.Run("rejected payment is a definite failure", func(t *testing.T) {
		_, srv := newHub(t, 1, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		c := newTestClient(t, srv.URL, &fakeResolver{pr: "lnbc-resolved"})

		_, err := c.PayInvoice(context.Background(), "seller@getalby.com", 100, "")
		require.ErrorIs(t, err, ErrGatewayRequestFailed)
		assert.NotErrorIs(t, err, settlement.ErrPaymentOutcomeUnknown)
	})

	t.Run("login outage before payment is a definite failure", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		c := newTestClient(t, url, &fakeResolver{pr: "lnbc-resolved"})

		_, err := c.PayInvoice(context.Background(), "seller@getalby.com", 100, "")
		require.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.NotErrorIs(t, err, settlement.ErrPaymentOutcomeUnknown)
	})

	t.Run("resolution failure stops before payment", func(t *testing.T) {
		h, srv := newHub(t, 1, incomingList)
		c := newTestClient(t, srv.URL, &fakeResolver{err: ErrMissingAddress})

		_, err := c.PayInvoice(context.Background(), "", 100, "")
		assert.ErrorIs(t, err, ErrMissingAddress)
		assert.Equal(t, int32(0), h.apiCalls.Load())
		assert.Equal(t, int32(0), h.authCalls.Load())
	})
}

func TestLndHubClient_GatewayUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, nil)
	err := c.Authenticate(context.Background())
	assert.ErrorIs(t, err, ErrGatewayUnavailable)
}
