package settlementfeed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/lightningnetwork/lnd/lnrpc"
	"github.com/lightningnetwork/lnd/macaroons"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/status"
	"gopkg.in/macaroon.v2"

	"github.com/plebmarket/backend/internal/domain/settlement"
)

// LndConfig holds the node connection settings
type LndConfig struct {
	Host         string
	TLSCertPath  string
	MacaroonPath string
}

// invoiceSubscriber is the slice of lnrpc.LightningClient the feed uses
type invoiceSubscriber interface {
	SubscribeInvoices(ctx context.Context, in *lnrpc.InvoiceSubscription, opts ...grpc.CallOption) (lnrpc.Lightning_SubscribeInvoicesClient, error)
}

// LndFeed streams invoice settlements from an lnd node
type LndFeed struct {
	client invoiceSubscriber
	conn   *grpc.ClientConn
	logger *zap.Logger
}

// NewLndFeed dials the node using its TLS certificate and a macaroon
func NewLndFeed(cfg LndConfig, logger *zap.Logger) (*LndFeed, error) {
	if cfg.Host == "" {
		return nil, errors.New("settlementfeed: lnd host is required")
	}
	creds, err := credentials.NewClientTLSFromFile(cfg.TLSCertPath, "")
	if err != nil {
		return nil, fmt.Errorf("settlementfeed: load TLS cert: %w", err)
	}

	macBytes, err := os.ReadFile(cfg.MacaroonPath)
	if err != nil {
		return nil, fmt.Errorf("settlementfeed: read macaroon: %w", err)
	}
	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(macBytes); err != nil {
		return nil, fmt.Errorf("settlementfeed: unmarshal macaroon: %w", err)
	}
	macCreds, err := macaroons.NewMacaroonCredential(mac)
	if err != nil {
		return nil, fmt.Errorf("settlementfeed: macaroon credential: %w", err)
	}

	conn, err := grpc.NewClient(cfg.Host,
		grpc.WithTransportCredentials(creds),
		grpc.WithPerRPCCredentials(macCreds),
	)
	if err != nil {
		return nil, fmt.Errorf("settlementfeed: dial lnd: %w", err)
	}

	feed := newLndFeed(lnrpc.NewLightningClient(conn), logger)
	feed.conn = conn
	return feed, nil
}

func newLndFeed(client invoiceSubscriber, logger *zap.Logger) *LndFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LndFeed{client: client, logger: logger}
}

// Subscribe opens an invoice subscription that replays every settlement
// after fromIndex and then follows live updates.
func (f *LndFeed) Subscribe(ctx context.Context, fromIndex uint64) (<-chan settlement.Event, <-chan error, error) {
	stream, err := f.client.SubscribeInvoices(ctx, &lnrpc.InvoiceSubscription{SettleIndex: fromIndex})
	if err != nil {
		return nil, nil, fmt.Errorf("settlementfeed: subscribe invoices: %w", err)
	}
	f.logger.Info("Subscribed to lnd invoices", zap.Uint64("from_settle_index", fromIndex))

	events := make(chan settlement.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		for {
			inv, err := stream.Recv()
			if err != nil {
				if ctx.Err() != nil || status.Code(err) == codes.Canceled {
					return
				}
				if errors.Is(err, io.EOF) {
					err = settlement.ErrFeedClosed
				}
				errs <- err
				return
			}

			select {
			case events <- eventFromInvoice(inv):
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, errs, nil
}

// Close releases the node connection
func (f *LndFeed) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Close()
}

func eventFromInvoice(inv *lnrpc.Invoice) settlement.Event {
	state := settlement.InvoiceStatePending
	switch inv.GetState() {
	case lnrpc.Invoice_SETTLED:
		state = settlement.InvoiceStateSettled
	case lnrpc.Invoice_CANCELED:
		state = settlement.InvoiceStateExpired
	}
	return settlement.Event{
		SettleIndex:    inv.GetSettleIndex(),
		PaymentRequest: inv.GetPaymentRequest(),
		State:          state,
	}
}

var _ settlement.Feed = (*LndFeed)(nil)
