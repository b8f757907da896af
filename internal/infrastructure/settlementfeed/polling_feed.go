package settlementfeed

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
)

// DefaultPollInterval is how often the polling feed scans for open invoices
const DefaultPollInterval = 3 * time.Second

// PollingFeed stands in for a node during development. Each poll reports
// every unsettled bid and pending contribution as settled, numbering the
// events with increasing settle indexes that start after the subscriber's
// cursor.
type PollingFeed struct {
	bids      auction.BidRepository
	auctions  auction.AuctionRepository
	interval  time.Duration
	batchSize int
	floor     uint64
	logger    *zap.Logger
}

// PollingFeedOption configures a PollingFeed
type PollingFeedOption func(*PollingFeed)

// WithPollInterval sets the scan interval
func WithPollInterval(d time.Duration) PollingFeedOption {
	return func(f *PollingFeed) {
		if d > 0 {
			f.interval = d
		}
	}
}

// WithBatchSize caps the records read per scan
func WithBatchSize(n int) PollingFeedOption {
	return func(f *PollingFeed) {
		if n > 0 {
			f.batchSize = n
		}
	}
}

// WithStartingIndex numbers events after index when the subscriber's
// cursor is lower
func WithStartingIndex(index uint64) PollingFeedOption {
	return func(f *PollingFeed) {
		f.floor = index
	}
}

// WithFeedLogger sets the logger
func WithFeedLogger(logger *zap.Logger) PollingFeedOption {
	return func(f *PollingFeed) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewPollingFeed creates a new PollingFeed
func NewPollingFeed(bids auction.BidRepository, auctions auction.AuctionRepository, opts ...PollingFeedOption) *PollingFeed {
	f := &PollingFeed{
		bids:      bids,
		auctions:  auctions,
		interval:  DefaultPollInterval,
		batchSize: 100,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Subscribe starts polling. The first scan runs immediately.
func (f *PollingFeed) Subscribe(ctx context.Context, fromIndex uint64) (<-chan settlement.Event, <-chan error, error) {
	events := make(chan settlement.Event)
	errs := make(chan error, 1)

	go func() {
		defer close(events)
		defer close(errs)

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		index := max(fromIndex, f.floor)
		for {
			prs, err := f.scan(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				errs <- err
				return
			}
			for _, pr := range prs {
				index++
				ev := settlement.Event{
					SettleIndex:    index,
					PaymentRequest: pr,
					State:          settlement.InvoiceStateSettled,
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()

	f.logger.Info("Polling feed started",
		zap.Uint64("from_settle_index", fromIndex),
		zap.Duration("interval", f.interval),
	)
	return events, errs, nil
}

// scan returns the payment requests of open bids followed by open
// contributions
func (f *PollingFeed) scan(ctx context.Context) ([]string, error) {
	bids, err := f.bids.FindUnsettled(ctx, f.batchSize)
	if err != nil {
		return nil, err
	}
	auctions, err := f.auctions.FindPendingContributions(ctx, f.batchSize)
	if err != nil {
		return nil, err
	}

	prs := make([]string, 0, len(bids)+len(auctions))
	for _, b := range bids {
		if b.PaymentRequest != "" {
			prs = append(prs, b.PaymentRequest)
		}
	}
	for _, a := range auctions {
		if a.ContributionPaymentRequest != "" {
			prs = append(prs, a.ContributionPaymentRequest)
		}
	}
	if len(prs) > 0 {
		f.logger.Debug("Polling feed found open invoices", zap.Int("count", len(prs)))
	}
	return prs, nil
}

var _ settlement.Feed = (*PollingFeed)(nil)
