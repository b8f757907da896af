package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/domain/shared"
	"github.com/plebmarket/backend/internal/infrastructure/logger"
)

// ErrAlreadyRunning is returned by Start when the loop is active
var ErrAlreadyRunning = errors.New("settlement: reconciler already running")

// Metrics receives reconciler measurements
type Metrics interface {
	RecordEvent(ctx context.Context, outcome settlement.Outcome)
	RecordCursor(ctx context.Context, index uint64)
	RecordApplyDuration(ctx context.Context, d time.Duration)
	RecordReconnect(ctx context.Context)
}

type nopMetrics struct{}

func (nopMetrics) RecordEvent(context.Context, settlement.Outcome)    {}
func (nopMetrics) RecordCursor(context.Context, uint64)               {}
func (nopMetrics) RecordApplyDuration(context.Context, time.Duration) {}
func (nopMetrics) RecordReconnect(context.Context)                    {}

// ReconcilerConfig holds reconciler settings
type ReconcilerConfig struct {
	// ExtensionWindow is the minimum time left on an auction after a bid settles
	ExtensionWindow time.Duration
	// ReconnectDelay is the pause before resubscribing after a feed failure
	ReconnectDelay time.Duration
}

// DefaultReconcilerConfig returns default configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		ExtensionWindow: 5 * time.Minute,
		ReconnectDelay:  5 * time.Second,
	}
}

// Status is a snapshot of the reconciler for operators
type Status struct {
	Running         bool       `json:"running"`
	LastSettleIndex uint64     `json:"last_settle_index"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	LastEventAt     *time.Time `json:"last_event_at,omitempty"`
	EventsApplied   uint64     `json:"events_applied"`
	EventsSkipped   uint64     `json:"events_skipped"`
	EventsFailed    uint64     `json:"events_failed"`
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithClock sets the time source for settlement timestamps
func WithClock(clock shared.Clock) ReconcilerOption {
	return func(r *Reconciler) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) ReconcilerOption {
	return func(r *Reconciler) {
		if m != nil {
			r.metrics = m
		}
	}
}

// Reconciler consumes the settlement feed and applies each settled invoice to
// the bid or auction contribution that carries its payment request. Every
// mutation commits together with the cursor, so a restart resumes exactly
// after the last applied settlement.
//
// One goroutine processes events strictly in order.
type Reconciler struct {
	feed    settlement.Feed
	scope   TransactionScope
	cursor  settlement.CursorRepository
	config  ReconcilerConfig
	clock   shared.Clock
	metrics Metrics
	logger  *zap.Logger

	mu        sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	running   bool
	startedAt *time.Time

	lastIndex   atomic.Uint64
	lastEventAt atomic.Pointer[time.Time]
	applied     atomic.Uint64
	skipped     atomic.Uint64
	failed      atomic.Uint64
}

// NewReconciler creates a new Reconciler
func NewReconciler(
	feed settlement.Feed,
	scope TransactionScope,
	cursor settlement.CursorRepository,
	config ReconcilerConfig,
	logger *zap.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.ExtensionWindow <= 0 {
		config.ExtensionWindow = DefaultReconcilerConfig().ExtensionWindow
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = DefaultReconcilerConfig().ReconnectDelay
	}
	r := &Reconciler{
		feed:    feed,
		scope:   scope,
		cursor:  cursor,
		config:  config,
		clock:   shared.SystemClock,
		metrics: nopMetrics{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start reads the persisted cursor and launches the loop. The loop outlives
// ctx; use Stop to end it. Failing to read the cursor is the only fatal
// error.
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return ErrAlreadyRunning
	}

	index, err := r.cursor.Get(ctx)
	if err != nil {
		return fmt.Errorf("settlement: read cursor: %w", err)
	}
	r.lastIndex.Store(index)
	r.metrics.RecordCursor(ctx, index)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	now := r.clock.Now()

	r.cancel = cancel
	r.done = done
	r.running = true
	r.startedAt = &now

	go r.run(loopCtx, done)

	r.logger.Info("settlement reconciler started",
		zap.Uint64("last_settle_index", index),
		zap.Duration("extension_window", r.config.ExtensionWindow),
	)
	return nil
}

// Stop signals the loop and waits for it to exit or for ctx to expire.
// An in-flight transaction is allowed to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	cancel, done := r.cancel, r.done
	r.mu.Unlock()

	cancel()

	select {
	case <-done:
		r.logger.Info("settlement reconciler stopped",
			zap.Uint64("last_settle_index", r.lastIndex.Load()),
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRunning reports whether the loop is active
func (r *Reconciler) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastSettleIndex returns the highest settle index applied so far
func (r *Reconciler) LastSettleIndex() uint64 {
	return r.lastIndex.Load()
}

// Status returns a snapshot for operators
func (r *Reconciler) Status() Status {
	r.mu.Lock()
	running, startedAt := r.running, r.startedAt
	r.mu.Unlock()

	return Status{
		Running:         running,
		LastSettleIndex: r.lastIndex.Load(),
		StartedAt:       startedAt,
		LastEventAt:     r.lastEventAt.Load(),
		EventsApplied:   r.applied.Load(),
		EventsSkipped:   r.skipped.Load(),
		EventsFailed:    r.failed.Load(),
	}
}

func (r *Reconciler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	for {
		err := r.consume(ctx)
		if ctx.Err() != nil {
			return
		}

		r.metrics.RecordReconnect(ctx)
		r.logger.Warn("settlement subscription ended, resubscribing",
			zap.Error(err),
			zap.Uint64("last_settle_index", r.lastIndex.Load()),
			zap.Duration("delay", r.config.ReconnectDelay),
		)

		timer := time.NewTimer(r.config.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// consume subscribes from the in-memory cursor and applies events until the
// feed fails, an event cannot be applied, or ctx is cancelled. A failed event
// ends the subscription so the next one replays it before anything after it
// can move the cursor.
func (r *Reconciler) consume(ctx context.Context) error {
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, errs, err := r.feed.Subscribe(subCtx, r.lastIndex.Load())
	if err != nil {
		return err
	}

	for {
		// stop between events, never mid-transaction
		if ctx.Err() != nil {
			return ctx.Err()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				if errs != nil {
					if err, ok := <-errs; ok && err != nil {
						return err
					}
				}
				return settlement.ErrFeedClosed
			}
			if _, err := r.Apply(context.WithoutCancel(ctx), ev); err != nil {
				return fmt.Errorf("apply settle index %d: %w", ev.SettleIndex, err)
			}
		}
	}
}

// Apply processes one feed event. It is safe to call with replayed events:
// anything at or below the cursor, or already settled, changes nothing.
func (r *Reconciler) Apply(ctx context.Context, ev settlement.Event) (settlement.Result, error) {
	res := settlement.Result{Event: ev}
	now := r.clock.Now()
	r.lastEventAt.Store(&now)

	if ev.State != settlement.InvoiceStateSettled || ev.SettleIndex <= r.lastIndex.Load() {
		res.Outcome = settlement.OutcomeDuplicate
		r.record(ctx, res)
		return res, nil
	}

	ctx, log := logger.WithSettlement(ctx, r.logger, ev.SettleIndex, ev.PaymentRequest)
	if ev.PaymentRequest == "" {
		res.Outcome = settlement.OutcomeUnmatched
		log.Warn("settled invoice has no payment request")
		r.record(ctx, res)
		return res, nil
	}

	var matched bool
	start := time.Now()
	err := r.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		res.BidSettled, res.EndDateExtended, res.ContributionSettled = false, false, false

		bidMatched, err := r.settleBid(ctx, repos, ev, now, &res)
		if err != nil {
			return err
		}
		contributionMatched, err := r.settleContribution(ctx, repos, ev, now, &res)
		if err != nil {
			return err
		}
		matched = bidMatched || contributionMatched

		if !res.BidSettled && !res.ContributionSettled {
			return nil
		}
		return repos.Cursor().Advance(ctx, ev.SettleIndex)
	})
	r.metrics.RecordApplyDuration(ctx, time.Since(start))

	if err != nil {
		res.BidSettled, res.EndDateExtended, res.ContributionSettled = false, false, false
		res.Outcome = settlement.OutcomeFailed
		log.Error("failed to apply settlement, rolled back",
			zap.Uint64("last_settle_index", r.lastIndex.Load()),
			zap.Error(err),
		)
		r.record(ctx, res)
		return res, err
	}

	switch {
	case res.BidSettled || res.ContributionSettled:
		res.Outcome = settlement.OutcomeApplied
		res.CursorAdvancedTo = ev.SettleIndex
		r.lastIndex.Store(ev.SettleIndex)
		r.metrics.RecordCursor(ctx, ev.SettleIndex)
	case matched:
		res.Outcome = settlement.OutcomeAlreadySettled
		log.Debug("settlement already applied")
	default:
		res.Outcome = settlement.OutcomeUnmatched
		log.Info("settled invoice matches no bid or contribution")
	}
	r.record(ctx, res)
	return res, nil
}

// settleBid marks the bid paid and applies the last-minute extension to its
// auction. It reports whether a bid carries the payment request.
func (r *Reconciler) settleBid(ctx context.Context, repos TransactionalRepositories, ev settlement.Event, now time.Time, res *settlement.Result) (bool, error) {
	bid, err := repos.Bids().FindByPaymentRequest(ctx, ev.PaymentRequest)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find bid: %w", err)
	}
	if bid.IsSettled() {
		return true, nil
	}

	a, err := repos.Auctions().FindByID(ctx, bid.AuctionID)
	if err != nil {
		return true, fmt.Errorf("find auction %s for bid %s: %w", bid.AuctionID, bid.ID, err)
	}
	if err := bid.MarkSettled(now); err != nil {
		return true, err
	}
	if err := repos.Bids().Save(ctx, bid); err != nil {
		return true, fmt.Errorf("save bid: %w", err)
	}

	extended := a.ExtendEndDate(now, r.config.ExtensionWindow)
	if extended {
		if err := repos.Auctions().Save(ctx, a); err != nil {
			return true, fmt.Errorf("save auction: %w", err)
		}
	}

	res.BidSettled = true
	res.EndDateExtended = extended
	logger.L(ctx).Info("settled bid",
		zap.String("bid_id", bid.ID.String()),
		zap.String("auction_id", a.ID.String()),
		zap.Int64("amount", bid.Amount),
		zap.Bool("end_date_extended", extended),
	)
	return true, nil
}

// settleContribution marks the contribution paid and fixes the winner to the
// top settled bid. It reports whether an auction carries the payment request.
func (r *Reconciler) settleContribution(ctx context.Context, repos TransactionalRepositories, ev settlement.Event, now time.Time, res *settlement.Result) (bool, error) {
	a, err := repos.Auctions().FindByContributionPaymentRequest(ctx, ev.PaymentRequest)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find contribution: %w", err)
	}
	if a.IsContributionSettled() {
		return true, nil
	}

	top, err := repos.Bids().FindTopSettled(ctx, a.ID)
	if errors.Is(err, shared.ErrNotFound) {
		top = nil
	} else if err != nil {
		return true, fmt.Errorf("find top bid: %w", err)
	}

	if err := a.SettleContribution(now, top); err != nil {
		if errors.Is(err, auction.ErrAlreadySettled) {
			return true, nil
		}
		return true, err
	}
	if err := repos.Auctions().Save(ctx, a); err != nil {
		return true, fmt.Errorf("save auction: %w", err)
	}

	res.ContributionSettled = true
	fields := []zap.Field{
		zap.String("auction_id", a.ID.String()),
		zap.Int64("contribution_amount", a.ContributionAmount),
	}
	if a.WinningBidID != nil {
		fields = append(fields, zap.String("winning_bid_id", a.WinningBidID.String()))
	}
	logger.L(ctx).Info("settled contribution", fields...)
	return true, nil
}

func (r *Reconciler) record(ctx context.Context, res settlement.Result) {
	switch res.Outcome {
	case settlement.OutcomeApplied:
		r.applied.Add(1)
	case settlement.OutcomeFailed:
		r.failed.Add(1)
	default:
		r.skipped.Add(1)
	}
	r.metrics.RecordEvent(ctx, res.Outcome)
}
