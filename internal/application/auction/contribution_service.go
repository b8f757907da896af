package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/domain/shared"
)

// ErrInvalidInput is returned when a request fails validation
var ErrInvalidInput = errors.New("auction: invalid input")

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultMinimumContribution is the smallest contribution worth invoicing, in sats
const DefaultMinimumContribution = 21

// ContributionResult describes the contribution owed on an ended auction
type ContributionResult struct {
	AuctionID      uuid.UUID  `json:"auction_id"`
	Amount         int64      `json:"amount"`
	PaymentRequest string     `json:"payment_request,omitempty"`
	Waived         bool       `json:"waived"`
	Settled        bool       `json:"settled"`
	WinningBidID   *uuid.UUID `json:"winning_bid_id,omitempty"`
}

// ContributionService asks the seller of an ended auction for the marketplace
// contribution on the top settled bid
type ContributionService struct {
	auctions       auction.AuctionRepository
	bids           auction.BidRepository
	gateway        settlement.InvoiceGateway
	minimum        int64
	defaultPercent decimal.Decimal
	clock          shared.Clock
	logger         *zap.Logger
}

// ContributionServiceConfig holds the dependencies of ContributionService
type ContributionServiceConfig struct {
	Auctions auction.AuctionRepository
	Bids     auction.BidRepository
	Gateway  settlement.InvoiceGateway
	// Minimum is the amount below which the contribution is waived
	Minimum int64
	// DefaultPercent applies to auctions stored without a contribution percent
	DefaultPercent decimal.Decimal
	Clock          shared.Clock
	Logger         *zap.Logger
}

// NewContributionService creates a new ContributionService
func NewContributionService(cfg ContributionServiceConfig) *ContributionService {
	s := &ContributionService{
		auctions:       cfg.Auctions,
		bids:           cfg.Bids,
		gateway:        cfg.Gateway,
		minimum:        cfg.Minimum,
		defaultPercent: cfg.DefaultPercent,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
	}
	if s.minimum <= 0 {
		s.minimum = DefaultMinimumContribution
	}
	if s.clock == nil {
		s.clock = shared.SystemClock
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// RequestContribution computes the contribution owed on the top settled bid.
// Amounts below the minimum are waived and the winner is fixed immediately;
// otherwise an invoice is issued and the reconciler settles it when paid.
// Calling it again after a request returns the stored state.
func (s *ContributionService) RequestContribution(ctx context.Context, auctionID uuid.UUID) (*ContributionResult, error) {
	a, err := s.auctions.FindByID(ctx, auctionID)
	if err != nil {
		return nil, fmt.Errorf("find auction %s: %w", auctionID, err)
	}
	now := s.clock.Now()
	if !a.Ended(now) {
		return nil, auction.ErrNotEnded
	}
	if a.HasContributionRequest() || a.WinningBidID != nil {
		return resultFor(a), nil
	}

	top, err := s.bids.FindTopSettled(ctx, a.ID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, auction.ErrNoWinner
	}
	if err != nil {
		return nil, fmt.Errorf("find top bid: %w", err)
	}

	if a.ContributionPercent.IsZero() && s.defaultPercent.IsPositive() {
		a.ContributionPercent = s.defaultPercent
	}
	amount := a.ContributionFor(top.Amount, s.minimum)

	if amount == 0 {
		if err := a.WaiveContribution(now, top); err != nil {
			return nil, err
		}
		if err := s.auctions.Save(ctx, a); err != nil {
			return nil, fmt.Errorf("save auction: %w", err)
		}
		s.logger.Info("Contribution waived, winner picked",
			zap.String("auction_id", a.ID.String()),
			zap.String("winning_bid_id", top.ID.String()),
			zap.Int64("top_bid", top.Amount),
		)
		return resultFor(a), nil
	}

	inv, err := s.gateway.CreateInvoice(ctx, a.ID.String(), amount)
	if err != nil {
		return nil, fmt.Errorf("create contribution invoice: %w", err)
	}
	if err := a.RequestContribution(amount, inv.PaymentRequest, now); err != nil {
		return nil, err
	}
	if err := s.auctions.Save(ctx, a); err != nil {
		return nil, fmt.Errorf("save auction: %w", err)
	}

	s.logger.Info("Contribution requested",
		zap.String("auction_id", a.ID.String()),
		zap.Int64("amount", amount),
	)
	return resultFor(a), nil
}

func resultFor(a *auction.Auction) *ContributionResult {
	return &ContributionResult{
		AuctionID:      a.ID,
		Amount:         a.ContributionAmount,
		PaymentRequest: a.ContributionPaymentRequest,
		Waived:         a.HasContributionRequest() && a.ContributionPaymentRequest == "",
		Settled:        a.IsContributionSettled(),
		WinningBidID:   a.WinningBidID,
	}
}
