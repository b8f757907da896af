package auction

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/domain/shared"
)

// PlaceBidInput is a buyer's offer on an auction
type PlaceBidInput struct {
	AuctionID uuid.UUID `json:"auction_id" validate:"required"`
	BuyerID   uuid.UUID `json:"buyer_id" validate:"required"`
	Amount    int64     `json:"amount" validate:"gt=0"`
}

// PlaceBidResult carries the invoice the buyer must pay for the bid to count
type PlaceBidResult struct {
	Bid            *auction.Bid `json:"bid"`
	PaymentRequest string       `json:"payment_request"`
}

// BidService accepts bids. A bid is stored unsettled together with the
// payment request of its invoice; the reconciler settles it once paid.
type BidService struct {
	auctions      auction.AuctionRepository
	bids          auction.BidRepository
	gateway       settlement.InvoiceGateway
	invoiceAmount int64
	clock         shared.Clock
	logger        *zap.Logger
}

// BidServiceConfig holds the dependencies of BidService
type BidServiceConfig struct {
	Auctions auction.AuctionRepository
	Bids     auction.BidRepository
	Gateway  settlement.InvoiceGateway
	// InvoiceAmount is the fixed amount in sats charged to place a bid
	InvoiceAmount int64
	Clock         shared.Clock
	Logger        *zap.Logger
}

// NewBidService creates a new BidService
func NewBidService(cfg BidServiceConfig) *BidService {
	s := &BidService{
		auctions:      cfg.Auctions,
		bids:          cfg.Bids,
		gateway:       cfg.Gateway,
		invoiceAmount: cfg.InvoiceAmount,
		clock:         cfg.Clock,
		logger:        cfg.Logger,
	}
	if s.clock == nil {
		s.clock = shared.SystemClock
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.invoiceAmount <= 0 {
		s.invoiceAmount = DefaultBidInvoiceAmount
	}
	return s
}

// DefaultBidInvoiceAmount is the bid invoice amount in sats when none is configured
const DefaultBidInvoiceAmount = 1

// PlaceBid validates the offer against the running auction and issues the bid
// invoice. The amount must exceed both the starting bid and the current top
// bid, unsettled bids included.
func (s *BidService) PlaceBid(ctx context.Context, in PlaceBidInput) (*PlaceBidResult, error) {
	if err := validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	a, err := s.auctions.FindByID(ctx, in.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("find auction %s: %w", in.AuctionID, err)
	}
	if !a.IsRunning(s.clock.Now()) {
		return nil, auction.ErrNotRunning
	}

	top, err := s.bids.FindTop(ctx, a.ID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, fmt.Errorf("find top bid: %w", err)
	}
	if in.Amount <= a.MinimumNextBid(top) {
		return nil, fmt.Errorf("%w: must exceed %d", auction.ErrBidTooLow, a.MinimumNextBid(top))
	}

	inv, err := s.gateway.CreateInvoice(ctx, a.ID.String(), s.invoiceAmount)
	if err != nil {
		return nil, fmt.Errorf("create bid invoice: %w", err)
	}

	bid, err := auction.NewBid(a.ID, in.BuyerID, in.Amount, inv.PaymentRequest)
	if err != nil {
		return nil, err
	}
	if err := s.bids.Save(ctx, bid); err != nil {
		return nil, fmt.Errorf("save bid: %w", err)
	}

	s.logger.Info("Bid placed",
		zap.String("auction_id", a.ID.String()),
		zap.String("bid_id", bid.ID.String()),
		zap.Int64("amount", bid.Amount),
	)
	return &PlaceBidResult{Bid: bid, PaymentRequest: inv.PaymentRequest}, nil
}
