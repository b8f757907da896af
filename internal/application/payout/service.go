// Package payout pays sellers the proceeds of settled auctions.
package payout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/domain/shared"
)

var (
	// ErrInvalidRequest is returned when a payout request fails validation
	ErrInvalidRequest = errors.New("payout: invalid request")
	// ErrNotSettled is returned before the contribution has been settled
	ErrNotSettled = errors.New("payout: contribution not settled")
	// ErrNoPayoutAddress is returned when the seller has no Lightning address
	ErrNoPayoutAddress = errors.New("payout: seller has no lightning address")
	// ErrNothingToPay is returned when the contribution consumes the whole bid
	ErrNothingToPay = errors.New("payout: nothing to pay")
	// ErrAlreadyPaid is returned when a payout for the auction was already attempted
	ErrAlreadyPaid = errors.New("payout: already paid")
)

// DefaultIdempotencyTTL bounds how long a payout claim is held
const DefaultIdempotencyTTL = 30 * 24 * time.Hour

var validate = validator.New(validator.WithRequiredStructEnabled())

// Request asks for the seller of an auction to be paid
type Request struct {
	AuctionID uuid.UUID `json:"auction_id" validate:"required"`
	Comment   string    `json:"comment" validate:"max=140"`
}

// Result describes a completed payout
type Result struct {
	AuctionID uuid.UUID           `json:"auction_id"`
	Address   string              `json:"address"`
	Amount    int64               `json:"amount"`
	Payment   *settlement.Payment `json:"payment"`
}

// Service pays the winning bid minus the contribution to the seller's
// Lightning address, at most once per auction within the idempotency TTL
type Service struct {
	auctions auction.AuctionRepository
	bids     auction.BidRepository
	gateway  settlement.InvoiceGateway
	store    shared.IdempotencyStore
	ttl      time.Duration
	logger   *zap.Logger
}

// NewService creates a new payout Service
func NewService(
	auctions auction.AuctionRepository,
	bids auction.BidRepository,
	gateway settlement.InvoiceGateway,
	store shared.IdempotencyStore,
	ttl time.Duration,
	logger *zap.Logger,
) *Service {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		auctions: auctions,
		bids:     bids,
		gateway:  gateway,
		store:    store,
		ttl:      ttl,
		logger:   logger,
	}
}

func idempotencyKey(auctionID uuid.UUID) string {
	return "payout:" + auctionID.String()
}

// PaySeller sends the seller's proceeds. A failed payment releases the claim
// so it can be retried.
func (s *Service) PaySeller(ctx context.Context, req Request) (*Result, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	a, err := s.auctions.FindByID(ctx, req.AuctionID)
	if err != nil {
		return nil, fmt.Errorf("find auction %s: %w", req.AuctionID, err)
	}
	if !a.IsContributionSettled() {
		return nil, ErrNotSettled
	}
	if a.WinningBidID == nil {
		return nil, auction.ErrNoWinner
	}
	if a.SellerLightningAddress == "" {
		return nil, ErrNoPayoutAddress
	}

	winner, err := s.bids.FindByID(ctx, *a.WinningBidID)
	if err != nil {
		return nil, fmt.Errorf("find winning bid %s: %w", *a.WinningBidID, err)
	}
	amount := winner.Amount - a.ContributionAmount
	if amount <= 0 {
		return nil, ErrNothingToPay
	}

	key := idempotencyKey(a.ID)
	claimed, err := s.store.MarkProcessed(ctx, key, s.ttl)
	if err != nil {
		return nil, fmt.Errorf("claim payout: %w", err)
	}
	if !claimed {
		return nil, ErrAlreadyPaid
	}

	comment := req.Comment
	if comment == "" {
		comment = fmt.Sprintf("Payout for auction %s", a.Title)
	}
	payment, err := s.gateway.PayInvoice(ctx, a.SellerLightningAddress, amount, comment)
	if err != nil {
		if errors.Is(err, settlement.ErrPaymentOutcomeUnknown) {
			s.logger.Error("Seller payout outcome unknown, keeping claim for manual reconciliation",
				zap.String("auction_id", a.ID.String()),
				zap.String("address", a.SellerLightningAddress),
				zap.Int64("amount", amount),
				zap.Error(err),
			)
			return nil, fmt.Errorf("pay seller: %w", err)
		}
		if uerr := s.store.Unmark(context.WithoutCancel(ctx), key); uerr != nil {
			s.logger.Error("Failed to release payout claim",
				zap.String("auction_id", a.ID.String()),
				zap.Error(uerr),
			)
		}
		s.logger.Warn("Seller payout failed",
			zap.String("auction_id", a.ID.String()),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
		return nil, fmt.Errorf("pay seller: %w", err)
	}

	s.logger.Info("Seller paid",
		zap.String("auction_id", a.ID.String()),
		zap.String("address", a.SellerLightningAddress),
		zap.Int64("amount", amount),
		zap.Int64("fee", payment.Fee),
	)
	return &Result{
		AuctionID: a.ID,
		Address:   a.SellerLightningAddress,
		Amount:    amount,
		Payment:   payment,
	}, nil
}
