package auction

import (
	"context"

	"github.com/google/uuid"
)

// BidRepository reads and writes bids. Lookups that find nothing return
// shared.ErrNotFound.
type BidRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Bid, error)
	FindByPaymentRequest(ctx context.Context, paymentRequest string) (*Bid, error)
	// FindTop returns the highest bid including unsettled ones.
	FindTop(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
	// FindTopSettled returns the highest settled bid.
	FindTopSettled(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
	FindUnsettled(ctx context.Context, limit int) ([]Bid, error)
	Save(ctx context.Context, bid *Bid) error
}

// AuctionRepository reads and writes auctions
type AuctionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	FindByContributionPaymentRequest(ctx context.Context, paymentRequest string) (*Auction, error)
	// FindPendingContributions returns auctions with an invoiced contribution
	// that has not been settled.
	FindPendingContributions(ctx context.Context, limit int) ([]Auction, error)
	Save(ctx context.Context, auction *Auction) error
}
