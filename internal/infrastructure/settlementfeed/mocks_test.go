package settlementfeed

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/plebmarket/backend/internal/domain/auction"
)

// MockBidRepository is a mock implementation of auction.BidRepository
type MockBidRepository struct {
	mock.Mock
}

func (m *MockBidRepository) FindByID(ctx context.Context, id uuid.UUID) (*auction.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func (m *MockBidRepository) FindByPaymentRequest(ctx context.Context, pr string) (*auction.Bid, error) {
	args := m.Called(ctx, pr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func (m *MockBidRepository) FindTop(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func (m *MockBidRepository) FindTopSettled(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, error) {
	args := m.Called(ctx, auctionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Bid), args.Error(1)
}

func (m *MockBidRepository) FindUnsettled(ctx context.Context, limit int) ([]auction.Bid, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]auction.Bid), args.Error(1)
}

func (m *MockBidRepository) Save(ctx context.Context, bid *auction.Bid) error {
	args := m.Called(ctx, bid)
	return args.Error(0)
}

// MockAuctionRepository is a mock implementation of auction.AuctionRepository
type MockAuctionRepository struct {
	mock.Mock
}

func (m *MockAuctionRepository) FindByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Auction), args.Error(1)
}

func (m *MockAuctionRepository) FindByContributionPaymentRequest(ctx context.Context, pr string) (*auction.Auction, error) {
	args := m.Called(ctx, pr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auction.Auction), args.Error(1)
}

func (m *MockAuctionRepository) FindPendingContributions(ctx context.Context, limit int) ([]auction.Auction, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]auction.Auction), args.Error(1)
}

func (m *MockAuctionRepository) Save(ctx context.Context, a *auction.Auction) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}
