package auction

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
)

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
	return args.Get(0).([]auction.Auction), args.Error(1)
}

func (m *MockAuctionRepository) Save(ctx context.Context, a *auction.Auction) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

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
	return args.Get(0).([]auction.Bid), args.Error(1)
}

func (m *MockBidRepository) Save(ctx context.Context, b *auction.Bid) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

type MockInvoiceGateway struct {
	mock.Mock
}

func (m *MockInvoiceGateway) CreateInvoice(ctx context.Context, orderID string, amountSats int64) (*settlement.Invoice, error) {
	args := m.Called(ctx, orderID, amountSats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Invoice), args.Error(1)
}

func (m *MockInvoiceGateway) ListIncomingInvoices(ctx context.Context) (map[string]settlement.Invoice, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]settlement.Invoice), args.Error(1)
}

func (m *MockInvoiceGateway) PayInvoice(ctx context.Context, address string, amountSats int64, comment string) (*settlement.Payment, error) {
	args := m.Called(ctx, address, amountSats, comment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*settlement.Payment), args.Error(1)
}
