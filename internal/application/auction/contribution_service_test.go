package auction

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/domain/shared"
)

func endedAuction(t *testing.T, percent decimal.Decimal) *auction.Auction {
	t.Helper()
	a, err := auction.NewAuction(uuid.New(), "Rare stamp", 100, 24, percent)
	require.NoError(t, err)
	require.NoError(t, a.Start(now.Add(-25*time.Hour)))
	return a
}

func settledBidOn(t *testing.T, a *auction.Auction, amount int64) *auction.Bid {
	t.Helper()
	b := bidOn(t, a, amount)
	require.NoError(t, b.MarkSettled(now.Add(-2*time.Hour)))
	return b
}

func newContributionService(t *testing.T, auctions *MockAuctionRepository, bids *MockBidRepository, gw *MockInvoiceGateway, defaultPercent decimal.Decimal) *ContributionService {
	return NewContributionService(ContributionServiceConfig{
		Auctions:       auctions,
		Bids:           bids,
		Gateway:        gw,
		Minimum:        21,
		DefaultPercent: defaultPercent,
		Clock:          shared.ClockFunc(func() time.Time { return now }),
		Logger:         zaptest.NewLogger(t),
	})
}

func TestContributionService_RequestContribution(t *testing.T) {
	ctx := context.Background()

	t.Run("invoices percent of the top settled bid", func(t *testing.T) {
		auctions, bids, gw := new(MockAuctionRepository), new(MockBidRepository), new(MockInvoiceGateway)
		svc := newContributionService(t, auctions, bids, gw, decimal.Zero)
		a := endedAuction(t, decimal.NewFromInt(5))
		top := settledBidOn(t, a, 10_050)

		auctions.On("FindByID", ctx, a.ID).Return(a, nil)
		bids.On("FindTopSettled", ctx, a.ID).Return(top, nil)
		gw.On("CreateInvoice", ctx, a.ID.String(), int64(502)).
			Return(&settlement.Invoice{PaymentRequest: "lnbc-contribution"}, nil)
		auctions.On("Save", ctx, mock.MatchedBy(func(s *auction.Auction) bool {
			return s.ContributionAmount == 502 && s.ContributionPaymentRequest == "lnbc-contribution" &&
				s.ContributionRequestedAt != nil && s.ContributionSettledAt == nil && s.WinningBidID == nil
		})).Return(nil)

		res, err := svc.RequestContribution(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(502), res.Amount)
		assert.Equal(t, "lnbc-contribution", res.PaymentRequest)
		assert.False(t, res.Waived)
		assert.False(t, res.Settled)
		auctions.AssertExpectations(t)
	})

	t.Run("waives small contributions and picks the winner", func(t *testing.T) {
		auctions, bids, gw := new(MockAuctionRepository), new(MockBidRepository), new(MockInvoiceGateway)
		svc := newContributionService(t, auctions, bids, gw, decimal.Zero)
		a := endedAuction(t, decimal.NewFromInt(5))
		top := settledBidOn(t, a, 400) // 5% = 20 sats

		auctions.On("FindByID", ctx, a.ID).Return(a, nil)
		bids.On("FindTopSettled", ctx, a.ID).Return(top, nil)
		auctions.On("Save", ctx, a).Return(nil)

		res, err := svc.RequestContribution(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, res.Waived)
		assert.True(t, res.Settled)
		assert.Zero(t, res.Amount)
		require.NotNil(t, res.WinningBidID)
		assert.Equal(t, top.ID, *res.WinningBidID)
		assert.Equal(t, now, *a.ContributionSettledAt)
		gw.AssertNotCalled(t, "CreateInvoice", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("default percent fills in for auctions without one", func(t *testing.T) {
		auctions, bids, gw := new(MockAuctionRepository), new(MockBidRepository), new(MockInvoiceGateway)
		svc := newContributionService(t, auctions, bids, gw, decimal.NewFromFloat(2.5))
		a := endedAuction(t, decimal.Zero)
		top := settledBidOn(t, a, 2000)

		auctions.On("FindByID", ctx, a.ID).Return(a, nil)
		bids.On("FindTopSettled", ctx, a.ID).Return(top, nil)
		gw.On("CreateInvoice", ctx, a.ID.String(), int64(50)).
			Return(&settlement.Invoice{PaymentRequest: "lnbc-50"}, nil)
		auctions.On("Save", ctx, a).Return(nil)

		res, err := svc.RequestContribution(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(50), res.Amount)
	})

	t.Run("repeat calls return the stored request", func(t *testing.T) {
		auctions, bids, gw := new(MockAuctionRepository), new(MockBidRepository), new(MockInvoiceGateway)
		svc := newContributionService(t, auctions, bids, gw, decimal.Zero)
		a := endedAuction(t, decimal.NewFromInt(5))
		require.NoError(t, a.RequestContribution(75, "lnbc-existing", now.Add(-time.Minute)))

		auctions.On("FindByID", ctx, a.ID).Return(a, nil)

		res, err := svc.RequestContribution(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "lnbc-existing", res.PaymentRequest)
		bids.AssertNotCalled(t, "FindTopSettled", mock.Anything, mock.Anything)
		auctions.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("running auction has no contribution yet", func(t *testing.T) {
		auctions, bids, gw := new(MockAuctionRepository), new(MockBidRepository), new(MockInvoiceGateway)
		svc := newContributionService(t, auctions, bids, gw, decimal.Zero)
		a := runningAuction(t, 100)
		auctions.On("FindByID", ctx, a.ID).Return(a, nil)

		_, err := svc.RequestContribution(ctx, a.ID)
		assert.ErrorIs(t, err, auction.ErrNotEnded)
	})

	t.Run("no settled bid means no winner", func(t *testing.T) {
		auctions, bids, gw := new(MockAuctionRepository), new(MockBidRepository), new(MockInvoiceGateway)
		svc := newContributionService(t, auctions, bids, gw, decimal.Zero)
		a := endedAuction(t, decimal.NewFromInt(5))
		auctions.On("FindByID", ctx, a.ID).Return(a, nil)
		bids.On("FindTopSettled", ctx, a.ID).Return(nil, shared.ErrNotFound)

		_, err := svc.RequestContribution(ctx, a.ID)
		assert.ErrorIs(t, err, auction.ErrNoWinner)
	})
}
