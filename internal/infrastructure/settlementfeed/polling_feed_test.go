package settlementfeed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
)

func receive(t *testing.T, events <-chan settlement.Event) settlement.Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return settlement.Event{}
	}
}

func TestPollingFeed_Subscribe(t *testing.T) {
	t.Run("reports open bids then contributions with increasing indexes", func(t *testing.T) {
		bids := new(MockBidRepository)
		auctions := new(MockAuctionRepository)
		bids.On("FindUnsettled", mock.Anything, 100).Return([]auction.Bid{
			{PaymentRequest: "lnbc-bid-1"},
			{PaymentRequest: "lnbc-bid-2"},
		}, nil)
		auctions.On("FindPendingContributions", mock.Anything, 100).Return([]auction.Auction{
			{ContributionPaymentRequest: "lnbc-contrib"},
		}, nil)

		feed := NewPollingFeed(bids, auctions,
			WithPollInterval(time.Hour),
			WithFeedLogger(zaptest.NewLogger(t)),
		)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, _, err := feed.Subscribe(ctx, 7)
		require.NoError(t, err)

		first := receive(t, events)
		second := receive(t, events)
		third := receive(t, events)

		assert.Equal(t, settlement.Event{SettleIndex: 8, PaymentRequest: "lnbc-bid-1", State: settlement.InvoiceStateSettled}, first)
		assert.Equal(t, uint64(9), second.SettleIndex)
		assert.Equal(t, "lnbc-bid-2", second.PaymentRequest)
		assert.Equal(t, uint64(10), third.SettleIndex)
		assert.Equal(t, "lnbc-contrib", third.PaymentRequest)
	})

	t.Run("starting index raises a lower cursor", func(t *testing.T) {
		bids := new(MockBidRepository)
		auctions := new(MockAuctionRepository)
		bids.On("FindUnsettled", mock.Anything, 5).Return([]auction.Bid{{PaymentRequest: "lnbc-bid"}}, nil)
		auctions.On("FindPendingContributions", mock.Anything, 5).Return([]auction.Auction{}, nil)

		feed := NewPollingFeed(bids, auctions, WithPollInterval(time.Hour), WithBatchSize(5), WithStartingIndex(1000))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, _, err := feed.Subscribe(ctx, 3)
		require.NoError(t, err)
		assert.Equal(t, uint64(1001), receive(t, events).SettleIndex)
	})

	t.Run("repository failure ends the subscription with an error", func(t *testing.T) {
		bids := new(MockBidRepository)
		auctions := new(MockAuctionRepository)
		boom := errors.New("db down")
		bids.On("FindUnsettled", mock.Anything, 100).Return(nil, boom)

		feed := NewPollingFeed(bids, auctions, WithPollInterval(time.Hour))
		events, errs, err := feed.Subscribe(context.Background(), 0)
		require.NoError(t, err)

		select {
		case got := <-errs:
			assert.ErrorIs(t, got, boom)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for error")
		}
		_, open := <-events
		assert.False(t, open)
	})

	t.Run("cancel closes both channels", func(t *testing.T) {
		bids := new(MockBidRepository)
		auctions := new(MockAuctionRepository)
		bids.On("FindUnsettled", mock.Anything, 100).Return([]auction.Bid{}, nil)
		auctions.On("FindPendingContributions", mock.Anything, 100).Return([]auction.Auction{}, nil)

		feed := NewPollingFeed(bids, auctions, WithPollInterval(10*time.Millisecond))
		ctx, cancel := context.WithCancel(context.Background())
		events, errs, err := feed.Subscribe(ctx, 0)
		require.NoError(t, err)

		time.Sleep(30 * time.Millisecond)
		cancel()

		require.Eventually(t, func() bool {
			_, evOpen := <-events
			return !evOpen
		}, 2*time.Second, 10*time.Millisecond)
		_, errOpen := <-errs
		assert.False(t, errOpen)
	})
}
