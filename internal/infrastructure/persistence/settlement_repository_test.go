package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appsettlement "github.com/plebmarket/backend/internal/application/settlement"
	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"github.com/plebmarket/backend/internal/domain/shared"
	"github.com/plebmarket/backend/tests/testutil"
)

var now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newStartedAuction(t *testing.T) *auction.Auction {
	t.Helper()
	a, err := auction.NewAuction(uuid.New(), "Vintage miner", 1000, 24, decimal.NewFromFloat(2.5))
	require.NoError(t, err)
	require.NoError(t, a.Start(now.Add(-time.Hour)))
	return a
}

func newBid(t *testing.T, a *auction.Auction, amount int64, pr string, createdAt time.Time) *auction.Bid {
	t.Helper()
	b, err := auction.NewBid(a.ID, uuid.New(), amount, pr)
	require.NoError(t, err)
	b.CreatedAt = createdAt
	b.UpdatedAt = createdAt
	return b
}

func TestGormBidRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	auctions := NewGormAuctionRepository(db)
	bids := NewGormBidRepository(db)

	a := newStartedAuction(t)
	require.NoError(t, auctions.Save(ctx, a))

	early := newBid(t, a, 3000, "lnbc-early", now.Add(-50*time.Minute))
	late := newBid(t, a, 3000, "lnbc-late", now.Add(-40*time.Minute))
	highest := newBid(t, a, 5000, "lnbc-highest", now.Add(-30*time.Minute))
	for _, b := range []*auction.Bid{early, late, highest} {
		require.NoError(t, bids.Save(ctx, b))
	}

	t.Run("find by payment request", func(t *testing.T) {
		got, err := bids.FindByPaymentRequest(ctx, "lnbc-late")
		require.NoError(t, err)
		assert.Equal(t, late.ID, got.ID)
		assert.Equal(t, int64(3000), got.Amount)
		assert.Nil(t, got.SettledAt)

		_, err = bids.FindByPaymentRequest(ctx, "abc")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("payment request is unique", func(t *testing.T) {
		dup := newBid(t, a, 10, "lnbc-early", now)
		assert.Error(t, bids.Save(ctx, dup))
	})

	t.Run("top ignores settlement, top settled does not", func(t *testing.T) {
		top, err := bids.FindTop(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, highest.ID, top.ID)

		_, err = bids.FindTopSettled(ctx, a.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)

		require.NoError(t, late.MarkSettled(now))
		require.NoError(t, bids.Save(ctx, late))
		require.NoError(t, early.MarkSettled(now))
		require.NoError(t, bids.Save(ctx, early))

		// equal amounts go to the earlier bid
		top, err = bids.FindTopSettled(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, early.ID, top.ID)
	})

	t.Run("unsettled oldest first", func(t *testing.T) {
		unsettled, err := bids.FindUnsettled(ctx, 10)
		require.NoError(t, err)
		require.Len(t, unsettled, 1)
		assert.Equal(t, highest.ID, unsettled[0].ID)
	})
}

func TestGormAuctionRepository(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewSQLiteDB(t)
	repo := NewGormAuctionRepository(db)

	plain := newStartedAuction(t)
	invoiced := newStartedAuction(t)
	paid := newStartedAuction(t)
	require.NoError(t, invoiced.RequestContribution(25, "lnbc-contribution-1", now.Add(-2*time.Minute)))
	require.NoError(t, paid.RequestContribution(25, "lnbc-contribution-2", now.Add(-time.Minute)))
	require.NoError(t, paid.SettleContribution(now, nil))
	for _, a := range []*auction.Auction{plain, invoiced, paid} {
		require.NoError(t, repo.Save(ctx, a))
	}

	t.Run("round trip", func(t *testing.T) {
		got, err := repo.FindByID(ctx, invoiced.ID)
		require.NoError(t, err)
		assert.Equal(t, "Vintage miner", got.Title)
		assert.True(t, decimal.NewFromFloat(2.5).Equal(got.ContributionPercent))
		assert.Equal(t, int64(25), got.ContributionAmount)
		require.NotNil(t, got.EndDate)
		assert.WithinDuration(t, now.Add(23*time.Hour), *got.EndDate, time.Millisecond)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("auctions without a request do not collide", func(t *testing.T) {
		other := newStartedAuction(t)
		require.NoError(t, repo.Save(ctx, other))

		_, err := repo.FindByContributionPaymentRequest(ctx, "")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("find by contribution payment request", func(t *testing.T) {
		got, err := repo.FindByContributionPaymentRequest(ctx, "lnbc-contribution-1")
		require.NoError(t, err)
		assert.Equal(t, invoiced.ID, got.ID)
		assert.False(t, got.IsContributionSettled())
	})

	t.Run("pending contributions exclude settled ones", func(t *testing.T) {
		pending, err := repo.FindPendingContributions(ctx, 0)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, invoiced.ID, pending[0].ID)
	})
}

func TestGormCursorRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("reads the seeded row and advances", func(t *testing.T) {
		repo := NewGormCursorRepository(testutil.NewSQLiteDB(t))

		idx, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), idx)

		require.NoError(t, repo.Advance(ctx, 42))
		require.NoError(t, repo.Advance(ctx, 42))
		idx, err = repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), idx)
	})

	t.Run("refuses to move backwards", func(t *testing.T) {
		repo := NewGormCursorRepository(testutil.NewSQLiteDB(t))
		require.NoError(t, repo.Advance(ctx, 10))

		err := repo.Advance(ctx, 9)
		assert.ErrorIs(t, err, settlement.ErrCursorRegression)

		idx, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), idx)
	})

	t.Run("missing row reads as zero", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		require.NoError(t, db.Exec(`DELETE FROM state`).Error)
		repo := NewGormCursorRepository(db)

		idx, err := repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), idx)

		require.NoError(t, repo.Advance(ctx, 3))
		idx, err = repo.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), idx)
	})

	t.Run("corrupt value", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.Mock.ExpectQuery(`SELECT \* FROM "state"`).
			WillReturnRows(sqlmock.NewRows([]string{"key", "value", "updated_at"}).
				AddRow(settlement.CursorKey, "not-a-number", now))

		_, err := NewGormCursorRepository(mockDB.DB).Get(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse settlement cursor")
		mockDB.ExpectationsWereMet(t)
	})

	t.Run("query failure", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.Mock.ExpectQuery(`SELECT \* FROM "state"`).WillReturnError(errors.New("connection reset"))

		_, err := NewGormCursorRepository(mockDB.DB).Get(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read settlement cursor")
	})
}

func TestGormSettlementScope(t *testing.T) {
	ctx := context.Background()

	t.Run("commits mutations with the cursor", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		scope := NewGormSettlementScope(db)
		a := newStartedAuction(t)
		require.NoError(t, NewGormAuctionRepository(db).Save(ctx, a))
		b := newBid(t, a, 2000, "lnbc-commit", now)
		require.NoError(t, NewGormBidRepository(db).Save(ctx, b))

		err := scope.Execute(ctx, func(repos appsettlement.TransactionalRepositories) error {
			bid, err := repos.Bids().FindByPaymentRequest(ctx, "lnbc-commit")
			if err != nil {
				return err
			}
			if err := bid.MarkSettled(now); err != nil {
				return err
			}
			if err := repos.Bids().Save(ctx, bid); err != nil {
				return err
			}
			return repos.Cursor().Advance(ctx, 5)
		})
		require.NoError(t, err)

		got, err := NewGormBidRepository(db).FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.True(t, got.IsSettled())
		idx, err := NewGormCursorRepository(db).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(5), idx)
	})

	t.Run("rolls back everything on error", func(t *testing.T) {
		db := testutil.NewSQLiteDB(t)
		scope := NewGormSettlementScope(db)
		a := newStartedAuction(t)
		require.NoError(t, NewGormAuctionRepository(db).Save(ctx, a))
		b := newBid(t, a, 2000, "lnbc-rollback", now)
		require.NoError(t, NewGormBidRepository(db).Save(ctx, b))

		err := scope.Execute(ctx, func(repos appsettlement.TransactionalRepositories) error {
			bid, err := repos.Bids().FindByID(ctx, b.ID)
			if err != nil {
				return err
			}
			_ = bid.MarkSettled(now)
			if err := repos.Bids().Save(ctx, bid); err != nil {
				return err
			}
			if err := repos.Cursor().Advance(ctx, 9); err != nil {
				return err
			}
			return assert.AnError
		})
		require.ErrorIs(t, err, assert.AnError)

		got, err := NewGormBidRepository(db).FindByID(ctx, b.ID)
		require.NoError(t, err)
		assert.False(t, got.IsSettled())
		idx, err := NewGormCursorRepository(db).Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(0), idx)
	})

	t.Run("sends begin and rollback", func(t *testing.T) {
		mockDB := testutil.NewMockDB(t)
		defer mockDB.Close()

		mockDB.Mock.ExpectBegin()
		mockDB.Mock.ExpectRollback()

		err := NewGormSettlementScope(mockDB.DB).Execute(ctx, func(appsettlement.TransactionalRepositories) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		mockDB.ExpectationsWereMet(t)
	})
}
