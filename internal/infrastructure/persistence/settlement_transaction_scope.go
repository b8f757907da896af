package persistence

import (
	"context"

	appsettlement "github.com/plebmarket/backend/internal/application/settlement"
	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/settlement"
	"gorm.io/gorm"
)

// GormSettlementScope implements TransactionScope using GORM transactions.
type GormSettlementScope struct {
	db *gorm.DB
}

// NewGormSettlementScope creates a new GormSettlementScope.
func NewGormSettlementScope(db *gorm.DB) *GormSettlementScope {
	return &GormSettlementScope{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
// If the function succeeds, the transaction is committed.
func (s *GormSettlementScope) Execute(ctx context.Context, fn func(repos appsettlement.TransactionalRepositories) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormSettlementRepositories{tx: tx})
	})
}

type gormSettlementRepositories struct {
	tx *gorm.DB
}

func (r *gormSettlementRepositories) Bids() auction.BidRepository {
	return NewGormBidRepository(r.tx)
}

func (r *gormSettlementRepositories) Auctions() auction.AuctionRepository {
	return NewGormAuctionRepository(r.tx)
}

func (r *gormSettlementRepositories) Cursor() settlement.CursorRepository {
	return NewGormCursorRepository(r.tx)
}

var _ appsettlement.TransactionScope = (*GormSettlementScope)(nil)
var _ appsettlement.TransactionalRepositories = (*gormSettlementRepositories)(nil)
