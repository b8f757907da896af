package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/plebmarket/backend/internal/domain/shared"
	"github.com/plebmarket/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormBidRepository implements auction.BidRepository using GORM
type GormBidRepository struct {
	db *gorm.DB
}

// NewGormBidRepository creates a new GormBidRepository
func NewGormBidRepository(db *gorm.DB) *GormBidRepository {
	return &GormBidRepository{db: db}
}

func (r *GormBidRepository) first(ctx context.Context, query *gorm.DB) (*auction.Bid, error) {
	var model models.BidModel
	if err := query.WithContext(ctx).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds a bid by its ID
func (r *GormBidRepository) FindByID(ctx context.Context, id uuid.UUID) (*auction.Bid, error) {
	return r.first(ctx, r.db.Where("id = ?", id))
}

// FindByPaymentRequest finds the bid paid by the given invoice
func (r *GormBidRepository) FindByPaymentRequest(ctx context.Context, paymentRequest string) (*auction.Bid, error) {
	return r.first(ctx, r.db.Where("payment_request = ?", paymentRequest))
}

// FindTop returns the highest bid on the auction, settled or not
func (r *GormBidRepository) FindTop(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, error) {
	return r.first(ctx, r.db.
		Where("auction_id = ?", auctionID).
		Order("amount DESC").Order("created_at ASC"))
}

// FindTopSettled returns the highest settled bid on the auction
func (r *GormBidRepository) FindTopSettled(ctx context.Context, auctionID uuid.UUID) (*auction.Bid, error) {
	return r.first(ctx, r.db.
		Where("auction_id = ? AND settled_at IS NOT NULL", auctionID).
		Order("amount DESC").Order("created_at ASC"))
}

// FindUnsettled returns bids whose invoice has not been paid, oldest first
func (r *GormBidRepository) FindUnsettled(ctx context.Context, limit int) ([]auction.Bid, error) {
	var bidModels []models.BidModel
	q := r.db.WithContext(ctx).Where("settled_at IS NULL").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&bidModels).Error; err != nil {
		return nil, err
	}

	bids := make([]auction.Bid, len(bidModels))
	for i, model := range bidModels {
		bids[i] = *model.ToDomain()
	}
	return bids, nil
}

// Save creates or updates a bid
func (r *GormBidRepository) Save(ctx context.Context, bid *auction.Bid) error {
	return r.db.WithContext(ctx).Save(models.BidModelFromDomain(bid)).Error
}

var _ auction.BidRepository = (*GormBidRepository)(nil)
