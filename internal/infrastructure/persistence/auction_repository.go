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

// GormAuctionRepository implements auction.AuctionRepository using GORM
type GormAuctionRepository struct {
	db *gorm.DB
}

// NewGormAuctionRepository creates a new GormAuctionRepository
func NewGormAuctionRepository(db *gorm.DB) *GormAuctionRepository {
	return &GormAuctionRepository{db: db}
}

// FindByID finds an auction by its ID
func (r *GormAuctionRepository) FindByID(ctx context.Context, id uuid.UUID) (*auction.Auction, error) {
	var model models.AuctionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByContributionPaymentRequest finds the auction whose contribution is
// paid by the given invoice
func (r *GormAuctionRepository) FindByContributionPaymentRequest(ctx context.Context, paymentRequest string) (*auction.Auction, error) {
	if paymentRequest == "" {
		return nil, shared.ErrNotFound
	}
	var model models.AuctionModel
	if err := r.db.WithContext(ctx).
		Where("contribution_payment_request = ?", paymentRequest).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindPendingContributions returns invoiced contributions not yet settled
func (r *GormAuctionRepository) FindPendingContributions(ctx context.Context, limit int) ([]auction.Auction, error) {
	var auctionModels []models.AuctionModel
	q := r.db.WithContext(ctx).
		Where("contribution_payment_request IS NOT NULL AND contribution_settled_at IS NULL").
		Order("contribution_requested_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&auctionModels).Error; err != nil {
		return nil, err
	}

	auctions := make([]auction.Auction, len(auctionModels))
	for i, model := range auctionModels {
		auctions[i] = *model.ToDomain()
	}
	return auctions, nil
}

// Save creates or updates an auction
func (r *GormAuctionRepository) Save(ctx context.Context, a *auction.Auction) error {
	return r.db.WithContext(ctx).Save(models.AuctionModelFromDomain(a)).Error
}

var _ auction.AuctionRepository = (*GormAuctionRepository)(nil)
