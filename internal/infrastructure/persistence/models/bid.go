package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/plebmarket/backend/internal/domain/auction"
)

// BidModel is the persistence model for the bids table
type BidModel struct {
	BaseModel
	AuctionID      uuid.UUID  `gorm:"type:uuid;not null;index"`
	BuyerID        uuid.UUID  `gorm:"type:uuid;not null"`
	Amount         int64      `gorm:"not null"`
	PaymentRequest string     `gorm:"type:varchar(512);not null;uniqueIndex"`
	SettledAt      *time.Time `gorm:"index"`
}

// TableName returns the table name for GORM
func (BidModel) TableName() string {
	return "bids"
}

// ToDomain converts the model to a domain Bid
func (m *BidModel) ToDomain() *auction.Bid {
	return &auction.Bid{
		BaseEntity:     m.BaseModel.ToDomain(),
		AuctionID:      m.AuctionID,
		BuyerID:        m.BuyerID,
		Amount:         m.Amount,
		PaymentRequest: m.PaymentRequest,
		SettledAt:      utcPtr(m.SettledAt),
	}
}

// FromDomain populates the model from a domain Bid
func (m *BidModel) FromDomain(b *auction.Bid) {
	m.FromDomainBaseEntity(b.BaseEntity)
	m.AuctionID = b.AuctionID
	m.BuyerID = b.BuyerID
	m.Amount = b.Amount
	m.PaymentRequest = b.PaymentRequest
	m.SettledAt = b.SettledAt
}

// BidModelFromDomain creates a new persistence model from a domain Bid
func BidModelFromDomain(b *auction.Bid) *BidModel {
	m := &BidModel{}
	m.FromDomain(b)
	return m
}
