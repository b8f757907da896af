package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/plebmarket/backend/internal/domain/auction"
	"github.com/shopspring/decimal"
)

// AuctionModel is the persistence model for the auctions table
type AuctionModel struct {
	BaseModel
	SellerID               uuid.UUID `gorm:"type:uuid;not null;index"`
	Title                  string    `gorm:"type:varchar(210);not null"`
	SellerLightningAddress string    `gorm:"type:varchar(256)"`

	StartingBid   int64      `gorm:"not null"`
	ReserveBid    int64      `gorm:"not null;default:0"`
	DurationHours float64    `gorm:"not null"`
	StartDate     *time.Time `gorm:""`
	EndDate       *time.Time `gorm:"index"`

	ContributionPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0"`
	ContributionAmount  int64           `gorm:"not null;default:0"`
	// nullable so the unique index ignores auctions without a request
	ContributionPaymentRequest *string    `gorm:"type:varchar(512);uniqueIndex"`
	ContributionRequestedAt    *time.Time `gorm:""`
	ContributionSettledAt      *time.Time `gorm:"index"`
	WinningBidID               *uuid.UUID `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (AuctionModel) TableName() string {
	return "auctions"
}

// ToDomain converts the model to a domain Auction
func (m *AuctionModel) ToDomain() *auction.Auction {
	a := &auction.Auction{
		BaseEntity:              m.BaseModel.ToDomain(),
		SellerID:                m.SellerID,
		Title:                   m.Title,
		SellerLightningAddress:  m.SellerLightningAddress,
		StartingBid:             m.StartingBid,
		ReserveBid:              m.ReserveBid,
		DurationHours:           m.DurationHours,
		StartDate:               utcPtr(m.StartDate),
		EndDate:                 utcPtr(m.EndDate),
		ContributionPercent:     m.ContributionPercent,
		ContributionAmount:      m.ContributionAmount,
		ContributionRequestedAt: utcPtr(m.ContributionRequestedAt),
		ContributionSettledAt:   utcPtr(m.ContributionSettledAt),
		WinningBidID:            m.WinningBidID,
	}
	if m.ContributionPaymentRequest != nil {
		a.ContributionPaymentRequest = *m.ContributionPaymentRequest
	}
	return a
}

// FromDomain populates the model from a domain Auction
func (m *AuctionModel) FromDomain(a *auction.Auction) {
	m.FromDomainBaseEntity(a.BaseEntity)
	m.SellerID = a.SellerID
	m.Title = a.Title
	m.SellerLightningAddress = a.SellerLightningAddress
	m.StartingBid = a.StartingBid
	m.ReserveBid = a.ReserveBid
	m.DurationHours = a.DurationHours
	m.StartDate = a.StartDate
	m.EndDate = a.EndDate
	m.ContributionPercent = a.ContributionPercent
	m.ContributionAmount = a.ContributionAmount
	m.ContributionPaymentRequest = nil
	if a.ContributionPaymentRequest != "" {
		pr := a.ContributionPaymentRequest
		m.ContributionPaymentRequest = &pr
	}
	m.ContributionRequestedAt = a.ContributionRequestedAt
	m.ContributionSettledAt = a.ContributionSettledAt
	m.WinningBidID = a.WinningBidID
}

// AuctionModelFromDomain creates a new persistence model from a domain Auction
func AuctionModelFromDomain(a *auction.Auction) *AuctionModel {
	m := &AuctionModel{}
	m.FromDomain(a)
	return m
}
