package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/plebmarket/backend/internal/domain/shared"
)

// Bid is an offer on an auction. It only counts once its Lightning invoice
// has been paid, at which point SettledAt is set.
type Bid struct {
	shared.BaseEntity
	AuctionID      uuid.UUID  `json:"auction_id"`
	BuyerID        uuid.UUID  `json:"buyer_id"`
	Amount         int64      `json:"amount"` // sats
	PaymentRequest string     `json:"payment_request"`
	SettledAt      *time.Time `json:"settled_at,omitempty"`
}

// NewBid creates an unsettled bid bound to the invoice the buyer must pay
func NewBid(auctionID, buyerID uuid.UUID, amount int64, paymentRequest string) (*Bid, error) {
	if auctionID == uuid.Nil || buyerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "bid requires an auction and a buyer")
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if paymentRequest == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "bid requires a payment request")
	}
	return &Bid{
		BaseEntity:     shared.NewBaseEntity(),
		AuctionID:      auctionID,
		BuyerID:        buyerID,
		Amount:         amount,
		PaymentRequest: paymentRequest,
	}, nil
}

// IsSettled reports whether the bid invoice has been paid
func (b *Bid) IsSettled() bool {
	return b.SettledAt != nil
}

// MarkSettled records payment of the bid invoice. SettledAt is written once;
// a second call returns ErrAlreadySettled and leaves the bid untouched.
func (b *Bid) MarkSettled(at time.Time) error {
	if b.IsSettled() {
		return ErrAlreadySettled
	}
	b.SettledAt = &at
	b.Touch(at)
	return nil
}

// TopBid returns the highest-amount bid, or nil when bids is empty.
// Ties go to the bid placed first.
func TopBid(bids []Bid) *Bid {
	var top *Bid
	for i := range bids {
		b := &bids[i]
		if top == nil || b.Amount > top.Amount ||
			(b.Amount == top.Amount && b.CreatedAt.Before(top.CreatedAt)) {
			top = b
		}
	}
	return top
}

// TopSettledBid returns the highest settled bid, or nil when none is settled.
func TopSettledBid(bids []Bid) *Bid {
	settled := make([]Bid, 0, len(bids))
	for _, b := range bids {
		if b.IsSettled() {
			settled = append(settled, b)
		}
	}
	return TopBid(settled)
}
