package auction

import (
	"time"

	"github.com/google/uuid"
	"github.com/plebmarket/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Auction is a timed sale settled over Lightning.
//
// DurationHours is the initial duration and is never modified after start;
// late bids push EndDate forward instead, which is how an extension is
// detected (see WasExtended).
type Auction struct {
	shared.BaseEntity
	SellerID               uuid.UUID `json:"seller_id"`
	Title                  string    `json:"title"`
	SellerLightningAddress string    `json:"seller_lightning_address,omitempty"`

	StartingBid   int64      `json:"starting_bid"`
	ReserveBid    int64      `json:"reserve_bid"`
	DurationHours float64    `json:"duration_hours"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	EndDate       *time.Time `json:"end_date,omitempty"`

	ContributionPercent        decimal.Decimal `json:"contribution_percent"`
	ContributionAmount         int64           `json:"contribution_amount"`
	ContributionPaymentRequest string          `json:"contribution_payment_request,omitempty"`
	ContributionRequestedAt    *time.Time      `json:"contribution_requested_at,omitempty"`
	ContributionSettledAt      *time.Time      `json:"contribution_settled_at,omitempty"`
	WinningBidID               *uuid.UUID      `json:"winning_bid_id,omitempty"`
}

// NewAuction creates an auction that has not started yet
func NewAuction(sellerID uuid.UUID, title string, startingBid int64, durationHours float64, contributionPercent decimal.Decimal) (*Auction, error) {
	if sellerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "auction requires a seller")
	}
	if durationHours <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "duration must be positive")
	}
	if startingBid < 0 {
		return nil, ErrInvalidAmount
	}
	if contributionPercent.IsNegative() || contributionPercent.GreaterThan(decimal.NewFromInt(100)) {
		return nil, shared.NewDomainError("INVALID_INPUT", "contribution percent must be between 0 and 100")
	}
	return &Auction{
		BaseEntity:          shared.NewBaseEntity(),
		SellerID:            sellerID,
		Title:               title,
		StartingBid:         startingBid,
		DurationHours:       durationHours,
		ContributionPercent: contributionPercent,
	}, nil
}

func (a *Auction) duration() time.Duration {
	return time.Duration(a.DurationHours * float64(time.Hour))
}

// Start opens bidding at the given time; EndDate is derived from DurationHours.
func (a *Auction) Start(at time.Time) error {
	if a.StartDate != nil {
		return shared.NewDomainError("INVALID_STATE", "auction already started")
	}
	end := at.Add(a.duration())
	a.StartDate = &at
	a.EndDate = &end
	a.Touch(at)
	return nil
}

// Started reports whether the auction start time has passed
func (a *Auction) Started(now time.Time) bool {
	return a.StartDate != nil && !a.StartDate.After(now)
}

// Ended reports whether the auction end time has passed
func (a *Auction) Ended(now time.Time) bool {
	return a.EndDate != nil && a.EndDate.Before(now)
}

// IsRunning reports whether bids are accepted at now
func (a *Auction) IsRunning(now time.Time) bool {
	return a.Started(now) && !a.Ended(now)
}

// ExtendEndDate applies the last-minute rule after a settled bid:
// EndDate becomes max(EndDate, now+window). It returns true when EndDate moved.
// DurationHours is left alone.
func (a *Auction) ExtendEndDate(now time.Time, window time.Duration) bool {
	candidate := now.Add(window)
	if a.EndDate != nil && !candidate.After(*a.EndDate) {
		return false
	}
	a.EndDate = &candidate
	a.Touch(now)
	return true
}

// WasExtended reports whether late bids pushed EndDate past the initial duration
func (a *Auction) WasExtended() bool {
	if a.StartDate == nil || a.EndDate == nil {
		return false
	}
	return a.EndDate.After(a.StartDate.Add(a.duration()))
}

// ReserveReached reports whether the top bid meets the reserve
func (a *Auction) ReserveReached(top *Bid) bool {
	if a.ReserveBid == 0 {
		return true
	}
	return top != nil && top.Amount >= a.ReserveBid
}

// MinimumNextBid returns the smallest amount a new bid must exceed
func (a *Auction) MinimumNextBid(top *Bid) int64 {
	if top != nil && top.Amount > a.StartingBid {
		return top.Amount
	}
	return a.StartingBid
}

// ContributionFor computes the marketplace contribution owed on amount.
// Amounts below minimum are waived (returned as 0).
func (a *Auction) ContributionFor(amount, minimum int64) int64 {
	c := a.ContributionPercent.Div(decimal.NewFromInt(100)).Mul(decimal.NewFromInt(amount)).IntPart()
	if c < minimum {
		return 0
	}
	return c
}

// HasContributionRequest reports whether a contribution was requested or waived
func (a *Auction) HasContributionRequest() bool {
	return a.ContributionRequestedAt != nil
}

// IsContributionSettled reports whether the contribution has been settled
func (a *Auction) IsContributionSettled() bool {
	return a.ContributionSettledAt != nil
}

// RequestContribution stores the invoice the seller must pay
func (a *Auction) RequestContribution(amount int64, paymentRequest string, at time.Time) error {
	if a.HasContributionRequest() {
		return ErrContributionExists
	}
	if amount <= 0 || paymentRequest == "" {
		return shared.NewDomainError("INVALID_INPUT", "contribution requires an amount and a payment request")
	}
	a.ContributionAmount = amount
	a.ContributionPaymentRequest = paymentRequest
	a.ContributionRequestedAt = &at
	a.Touch(at)
	return nil
}

// WaiveContribution settles a contribution too small to invoice.
// No settlement event will ever arrive for it, so the winner is decided here.
func (a *Auction) WaiveContribution(at time.Time, top *Bid) error {
	if a.HasContributionRequest() {
		return ErrContributionExists
	}
	a.ContributionAmount = 0
	a.ContributionRequestedAt = &at
	return a.settle(at, top)
}

// SettleContribution records payment of the contribution invoice and fixes the
// winner to the current top settled bid (nil when there is none). Both fields
// are set together or not at all.
func (a *Auction) SettleContribution(at time.Time, top *Bid) error {
	if a.IsContributionSettled() {
		return ErrAlreadySettled
	}
	return a.settle(at, top)
}

func (a *Auction) settle(at time.Time, top *Bid) error {
	if top != nil && top.AuctionID != a.ID {
		return shared.NewDomainError("INVALID_INPUT", "winning bid belongs to another auction")
	}
	a.ContributionSettledAt = &at
	if top != nil {
		id := top.ID
		a.WinningBidID = &id
	} else {
		a.WinningBidID = nil
	}
	a.Touch(at)
	return nil
}
