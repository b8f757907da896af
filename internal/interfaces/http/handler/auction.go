package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appauction "github.com/plebmarket/backend/internal/application/auction"
	"github.com/plebmarket/backend/internal/application/payout"
	"github.com/plebmarket/backend/internal/interfaces/http/dto"
	"github.com/plebmarket/backend/internal/interfaces/http/middleware"
)

// BidPlacer accepts bids
type BidPlacer interface {
	PlaceBid(ctx context.Context, in appauction.PlaceBidInput) (*appauction.PlaceBidResult, error)
}

// ContributionRequester invoices the contribution of an ended auction
type ContributionRequester interface {
	RequestContribution(ctx context.Context, auctionID uuid.UUID) (*appauction.ContributionResult, error)
}

// SellerPayer pays sellers their proceeds
type SellerPayer interface {
	PaySeller(ctx context.Context, req payout.Request) (*payout.Result, error)
}

// AuctionHandler exposes bidding, contribution and payout for one auction
type AuctionHandler struct {
	BaseHandler
	bids          BidPlacer
	contributions ContributionRequester
	payouts       SellerPayer
}

// NewAuctionHandler creates a new AuctionHandler
func NewAuctionHandler(bids BidPlacer, contributions ContributionRequester, payouts SellerPayer) *AuctionHandler {
	return &AuctionHandler{
		bids:          bids,
		contributions: contributions,
		payouts:       payouts,
	}
}

// PlaceBidRequest is the body of POST /auctions/:id/bids
type PlaceBidRequest struct {
	BuyerID string `json:"buyer_id" binding:"required,uuid"`
	Amount  int64  `json:"amount" binding:"required,sats"`
}

// PayoutRequest is the optional body of POST /auctions/:id/payout
type PayoutRequest struct {
	Comment string `json:"comment" binding:"max=140"`
}

func (h *AuctionHandler) auctionID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}

// PlaceBid handles POST /auctions/:id/bids. The response carries the invoice
// the buyer must pay; the bid counts once the reconciler sees it settled.
func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	auctionID, ok := h.auctionID(c)
	if !ok {
		return
	}
	var req PlaceBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	res, err := h.bids.PlaceBid(c.Request.Context(), appauction.PlaceBidInput{
		AuctionID: auctionID,
		BuyerID:   uuid.MustParse(req.BuyerID),
		Amount:    req.Amount,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, res)
}

// RequestContribution handles POST /auctions/:id/contribution
func (h *AuctionHandler) RequestContribution(c *gin.Context) {
	auctionID, ok := h.auctionID(c)
	if !ok {
		return
	}

	res, err := h.contributions.RequestContribution(c.Request.Context(), auctionID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}

// PaySeller handles POST /auctions/:id/payout
func (h *AuctionHandler) PaySeller(c *gin.Context) {
	auctionID, ok := h.auctionID(c)
	if !ok {
		return
	}
	var req PayoutRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			middleware.HandleValidationError(c, err)
			return
		}
	}

	res, err := h.payouts.PaySeller(c.Request.Context(), payout.Request{
		AuctionID: auctionID,
		Comment:   req.Comment,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, res)
}
