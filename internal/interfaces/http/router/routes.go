package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/plebmarket/backend/internal/interfaces/http/handler"
	"github.com/plebmarket/backend/internal/interfaces/http/middleware"
)

// OperatorHandlers are the handlers served by the operator API
type OperatorHandlers struct {
	System     *handler.SystemHandler
	Settlement *handler.SettlementHandler
	Auction    *handler.AuctionHandler
	// OperatorToken guards settlement start/stop and payouts; empty disables
	// the check
	OperatorToken string
}

// RegisterOperatorRoutes mounts /healthz and the /api/v1 settlement and
// auction groups on engine, returning the mounted routes
func RegisterOperatorRoutes(engine *gin.Engine, h OperatorHandlers) []RouteInfo {
	engine.GET("/healthz", h.System.Healthz)
	routes := []RouteInfo{{Method: http.MethodGet, Path: "/healthz", Group: "system"}}

	guard := middleware.OperatorToken(h.OperatorToken)
	r := NewRouter(engine, WithAPIVersion("v1"))

	settlementRoutes := NewDomainGroup("settlement", "/settlement")
	settlementRoutes.GET("/status", h.Settlement.Status)
	settlementRoutes.Group("settlement-control", "").
		Guard(guard).
		POST("/start", h.Settlement.Start).
		POST("/stop", h.Settlement.Stop)
	r.Register(settlementRoutes)

	auctionRoutes := NewDomainGroup("auction", "/auctions/:id")
	auctionRoutes.POST("/bids", h.Auction.PlaceBid)
	auctionRoutes.POST("/contribution", h.Auction.RequestContribution)
	auctionRoutes.Group("payout", "").
		Guard(guard).
		POST("/payout", h.Auction.PaySeller)
	r.Register(auctionRoutes)

	return append(routes, r.Setup()...)
}
