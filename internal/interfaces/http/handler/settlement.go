package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appsettlement "github.com/plebmarket/backend/internal/application/settlement"
)

// SettlementController is the reconciler surface exposed to operators
type SettlementController interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() appsettlement.Status
}

// SettlementHandler starts, stops and reports on the settlement reconciler
type SettlementHandler struct {
	BaseHandler
	reconciler SettlementController
}

// NewSettlementHandler creates a new SettlementHandler
func NewSettlementHandler(reconciler SettlementController) *SettlementHandler {
	return &SettlementHandler{reconciler: reconciler}
}

// Status handles GET /settlement/status
func (h *SettlementHandler) Status(c *gin.Context) {
	h.Success(c, h.reconciler.Status())
}

// Start handles POST /settlement/start. The loop is detached from the
// request and keeps running after the response.
func (h *SettlementHandler) Start(c *gin.Context) {
	if err := h.reconciler.Start(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, h.reconciler.Status())
}

// Stop handles POST /settlement/stop. Stopping an idle reconciler succeeds.
func (h *SettlementHandler) Stop(c *gin.Context) {
	if err := h.reconciler.Stop(c.Request.Context()); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, h.reconciler.Status())
}
