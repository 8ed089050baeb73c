package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stallside/stallside-orders-service/internal/middleware"
)

// ConfirmPickup handles POST /api/v1/items/:id/pickup/confirm. The same
// endpoint serves both sides of the handshake; the actor's role decides
// which confirmation is recorded.
func (h *Handlers) ConfirmPickup(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	result, err := h.pickupService.Confirm(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ReportPickupIssue handles POST /api/v1/items/:id/pickup/issue
func (h *Handlers) ReportPickupIssue(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	item, err := h.pickupService.ReportIssue(c.Request.Context(), c.Param("id"), actor)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}
