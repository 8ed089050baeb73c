package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stallside/stallside-orders-service/internal/middleware"
	"github.com/stallside/stallside-orders-service/internal/models"
)

// vendorFromPath checks the acting vendor matches the path. Another
// vendor's ledger is invisible, not forbidden.
func vendorFromPath(c *gin.Context) (string, bool) {
	actor := middleware.ActorFrom(c)
	if actor.Role != models.RoleVendor {
		c.JSON(http.StatusForbidden, gin.H{"error": "only vendors have a fee balance"})
		return "", false
	}
	if actor.ID != c.Param("id") {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return "", false
	}
	return actor.ID, true
}

// GetFeeBalance handles GET /api/v1/vendors/:id/fee-balance
func (h *Handlers) GetFeeBalance(c *gin.Context) {
	vendorID, ok := vendorFromPath(c)
	if !ok {
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), vendorID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// PayFeeBalance handles POST /api/v1/vendors/:id/fee-balance/pay
func (h *Handlers) PayFeeBalance(c *gin.Context) {
	vendorID, ok := vendorFromPath(c)
	if !ok {
		return
	}

	session, err := h.ledgerService.PayBalance(c.Request.Context(), vendorID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, session)
}
