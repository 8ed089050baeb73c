package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetListingAvailability handles GET /api/v1/listings/:id/availability
func (h *Handlers) GetListingAvailability(c *gin.Context) {
	availability, err := h.availabilityService.CheckListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}

// GetMarketAvailability handles GET /api/v1/markets/:id/availability
func (h *Handlers) GetMarketAvailability(c *gin.Context) {
	availability, err := h.availabilityService.MarketAccepting(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, availability)
}
