package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/middleware"
	"github.com/stallside/stallside-orders-service/internal/models"
	"github.com/stallside/stallside-orders-service/internal/service"
)

// CreateOrder handles POST /api/v1/orders
func (h *Handlers) CreateOrder(c *gin.Context) {
	var req service.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Failed to bind request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor := middleware.ActorFrom(c)
	if actor.Role != models.RoleBuyer {
		c.JSON(http.StatusForbidden, gin.H{"error": "only buyers may place orders"})
		return
	}
	req.BuyerID = actor.ID

	order, err := h.orderService.CreateOrder(c.Request.Context(), &req)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}

// GetOrder handles GET /api/v1/orders/:id
func (h *Handlers) GetOrder(c *gin.Context) {
	actor := middleware.ActorFrom(c)

	order, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// PreviewPricing handles POST /api/v1/pricing/preview. It runs the fee
// engine without creating anything, so carts can show the exact totals
// checkout will produce.
func (h *Handlers) PreviewPricing(c *gin.Context) {
	var req struct {
		Items []service.LineItem `json:"items"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := service.ValidatePricingRequest(req.Items); err != nil {
		handleError(c, err)
		return
	}

	pricing := service.CalculateOrderPricing(req.Items, h.config.Fees)
	c.JSON(http.StatusOK, pricing)
}

// CancelOrder handles POST /api/v1/orders/:id/cancel
func (h *Handlers) CancelOrder(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	actor := middleware.ActorFrom(c)
	if _, err := h.orderService.GetOrder(c.Request.Context(), c.Param("id"), actor.ID); err != nil {
		handleError(c, err)
		return
	}

	if err := h.orderService.CancelOrder(c.Request.Context(), c.Param("id"), req.Reason); err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.OrderStatusCancelled})
}

// MarkItemReady handles POST /api/v1/items/:id/ready
func (h *Handlers) MarkItemReady(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor.Role != models.RoleVendor {
		c.JSON(http.StatusForbidden, gin.H{"error": "only vendors may mark items ready"})
		return
	}

	item, err := h.orderService.MarkItemReady(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}

// ConfirmExternalPayment handles POST /api/v1/items/:id/external-payment
func (h *Handlers) ConfirmExternalPayment(c *gin.Context) {
	actor := middleware.ActorFrom(c)
	if actor.Role != models.RoleVendor {
		c.JSON(http.StatusForbidden, gin.H{"error": "only vendors may confirm external payment"})
		return
	}

	item, err := h.orderService.ConfirmExternalPayment(c.Request.Context(), c.Param("id"), actor.ID)
	if err != nil {
		handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, item)
}
