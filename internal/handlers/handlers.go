package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/service"
)

// Handlers holds all HTTP handlers for the orders service.
type Handlers struct {
	orderService        *service.OrderService
	pickupService       *service.PickupService
	availabilityService *service.AvailabilityService
	ledgerService       *service.LedgerService
	config              *config.Config
	logger              *zap.Logger
}

// NewHandlers creates a new handlers instance.
func NewHandlers(
	orderService *service.OrderService,
	pickupService *service.PickupService,
	availabilityService *service.AvailabilityService,
	ledgerService *service.LedgerService,
	cfg *config.Config,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		orderService:        orderService,
		pickupService:       pickupService,
		availabilityService: availabilityService,
		ledgerService:       ledgerService,
		config:              cfg,
		logger:              logger.Named("handlers"),
	}
}

// handleError maps taxonomy codes to HTTP statuses. The code is echoed
// in the body so clients branch on it rather than on status alone.
func handleError(c *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	status := http.StatusInternalServerError
	switch appErr.Code {
	case apperr.CodeValidation:
		status = http.StatusBadRequest
	case apperr.CodeNotFound:
		status = http.StatusNotFound
	case apperr.CodeConflict:
		status = http.StatusConflict
	case apperr.CodeInvalidTransition:
		status = http.StatusUnprocessableEntity
	case apperr.CodeExpired:
		status = http.StatusGone
	case apperr.CodeUpstream:
		status = http.StatusBadGateway
	}

	body := gin.H{
		"code":  appErr.Code,
		"error": appErr.Message,
	}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	c.JSON(status, body)
}
