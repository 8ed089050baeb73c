package service

import (
	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/models"
)

// ValidateCreateOrderRequest validates a checkout request. The fee
// engine itself never rejects input; anything out of range is caught
// here first.
func ValidateCreateOrderRequest(req *CreateOrderRequest) error {
	if req.BuyerID == "" {
		return apperr.NewValidation("buyer_id", "buyer ID is required")
	}

	switch req.Vertical {
	case models.VerticalFarmersMarket, models.VerticalFoodTruck, models.VerticalFireworks:
	default:
		return apperr.NewValidation("vertical", "unknown vertical")
	}

	if err := validatePaymentMethod(req.PaymentMethod); err != nil {
		return err
	}

	if req.MarketID == "" {
		return apperr.NewValidation("market_id", "market ID is required")
	}

	if len(req.Items) == 0 {
		return apperr.NewValidation("items", "at least one item is required")
	}

	for _, item := range req.Items {
		if item.VendorID == "" {
			return apperr.NewValidation("items", "vendor ID is required for item")
		}
		if item.ListingID == "" {
			return apperr.NewValidation("items", "listing ID is required for item")
		}
		if item.Quantity <= 0 {
			return apperr.NewValidation("items", "quantity must be positive")
		}
		if item.UnitPriceCents < 0 {
			return apperr.NewValidation("items", "unit price cannot be negative")
		}
	}

	return nil
}

// ValidatePricingRequest validates a pricing preview request.
func ValidatePricingRequest(items []LineItem) error {
	if len(items) == 0 {
		return apperr.NewValidation("items", "at least one item is required")
	}
	for _, item := range items {
		if item.Quantity <= 0 {
			return apperr.NewValidation("items", "quantity must be positive")
		}
		if item.UnitPriceCents < 0 {
			return apperr.NewValidation("items", "unit price cannot be negative")
		}
	}
	return nil
}

func validatePaymentMethod(method models.PaymentMethod) error {
	switch method {
	case models.PaymentMethodProcessor,
		models.PaymentMethodCash,
		models.PaymentMethodVenmo,
		models.PaymentMethodCashApp,
		models.PaymentMethodPayPal:
		return nil
	default:
		return apperr.NewValidation("payment_method", "invalid payment method")
	}
}
