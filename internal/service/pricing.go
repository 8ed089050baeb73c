package service

import (
	"math"

	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/models"
)

// LineItem is a (unit price, quantity) pair fed to the fee engine.
type LineItem struct {
	UnitPriceCents int64 `json:"unit_price_cents"`
	Quantity       int   `json:"quantity"`
}

// roundHalfAwayFromZero rounds to the nearest cent, ties away from zero.
// math.Round implements exactly this rule.
func roundHalfAwayFromZero(x float64) int64 {
	return int64(math.Round(x))
}

// CalculateOrderPricing computes the full pricing breakdown for an order.
// Percentage fees are rounded once at the subtotal level, never per line
// item, so the result is independent of item order. Flat fees apply once
// per order side regardless of item count. Vendor payout may go negative
// for a near-zero subtotal; that is documented behavior, not clamped.
//
// This is the only authoritative entry point for checkout totals.
// Callers validate that prices and quantities are non-negative first.
func CalculateOrderPricing(items []LineItem, fees config.FeeConfig) models.OrderPricing {
	var subtotal int64
	for _, item := range items {
		subtotal += item.UnitPriceCents * int64(item.Quantity)
	}

	buyerPercentFee := roundHalfAwayFromZero(float64(subtotal) * fees.BuyerPercent)
	vendorPercentFee := roundHalfAwayFromZero(float64(subtotal) * fees.VendorPercent)

	return models.OrderPricing{
		SubtotalCents:         subtotal,
		BuyerPercentFeeCents:  buyerPercentFee,
		BuyerFlatFeeCents:     fees.BuyerFlatCents,
		BuyerTotalCents:       subtotal + buyerPercentFee + fees.BuyerFlatCents,
		VendorPercentFeeCents: vendorPercentFee,
		VendorFlatFeeCents:    fees.VendorFlatCents,
		VendorPayoutCents:     subtotal - vendorPercentFee - fees.VendorFlatCents,
		PlatformFeeCents:      buyerPercentFee + fees.BuyerFlatCents + vendorPercentFee + fees.VendorFlatCents,
	}
}

// ItemDisplayPriceCents computes the buyer-facing price of a single item
// for browse and listing views: percentage fee only, no flat fee.
// Display prices must never be summed to produce an order total; only
// CalculateOrderPricing is authoritative for checkout.
func ItemDisplayPriceCents(unitPriceCents int64, fees config.FeeConfig) int64 {
	return unitPriceCents + roundHalfAwayFromZero(float64(unitPriceCents)*fees.BuyerPercent)
}

// VendorFeeCents computes the vendor-side platform fee on a subtotal.
// Used by the fee ledger for externally-paid orders.
func VendorFeeCents(subtotalCents int64, fees config.FeeConfig) int64 {
	return roundHalfAwayFromZero(float64(subtotalCents)*fees.VendorPercent) + fees.VendorFlatCents
}

// MeetsOrderMinimum reports whether a subtotal clears the vertical's
// minimum. A subtotal exactly at the minimum passes.
func MeetsOrderMinimum(subtotalCents int64, vertical models.Vertical, minimums config.MinimumConfig) bool {
	return subtotalCents >= verticalMinimum(vertical, minimums)
}

func verticalMinimum(vertical models.Vertical, minimums config.MinimumConfig) int64 {
	if min, ok := minimums.ByVertical[string(vertical)]; ok {
		return min
	}
	return minimums.DefaultCents
}
