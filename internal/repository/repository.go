package repository

import (
	"context"
	"time"

	"github.com/stallside/stallside-orders-service/internal/models"
)

// OrderRepository is the persistence contract for orders, items, and the
// pickup handshake fields. Handshake mutations are single-row conditional
// updates; the store's per-row serialization is the only concurrency
// primitive the protocol relies on.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	GetItem(ctx context.Context, id string) (*models.OrderItem, error)
	ItemsByOrder(ctx context.Context, orderID string) ([]*models.OrderItem, error)
	UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error
	UpdateItemStatus(ctx context.Context, id string, status models.ItemStatus) error

	// SetConfirmation writes one side's confirmation timestamp and sets
	// the expiry window only if no window is currently open.
	SetConfirmation(ctx context.Context, itemID string, role models.Role, confirmedAt, windowExpiresAt time.Time) error
	// ResetConfirmations clears both confirmation fields and the window
	// (lazy expiry of a half-completed handshake).
	ResetConfirmations(ctx context.Context, itemID string) error
	// CompletePickup advances a ready item to fulfilled, clears the
	// window, keeps both timestamps, and bumps the subscription cycle
	// counter. Returns false when another writer already completed it.
	CompletePickup(ctx context.Context, itemID string, completedAt time.Time) (bool, error)
	// ReportIssue sets issue_reported_at once. Returns false when an
	// issue was already reported.
	ReportIssue(ctx context.Context, itemID string, at time.Time) (bool, error)
}

// MarketRepository loads markets and their weekly schedules.
type MarketRepository interface {
	GetMarket(ctx context.Context, id string) (*models.Market, error)
	MarketsForListing(ctx context.Context, listingID string) ([]*models.Market, error)
}

// LedgerRepository is the persistence contract for vendor fee entries.
type LedgerRepository interface {
	CreateEntry(ctx context.Context, entry *models.VendorFeeEntry) error
	UnpaidEntries(ctx context.Context, vendorID string) ([]*models.VendorFeeEntry, error)
	MarkEntriesPaid(ctx context.Context, vendorID string, paidAt time.Time) (int64, error)
}

// OrderCache defines read-through caching for orders.
type OrderCache interface {
	Get(ctx context.Context, id string) (*models.Order, error)
	Set(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error
}

// AvailabilityCache holds short-lived listing availability snapshots so
// browse traffic does not recompute schedules on every request. Never a
// source of truth.
type AvailabilityCache interface {
	GetListingAvailability(ctx context.Context, listingID string) (*models.ListingAvailability, error)
	SetListingAvailability(ctx context.Context, avail *models.ListingAvailability) error
}
