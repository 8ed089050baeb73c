package models

import "time"

// OrderStatus is the lifecycle status of an order as a whole.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPaid      OrderStatus = "paid"
	OrderStatusFulfilled OrderStatus = "fulfilled"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// ItemStatus is the per-vendor line item status.
type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusConfirmed ItemStatus = "confirmed"
	ItemStatusReady     ItemStatus = "ready"
	ItemStatusFulfilled ItemStatus = "fulfilled"
	ItemStatusCancelled ItemStatus = "cancelled"
	ItemStatusRefunded  ItemStatus = "refunded"
)

// PaymentMethod identifies how the buyer settles an order. Everything
// except PaymentMethodProcessor is settled outside the platform's own
// processor and feeds the vendor fee ledger.
type PaymentMethod string

const (
	PaymentMethodProcessor PaymentMethod = "processor"
	PaymentMethodCash      PaymentMethod = "cash"
	PaymentMethodVenmo     PaymentMethod = "venmo"
	PaymentMethodCashApp   PaymentMethod = "cashapp"
	PaymentMethodPayPal    PaymentMethod = "paypal"
)

// Vertical identifies the marketplace vertical an order belongs to.
type Vertical string

const (
	VerticalFarmersMarket Vertical = "farmers_market"
	VerticalFoodTruck     Vertical = "food_truck"
	VerticalFireworks     Vertical = "fireworks"
)

// Role is the verified actor role supplied by the gateway.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleVendor Role = "vendor"
)

// OrderPricing is the derived pricing breakdown for an order. All values
// are integer cents. It is recomputed by the fee engine and never
// hand-edited.
type OrderPricing struct {
	SubtotalCents         int64 `json:"subtotal_cents"`
	BuyerPercentFeeCents  int64 `json:"buyer_percent_fee_cents"`
	BuyerFlatFeeCents     int64 `json:"buyer_flat_fee_cents"`
	BuyerTotalCents       int64 `json:"buyer_total_cents"`
	VendorPercentFeeCents int64 `json:"vendor_percent_fee_cents"`
	VendorFlatFeeCents    int64 `json:"vendor_flat_fee_cents"`
	VendorPayoutCents     int64 `json:"vendor_payout_cents"`
	PlatformFeeCents      int64 `json:"platform_fee_cents"`
}

// Order is a buyer's order across one or more vendors.
type Order struct {
	ID            string        `json:"id"`
	BuyerID       string        `json:"buyer_id"`
	Vertical      Vertical      `json:"vertical"`
	Status        OrderStatus   `json:"status"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Pricing       OrderPricing  `json:"pricing"`
	// PickupAt is the occurrence snapshot frozen at purchase time for
	// audit and display; availability truth is always recomputed.
	PickupAt  *time.Time   `json:"pickup_at,omitempty"`
	Items     []*OrderItem `json:"items,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// OrderItem is a single vendor/listing line on an order, with its own
// lifecycle and pickup handshake state.
type OrderItem struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"order_id"`
	VendorID       string     `json:"vendor_id"`
	ListingID      string     `json:"listing_id"`
	Quantity       int        `json:"quantity"`
	UnitPriceCents int64      `json:"unit_price_cents"`
	SubtotalCents  int64      `json:"subtotal_cents"`
	Status         ItemStatus `json:"status"`

	// Pickup handshake state. The window timestamp is only meaningful
	// while exactly one side has confirmed; it is cleared on completion,
	// on lazy expiry, and in any terminal status.
	BuyerConfirmedAt            *time.Time `json:"buyer_confirmed_at,omitempty"`
	VendorConfirmedAt           *time.Time `json:"vendor_confirmed_at,omitempty"`
	ConfirmationWindowExpiresAt *time.Time `json:"confirmation_window_expires_at,omitempty"`
	IssueReportedAt             *time.Time `json:"issue_reported_at,omitempty"`

	// Subscription is true for multi-week offerings (market box style);
	// CyclesCompleted counts completed pickups.
	Subscription    bool `json:"subscription"`
	CyclesCompleted int  `json:"cycles_completed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal reports whether the item can no longer move forward.
func (s ItemStatus) IsTerminal() bool {
	return s == ItemStatusFulfilled || s == ItemStatusCancelled || s == ItemStatusRefunded
}

// AwaitingPickup reports whether the item is in a status where pickup
// confirmation and issue reporting are legal.
func (i *OrderItem) AwaitingPickup() bool {
	return i.Status == ItemStatusReady
}

// ConfirmedBy returns the actor's confirmation timestamp, if set.
func (i *OrderItem) ConfirmedBy(role Role) *time.Time {
	if role == RoleBuyer {
		return i.BuyerConfirmedAt
	}
	return i.VendorConfirmedAt
}

// ExternallyPaid reports whether the order was settled outside the
// platform processor.
func (o *Order) ExternallyPaid() bool {
	return o.PaymentMethod != PaymentMethodProcessor
}

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemStatusPending:   {ItemStatusConfirmed, ItemStatusReady, ItemStatusFulfilled, ItemStatusCancelled, ItemStatusRefunded},
	ItemStatusConfirmed: {ItemStatusReady, ItemStatusFulfilled, ItemStatusCancelled, ItemStatusRefunded},
	ItemStatusReady:     {ItemStatusFulfilled, ItemStatusCancelled, ItemStatusRefunded},
	ItemStatusFulfilled: {},
	ItemStatusCancelled: {},
	ItemStatusRefunded:  {},
}

// ValidItemTransition reports whether an item may move from one status
// to another. Terminal statuses permit nothing.
func ValidItemTransition(from, to ItemStatus) bool {
	for _, s := range itemTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
