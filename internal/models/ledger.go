package models

import "time"

// FeeEntryStatus is the settlement status of a ledger entry.
type FeeEntryStatus string

const (
	FeeEntryPending FeeEntryStatus = "pending"
	FeeEntryPaid    FeeEntryStatus = "paid"
)

// VendorFeeEntry records a platform fee owed by a vendor for an order
// item that was paid outside the platform processor.
type VendorFeeEntry struct {
	ID          string         `json:"id"`
	VendorID    string         `json:"vendor_id"`
	OrderItemID string         `json:"order_item_id"`
	AmountCents int64          `json:"amount_cents"`
	Status      FeeEntryStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	PaidAt      *time.Time     `json:"paid_at,omitempty"`
}

// VendorFeeBalance is the derived running balance for a vendor.
type VendorFeeBalance struct {
	VendorID        string        `json:"vendor_id"`
	BalanceCents    int64         `json:"balance_cents"`
	UnpaidEntries   int           `json:"unpaid_entries"`
	OldestUnpaidAge time.Duration `json:"oldest_unpaid_age_seconds"`
	RequiresPayment bool          `json:"requires_payment"`
}
