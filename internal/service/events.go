package service

import (
	"context"

	"github.com/stallside/stallside-orders-service/internal/models"
)

// Item event types published on the orders topic.
const (
	EventItemReady       = "item.ready"
	EventPickupPending   = "pickup.confirmation_pending"
	EventPickupCompleted = "pickup.completed"
	EventPickupIssue     = "pickup.issue_reported"
)

// EventPublisher publishes domain events. Implemented by the Kafka
// publisher; a publish failure is logged and never fails the operation
// that triggered it.
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error
	PublishItemEvent(ctx context.Context, eventType string, item *models.OrderItem) error
	PublishLedgerEntryCreated(ctx context.Context, entry *models.VendorFeeEntry) error
}
