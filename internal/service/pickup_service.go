package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/clients"
	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/metrics"
	"github.com/stallside/stallside-orders-service/internal/models"
	"github.com/stallside/stallside-orders-service/internal/repository"
)

// Actor is the verified identity acting on a pickup, as supplied by the
// gateway.
type Actor struct {
	ID   string
	Role models.Role
}

// PickupResult reports the handshake state after a confirmation.
type PickupResult struct {
	ItemID            string     `json:"item_id"`
	Completed         bool       `json:"completed"`
	BuyerConfirmedAt  *time.Time `json:"buyer_confirmed_at,omitempty"`
	VendorConfirmedAt *time.Time `json:"vendor_confirmed_at,omitempty"`
	WindowExpiresAt   *time.Time `json:"window_expires_at,omitempty"`
	// WindowExpired is true when a previous half-open window had lapsed
	// and was reset before this confirmation was applied; clients use it
	// to re-prompt the counterparty.
	WindowExpired bool `json:"window_expired"`
}

// PickupService runs the dual-confirmation pickup handshake. Completion
// requires both parties within the confirmation window; a lapsed window
// resets the first party's confirmation the next time anyone touches the
// item (expiry is observed, never pushed by a timer).
//
// Two racing confirmations are resolved by a read-after-write of both
// confirmation fields; the store's single-row update serialization is
// the only concurrency primitive.
type PickupService struct {
	orderRepo repository.OrderRepository
	orders    *OrderService
	notifier  clients.NotificationSender
	publisher EventPublisher
	config    *config.Config
	logger    *zap.Logger
	now       func() time.Time
}

func NewPickupService(
	orderRepo repository.OrderRepository,
	orders *OrderService,
	notifier clients.NotificationSender,
	publisher EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *PickupService {
	return &PickupService{
		orderRepo: orderRepo,
		orders:    orders,
		notifier:  notifier,
		publisher: publisher,
		config:    cfg,
		logger:    logger.Named("pickup-service"),
		now:       time.Now,
	}
}

// Confirm records one party's attestation that the handoff occurred.
func (s *PickupService) Confirm(ctx context.Context, itemID string, actor Actor) (*PickupResult, error) {
	item, order, err := s.loadOwned(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}

	if item.IssueReportedAt != nil {
		return nil, apperr.NewConflict("an issue has been reported for this pickup")
	}
	if !item.AwaitingPickup() {
		return nil, apperr.NewInvalidTransition(fmt.Sprintf(
			"item is not awaiting pickup (status %s)", item.Status,
		))
	}

	now := s.now()
	windowExpired := false

	// Lazy expiry: a lapsed window with exactly one side confirmed means
	// the first confirmation is void. Reset the whole handshake, then
	// process this action as a fresh first confirmation.
	if exp := item.ConfirmationWindowExpiresAt; exp != nil && !now.Before(*exp) && halfConfirmed(item) {
		if err := s.orderRepo.ResetConfirmations(ctx, itemID); err != nil {
			return nil, err
		}
		item.BuyerConfirmedAt = nil
		item.VendorConfirmedAt = nil
		item.ConfirmationWindowExpiresAt = nil
		windowExpired = true
		metrics.PickupWindowsExpired.Inc()
	}

	if item.ConfirmedBy(actor.Role) != nil {
		return nil, apperr.NewConflict("already confirmed; waiting on the other party")
	}

	expiresAt := now.Add(s.config.Pickup.ConfirmationWindow)
	if err := s.orderRepo.SetConfirmation(ctx, itemID, actor.Role, now, expiresAt); err != nil {
		return nil, err
	}

	// Read-after-write: the authoritative completion check. The last
	// writer to land observes the other party's persisted confirmation.
	fresh, err := s.orderRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	result := &PickupResult{
		ItemID:            itemID,
		BuyerConfirmedAt:  fresh.BuyerConfirmedAt,
		VendorConfirmedAt: fresh.VendorConfirmedAt,
		WindowExpiresAt:   fresh.ConfirmationWindowExpiresAt,
		WindowExpired:     windowExpired,
	}

	if fresh.BuyerConfirmedAt != nil && fresh.VendorConfirmedAt != nil {
		return s.complete(ctx, fresh, order, result, now)
	}

	s.logger.Info("Pickup confirmation recorded, awaiting counterparty",
		zap.String("item_id", itemID),
		zap.String("role", string(actor.Role)),
		zap.Time("window_expires_at", expiresAt))

	if s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishItemEvent(ctx, EventPickupPending, fresh); err != nil {
			s.logger.Error("Failed to publish pickup pending event", zap.String("item_id", itemID), zap.Error(err))
		}
	}

	go s.notify(context.Background(), &clients.Notification{
		Event:       clients.NotificationConfirmationNeeded,
		RecipientID: counterpartyID(actor, order, item),
		Payload:     map[string]string{"item_id": itemID, "order_id": item.OrderID},
	})

	return result, nil
}

func (s *PickupService) complete(ctx context.Context, item *models.OrderItem, order *models.Order, result *PickupResult, now time.Time) (*PickupResult, error) {
	won, err := s.orderRepo.CompletePickup(ctx, item.ID, now)
	if err != nil {
		return nil, err
	}
	// A lost race means the other confirmation's writer already
	// completed the item; both callers report completion.
	if won {
		metrics.PickupsCompleted.Inc()

		if s.config.Features.EnableOrderEvents {
			if err := s.publisher.PublishItemEvent(ctx, EventPickupCompleted, item); err != nil {
				s.logger.Error("Failed to publish pickup completed event", zap.String("item_id", item.ID), zap.Error(err))
			}
		}

		if err := s.orders.SyncOrderStatus(ctx, item.OrderID); err != nil {
			s.logger.Error("Failed to sync order status", zap.String("order_id", item.OrderID), zap.Error(err))
		}
		s.orders.invalidateOrderCache(ctx, item.OrderID)

		go s.notify(context.Background(), &clients.Notification{
			Event:       clients.NotificationPickupCompleted,
			RecipientID: order.BuyerID,
			Payload:     map[string]string{"item_id": item.ID, "order_id": item.OrderID},
		})
	}

	s.logger.Info("Pickup handshake completed",
		zap.String("item_id", item.ID),
		zap.Bool("completed_by_this_writer", won))

	result.Completed = true
	result.WindowExpiresAt = nil
	return result, nil
}

// ReportIssue is the unhappy path: the buyer attests that something went
// wrong instead of confirming receipt. Legal only while awaiting pickup
// and only once; it does not consume or reset the confirmation window,
// and it ends this handshake (resolution belongs to support).
func (s *PickupService) ReportIssue(ctx context.Context, itemID string, actor Actor) (*models.OrderItem, error) {
	if actor.Role != models.RoleBuyer {
		return nil, apperr.NewValidation("role", "only the buyer may report a pickup issue")
	}

	item, order, err := s.loadOwned(ctx, itemID, actor)
	if err != nil {
		return nil, err
	}

	if !item.AwaitingPickup() {
		return nil, apperr.NewInvalidTransition(fmt.Sprintf(
			"cannot report an issue for item in status %s", item.Status,
		))
	}

	now := s.now()
	reported, err := s.orderRepo.ReportIssue(ctx, itemID, now)
	if err != nil {
		return nil, err
	}
	if !reported {
		return nil, apperr.NewConflict("an issue has already been reported for this pickup")
	}
	item.IssueReportedAt = &now
	metrics.PickupIssuesReported.Inc()

	s.logger.Info("Pickup issue reported",
		zap.String("item_id", itemID),
		zap.String("buyer_id", order.BuyerID))

	if s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishItemEvent(ctx, EventPickupIssue, item); err != nil {
			s.logger.Error("Failed to publish issue event", zap.String("item_id", itemID), zap.Error(err))
		}
	}

	go s.notify(context.Background(), &clients.Notification{
		Event:       clients.NotificationIssueReported,
		RecipientID: item.VendorID,
		Payload:     map[string]string{"item_id": itemID, "order_id": item.OrderID},
	})

	return item, nil
}

// loadOwned fetches the item and its order and checks the actor is a
// party to it. Ownership failures look identical to missing rows.
func (s *PickupService) loadOwned(ctx context.Context, itemID string, actor Actor) (*models.OrderItem, *models.Order, error) {
	item, err := s.orderRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, nil, err
	}

	order, err := s.orderRepo.GetOrder(ctx, item.OrderID)
	if err != nil {
		return nil, nil, err
	}

	switch actor.Role {
	case models.RoleBuyer:
		if order.BuyerID != actor.ID {
			return nil, nil, apperr.ErrNotFound
		}
	case models.RoleVendor:
		if item.VendorID != actor.ID {
			return nil, nil, apperr.ErrNotFound
		}
	default:
		return nil, nil, apperr.NewValidation("role", "unknown actor role")
	}

	return item, order, nil
}

func (s *PickupService) notify(ctx context.Context, n *clients.Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Error("Failed to send notification",
			zap.String("event", string(n.Event)),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err))
	}
}

// halfConfirmed reports whether exactly one side has confirmed. The
// window timestamp is only meaningful in this state.
func halfConfirmed(item *models.OrderItem) bool {
	return (item.BuyerConfirmedAt != nil) != (item.VendorConfirmedAt != nil)
}

func counterpartyID(actor Actor, order *models.Order, item *models.OrderItem) string {
	if actor.Role == models.RoleBuyer {
		return item.VendorID
	}
	return order.BuyerID
}
