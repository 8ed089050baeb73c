package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/clients"
	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/metrics"
	"github.com/stallside/stallside-orders-service/internal/models"
	"github.com/stallside/stallside-orders-service/internal/repository"
)

// CreateOrderRequest is a checkout request.
type CreateOrderRequest struct {
	BuyerID       string                   `json:"buyer_id"`
	Vertical      models.Vertical          `json:"vertical"`
	PaymentMethod models.PaymentMethod     `json:"payment_method"`
	MarketID      string                   `json:"market_id"`
	Items         []CreateOrderItemRequest `json:"items"`
}

type CreateOrderItemRequest struct {
	VendorID       string `json:"vendor_id"`
	ListingID      string `json:"listing_id"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	Subscription   bool   `json:"subscription"`
}

// OrderService owns the order/item lifecycle: checkout, vendor status
// transitions, external-payment settlement, and the post-write order
// status sync.
type OrderService struct {
	orderRepo    repository.OrderRepository
	orderCache   repository.OrderCache
	availability *AvailabilityService
	ledger       *LedgerService
	notifier     clients.NotificationSender
	publisher    EventPublisher
	config       *config.Config
	logger       *zap.Logger
	now          func() time.Time
}

func NewOrderService(
	orderRepo repository.OrderRepository,
	orderCache repository.OrderCache,
	availability *AvailabilityService,
	ledger *LedgerService,
	notifier clients.NotificationSender,
	publisher EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		orderCache:   orderCache,
		availability: availability,
		ledger:       ledger,
		notifier:     notifier,
		publisher:    publisher,
		config:       cfg,
		logger:       logger.Named("order-service"),
		now:          time.Now,
	}
}

// CreateOrder runs checkout: validation, the market cutoff gate, the fee
// engine, the minimum-order gate, then persistence. The market's next
// occurrence is frozen onto the order for audit and display.
func (s *OrderService) CreateOrder(ctx context.Context, req *CreateOrderRequest) (*models.Order, error) {
	s.logger.Info("Creating order",
		zap.String("buyer_id", req.BuyerID),
		zap.Int("item_count", len(req.Items)))

	if err := ValidateCreateOrderRequest(req); err != nil {
		return nil, err
	}

	avail, err := s.availability.MarketAccepting(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}
	if !avail.IsAccepting {
		return nil, apperr.NewValidation("market_id", "market is no longer accepting orders for its next occurrence")
	}

	lineItems := make([]LineItem, len(req.Items))
	for i, item := range req.Items {
		lineItems[i] = LineItem{UnitPriceCents: item.UnitPriceCents, Quantity: item.Quantity}
	}
	pricing := CalculateOrderPricing(lineItems, s.config.Fees)

	if !MeetsOrderMinimum(pricing.SubtotalCents, req.Vertical, s.config.Minimums) {
		return nil, apperr.NewValidation("items", fmt.Sprintf(
			"subtotal %d is below the minimum for %s",
			pricing.SubtotalCents, req.Vertical,
		))
	}

	now := s.now()
	pickupAt := avail.NextOccurrence
	order := &models.Order{
		ID:            "ord_" + uuid.NewString(),
		BuyerID:       req.BuyerID,
		Vertical:      req.Vertical,
		Status:        models.OrderStatusPending,
		PaymentMethod: req.PaymentMethod,
		Pricing:       pricing,
		PickupAt:      &pickupAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, item := range req.Items {
		order.Items = append(order.Items, &models.OrderItem{
			ID:             "itm_" + uuid.NewString(),
			OrderID:        order.ID,
			VendorID:       item.VendorID,
			ListingID:      item.ListingID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  item.UnitPriceCents * int64(item.Quantity),
			Status:         models.ItemStatusPending,
			Subscription:   item.Subscription,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := s.orderRepo.CreateOrder(ctx, order); err != nil {
		s.logger.Error("Failed to create order", zap.String("buyer_id", req.BuyerID), zap.Error(err))
		return nil, err
	}

	metrics.OrdersCreated.WithLabelValues(string(order.Vertical), string(order.PaymentMethod)).Inc()

	if s.config.Features.EnableOrderCaching {
		if err := s.orderCache.Set(ctx, order); err != nil {
			s.logger.Error("Failed to cache order", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	if s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishOrderCreated(ctx, order); err != nil {
			s.logger.Error("Failed to publish order created event", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	go s.notify(context.Background(), &clients.Notification{
		Event:       clients.NotificationOrderReceived,
		RecipientID: order.BuyerID,
		Payload: map[string]string{
			"order_id":          order.ID,
			"buyer_total_cents": fmt.Sprintf("%d", pricing.BuyerTotalCents),
		},
	})

	return order, nil
}

// GetOrder retrieves an order, enforcing that it belongs to the actor.
func (s *OrderService) GetOrder(ctx context.Context, id, actorID string) (*models.Order, error) {
	if s.config.Features.EnableOrderCaching {
		if order, err := s.orderCache.Get(ctx, id); err == nil && order != nil {
			if order.BuyerID != actorID {
				return nil, apperr.ErrNotFound
			}
			return order, nil
		}
	}

	order, err := s.orderRepo.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != actorID {
		// Ownership failures look identical to missing rows.
		return nil, apperr.ErrNotFound
	}

	if s.config.Features.EnableOrderCaching {
		s.orderCache.Set(ctx, order)
	}
	return order, nil
}

// MarkItemReady is the vendor-initiated transition into the awaiting-
// pickup state. Legal only from pending or confirmed; anything else is a
// rejected transition, not a silent no-op.
func (s *OrderService) MarkItemReady(ctx context.Context, itemID, vendorID string) (*models.OrderItem, error) {
	item, err := s.orderRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.VendorID != vendorID {
		return nil, apperr.ErrNotFound
	}

	if item.Status != models.ItemStatusPending && item.Status != models.ItemStatusConfirmed {
		return nil, apperr.NewInvalidTransition(fmt.Sprintf(
			"cannot mark item ready from status %s", item.Status,
		))
	}

	if err := s.orderRepo.UpdateItemStatus(ctx, itemID, models.ItemStatusReady); err != nil {
		return nil, err
	}
	item.Status = models.ItemStatusReady

	s.invalidateOrderCache(ctx, item.OrderID)

	if s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishItemEvent(ctx, EventItemReady, item); err != nil {
			s.logger.Error("Failed to publish item ready event", zap.String("item_id", itemID), zap.Error(err))
		}
	}

	order, err := s.orderRepo.GetOrder(ctx, item.OrderID)
	if err == nil {
		go s.notify(context.Background(), &clients.Notification{
			Event:       clients.NotificationItemReady,
			RecipientID: order.BuyerID,
			Payload:     map[string]string{"item_id": item.ID, "order_id": item.OrderID},
		})
	}

	return item, nil
}

// ConfirmExternalPayment is the one-step settle for orders paid outside
// the processor: the vendor confirms payment was received, the item goes
// straight to fulfilled, and the vendor-side fee lands on the ledger.
func (s *OrderService) ConfirmExternalPayment(ctx context.Context, itemID, vendorID string) (*models.OrderItem, error) {
	item, err := s.orderRepo.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item.VendorID != vendorID {
		return nil, apperr.ErrNotFound
	}

	order, err := s.orderRepo.GetOrder(ctx, item.OrderID)
	if err != nil {
		return nil, err
	}
	if !order.ExternallyPaid() {
		return nil, apperr.NewInvalidTransition("order is settled by the payment processor, not externally")
	}

	if !models.ValidItemTransition(item.Status, models.ItemStatusFulfilled) {
		return nil, apperr.NewInvalidTransition(fmt.Sprintf(
			"cannot settle item from status %s", item.Status,
		))
	}

	if err := s.orderRepo.UpdateItemStatus(ctx, itemID, models.ItemStatusFulfilled); err != nil {
		return nil, err
	}
	item.Status = models.ItemStatusFulfilled

	// Ledger entry is created synchronously right after the item write,
	// inside the same logical operation.
	if _, err := s.ledger.RecordExternalSale(ctx, item); err != nil {
		s.logger.Error("Failed to record fee ledger entry",
			zap.String("item_id", itemID),
			zap.Error(err))
	}

	if order.Status == models.OrderStatusPending {
		if err := s.orderRepo.UpdateOrderStatus(ctx, order.ID, models.OrderStatusPaid); err != nil {
			s.logger.Error("Failed to mark order paid", zap.String("order_id", order.ID), zap.Error(err))
		}
	}

	s.invalidateOrderCache(ctx, item.OrderID)
	if err := s.SyncOrderStatus(ctx, item.OrderID); err != nil {
		s.logger.Error("Failed to sync order status", zap.String("order_id", item.OrderID), zap.Error(err))
	}

	return item, nil
}

// MarkOrderPaid handles the processor's settlement event: the order
// advances to paid and every pending item is confirmed.
func (s *OrderService) MarkOrderPaid(ctx context.Context, orderID string) error {
	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status != models.OrderStatusPending {
		return apperr.NewInvalidTransition(fmt.Sprintf(
			"cannot mark order paid from status %s", order.Status,
		))
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, orderID, models.OrderStatusPaid); err != nil {
		return err
	}
	for _, item := range order.Items {
		if item.Status != models.ItemStatusPending {
			continue
		}
		if err := s.orderRepo.UpdateItemStatus(ctx, item.ID, models.ItemStatusConfirmed); err != nil {
			s.logger.Error("Failed to confirm item", zap.String("item_id", item.ID), zap.Error(err))
		}
	}

	s.invalidateOrderCache(ctx, orderID)

	if s.config.Features.EnableOrderEvents {
		previous := order.Status
		order.Status = models.OrderStatusPaid
		if err := s.publisher.PublishOrderStatusChanged(ctx, order, previous); err != nil {
			s.logger.Error("Failed to publish status change", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return nil
}

// CancelOrder cancels an order and all its non-terminal items. The
// transition itself is driven by the payment collaborator (failed or
// voided payments); the machine only rejects cancelling terminal orders.
func (s *OrderService) CancelOrder(ctx context.Context, orderID, reason string) error {
	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusFulfilled || order.Status == models.OrderStatusCancelled {
		return apperr.NewInvalidTransition(fmt.Sprintf(
			"cannot cancel order in status %s", order.Status,
		))
	}

	s.logger.Info("Cancelling order",
		zap.String("order_id", orderID),
		zap.String("reason", reason))

	for _, item := range order.Items {
		if item.Status.IsTerminal() {
			continue
		}
		if err := s.orderRepo.UpdateItemStatus(ctx, item.ID, models.ItemStatusCancelled); err != nil {
			s.logger.Error("Failed to cancel item", zap.String("item_id", item.ID), zap.Error(err))
		}
	}
	if err := s.orderRepo.UpdateOrderStatus(ctx, orderID, models.OrderStatusCancelled); err != nil {
		return err
	}

	s.invalidateOrderCache(ctx, orderID)

	if s.config.Features.EnableOrderEvents {
		previous := order.Status
		order.Status = models.OrderStatusCancelled
		if err := s.publisher.PublishOrderStatusChanged(ctx, order, previous); err != nil {
			s.logger.Error("Failed to publish status change", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return nil
}

// SyncOrderStatus advances an order to fulfilled once every item is
// terminal and at least one fulfilled. The source system did this with a
// database trigger; here it is an explicit call made right after each
// item-status write.
func (s *OrderService) SyncOrderStatus(ctx context.Context, orderID string) error {
	items, err := s.orderRepo.ItemsByOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	anyFulfilled := false
	for _, item := range items {
		if !item.Status.IsTerminal() {
			return nil
		}
		if item.Status == models.ItemStatusFulfilled {
			anyFulfilled = true
		}
	}
	if !anyFulfilled {
		return nil
	}

	order, err := s.orderRepo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == models.OrderStatusFulfilled {
		return nil
	}

	if err := s.orderRepo.UpdateOrderStatus(ctx, orderID, models.OrderStatusFulfilled); err != nil {
		return err
	}
	s.invalidateOrderCache(ctx, orderID)

	if s.config.Features.EnableOrderEvents {
		previous := order.Status
		order.Status = models.OrderStatusFulfilled
		if err := s.publisher.PublishOrderStatusChanged(ctx, order, previous); err != nil {
			s.logger.Error("Failed to publish status change", zap.String("order_id", orderID), zap.Error(err))
		}
	}
	return nil
}

func (s *OrderService) invalidateOrderCache(ctx context.Context, orderID string) {
	if !s.config.Features.EnableOrderCaching {
		return
	}
	if err := s.orderCache.Delete(ctx, orderID); err != nil {
		s.logger.Error("Failed to invalidate order cache", zap.String("order_id", orderID), zap.Error(err))
	}
}

// notify is fire-and-forget: a delivery failure is logged and never
// surfaces to the caller or rolls back state.
func (s *OrderService) notify(ctx context.Context, n *clients.Notification) {
	if err := s.notifier.Send(ctx, n); err != nil {
		s.logger.Error("Failed to send notification",
			zap.String("event", string(n.Event)),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err))
	}
}
