package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/models"
	"github.com/stallside/stallside-orders-service/internal/service"
)

var _ service.EventPublisher = (*KafkaPublisher)(nil)

// EventType identifies order-domain events on the orders topic.
type EventType string

const (
	EventTypeOrderCreated       EventType = "order.created"
	EventTypeOrderStatusChanged EventType = "order.status_changed"
	EventTypeLedgerEntryCreated EventType = "ledger.entry_created"
)

// OrderEvent is the envelope for everything published on the orders
// topic, keyed by order id so per-order ordering is preserved.
type OrderEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	OrderID   string          `json:"order_id,omitempty"`
	ItemID    string          `json:"item_id,omitempty"`
	VendorID  string          `json:"vendor_id,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// KafkaPublisher publishes order events to Kafka.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.OrdersTopic,
		Balancer:     &kafka.LeastBytes{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaPublisher{
		writer: writer,
		logger: logger.Named("event-publisher"),
	}
}

func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	data, err := json.Marshal(order)
	if err != nil {
		return err
	}

	return p.publish(ctx, &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      EventTypeOrderCreated,
		OrderID:   order.ID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func (p *KafkaPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	payload := struct {
		Order          *models.Order      `json:"order"`
		PreviousStatus models.OrderStatus `json:"previous_status"`
		NewStatus      models.OrderStatus `json:"new_status"`
	}{
		Order:          order,
		PreviousStatus: previous,
		NewStatus:      order.Status,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	return p.publish(ctx, &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      EventTypeOrderStatusChanged,
		OrderID:   order.ID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// PublishItemEvent publishes item-level events (ready, pickup pending,
// pickup completed, issue reported) with the item as payload.
func (p *KafkaPublisher) PublishItemEvent(ctx context.Context, eventType string, item *models.OrderItem) error {
	data, err := json.Marshal(item)
	if err != nil {
		return err
	}

	return p.publish(ctx, &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      EventType(eventType),
		OrderID:   item.OrderID,
		ItemID:    item.ID,
		VendorID:  item.VendorID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func (p *KafkaPublisher) PublishLedgerEntryCreated(ctx context.Context, entry *models.VendorFeeEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	return p.publish(ctx, &OrderEvent{
		ID:        "evt_" + uuid.NewString(),
		Type:      EventTypeLedgerEntryCreated,
		ItemID:    entry.OrderItemID,
		VendorID:  entry.VendorID,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func (p *KafkaPublisher) publish(ctx context.Context, event *OrderEvent) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return err
	}

	key := event.OrderID
	if key == "" {
		key = event.VendorID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: eventData,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish event",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
		return err
	}

	p.logger.Debug("Event published",
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)))
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaPublisher) Close() error {
	p.logger.Info("Closing Kafka publisher")
	return p.writer.Close()
}

// MockEventPublisher records published events for testing.
type MockEventPublisher struct {
	Events []*OrderEvent
}

func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{Events: make([]*OrderEvent, 0)}
}

func (m *MockEventPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	m.Events = append(m.Events, &OrderEvent{Type: EventTypeOrderCreated, OrderID: order.ID})
	return nil
}

func (m *MockEventPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	m.Events = append(m.Events, &OrderEvent{Type: EventTypeOrderStatusChanged, OrderID: order.ID})
	return nil
}

func (m *MockEventPublisher) PublishItemEvent(ctx context.Context, eventType string, item *models.OrderItem) error {
	m.Events = append(m.Events, &OrderEvent{Type: EventType(eventType), OrderID: item.OrderID, ItemID: item.ID})
	return nil
}

func (m *MockEventPublisher) PublishLedgerEntryCreated(ctx context.Context, entry *models.VendorFeeEntry) error {
	m.Events = append(m.Events, &OrderEvent{Type: EventTypeLedgerEntryCreated, VendorID: entry.VendorID})
	return nil
}
