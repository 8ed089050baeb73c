package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/service"
)

// PaymentEventType represents the type of payment event.
type PaymentEventType string

const (
	PaymentEventCompleted PaymentEventType = "payment.completed"
	PaymentEventFailed    PaymentEventType = "payment.failed"
)

// Checkout session purposes on the payments topic. Order checkouts and
// vendor fee-balance payments share the topic and are told apart by
// purpose.
const (
	PurposeOrder      = "order"
	PurposeFeeBalance = "fee_balance"
)

// PaymentEvent is a settlement result from the payment service. The
// reference id is an order id for order checkouts and a vendor id for
// fee-balance checkouts.
type PaymentEvent struct {
	ID          string           `json:"id"`
	Type        PaymentEventType `json:"type"`
	PaymentID   string           `json:"payment_id"`
	Purpose     string           `json:"purpose"`
	ReferenceID string           `json:"reference_id"`
	Data        json.RawMessage  `json:"data"`
	Timestamp   time.Time        `json:"timestamp"`
}

// KafkaConsumer consumes payment events from Kafka.
type KafkaConsumer struct {
	reader        *kafka.Reader
	orderService  *service.OrderService
	ledgerService *service.LedgerService
	logger        *zap.Logger
	stopCh        chan struct{}
}

func NewKafkaConsumer(
	cfg config.KafkaConfig,
	orderService *service.OrderService,
	ledgerService *service.LedgerService,
	logger *zap.Logger,
) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.PaymentsTopic,
		GroupID:  cfg.ConsumerGroup,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  time.Second,
	})

	return &KafkaConsumer{
		reader:        reader,
		orderService:  orderService,
		ledgerService: ledgerService,
		logger:        logger.Named("event-consumer"),
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming events. Blocks until the context is cancelled
// or Stop is called.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.stopCh:
			c.logger.Info("Kafka consumer stopped")
			return nil
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				c.logger.Error("Failed to read message", zap.Error(err))
				continue
			}

			c.handleMessage(ctx, msg)
		}
	}
}

// Stop stops the consumer.
func (c *KafkaConsumer) Stop() {
	close(c.stopCh)
	c.reader.Close()
}

func (c *KafkaConsumer) handleMessage(ctx context.Context, msg kafka.Message) {
	c.logger.Debug("Received message",
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset))

	var event PaymentEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		c.logger.Error("Failed to unmarshal event", zap.Error(err))
		return
	}

	switch event.Type {
	case PaymentEventCompleted:
		c.handlePaymentCompleted(ctx, &event)
	case PaymentEventFailed:
		c.handlePaymentFailed(ctx, &event)
	default:
		c.logger.Debug("Ignoring unknown event type", zap.String("type", string(event.Type)))
	}
}

func (c *KafkaConsumer) handlePaymentCompleted(ctx context.Context, event *PaymentEvent) {
	c.logger.Info("Handling payment completed event",
		zap.String("payment_id", event.PaymentID),
		zap.String("purpose", event.Purpose),
		zap.String("reference_id", event.ReferenceID))

	switch event.Purpose {
	case PurposeFeeBalance:
		if err := c.ledgerService.SettleBalance(ctx, event.ReferenceID); err != nil {
			c.logger.Error("Failed to settle fee balance",
				zap.String("vendor_id", event.ReferenceID),
				zap.Error(err))
		}
	default:
		// Early producers omitted the purpose field on order checkouts.
		if err := c.orderService.MarkOrderPaid(ctx, event.ReferenceID); err != nil {
			c.logger.Error("Failed to mark order paid",
				zap.String("order_id", event.ReferenceID),
				zap.Error(err))
		}
	}
}

func (c *KafkaConsumer) handlePaymentFailed(ctx context.Context, event *PaymentEvent) {
	c.logger.Info("Handling payment failed event",
		zap.String("payment_id", event.PaymentID),
		zap.String("purpose", event.Purpose),
		zap.String("reference_id", event.ReferenceID))

	// A failed fee-balance checkout leaves the ledger untouched; the
	// vendor retries from the balance screen.
	if event.Purpose == PurposeFeeBalance {
		return
	}

	if err := c.orderService.CancelOrder(ctx, event.ReferenceID, "payment failed"); err != nil {
		c.logger.Error("Failed to cancel order",
			zap.String("order_id", event.ReferenceID),
			zap.Error(err))
	}
}
