package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/config"
)

// NotificationEvent names the state transition a notification reports.
type NotificationEvent string

const (
	NotificationItemReady          NotificationEvent = "item.ready"
	NotificationConfirmationNeeded NotificationEvent = "pickup.confirmation_needed"
	NotificationPickupCompleted    NotificationEvent = "pickup.completed"
	NotificationIssueReported      NotificationEvent = "pickup.issue_reported"
	NotificationOrderReceived      NotificationEvent = "order.received"
	NotificationFeeBalanceDue      NotificationEvent = "ledger.balance_due"
)

// Notification is a typed event plus payload handed to the delivery
// service. Delivery channel selection (email/push/SMS) is the delivery
// service's concern.
type Notification struct {
	Event       NotificationEvent `json:"event"`
	RecipientID string            `json:"recipient_id"`
	Payload     map[string]string `json:"payload,omitempty"`
}

// NotificationSender delivers notifications. Failures must never roll
// back the state transition that triggered them; callers log and move on.
type NotificationSender interface {
	Send(ctx context.Context, n *Notification) error
}

// HTTPNotificationClient implements NotificationSender over HTTP.
type HTTPNotificationClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

var _ NotificationSender = (*HTTPNotificationClient)(nil)

func NewHTTPNotificationClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPNotificationClient {
	return &HTTPNotificationClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger.Named("notification-client"),
	}
}

func (c *HTTPNotificationClient) Send(ctx context.Context, n *Notification) error {
	c.logger.Debug("Sending notification",
		zap.String("event", string(n.Event)),
		zap.String("recipient_id", n.RecipientID))

	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/v1/notifications", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to send notification",
			zap.String("event", string(n.Event)),
			zap.String("recipient_id", n.RecipientID),
			zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	c.logger.Info("Notification sent",
		zap.String("event", string(n.Event)),
		zap.String("recipient_id", n.RecipientID))
	return nil
}

// MockNotificationClient is a mock implementation for testing. Sends
// happen from fire-and-forget goroutines, so access is locked.
type MockNotificationClient struct {
	mu   sync.Mutex
	Sent []*Notification
	Err  error
}

func NewMockNotificationClient() *MockNotificationClient {
	return &MockNotificationClient{Sent: make([]*Notification, 0)}
}

func (m *MockNotificationClient) Send(ctx context.Context, n *Notification) error {
	if m.Err != nil {
		return m.Err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, n)
	return nil
}

// SentEvents returns a snapshot of delivered event names.
func (m *MockNotificationClient) SentEvents() []NotificationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	events := make([]NotificationEvent, 0, len(m.Sent))
	for _, n := range m.Sent {
		events = append(events, n.Event)
	}
	return events
}
