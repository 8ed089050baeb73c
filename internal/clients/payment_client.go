package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/config"
)

// PaymentProvider is the contract with the external payment service.
// This core decides amounts and whether to call; transport details and
// account connection live on the provider side.
type PaymentProvider interface {
	// CreateCheckoutSession starts a hosted checkout for the given
	// amount. The idempotency key makes retried requests safe.
	CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error)
	// CreatePayout initiates a transfer of a vendor's payout.
	CreatePayout(ctx context.Context, req *PayoutRequest) (*PayoutResponse, error)
}

type CheckoutSessionRequest struct {
	ReferenceID    string `json:"reference_id"`
	Purpose        string `json:"purpose"`
	AmountCents    int64  `json:"amount_cents"`
	IdempotencyKey string `json:"-"`
}

type CheckoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type PayoutRequest struct {
	VendorID    string `json:"vendor_id"`
	OrderID     string `json:"order_id"`
	AmountCents int64  `json:"amount_cents"`
}

type PayoutResponse struct {
	TransferID string `json:"transfer_id"`
	Status     string `json:"status"`
}

// HTTPPaymentClient implements PaymentProvider over HTTP.
type HTTPPaymentClient struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	logger     *zap.Logger
}

var _ PaymentProvider = (*HTTPPaymentClient)(nil)

func NewHTTPPaymentClient(cfg config.ServiceConfig, logger *zap.Logger) *HTTPPaymentClient {
	return &HTTPPaymentClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		apiKey: cfg.APIKey,
		logger: logger.Named("payment-client"),
	}
}

func (c *HTTPPaymentClient) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	c.logger.Debug("Creating checkout session",
		zap.String("reference_id", req.ReferenceID),
		zap.String("purpose", req.Purpose),
		zap.Int64("amount_cents", req.AmountCents))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/checkout-sessions", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	c.setHeaders(httpReq)
	httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("Checkout session request failed",
			zap.String("reference_id", req.ReferenceID),
			zap.Error(err))
		return nil, apperr.NewUpstream("payment provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperr.NewUpstream(fmt.Sprintf("payment provider returned status %d", resp.StatusCode), nil)
	}

	var session CheckoutSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, apperr.NewUpstream("invalid payment provider response", err)
	}

	c.logger.Info("Checkout session created",
		zap.String("reference_id", req.ReferenceID),
		zap.String("session_id", session.SessionID))
	return &session, nil
}

func (c *HTTPPaymentClient) CreatePayout(ctx context.Context, req *PayoutRequest) (*PayoutResponse, error) {
	c.logger.Debug("Creating payout",
		zap.String("vendor_id", req.VendorID),
		zap.Int64("amount_cents", req.AmountCents))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/payouts", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.NewUpstream("payment provider unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, apperr.NewUpstream(fmt.Sprintf("payment provider returned status %d", resp.StatusCode), nil)
	}

	var payout PayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&payout); err != nil {
		return nil, apperr.NewUpstream("invalid payment provider response", err)
	}

	c.logger.Info("Payout created",
		zap.String("vendor_id", req.VendorID),
		zap.String("transfer_id", payout.TransferID))
	return &payout, nil
}

func (c *HTTPPaymentClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// MockPaymentClient is a mock implementation for testing.
type MockPaymentClient struct {
	Sessions []*CheckoutSessionRequest
	Payouts  []*PayoutRequest
	Err      error
}

func NewMockPaymentClient() *MockPaymentClient {
	return &MockPaymentClient{}
}

func (m *MockPaymentClient) CreateCheckoutSession(ctx context.Context, req *CheckoutSessionRequest) (*CheckoutSessionResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Sessions = append(m.Sessions, req)
	return &CheckoutSessionResponse{
		SessionID:   "cs_mock_" + req.ReferenceID,
		CheckoutURL: "https://pay.example.com/cs_mock_" + req.ReferenceID,
	}, nil
}

func (m *MockPaymentClient) CreatePayout(ctx context.Context, req *PayoutRequest) (*PayoutResponse, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	m.Payouts = append(m.Payouts, req)
	return &PayoutResponse{TransferID: "tr_mock", Status: "pending"}, nil
}
