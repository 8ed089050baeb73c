package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
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

// LedgerService keeps the running balance of platform fees owed by
// vendors for orders settled outside the processor.
type LedgerService struct {
	ledgerRepo repository.LedgerRepository
	payments   clients.PaymentProvider
	publisher  EventPublisher
	config     *config.Config
	logger     *zap.Logger
	now        func() time.Time
}

func NewLedgerService(
	ledgerRepo repository.LedgerRepository,
	payments clients.PaymentProvider,
	publisher EventPublisher,
	cfg *config.Config,
	logger *zap.Logger,
) *LedgerService {
	return &LedgerService{
		ledgerRepo: ledgerRepo,
		payments:   payments,
		publisher:  publisher,
		config:     cfg,
		logger:     logger.Named("ledger-service"),
		now:        time.Now,
	}
}

// RecordExternalSale books the vendor-side fee for an externally-paid
// item, computed by the fee engine on that item's subtotal.
func (s *LedgerService) RecordExternalSale(ctx context.Context, item *models.OrderItem) (*models.VendorFeeEntry, error) {
	entry := &models.VendorFeeEntry{
		ID:          "fee_" + uuid.NewString(),
		VendorID:    item.VendorID,
		OrderItemID: item.ID,
		AmountCents: VendorFeeCents(item.SubtotalCents, s.config.Fees),
		Status:      models.FeeEntryPending,
		CreatedAt:   s.now(),
	}

	if err := s.ledgerRepo.CreateEntry(ctx, entry); err != nil {
		return nil, err
	}
	metrics.LedgerEntriesCreated.Inc()

	if s.config.Features.EnableOrderEvents {
		if err := s.publisher.PublishLedgerEntryCreated(ctx, entry); err != nil {
			s.logger.Error("Failed to publish ledger entry event",
				zap.String("entry_id", entry.ID),
				zap.Error(err))
		}
	}
	return entry, nil
}

// GetBalance computes the vendor's current fee balance, the age of the
// oldest unpaid entry, and whether payment is now required.
func (s *LedgerService) GetBalance(ctx context.Context, vendorID string) (*models.VendorFeeBalance, error) {
	entries, err := s.ledgerRepo.UnpaidEntries(ctx, vendorID)
	if err != nil {
		return nil, err
	}

	balance := &models.VendorFeeBalance{VendorID: vendorID}
	now := s.now()
	for _, entry := range entries {
		balance.BalanceCents += entry.AmountCents
		balance.UnpaidEntries++
		if age := now.Sub(entry.CreatedAt); age > balance.OldestUnpaidAge {
			balance.OldestUnpaidAge = age
		}
	}

	balance.RequiresPayment = balance.BalanceCents >= s.config.Ledger.BalanceThresholdCents ||
		(balance.UnpaidEntries > 0 && balance.OldestUnpaidAge >= s.config.Ledger.MaxUnpaidAge)

	return balance, nil
}

// PayBalance opens a checkout session for the vendor's full current
// balance. The idempotency key is derived from vendor id and balance, so
// a retried pay-now request lands on the same session instead of
// double-charging.
func (s *LedgerService) PayBalance(ctx context.Context, vendorID string) (*clients.CheckoutSessionResponse, error) {
	balance, err := s.GetBalance(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if balance.BalanceCents <= 0 {
		return nil, apperr.NewValidation("vendor_id", "no outstanding fee balance")
	}

	session, err := s.payments.CreateCheckoutSession(ctx, &clients.CheckoutSessionRequest{
		ReferenceID:    vendorID,
		Purpose:        "fee_balance",
		AmountCents:    balance.BalanceCents,
		IdempotencyKey: FeeBalanceIdempotencyKey(vendorID, balance.BalanceCents),
	})
	if err != nil {
		s.logger.Error("Failed to create fee balance checkout session",
			zap.String("vendor_id", vendorID),
			zap.Error(err))
		return nil, err
	}

	s.logger.Info("Fee balance checkout session created",
		zap.String("vendor_id", vendorID),
		zap.Int64("balance_cents", balance.BalanceCents),
		zap.String("session_id", session.SessionID))
	return session, nil
}

// SettleBalance marks every unpaid entry paid; called when the payment
// provider reports the fee-balance checkout as completed.
func (s *LedgerService) SettleBalance(ctx context.Context, vendorID string) error {
	settled, err := s.ledgerRepo.MarkEntriesPaid(ctx, vendorID, s.now())
	if err != nil {
		return err
	}

	s.logger.Info("Vendor fee balance settled",
		zap.String("vendor_id", vendorID),
		zap.Int64("entries", settled))
	return nil
}

// FeeBalanceIdempotencyKey is stable for a given vendor and balance
// amount; a balance change (new entries landing) produces a new key.
func FeeBalanceIdempotencyKey(vendorID string, balanceCents int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("fee_balance:%s:%d", vendorID, balanceCents)))
	return hex.EncodeToString(sum[:])
}
