package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/models"
)

func TestRecordExternalSale(t *testing.T) {
	env := newTestEnv()

	item := &models.OrderItem{
		ID:            "itm_1",
		OrderID:       "ord_1",
		VendorID:      "usr_vendor",
		SubtotalCents: 1000,
	}

	entry, err := env.ledger.RecordExternalSale(context.Background(), item)
	require.NoError(t, err)

	assert.Equal(t, "usr_vendor", entry.VendorID)
	assert.Equal(t, "itm_1", entry.OrderItemID)
	assert.Equal(t, int64(80), entry.AmountCents)
	assert.Equal(t, models.FeeEntryPending, entry.Status)
	assert.True(t, env.publisher.has("ledger.entry_created"))
}

func TestGetBalance_RequiresPayment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("empty balance", func(t *testing.T) {
		balance, err := env.ledger.GetBalance(ctx, "usr_vendor")
		require.NoError(t, err)
		assert.Zero(t, balance.BalanceCents)
		assert.False(t, balance.RequiresPayment)
	})

	t.Run("below threshold and young", func(t *testing.T) {
		_, err := env.ledger.RecordExternalSale(ctx, &models.OrderItem{
			ID: "itm_1", VendorID: "usr_vendor", SubtotalCents: 1000,
		})
		require.NoError(t, err)

		balance, err := env.ledger.GetBalance(ctx, "usr_vendor")
		require.NoError(t, err)
		assert.Equal(t, int64(80), balance.BalanceCents)
		assert.False(t, balance.RequiresPayment)
	})

	t.Run("crossing the threshold demands payment", func(t *testing.T) {
		// 80 + 80 + 2470 >= 2500.
		_, err := env.ledger.RecordExternalSale(ctx, &models.OrderItem{
			ID: "itm_2", VendorID: "usr_vendor", SubtotalCents: 1000,
		})
		require.NoError(t, err)
		_, err = env.ledger.RecordExternalSale(ctx, &models.OrderItem{
			ID: "itm_3", VendorID: "usr_vendor", SubtotalCents: 36000,
		})
		require.NoError(t, err)

		balance, err := env.ledger.GetBalance(ctx, "usr_vendor")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, balance.BalanceCents, int64(2500))
		assert.True(t, balance.RequiresPayment)
	})
}

func TestGetBalance_OldEntryDemandsPayment(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.ledger.RecordExternalSale(ctx, &models.OrderItem{
		ID: "itm_1", VendorID: "usr_vendor", SubtotalCents: 1000,
	})
	require.NoError(t, err)

	env.advance(29 * 24 * time.Hour)
	balance, err := env.ledger.GetBalance(ctx, "usr_vendor")
	require.NoError(t, err)
	assert.False(t, balance.RequiresPayment)

	env.advance(24 * time.Hour)
	balance, err = env.ledger.GetBalance(ctx, "usr_vendor")
	require.NoError(t, err)
	assert.True(t, balance.RequiresPayment)
	assert.Equal(t, 30*24*time.Hour, balance.OldestUnpaidAge)
}

func TestPayBalance(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	t.Run("nothing to pay", func(t *testing.T) {
		_, err := env.ledger.PayBalance(ctx, "usr_vendor")
		require.Error(t, err)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})

	t.Run("opens a checkout session for the full balance", func(t *testing.T) {
		_, err := env.ledger.RecordExternalSale(ctx, &models.OrderItem{
			ID: "itm_1", VendorID: "usr_vendor", SubtotalCents: 1000,
		})
		require.NoError(t, err)

		session, err := env.ledger.PayBalance(ctx, "usr_vendor")
		require.NoError(t, err)
		assert.NotEmpty(t, session.SessionID)

		require.Len(t, env.payments.Sessions, 1)
		req := env.payments.Sessions[0]
		assert.Equal(t, "fee_balance", req.Purpose)
		assert.Equal(t, "usr_vendor", req.ReferenceID)
		assert.Equal(t, int64(80), req.AmountCents)
		assert.Equal(t, FeeBalanceIdempotencyKey("usr_vendor", 80), req.IdempotencyKey)
	})

	t.Run("retry reuses the idempotency key", func(t *testing.T) {
		_, err := env.ledger.PayBalance(ctx, "usr_vendor")
		require.NoError(t, err)

		require.Len(t, env.payments.Sessions, 2)
		assert.Equal(t, env.payments.Sessions[0].IdempotencyKey, env.payments.Sessions[1].IdempotencyKey)
	})
}

func TestSettleBalance(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()

	_, err := env.ledger.RecordExternalSale(ctx, &models.OrderItem{
		ID: "itm_1", VendorID: "usr_vendor", SubtotalCents: 1000,
	})
	require.NoError(t, err)
	_, err = env.ledger.RecordExternalSale(ctx, &models.OrderItem{
		ID: "itm_2", VendorID: "usr_vendor", SubtotalCents: 2000,
	})
	require.NoError(t, err)

	require.NoError(t, env.ledger.SettleBalance(ctx, "usr_vendor"))

	balance, err := env.ledger.GetBalance(ctx, "usr_vendor")
	require.NoError(t, err)
	assert.Zero(t, balance.BalanceCents)
	assert.Zero(t, balance.UnpaidEntries)
	assert.False(t, balance.RequiresPayment)
}

func TestFeeBalanceIdempotencyKey(t *testing.T) {
	a := FeeBalanceIdempotencyKey("usr_vendor", 2500)
	b := FeeBalanceIdempotencyKey("usr_vendor", 2500)
	assert.Equal(t, a, b)

	// A changed balance produces a new key.
	c := FeeBalanceIdempotencyKey("usr_vendor", 2600)
	assert.NotEqual(t, a, c)

	d := FeeBalanceIdempotencyKey("usr_other", 2500)
	assert.NotEqual(t, a, d)
}
