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

var (
	buyer  = Actor{ID: "usr_buyer", Role: models.RoleBuyer}
	vendor = Actor{ID: "usr_vendor", Role: models.RoleVendor}
)

func TestConfirm_BothPartiesComplete(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)
	start := env.clock

	first, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)
	assert.False(t, first.Completed)
	assert.False(t, first.WindowExpired)
	require.NotNil(t, first.WindowExpiresAt)
	assert.Equal(t, start.Add(30*time.Second), *first.WindowExpiresAt)

	env.advance(10 * time.Second)

	second, err := env.pickup.Confirm(context.Background(), "itm_1", vendor)
	require.NoError(t, err)
	assert.True(t, second.Completed)
	assert.Nil(t, second.WindowExpiresAt)

	// Both timestamps survive completion.
	item, err := env.orderRepo.GetItem(context.Background(), "itm_1")
	require.NoError(t, err)
	assert.Equal(t, models.ItemStatusFulfilled, item.Status)
	require.NotNil(t, item.BuyerConfirmedAt)
	require.NotNil(t, item.VendorConfirmedAt)
	assert.Equal(t, start, *item.BuyerConfirmedAt)
	assert.Equal(t, start.Add(10*time.Second), *item.VendorConfirmedAt)
	assert.Nil(t, item.ConfirmationWindowExpiresAt)

	// The single fulfilled item carries the order.
	order, err := env.orderRepo.GetOrder(context.Background(), "ord_1")
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusFulfilled, order.Status)

	assert.True(t, env.publisher.has(EventPickupCompleted))
}

func TestConfirm_VendorFirstWorksToo(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)

	first, err := env.pickup.Confirm(context.Background(), "itm_1", vendor)
	require.NoError(t, err)
	assert.False(t, first.Completed)

	second, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)
	assert.True(t, second.Completed)
}

func TestConfirm_DuplicateIsConflict(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)

	_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)

	env.advance(5 * time.Second)

	_, err = env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.Error(t, err)
	assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
}

func TestConfirm_SecondConfirmationNeverExtendsWindow(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)
	start := env.clock

	_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)

	env.advance(20 * time.Second)

	// The counterparty's write carries its own candidate expiry, but an
	// already-open window is kept as is.
	err = env.orderRepo.SetConfirmation(context.Background(), "itm_1", models.RoleVendor, env.clock, env.clock.Add(30*time.Second))
	require.NoError(t, err)

	item, err := env.orderRepo.GetItem(context.Background(), "itm_1")
	require.NoError(t, err)
	require.NotNil(t, item.ConfirmationWindowExpiresAt)
	assert.Equal(t, start.Add(30*time.Second), *item.ConfirmationWindowExpiresAt)
}

func TestConfirm_ExpiredWindowResets(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)
	start := env.clock

	_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)

	env.advance(31 * time.Second)

	// The lapsed half-confirmation is voided; this acts as a fresh first
	// confirmation by the vendor.
	result, err := env.pickup.Confirm(context.Background(), "itm_1", vendor)
	require.NoError(t, err)
	assert.True(t, result.WindowExpired)
	assert.False(t, result.Completed)
	assert.Nil(t, result.BuyerConfirmedAt)
	require.NotNil(t, result.VendorConfirmedAt)
	require.NotNil(t, result.WindowExpiresAt)
	assert.Equal(t, start.Add(61*time.Second), *result.WindowExpiresAt)
}

func TestConfirm_ExpiryBoundaryIsStrict(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)

	_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)

	// Exactly at the expiry instant the window is already closed.
	env.advance(30 * time.Second)

	result, err := env.pickup.Confirm(context.Background(), "itm_1", vendor)
	require.NoError(t, err)
	assert.True(t, result.WindowExpired)
	assert.False(t, result.Completed)
}

func TestConfirm_SamePartyAfterExpiryIsFresh(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)

	_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)

	env.advance(45 * time.Second)

	// Not a duplicate: the old confirmation was voided by expiry.
	result, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)
	assert.True(t, result.WindowExpired)
	assert.False(t, result.Completed)
	require.NotNil(t, result.BuyerConfirmedAt)
}

func TestConfirm_Guards(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)

	t.Run("stranger sees not found", func(t *testing.T) {
		_, err := env.pickup.Confirm(context.Background(), "itm_1", Actor{ID: "usr_other", Role: models.RoleBuyer})
		assert.Equal(t, apperr.CodeNotFound, apperr.CodeOf(err))
	})

	t.Run("not awaiting pickup", func(t *testing.T) {
		env.orderRepo.items["itm_1"].Status = models.ItemStatusConfirmed
		_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
		assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
		env.orderRepo.items["itm_1"].Status = models.ItemStatusReady
	})

	t.Run("reported issue blocks confirmation", func(t *testing.T) {
		now := env.clock
		env.orderRepo.items["itm_1"].IssueReportedAt = &now
		_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
		assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	})
}

func TestConfirm_SubscriptionCycleIncrements(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", true)

	_, err := env.pickup.Confirm(context.Background(), "itm_1", buyer)
	require.NoError(t, err)
	result, err := env.pickup.Confirm(context.Background(), "itm_1", vendor)
	require.NoError(t, err)
	require.True(t, result.Completed)

	item, err := env.orderRepo.GetItem(context.Background(), "itm_1")
	require.NoError(t, err)
	assert.Equal(t, 1, item.CyclesCompleted)
}

func TestReportIssue(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)

	item, err := env.pickup.ReportIssue(context.Background(), "itm_1", buyer)
	require.NoError(t, err)
	require.NotNil(t, item.IssueReportedAt)
	// The item stays in ready; resolution belongs to support.
	assert.Equal(t, models.ItemStatusReady, item.Status)
	assert.True(t, env.publisher.has(EventPickupIssue))
}

func TestReportIssue_Guards(t *testing.T) {
	env := newTestEnv()
	env.seedReadyItem("ord_1", "itm_1", "usr_buyer", "usr_vendor", false)

	t.Run("vendor cannot report", func(t *testing.T) {
		_, err := env.pickup.ReportIssue(context.Background(), "itm_1", vendor)
		assert.Equal(t, apperr.CodeValidation, apperr.CodeOf(err))
	})

	t.Run("only once", func(t *testing.T) {
		_, err := env.pickup.ReportIssue(context.Background(), "itm_1", buyer)
		require.NoError(t, err)

		_, err = env.pickup.ReportIssue(context.Background(), "itm_1", buyer)
		assert.Equal(t, apperr.CodeConflict, apperr.CodeOf(err))
	})

	t.Run("not awaiting pickup", func(t *testing.T) {
		env.orderRepo.items["itm_1"].Status = models.ItemStatusFulfilled
		_, err := env.pickup.ReportIssue(context.Background(), "itm_1", buyer)
		assert.Equal(t, apperr.CodeInvalidTransition, apperr.CodeOf(err))
	})
}
