package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/models"
)

// PostgresOrderRepository implements OrderRepository using PostgreSQL.
type PostgresOrderRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ OrderRepository = (*PostgresOrderRepository)(nil)

func NewPostgresOrderRepository(db *sql.DB, logger *zap.Logger) *PostgresOrderRepository {
	return &PostgresOrderRepository{
		db:     db,
		logger: logger.Named("order-repository"),
	}
}

// CreateOrder inserts the order row and all item rows.
func (r *PostgresOrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	r.logger.Debug("Creating order", zap.String("order_id", order.ID))

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	orderQuery := `
		INSERT INTO orders (
			id, buyer_id, vertical, status, payment_method,
			subtotal_cents, buyer_total_cents, vendor_payout_cents, platform_fee_cents,
			pickup_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, orderQuery,
		order.ID,
		order.BuyerID,
		order.Vertical,
		order.Status,
		order.PaymentMethod,
		order.Pricing.SubtotalCents,
		order.Pricing.BuyerTotalCents,
		order.Pricing.VendorPayoutCents,
		order.Pricing.PlatformFeeCents,
		order.PickupAt,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to insert order", zap.String("order_id", order.ID), zap.Error(err))
		return err
	}

	itemQuery := `
		INSERT INTO order_items (
			id, order_id, vendor_id, listing_id, quantity, unit_price_cents,
			subtotal_cents, status, subscription, cycles_completed, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, item := range order.Items {
		_, err = tx.ExecContext(ctx, itemQuery,
			item.ID,
			item.OrderID,
			item.VendorID,
			item.ListingID,
			item.Quantity,
			item.UnitPriceCents,
			item.SubtotalCents,
			item.Status,
			item.Subscription,
			item.CyclesCompleted,
			item.CreatedAt,
			item.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to insert order item",
				zap.String("order_id", order.ID),
				zap.String("item_id", item.ID),
				zap.Error(err))
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	r.logger.Info("Order created",
		zap.String("order_id", order.ID),
		zap.Int("items", len(order.Items)),
		zap.Int64("buyer_total_cents", order.Pricing.BuyerTotalCents))
	return nil
}

func (r *PostgresOrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `
		SELECT id, buyer_id, vertical, status, payment_method,
		       subtotal_cents, buyer_total_cents, vendor_payout_cents, platform_fee_cents,
		       pickup_at, created_at, updated_at
		FROM orders
		WHERE id = $1
	`

	var order models.Order
	var pickupAt sql.NullTime

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.BuyerID,
		&order.Vertical,
		&order.Status,
		&order.PaymentMethod,
		&order.Pricing.SubtotalCents,
		&order.Pricing.BuyerTotalCents,
		&order.Pricing.VendorPayoutCents,
		&order.Pricing.PlatformFeeCents,
		&pickupAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch order", zap.String("order_id", id), zap.Error(err))
		return nil, err
	}
	if pickupAt.Valid {
		order.PickupAt = &pickupAt.Time
	}

	items, err := r.ItemsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return &order, nil
}

const itemColumns = `
	id, order_id, vendor_id, listing_id, quantity, unit_price_cents,
	subtotal_cents, status, buyer_confirmed_at, vendor_confirmed_at,
	confirmation_window_expires_at, issue_reported_at, subscription,
	cycles_completed, created_at, updated_at
`

func (r *PostgresOrderRepository) GetItem(ctx context.Context, id string) (*models.OrderItem, error) {
	query := `SELECT ` + itemColumns + ` FROM order_items WHERE id = $1`

	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch item", zap.String("item_id", id), zap.Error(err))
		return nil, err
	}
	return item, nil
}

func (r *PostgresOrderRepository) ItemsByOrder(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	query := `SELECT ` + itemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*models.OrderItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *PostgresOrderRepository) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	query := `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		r.logger.Error("Failed to update order status", zap.String("order_id", id), zap.Error(err))
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}

	r.logger.Info("Order status updated",
		zap.String("order_id", id),
		zap.String("status", string(status)))
	return nil
}

func (r *PostgresOrderRepository) UpdateItemStatus(ctx context.Context, id string, status models.ItemStatus) error {
	// Terminal statuses clear any open confirmation window.
	query := `
		UPDATE order_items
		SET status = $2,
		    confirmation_window_expires_at = CASE WHEN $2 IN ('fulfilled', 'cancelled', 'refunded')
		                                          THEN NULL
		                                          ELSE confirmation_window_expires_at END,
		    updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, time.Now())
	if err != nil {
		r.logger.Error("Failed to update item status", zap.String("item_id", id), zap.Error(err))
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}

	r.logger.Info("Item status updated",
		zap.String("item_id", id),
		zap.String("status", string(status)))
	return nil
}

// SetConfirmation writes one side's timestamp. The window is only set
// when no window is currently open, so a second confirmation inside the
// window does not extend it.
func (r *PostgresOrderRepository) SetConfirmation(ctx context.Context, itemID string, role models.Role, confirmedAt, windowExpiresAt time.Time) error {
	column := "vendor_confirmed_at"
	if role == models.RoleBuyer {
		column = "buyer_confirmed_at"
	}

	query := `
		UPDATE order_items
		SET ` + column + ` = $2,
		    confirmation_window_expires_at = COALESCE(confirmation_window_expires_at, $3),
		    updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, confirmedAt, windowExpiresAt)
	if err != nil {
		r.logger.Error("Failed to set confirmation",
			zap.String("item_id", itemID),
			zap.String("role", string(role)),
			zap.Error(err))
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *PostgresOrderRepository) ResetConfirmations(ctx context.Context, itemID string) error {
	query := `
		UPDATE order_items
		SET buyer_confirmed_at = NULL,
		    vendor_confirmed_at = NULL,
		    confirmation_window_expires_at = NULL,
		    updated_at = $2
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, itemID, time.Now())
	if err != nil {
		r.logger.Error("Failed to reset confirmations", zap.String("item_id", itemID), zap.Error(err))
		return err
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return apperr.ErrNotFound
	}

	r.logger.Info("Confirmation window expired, handshake reset", zap.String("item_id", itemID))
	return nil
}

// CompletePickup is guarded on status so racing completions resolve to a
// single winner; the loser observes zero rows affected.
func (r *PostgresOrderRepository) CompletePickup(ctx context.Context, itemID string, completedAt time.Time) (bool, error) {
	query := `
		UPDATE order_items
		SET status = 'fulfilled',
		    confirmation_window_expires_at = NULL,
		    cycles_completed = cycles_completed + CASE WHEN subscription THEN 1 ELSE 0 END,
		    updated_at = $2
		WHERE id = $1 AND status = 'ready'
	`

	result, err := r.db.ExecContext(ctx, query, itemID, completedAt)
	if err != nil {
		r.logger.Error("Failed to complete pickup", zap.String("item_id", itemID), zap.Error(err))
		return false, err
	}
	affected, _ := result.RowsAffected()
	if affected > 0 {
		r.logger.Info("Pickup completed", zap.String("item_id", itemID))
	}
	return affected > 0, nil
}

// ReportIssue is guarded on issue_reported_at so a second report observes
// zero rows affected and surfaces as a conflict upstream.
func (r *PostgresOrderRepository) ReportIssue(ctx context.Context, itemID string, at time.Time) (bool, error) {
	query := `
		UPDATE order_items
		SET issue_reported_at = $2, updated_at = $2
		WHERE id = $1 AND issue_reported_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, itemID, at)
	if err != nil {
		r.logger.Error("Failed to report issue", zap.String("item_id", itemID), zap.Error(err))
		return false, err
	}
	affected, _ := result.RowsAffected()
	return affected > 0, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanItem(row rowScanner) (*models.OrderItem, error) {
	var item models.OrderItem
	var buyerConfirmedAt, vendorConfirmedAt, windowExpiresAt, issueReportedAt sql.NullTime

	err := row.Scan(
		&item.ID,
		&item.OrderID,
		&item.VendorID,
		&item.ListingID,
		&item.Quantity,
		&item.UnitPriceCents,
		&item.SubtotalCents,
		&item.Status,
		&buyerConfirmedAt,
		&vendorConfirmedAt,
		&windowExpiresAt,
		&issueReportedAt,
		&item.Subscription,
		&item.CyclesCompleted,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if buyerConfirmedAt.Valid {
		item.BuyerConfirmedAt = &buyerConfirmedAt.Time
	}
	if vendorConfirmedAt.Valid {
		item.VendorConfirmedAt = &vendorConfirmedAt.Time
	}
	if windowExpiresAt.Valid {
		item.ConfirmationWindowExpiresAt = &windowExpiresAt.Time
	}
	if issueReportedAt.Valid {
		item.IssueReportedAt = &issueReportedAt.Time
	}
	return &item, nil
}
