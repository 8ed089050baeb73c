package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/models"
)

// PostgresLedgerRepository implements LedgerRepository using PostgreSQL.
type PostgresLedgerRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ LedgerRepository = (*PostgresLedgerRepository)(nil)

func NewPostgresLedgerRepository(db *sql.DB, logger *zap.Logger) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{
		db:     db,
		logger: logger.Named("ledger-repository"),
	}
}

func (r *PostgresLedgerRepository) CreateEntry(ctx context.Context, entry *models.VendorFeeEntry) error {
	query := `
		INSERT INTO vendor_fee_entries (id, vendor_id, order_item_id, amount_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.VendorID,
		entry.OrderItemID,
		entry.AmountCents,
		entry.Status,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create fee entry",
			zap.String("vendor_id", entry.VendorID),
			zap.String("order_item_id", entry.OrderItemID),
			zap.Error(err))
		return err
	}

	r.logger.Info("Fee entry created",
		zap.String("entry_id", entry.ID),
		zap.String("vendor_id", entry.VendorID),
		zap.Int64("amount_cents", entry.AmountCents))
	return nil
}

func (r *PostgresLedgerRepository) UnpaidEntries(ctx context.Context, vendorID string) ([]*models.VendorFeeEntry, error) {
	query := `
		SELECT id, vendor_id, order_item_id, amount_cents, status, created_at, paid_at
		FROM vendor_fee_entries
		WHERE vendor_id = $1 AND status = 'pending'
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, vendorID)
	if err != nil {
		r.logger.Error("Failed to list unpaid entries", zap.String("vendor_id", vendorID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	entries := make([]*models.VendorFeeEntry, 0)
	for rows.Next() {
		var entry models.VendorFeeEntry
		var paidAt sql.NullTime
		if err := rows.Scan(&entry.ID, &entry.VendorID, &entry.OrderItemID, &entry.AmountCents, &entry.Status, &entry.CreatedAt, &paidAt); err != nil {
			return nil, err
		}
		if paidAt.Valid {
			entry.PaidAt = &paidAt.Time
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func (r *PostgresLedgerRepository) MarkEntriesPaid(ctx context.Context, vendorID string, paidAt time.Time) (int64, error) {
	query := `
		UPDATE vendor_fee_entries
		SET status = 'paid', paid_at = $2
		WHERE vendor_id = $1 AND status = 'pending'
	`

	result, err := r.db.ExecContext(ctx, query, vendorID, paidAt)
	if err != nil {
		r.logger.Error("Failed to mark entries paid", zap.String("vendor_id", vendorID), zap.Error(err))
		return 0, err
	}
	affected, _ := result.RowsAffected()

	r.logger.Info("Fee entries marked paid",
		zap.String("vendor_id", vendorID),
		zap.Int64("entries", affected))
	return affected, nil
}
