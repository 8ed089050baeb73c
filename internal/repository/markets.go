package repository

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/models"
)

// PostgresMarketRepository implements MarketRepository using PostgreSQL.
type PostgresMarketRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ MarketRepository = (*PostgresMarketRepository)(nil)

func NewPostgresMarketRepository(db *sql.DB, logger *zap.Logger) *PostgresMarketRepository {
	return &PostgresMarketRepository{
		db:     db,
		logger: logger.Named("market-repository"),
	}
}

func (r *PostgresMarketRepository) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	query := `
		SELECT id, name, type, timezone, cutoff_hours, closing_soon_hours
		FROM markets
		WHERE id = $1
	`

	market, err := scanMarket(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		r.logger.Error("Failed to fetch market", zap.String("market_id", id), zap.Error(err))
		return nil, err
	}

	schedules, err := r.schedulesForMarket(ctx, id)
	if err != nil {
		return nil, err
	}
	market.Schedules = schedules
	return market, nil
}

// MarketsForListing loads every market a listing is sold at, with
// schedules attached.
func (r *PostgresMarketRepository) MarketsForListing(ctx context.Context, listingID string) ([]*models.Market, error) {
	query := `
		SELECT m.id, m.name, m.type, m.timezone, m.cutoff_hours, m.closing_soon_hours
		FROM markets m
		JOIN listing_markets lm ON lm.market_id = m.id
		WHERE lm.listing_id = $1
	`

	rows, err := r.db.QueryContext(ctx, query, listingID)
	if err != nil {
		r.logger.Error("Failed to fetch markets for listing",
			zap.String("listing_id", listingID),
			zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	markets := make([]*models.Market, 0)
	for rows.Next() {
		market, err := scanMarket(rows)
		if err != nil {
			return nil, err
		}
		markets = append(markets, market)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, market := range markets {
		schedules, err := r.schedulesForMarket(ctx, market.ID)
		if err != nil {
			return nil, err
		}
		market.Schedules = schedules
	}
	return markets, nil
}

func (r *PostgresMarketRepository) schedulesForMarket(ctx context.Context, marketID string) ([]models.MarketSchedule, error) {
	query := `
		SELECT id, market_id, day_of_week, start_minute, end_minute, active
		FROM market_schedules
		WHERE market_id = $1
		ORDER BY day_of_week, start_minute
	`

	rows, err := r.db.QueryContext(ctx, query, marketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	schedules := make([]models.MarketSchedule, 0)
	for rows.Next() {
		var sched models.MarketSchedule
		var day int
		if err := rows.Scan(&sched.ID, &sched.MarketID, &day, &sched.StartMinute, &sched.EndMinute, &sched.Active); err != nil {
			return nil, err
		}
		sched.DayOfWeek = time.Weekday(day)
		schedules = append(schedules, sched)
	}
	return schedules, rows.Err()
}

func scanMarket(row rowScanner) (*models.Market, error) {
	var market models.Market
	var cutoffHours, closingSoonHours sql.NullInt64

	err := row.Scan(
		&market.ID,
		&market.Name,
		&market.Type,
		&market.Timezone,
		&cutoffHours,
		&closingSoonHours,
	)
	if err != nil {
		return nil, err
	}

	if cutoffHours.Valid {
		v := int(cutoffHours.Int64)
		market.CutoffHours = &v
	}
	if closingSoonHours.Valid {
		v := int(closingSoonHours.Int64)
		market.ClosingSoonHours = &v
	}
	return &market, nil
}
