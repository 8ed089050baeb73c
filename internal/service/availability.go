package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/models"
	"github.com/stallside/stallside-orders-service/internal/repository"
)

// AvailabilityService computes market occurrences and order cutoffs.
// Availability is recomputed on every read and never persisted as truth;
// the Redis cache only holds short-lived snapshots.
type AvailabilityService struct {
	marketRepo repository.MarketRepository
	cache      repository.AvailabilityCache
	config     *config.Config
	logger     *zap.Logger
	now        func() time.Time
}

func NewAvailabilityService(
	marketRepo repository.MarketRepository,
	cache repository.AvailabilityCache,
	cfg *config.Config,
	logger *zap.Logger,
) *AvailabilityService {
	return &AvailabilityService{
		marketRepo: marketRepo,
		cache:      cache,
		config:     cfg,
		logger:     logger.Named("availability-service"),
		now:        time.Now,
	}
}

// NextOccurrence returns the next concrete occurrence of a weekly
// schedule rule at or after now, in the given location. A schedule whose
// start time has already passed today rolls forward seven days.
func NextOccurrence(sched models.MarketSchedule, loc *time.Location, now time.Time) time.Time {
	local := now.In(loc)
	daysUntil := (int(sched.DayOfWeek) - int(local.Weekday()) + 7) % 7

	occurrence := time.Date(
		local.Year(), local.Month(), local.Day(),
		sched.StartMinute/60, sched.StartMinute%60, 0, 0, loc,
	).AddDate(0, 0, daysUntil)

	if !occurrence.After(now) {
		occurrence = occurrence.AddDate(0, 0, 7)
	}
	return occurrence
}

// CutoffHours resolves the effective cutoff policy for a market: the
// explicit per-market override when present, the type default otherwise.
func CutoffHours(market *models.Market, cfg config.CutoffConfig) int {
	if market.CutoffHours != nil {
		return *market.CutoffHours
	}
	if market.Type == models.MarketTypeDirect {
		return cfg.DirectHours
	}
	return cfg.TraditionalHours
}

// ClosingSoonHours resolves the closing-soon notice window for a market.
func ClosingSoonHours(market *models.Market, cfg config.CutoffConfig) int {
	if market.ClosingSoonHours != nil {
		return *market.ClosingSoonHours
	}
	if market.Type == models.MarketTypeDirect {
		return cfg.DirectClosingSoonHours
	}
	return cfg.TraditionalClosingSoonHours
}

// ComputeMarketAvailability derives the next occurrence and accepting
// flag for one market. With no active schedules the market never accepts.
// The cutoff boundary is strict: now exactly at the cutoff is closed.
func ComputeMarketAvailability(market *models.Market, cfg config.CutoffConfig, now time.Time) models.MarketAvailability {
	avail := models.MarketAvailability{MarketID: market.ID}

	loc, err := time.LoadLocation(market.Timezone)
	if err != nil {
		loc = time.UTC
	}

	var soonest time.Time
	for _, sched := range market.Schedules {
		if !sched.Active {
			continue
		}
		occ := NextOccurrence(sched, loc, now)
		if soonest.IsZero() || occ.Before(soonest) {
			soonest = occ
		}
	}
	if soonest.IsZero() {
		return avail
	}

	cutoff := soonest.Add(-time.Duration(CutoffHours(market, cfg)) * time.Hour)
	avail.NextOccurrence = soonest
	avail.CutoffAt = cutoff
	avail.IsAccepting = now.Before(cutoff)
	return avail
}

// ComputeListingAvailability aggregates across the markets a listing is
// sold at: accepting if any market is open; closing soon when the soonest
// cutoff among open markets falls within that market's own notice window.
func ComputeListingAvailability(listingID string, markets []*models.Market, cfg config.CutoffConfig, now time.Time) models.ListingAvailability {
	result := models.ListingAvailability{
		ListingID:  listingID,
		ComputedAt: now,
	}

	var soonestCutoff time.Time
	var soonestMarket *models.Market
	for _, market := range markets {
		avail := ComputeMarketAvailability(market, cfg, now)
		result.Markets = append(result.Markets, avail)
		if !avail.IsAccepting {
			continue
		}
		result.IsAccepting = true
		if soonestCutoff.IsZero() || avail.CutoffAt.Before(soonestCutoff) {
			soonestCutoff = avail.CutoffAt
			soonestMarket = market
		}
	}

	if soonestMarket != nil {
		cutoff := soonestCutoff
		result.SoonestCutoffAt = &cutoff
		notice := time.Duration(ClosingSoonHours(soonestMarket, cfg)) * time.Hour
		result.ClosingSoon = soonestCutoff.Sub(now) <= notice
	}
	return result
}

// CheckListing returns the current availability for a listing, serving
// short-lived snapshots from cache when enabled.
func (s *AvailabilityService) CheckListing(ctx context.Context, listingID string) (*models.ListingAvailability, error) {
	if s.config.Features.EnableOrderCaching {
		if cached, err := s.cache.GetListingAvailability(ctx, listingID); err == nil && cached != nil {
			s.logger.Debug("Availability cache hit", zap.String("listing_id", listingID))
			return cached, nil
		}
	}

	markets, err := s.marketRepo.MarketsForListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, apperr.ErrNotFound
	}

	result := ComputeListingAvailability(listingID, markets, s.config.Cutoff, s.now())

	if s.config.Features.EnableOrderCaching {
		if err := s.cache.SetListingAvailability(ctx, &result); err != nil {
			s.logger.Error("Failed to cache availability",
				zap.String("listing_id", listingID),
				zap.Error(err))
		}
	}
	return &result, nil
}

// MarketAccepting reports whether a single market currently accepts
// orders. Used as the checkout eligibility gate.
func (s *AvailabilityService) MarketAccepting(ctx context.Context, marketID string) (*models.MarketAvailability, error) {
	market, err := s.marketRepo.GetMarket(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if market == nil {
		return nil, apperr.ErrNotFound
	}
	avail := ComputeMarketAvailability(market, s.config.Cutoff, s.now())
	return &avail, nil
}
