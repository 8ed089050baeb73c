package models

import "time"

// MarketType distinguishes markets with shared physical setup
// (traditional stalls) from direct-to-buyer pickup points. Cutoff and
// closing-soon defaults differ by type.
type MarketType string

const (
	MarketTypeTraditional MarketType = "traditional"
	MarketTypeDirect      MarketType = "direct"
)

// MarketSchedule is a simple weekly day/time rule. StartMinute and
// EndMinute are minutes after local midnight.
type MarketSchedule struct {
	ID          string       `json:"id"`
	MarketID    string       `json:"market_id"`
	DayOfWeek   time.Weekday `json:"day_of_week"`
	StartMinute int          `json:"start_minute"`
	EndMinute   int          `json:"end_minute"`
	Active      bool         `json:"active"`
}

// Market is a pickup location with weekly schedules and a cutoff policy.
// CutoffHours and ClosingSoonHours, when non-nil, override the type
// defaults.
type Market struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Type             MarketType       `json:"type"`
	Timezone         string           `json:"timezone"`
	CutoffHours      *int             `json:"cutoff_hours,omitempty"`
	ClosingSoonHours *int             `json:"closing_soon_hours,omitempty"`
	Schedules        []MarketSchedule `json:"schedules,omitempty"`
}

// MarketAvailability is the derived availability of a single market.
// Never persisted as truth; recomputed on every read.
type MarketAvailability struct {
	MarketID       string    `json:"market_id"`
	NextOccurrence time.Time `json:"next_occurrence"`
	CutoffAt       time.Time `json:"cutoff_at"`
	IsAccepting    bool      `json:"is_accepting"`
}

// ListingAvailability aggregates availability across the markets a
// listing is sold at.
type ListingAvailability struct {
	ListingID   string               `json:"listing_id"`
	IsAccepting bool                 `json:"is_accepting"`
	ClosingSoon bool                 `json:"closing_soon"`
	// SoonestCutoffAt is the earliest cutoff among currently-open
	// markets; zero when nothing is open.
	SoonestCutoffAt *time.Time           `json:"soonest_cutoff_at,omitempty"`
	Markets         []MarketAvailability `json:"markets"`
	ComputedAt      time.Time            `json:"computed_at"`
}
