package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stallside_orders_created_total",
		Help: "Orders created, by vertical and payment method.",
	}, []string{"vertical", "payment_method"})

	PickupsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stallside_pickups_completed_total",
		Help: "Pickup handshakes completed by both parties.",
	})

	PickupWindowsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stallside_pickup_windows_expired_total",
		Help: "Half-open confirmation windows observed expired and reset.",
	})

	PickupIssuesReported = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stallside_pickup_issues_reported_total",
		Help: "Pickup issues reported by buyers.",
	})

	LedgerEntriesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stallside_fee_ledger_entries_total",
		Help: "Vendor fee ledger entries created for externally-paid orders.",
	})
)
