package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stallside/stallside-orders-service/internal/apperr"
	"github.com/stallside/stallside-orders-service/internal/clients"
	"github.com/stallside/stallside-orders-service/internal/config"
	"github.com/stallside/stallside-orders-service/internal/models"
)

// memOrderRepo mirrors the conditional-update semantics of the Postgres
// repository closely enough to exercise the handshake protocol.
type memOrderRepo struct {
	mu     sync.Mutex
	orders map[string]*models.Order
	items  map[string]*models.OrderItem
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders: make(map[string]*models.Order),
		items:  make(map[string]*models.OrderItem),
	}
}

func (r *memOrderRepo) CreateOrder(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order
	for _, item := range order.Items {
		r.items[item.ID] = item
	}
	return nil
}

func (r *memOrderRepo) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *order
	copied.Items = nil
	for _, item := range r.items {
		if item.OrderID == id {
			itemCopy := *item
			copied.Items = append(copied.Items, &itemCopy)
		}
	}
	return &copied, nil
}

func (r *memOrderRepo) GetItem(ctx context.Context, id string) (*models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	copied := *item
	return &copied, nil
}

func (r *memOrderRepo) ItemsByOrder(ctx context.Context, orderID string) ([]*models.OrderItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var items []*models.OrderItem
	for _, item := range r.items {
		if item.OrderID == orderID {
			copied := *item
			items = append(items, &copied)
		}
	}
	return items, nil
}

func (r *memOrderRepo) UpdateOrderStatus(ctx context.Context, id string, status models.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return apperr.ErrNotFound
	}
	order.Status = status
	return nil
}

func (r *memOrderRepo) UpdateItemStatus(ctx context.Context, id string, status models.ItemStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[id]
	if !ok {
		return apperr.ErrNotFound
	}
	item.Status = status
	if status.IsTerminal() {
		item.ConfirmationWindowExpiresAt = nil
	}
	return nil
}

func (r *memOrderRepo) SetConfirmation(ctx context.Context, itemID string, role models.Role, confirmedAt, windowExpiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return apperr.ErrNotFound
	}
	if role == models.RoleBuyer {
		item.BuyerConfirmedAt = &confirmedAt
	} else {
		item.VendorConfirmedAt = &confirmedAt
	}
	// Window only opens once; a second confirmation never extends it.
	if item.ConfirmationWindowExpiresAt == nil {
		item.ConfirmationWindowExpiresAt = &windowExpiresAt
	}
	return nil
}

func (r *memOrderRepo) ResetConfirmations(ctx context.Context, itemID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return apperr.ErrNotFound
	}
	item.BuyerConfirmedAt = nil
	item.VendorConfirmedAt = nil
	item.ConfirmationWindowExpiresAt = nil
	return nil
}

func (r *memOrderRepo) CompletePickup(ctx context.Context, itemID string, completedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if item.Status != models.ItemStatusReady {
		return false, nil
	}
	item.Status = models.ItemStatusFulfilled
	item.ConfirmationWindowExpiresAt = nil
	if item.Subscription {
		item.CyclesCompleted++
	}
	return true, nil
}

func (r *memOrderRepo) ReportIssue(ctx context.Context, itemID string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.items[itemID]
	if !ok {
		return false, apperr.ErrNotFound
	}
	if item.IssueReportedAt != nil {
		return false, nil
	}
	item.IssueReportedAt = &at
	return true, nil
}

type memMarketRepo struct {
	markets  map[string]*models.Market
	listings map[string][]string
}

func newMemMarketRepo() *memMarketRepo {
	return &memMarketRepo{
		markets:  make(map[string]*models.Market),
		listings: make(map[string][]string),
	}
}

func (r *memMarketRepo) GetMarket(ctx context.Context, id string) (*models.Market, error) {
	market, ok := r.markets[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return market, nil
}

func (r *memMarketRepo) MarketsForListing(ctx context.Context, listingID string) ([]*models.Market, error) {
	var markets []*models.Market
	for _, id := range r.listings[listingID] {
		if m, ok := r.markets[id]; ok {
			markets = append(markets, m)
		}
	}
	return markets, nil
}

type memLedgerRepo struct {
	mu      sync.Mutex
	entries []*models.VendorFeeEntry
}

func newMemLedgerRepo() *memLedgerRepo {
	return &memLedgerRepo{}
}

func (r *memLedgerRepo) CreateEntry(ctx context.Context, entry *models.VendorFeeEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memLedgerRepo) UnpaidEntries(ctx context.Context, vendorID string) ([]*models.VendorFeeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var unpaid []*models.VendorFeeEntry
	for _, e := range r.entries {
		if e.VendorID == vendorID && e.Status == models.FeeEntryPending {
			unpaid = append(unpaid, e)
		}
	}
	return unpaid, nil
}

func (r *memLedgerRepo) MarkEntriesPaid(ctx context.Context, vendorID string, paidAt time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var settled int64
	for _, e := range r.entries {
		if e.VendorID == vendorID && e.Status == models.FeeEntryPending {
			e.Status = models.FeeEntryPaid
			e.PaidAt = &paidAt
			settled++
		}
	}
	return settled, nil
}

// noopCache satisfies both cache contracts with permanent misses.
type noopCache struct{}

func (noopCache) Get(ctx context.Context, id string) (*models.Order, error)     { return nil, nil }
func (noopCache) Set(ctx context.Context, order *models.Order) error            { return nil }
func (noopCache) Delete(ctx context.Context, id string) error                   { return nil }
func (noopCache) GetListingAvailability(ctx context.Context, listingID string) (*models.ListingAvailability, error) {
	return nil, nil
}
func (noopCache) SetListingAvailability(ctx context.Context, avail *models.ListingAvailability) error {
	return nil
}

// stubPublisher records published event types. Defined here rather than
// reusing the Kafka package's mock to keep this package free of a
// dependency on its own consumer.
type stubPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *stubPublisher) record(event string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *stubPublisher) has(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == event {
			return true
		}
	}
	return false
}

func (p *stubPublisher) PublishOrderCreated(ctx context.Context, order *models.Order) error {
	p.record("order.created")
	return nil
}

func (p *stubPublisher) PublishOrderStatusChanged(ctx context.Context, order *models.Order, previous models.OrderStatus) error {
	p.record("order.status_changed")
	return nil
}

func (p *stubPublisher) PublishItemEvent(ctx context.Context, eventType string, item *models.OrderItem) error {
	p.record(eventType)
	return nil
}

func (p *stubPublisher) PublishLedgerEntryCreated(ctx context.Context, entry *models.VendorFeeEntry) error {
	p.record("ledger.entry_created")
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Fees: config.FeeConfig{
			BuyerPercent:    0.065,
			BuyerFlatCents:  15,
			VendorPercent:   0.065,
			VendorFlatCents: 15,
		},
		Minimums: config.MinimumConfig{
			DefaultCents: 500,
			ByVertical: map[string]int64{
				"farmers_market": 500,
				"food_truck":     800,
				"fireworks":      2000,
			},
		},
		Cutoff: config.CutoffConfig{
			TraditionalHours:            12,
			DirectHours:                 2,
			TraditionalClosingSoonHours: 6,
			DirectClosingSoonHours:      1,
		},
		Pickup: config.PickupConfig{
			ConfirmationWindow: 30 * time.Second,
		},
		Ledger: config.LedgerConfig{
			BalanceThresholdCents: 2500,
			MaxUnpaidAge:          30 * 24 * time.Hour,
		},
		Features: config.FeatureFlags{
			EnableOrderCaching: false,
			EnableOrderEvents:  true,
		},
	}
}

// testEnv wires every service against the in-memory stores with a
// controllable clock.
type testEnv struct {
	orderRepo  *memOrderRepo
	marketRepo *memMarketRepo
	ledgerRepo *memLedgerRepo
	payments   *clients.MockPaymentClient
	notifier   *clients.MockNotificationClient
	publisher  *stubPublisher
	cfg        *config.Config

	availability *AvailabilityService
	ledger       *LedgerService
	orders       *OrderService
	pickup       *PickupService

	clock time.Time
}

func newTestEnv() *testEnv {
	env := &testEnv{
		orderRepo:  newMemOrderRepo(),
		marketRepo: newMemMarketRepo(),
		ledgerRepo: newMemLedgerRepo(),
		payments:   clients.NewMockPaymentClient(),
		notifier:   clients.NewMockNotificationClient(),
		publisher:  &stubPublisher{},
		cfg:        testConfig(),
		clock:      time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}

	logger := zap.NewNop()
	now := func() time.Time { return env.clock }

	env.availability = NewAvailabilityService(env.marketRepo, noopCache{}, env.cfg, logger)
	env.availability.now = now

	env.ledger = NewLedgerService(env.ledgerRepo, env.payments, env.publisher, env.cfg, logger)
	env.ledger.now = now

	env.orders = NewOrderService(env.orderRepo, noopCache{}, env.availability, env.ledger, env.notifier, env.publisher, env.cfg, logger)
	env.orders.now = now

	env.pickup = NewPickupService(env.orderRepo, env.orders, env.notifier, env.publisher, env.cfg, logger)
	env.pickup.now = now

	return env
}

func (env *testEnv) advance(d time.Duration) {
	env.clock = env.clock.Add(d)
}

// addSaturdayMarket registers an open traditional market whose next
// occurrence (Saturday 08:00 UTC) is days away from the test clock.
func (env *testEnv) addSaturdayMarket(id string) {
	env.marketRepo.markets[id] = &models.Market{
		ID:       id,
		Name:     "Test Market",
		Type:     models.MarketTypeTraditional,
		Timezone: "UTC",
		Schedules: []models.MarketSchedule{
			{ID: "sch_" + id, MarketID: id, DayOfWeek: time.Saturday, StartMinute: 8 * 60, EndMinute: 13 * 60, Active: true},
		},
	}
}

// seedReadyItem persists an order with one ready item, skipping checkout.
func (env *testEnv) seedReadyItem(orderID, itemID, buyerID, vendorID string, subscription bool) {
	now := env.clock
	order := &models.Order{
		ID:            orderID,
		BuyerID:       buyerID,
		Vertical:      models.VerticalFarmersMarket,
		Status:        models.OrderStatusPaid,
		PaymentMethod: models.PaymentMethodProcessor,
		CreatedAt:     now,
		UpdatedAt:     now,
		Items: []*models.OrderItem{
			{
				ID:             itemID,
				OrderID:        orderID,
				VendorID:       vendorID,
				ListingID:      "lst_1",
				Quantity:       1,
				UnitPriceCents: 1000,
				SubtotalCents:  1000,
				Status:         models.ItemStatusReady,
				Subscription:   subscription,
				CreatedAt:      now,
				UpdatedAt:      now,
			},
		},
	}
	env.orderRepo.CreateOrder(context.Background(), order)
}
