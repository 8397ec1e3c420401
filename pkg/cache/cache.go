// Package cache is the in-memory store of current and historical exchange
// rates. It owns the rate maps exclusively; every write also derives and
// stores the inverse rate, and bulk ingestion synthesizes cross-rates among
// a small set of common currencies to cut future misses.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/fluxfin/fxengine/pkg/currency"
	"github.com/fluxfin/fxengine/pkg/exchange"
)

// DefaultRetention bounds how long historical entries are kept. A rate for
// a past date never goes stale, but memory does.
const DefaultRetention = 90 * 24 * time.Hour

// approxEntryBytes is the rough in-memory footprint of one cached rate,
// used only for the statistics report.
const approxEntryBytes = 112

// histKey keys historical entries by pair and day-normalized date.
type histKey struct {
	pair currency.Pair
	day  string
}

// Stats summarizes cache contents.
type Stats struct {
	TotalEntries      int       `json:"total_entries"`
	FreshEntries      int       `json:"fresh_entries"`
	HistoricalEntries int       `json:"historical_entries"`
	LastUpdate        time.Time `json:"last_update"`
	ApproxBytes       int       `json:"approx_bytes"`
}

// Cache stores current rates keyed by pair and historical rates keyed by
// pair and day. All mutation goes through its mutex; the snapshot store, if
// any, is written through on every mutation and its failures are swallowed.
type Cache struct {
	mu         sync.RWMutex
	ttl        time.Duration
	retention  time.Duration
	rates      map[currency.Pair]*exchange.Rate
	historical map[histKey]*exchange.Rate
	lastUpdate time.Time
	cross      []currency.Currency
	store      SnapshotStore
	logger     *slog.Logger
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the default 4h freshness window for current rates.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithRetention overrides the historical retention window.
func WithRetention(d time.Duration) Option {
	return func(c *Cache) { c.retention = d }
}

// WithStore attaches a write-through snapshot store. The in-memory maps
// stay authoritative even when the store fails.
func WithStore(store SnapshotStore) Option {
	return func(c *Cache) { c.store = store }
}

// WithCrossCurrencies overrides the common-currency subset used for
// cross-rate synthesis during bulk ingestion.
func WithCrossCurrencies(codes []currency.Currency) Option {
	return func(c *Cache) { c.cross = codes }
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// WithClock substitutes the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a cache and, when a store is attached, loads the persisted
// snapshot once.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:        exchange.DefaultTTL,
		retention:  DefaultRetention,
		rates:      make(map[currency.Pair]*exchange.Rate),
		historical: make(map[histKey]*exchange.Rate),
		cross:      currency.Common,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "rate_cache")
	if c.store != nil {
		c.load()
	}
	return c
}

// GetRate returns the cached rate for a pair, expired or not. The caller
// decides whether an expired rate is usable; the service treats it as a
// miss and refetches.
func (c *Cache) GetRate(from, to currency.Currency) (*exchange.Rate, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.rates[currency.Pair{From: from, To: to}]
	return r, ok
}

// SaveRate stores a rate and its derived inverse, overwriting prior entries
// for the same pairs.
func (c *Cache) SaveRate(rate *exchange.Rate) {
	c.mu.Lock()
	c.put(rate)
	c.lastUpdate = c.now().UTC()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snap)
}

// SaveRates expands one bulk fetch into direct entries, inverse entries,
// and cross-rates among the configured common currencies. The cross-rate
// for A→B is chained through the base: (base→B) / (base→A).
func (c *Cache) SaveRates(set *exchange.RateSet) {
	if set == nil || len(set.Rates) == 0 {
		return
	}

	c.mu.Lock()
	for _, r := range set.Rates {
		c.put(r)
	}
	crossCount := 0
	for _, a := range c.cross {
		ra, okA := set.Rates[a]
		if !okA || a == set.Base {
			continue
		}
		for _, b := range c.cross {
			if b == a || b == set.Base {
				continue
			}
			rb, okB := set.Rates[b]
			if !okB {
				continue
			}
			cross, err := exchange.NewRate(
				a, b, rb.Value/ra.Value, set.FetchedAt, ra.Source,
			)
			if err != nil {
				continue
			}
			c.rates[cross.Pair()] = cross
			crossCount++
		}
	}
	c.lastUpdate = c.now().UTC()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.logger.Debug("bulk rates ingested",
		"base", set.Base, "direct", len(set.Rates), "cross", crossCount)
	c.persist(snap)
}

// GetHistoricalRate returns the stored rate for a pair on a calendar day.
func (c *Cache) GetHistoricalRate(
	from, to currency.Currency,
	date time.Time,
) (*exchange.Rate, bool) {
	key := histKey{
		pair: currency.Pair{From: from, To: to},
		day:  exchange.NormalizeDate(date).Format("2006-01-02"),
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.historical[key]
	return r, ok
}

// SaveHistoricalRate stores a historical rate and its inverse, keyed by the
// rate's day-normalized observation date.
func (c *Cache) SaveHistoricalRate(rate *exchange.Rate) {
	day := exchange.NormalizeDate(rate.ObservedAt).Format("2006-01-02")

	c.mu.Lock()
	c.historical[histKey{pair: rate.Pair(), day: day}] = rate
	inv := rate.Inverse()
	c.historical[histKey{pair: inv.Pair(), day: day}] = inv
	c.lastUpdate = c.now().UTC()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snap)
}

// ClearExpired drops current rates older than the TTL and historical rates
// older than the retention window.
func (c *Cache) ClearExpired() {
	now := c.now()

	c.mu.Lock()
	dropped := 0
	for pair, r := range c.rates {
		if r.Expired(c.ttl, now) {
			delete(c.rates, pair)
			dropped++
		}
	}
	for key, r := range c.historical {
		if now.Sub(r.ObservedAt) > c.retention {
			delete(c.historical, key)
			dropped++
		}
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if dropped > 0 {
		c.logger.Debug("expired entries cleared", "dropped", dropped)
		c.persist(snap)
	}
}

// ClearAll empties the cache.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.rates = make(map[currency.Pair]*exchange.Rate)
	c.historical = make(map[histKey]*exchange.Rate)
	c.lastUpdate = time.Time{}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.persist(snap)
}

// Statistics reports cache contents at this instant.
func (c *Cache) Statistics() Stats {
	now := c.now()

	c.mu.RLock()
	defer c.mu.RUnlock()

	fresh := 0
	for _, r := range c.rates {
		if !r.Expired(c.ttl, now) {
			fresh++
		}
	}
	total := len(c.rates) + len(c.historical)
	return Stats{
		TotalEntries:      total,
		FreshEntries:      fresh,
		HistoricalEntries: len(c.historical),
		LastUpdate:        c.lastUpdate,
		ApproxBytes:       total * approxEntryBytes,
	}
}

// put stores a rate and its inverse. Caller holds mu.
func (c *Cache) put(rate *exchange.Rate) {
	if rate == nil || rate.Value <= 0 {
		return
	}
	c.rates[rate.Pair()] = rate
	inv := rate.Inverse()
	c.rates[inv.Pair()] = inv
}
