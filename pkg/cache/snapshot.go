package cache

import (
	"time"

	"github.com/fluxfin/fxengine/pkg/exchange"
)

// Snapshot is the serialized form of the cache: every current and
// historical rate plus the last-update timestamp. It is written on every
// mutation and loaded once at startup.
type Snapshot struct {
	Rates      []*exchange.Rate `json:"rates"`
	Historical []*exchange.Rate `json:"historical"`
	LastUpdate time.Time        `json:"last_update"`
}

// SnapshotStore is the optional durability layer behind the cache. The
// in-memory maps remain authoritative for the process lifetime; a failing
// store must never affect correctness.
type SnapshotStore interface {
	Save(snap *Snapshot) error
	Load() (*Snapshot, error)
}

// snapshotLocked copies the maps into a serializable snapshot. Caller
// holds mu.
func (c *Cache) snapshotLocked() *Snapshot {
	if c.store == nil {
		return nil
	}
	snap := &Snapshot{
		Rates:      make([]*exchange.Rate, 0, len(c.rates)),
		Historical: make([]*exchange.Rate, 0, len(c.historical)),
		LastUpdate: c.lastUpdate,
	}
	for _, r := range c.rates {
		snap.Rates = append(snap.Rates, r)
	}
	for _, r := range c.historical {
		snap.Historical = append(snap.Historical, r)
	}
	return snap
}

// persist writes a snapshot through to the store. Failures are logged and
// swallowed; durability is best-effort.
func (c *Cache) persist(snap *Snapshot) {
	if c.store == nil || snap == nil {
		return
	}
	if err := c.store.Save(snap); err != nil {
		c.logger.Warn("failed to persist cache snapshot", "error", err)
	}
}

// load restores the cache from the store once at construction.
func (c *Cache) load() {
	snap, err := c.store.Load()
	if err != nil {
		c.logger.Warn("failed to load cache snapshot", "error", err)
		return
	}
	if snap == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range snap.Rates {
		if r != nil && r.Value > 0 {
			c.rates[r.Pair()] = r
		}
	}
	for _, r := range snap.Historical {
		if r == nil || r.Value <= 0 {
			continue
		}
		day := exchange.NormalizeDate(r.ObservedAt).Format("2006-01-02")
		c.historical[histKey{pair: r.Pair(), day: day}] = r
	}
	c.lastUpdate = snap.LastUpdate
	c.logger.Info("cache snapshot loaded",
		"rates", len(snap.Rates), "historical", len(snap.Historical))
}
