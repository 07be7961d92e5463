// Package data holds the process-wide health data cache: the last full batch of
// events and enforcements fetched from openFDA together with its fetch time.
// Snapshots are swapped atomically so readers never see a half-written batch.
package data

import (
	"sync/atomic"
	"time"

	"github.com/farmavigil/farmavigil-api/interfaces"
	"github.com/farmavigil/farmavigil-api/metrics"
	"github.com/farmavigil/farmavigil-api/openfda/entities"
)

// DefaultTTL is how long a fetched batch is served before the next refresh hits openFDA again.
const DefaultTTL = 5 * time.Minute

// Compile-time check to ensure Cache implements HealthDataCache
var _ interfaces.HealthDataCache = (*Cache)(nil)

// Cache is a single-slot TTL cache. It is empty at startup, filled by the first
// successful refresh and only ever invalidated by age.
type Cache struct {
	snapshot atomic.Pointer[interfaces.CacheSnapshot]
	updating atomic.Bool
	ttl      time.Duration
	now      func() time.Time
}

// NewCache creates an empty cache. A nil clock defaults to time.Now.
func NewCache(ttl time.Duration, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{ttl: ttl, now: now}
}

// Now returns the cache clock's current time.
func (c *Cache) Now() time.Time {
	return c.now()
}

// TTL returns the validity window.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached snapshot while it is younger than the TTL.
func (c *Cache) Get() (interfaces.CacheSnapshot, bool) {
	snap := c.snapshot.Load()
	if snap == nil || c.now().Sub(snap.FetchedAt) >= c.ttl {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return interfaces.CacheSnapshot{}, false
	}
	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return *snap, true
}

// Peek returns the last stored snapshot regardless of its age.
func (c *Cache) Peek() (interfaces.CacheSnapshot, bool) {
	snap := c.snapshot.Load()
	if snap == nil {
		return interfaces.CacheSnapshot{}, false
	}
	return *snap, true
}

// Store replaces the cached batch. fetchedAt is the time the refresh started.
func (c *Cache) Store(events []entities.Event, enforcements []entities.Enforcement, fetchedAt time.Time) {
	c.snapshot.Store(&interfaces.CacheSnapshot{
		Events:       events,
		Enforcements: enforcements,
		FetchedAt:    fetchedAt,
	})
	metrics.CachedEvents.Set(float64(len(events)))
}

// BeginUpdate marks the start of a refresh.
// Returns true if the refresh can proceed, false if another one is in progress
func (c *Cache) BeginUpdate() bool {
	return c.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a refresh
func (c *Cache) EndUpdate() {
	c.updating.Store(false)
}

// IsUpdating returns true while a refresh started through BeginUpdate is running
func (c *Cache) IsUpdating() bool {
	return c.updating.Load()
}
