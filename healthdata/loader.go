// Package healthdata assembles what the dashboard shows: it loads event and enforcement
// batches through the TTL cache, runs searches, and aggregates the results into statistics.
package healthdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/farmavigil/farmavigil-api/interfaces"
	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/farmavigil/farmavigil-api/metrics"
	"github.com/farmavigil/farmavigil-api/openfda/entities"
	"github.com/farmavigil/farmavigil-api/stats"
)

// Batch sizes used when the cache is cold.
const (
	DefaultQuickBatch       = 300
	DefaultFullBatch        = 1000
	DefaultEnforcementBatch = 150
	DefaultSearchLimit      = 200
)

// Source tells where the data of a snapshot came from.
type Source string

const (
	SourceCache  Source = "cache"
	SourceQuick  Source = "quick"
	SourceFull   Source = "full"
	SourceSearch Source = "search"
)

// Config holds the batch sizes of a Loader. Zero values use the defaults.
type Config struct {
	QuickBatch       int
	FullBatch        int
	EnforcementBatch int
	SearchLimit      int
}

// Snapshot is a published result: raw records plus the statistics computed from them.
type Snapshot struct {
	Events       []entities.Event       `json:"events"`
	Enforcements []entities.Enforcement `json:"enforcements"`
	Stats        stats.Summary          `json:"stats"`
	KPIs         stats.KPIs             `json:"kpis"`
	Source       Source                 `json:"source"`
	SearchTerm   string                 `json:"searchTerm,omitempty"`
	FetchedAt    time.Time              `json:"fetchedAt"`
}

// PublishFunc receives intermediate and final snapshots while a load is running.
type PublishFunc func(Snapshot)

// Loader fetches through the cache and aggregates.
type Loader struct {
	source interfaces.EventSource
	cache  interfaces.HealthDataCache
	cfg    Config
}

// NewLoader creates a Loader.
func NewLoader(source interfaces.EventSource, cache interfaces.HealthDataCache, cfg Config) *Loader {
	if cfg.QuickBatch <= 0 {
		cfg.QuickBatch = DefaultQuickBatch
	}
	if cfg.FullBatch <= 0 {
		cfg.FullBatch = DefaultFullBatch
	}
	if cfg.EnforcementBatch <= 0 {
		cfg.EnforcementBatch = DefaultEnforcementBatch
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = DefaultSearchLimit
	}
	return &Loader{source: source, cache: cache, cfg: cfg}
}

// Load publishes the dashboard data. A fresh cache entry is served as-is (statistics are
// always recomputed). Otherwise a quick batch is fetched and published first, then the full
// batch and the enforcements are fetched concurrently and the larger event set wins.
//
// A failed quick or full batch degrades to the other batch. A failed enforcement fetch leaves
// the quick batch published, skips the cache write and is returned as the error.
func (l *Loader) Load(ctx context.Context, publish PublishFunc) (Snapshot, error) {
	if publish == nil {
		publish = func(Snapshot) {}
	}

	if cached, ok := l.cache.Get(); ok {
		snap := l.snapshot(cached.Events, cached.Enforcements, SourceCache, cached.FetchedAt)
		publish(snap)
		return snap, nil
	}

	startedAt := l.cache.Now()

	quick, quickErr := l.source.Events(ctx, l.cfg.QuickBatch)
	if quickErr != nil {
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		logging.Error("Error loading health events", "batch", l.cfg.QuickBatch, "error", quickErr)
		quick = []entities.Event{}
	}

	quickSnap := l.snapshot(quick, []entities.Enforcement{}, SourceQuick, startedAt)
	publish(quickSnap)

	var (
		wg           sync.WaitGroup
		full         []entities.Event
		fullErr      error
		enforcements []entities.Enforcement
		enfErr       error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		full, fullErr = l.source.Events(ctx, l.cfg.FullBatch)
	}()
	go func() {
		defer wg.Done()
		enforcements, enfErr = l.source.Enforcements(ctx, l.cfg.EnforcementBatch)
	}()
	wg.Wait()

	if enfErr != nil {
		logging.Error("Error loading enforcements", "batch", l.cfg.EnforcementBatch, "error", enfErr)
		return quickSnap, fmt.Errorf("failed to fetch enforcements: %w", enfErr)
	}

	if fullErr == nil && len(full) > len(quick) {
		l.cache.Store(full, enforcements, startedAt)
		snap := l.snapshot(full, enforcements, SourceFull, startedAt)
		publish(snap)
		return snap, nil
	}

	if fullErr != nil {
		logging.Warn("Full batch failed, keeping quick batch", "error", fullErr)
	}

	// Both event batches failed: nothing worth caching, the next load retries.
	if quickErr == nil || fullErr == nil {
		l.cache.Store(quick, enforcements, startedAt)
	}

	snap := l.snapshot(quick, enforcements, SourceQuick, startedAt)
	publish(snap)
	return snap, nil
}

// Warm refreshes the cache when it has expired. Concurrent warm-ups are skipped.
func (l *Loader) Warm(ctx context.Context) error {
	if !l.cache.BeginUpdate() {
		logging.Info("Health data refresh already in progress, skipping...")
		return nil
	}
	defer l.cache.EndUpdate()

	if _, fresh := l.cache.Get(); fresh {
		return nil
	}

	start := time.Now()
	snap, err := l.Load(ctx, nil)
	if err != nil {
		return err
	}
	logging.Info("Health data cache warmed", "duration", time.Since(start).String(), "event_count", len(snap.Events), "enforcement_count", len(snap.Enforcements))
	return nil
}

// Search runs a free-text search. It never touches the cache and returns no enforcements,
// since those are not scoped to search terms. Search failures degrade to an empty result.
func (l *Loader) Search(ctx context.Context, term string) (Snapshot, error) {
	events, err := l.source.SearchEvents(ctx, term, l.cfg.SearchLimit)
	if err != nil {
		if ctx.Err() != nil {
			return Snapshot{}, ctx.Err()
		}
		logging.Error("Search error", "term", term, "error", err)
		events = []entities.Event{}
	}

	snap := l.snapshot(events, []entities.Enforcement{}, SourceSearch, l.cache.Now())
	snap.SearchTerm = term
	return snap, nil
}

func (l *Loader) snapshot(events []entities.Event, enforcements []entities.Enforcement, source Source, fetchedAt time.Time) Snapshot {
	start := time.Now()
	summary := stats.Compute(events, l.cache.Now())
	metrics.AggregationDuration.Observe(time.Since(start).Seconds())

	return Snapshot{
		Events:       events,
		Enforcements: enforcements,
		Stats:        summary,
		KPIs:         stats.DeriveKPIs(summary, len(enforcements)),
		Source:       source,
		FetchedAt:    fetchedAt,
	}
}
