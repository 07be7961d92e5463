// Package scheduler keeps the health data cache warm: it refreshes openFDA data on a fixed
// interval so user requests rarely wait for a cold fetch, and warns when the cached data
// has not been refreshed for several TTL periods.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/farmavigil/farmavigil-api/interfaces"
	"github.com/farmavigil/farmavigil-api/logging"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Warmer refreshes the cache when it has expired
type Warmer interface {
	Warm(ctx context.Context) error
}

// DefaultInterval is the warm-up period when none is configured.
const DefaultInterval = 5 * time.Minute

// staleAfterTTLs is how many TTL periods may pass without a refresh before warning.
const staleAfterTTLs = 3

// Scheduler runs the periodic cache warm-up and the staleness monitor
type Scheduler struct {
	warmer       Warmer
	cache        interfaces.HealthDataCache
	interval     time.Duration
	fetchTimeout time.Duration
	scheduler    *gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(warmer Warmer, cache interfaces.HealthDataCache, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		warmer:       warmer,
		cache:        cache,
		interval:     interval,
		fetchTimeout: 2 * time.Minute,
		scheduler:    gocron.NewScheduler(time.UTC),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start performs the initial warm-up and schedules the recurring jobs. A failed initial
// warm-up is logged, not returned: the service still answers and the next run retries.
func (s *Scheduler) Start() error {
	s.warm()

	_, err := s.scheduler.Every(s.interval).WaitForSchedule().SingletonMode().Do(s.warm)
	if err != nil {
		logging.Error("Failed to schedule cache warm-up", "error", err)
		return fmt.Errorf("failed to schedule cache warm-up: %w", err)
	}

	_, err = s.scheduler.Every(s.cache.TTL()).WaitForSchedule().Do(s.checkStaleness)
	if err != nil {
		logging.Error("Failed to schedule staleness monitor", "error", err)
		return fmt.Errorf("failed to schedule staleness monitor: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Scheduler started", "warm_interval", s.interval.String())

	return nil
}

// Stop cancels a running warm-up and stops the scheduler
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// warm runs one bounded warm-up
func (s *Scheduler) warm() {
	ctx, cancel := context.WithTimeout(s.ctx, s.fetchTimeout)
	defer cancel()

	if err := s.warmer.Warm(ctx); err != nil {
		if s.ctx.Err() != nil {
			return
		}
		logging.Error("Failed to warm health data cache", "error", err)
	}
}

// checkStaleness warns when the cache has not been refreshed for several TTL periods.
// Returns true when the data is stale.
func (s *Scheduler) checkStaleness() bool {
	snap, ok := s.cache.Peek()
	if !ok {
		logging.Warn("Health data cache has never been filled")
		return true
	}

	age := s.cache.Now().Sub(snap.FetchedAt)
	if age > staleAfterTTLs*s.cache.TTL() {
		logging.Warn("Health data hasn't been refreshed recently", "age", age.Round(time.Second).String(), "ttl", s.cache.TTL().String())
		return true
	}
	return false
}
