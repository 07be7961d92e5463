package healthdata

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/farmavigil/farmavigil-api/logging"
)

// DefaultDebounce is the quiet period after the last search term change before the search runs.
const DefaultDebounce = 800 * time.Millisecond

// State is what the dashboard currently shows.
type State struct {
	Snapshot
	Loading     bool   `json:"loading"`
	Error       string `json:"error,omitempty"`
	SearchInput string `json:"searchInput"`
	HasData     bool   `json:"hasData"`
	Generation  uint64 `json:"generation"`
}

// View owns the published dashboard state. Every refresh or search takes a generation
// number when it starts; a result is published only if no newer call started in between,
// so a slow, superseded request can never overwrite fresher data.
type View struct {
	loader        *Loader
	debounce      time.Duration
	searchTimeout time.Duration

	mu         sync.Mutex
	state      State
	generation uint64
	timer      *time.Timer

	// ctx bounds debounced searches; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewView creates a View. debounce <= 0 uses DefaultDebounce; searchTimeout bounds
// searches started by the debouncer.
func NewView(loader *Loader, debounce, searchTimeout time.Duration) *View {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if searchTimeout <= 0 {
		searchTimeout = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &View{
		loader:        loader,
		debounce:      debounce,
		searchTimeout: searchTimeout,
		ctx:           ctx,
		cancel:        cancel,
	}
}

// State returns a copy of the current state.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Refresh loads the full dashboard data and returns this call's own final snapshot,
// whether or not it was still current when it finished.
func (v *View) Refresh(ctx context.Context) (Snapshot, error) {
	gen := v.begin()
	snap, err := v.loader.Load(ctx, func(s Snapshot) { v.publish(gen, s) })
	v.finish(gen, err)
	return snap, err
}

// Search runs a search immediately. A blank term refreshes instead.
func (v *View) Search(ctx context.Context, term string) (Snapshot, error) {
	if strings.TrimSpace(term) == "" {
		return v.Refresh(ctx)
	}

	gen := v.begin()
	snap, err := v.loader.Search(ctx, term)
	if err == nil {
		v.publish(gen, snap)
	}
	v.finish(gen, err)
	return snap, err
}

// SetSearchTerm records the search input and schedules a search once the input has been
// quiet for the debounce period. A pending search for an older term is cancelled.
func (v *View) SetSearchTerm(term string) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.state.SearchInput = term
	if v.timer != nil {
		v.timer.Stop()
	}
	if v.ctx.Err() != nil {
		v.timer = nil
		return
	}
	v.timer = time.AfterFunc(v.debounce, func() {
		ctx, cancel := context.WithTimeout(v.ctx, v.searchTimeout)
		defer cancel()
		if _, err := v.Search(ctx, term); err != nil {
			if v.ctx.Err() != nil {
				return
			}
			logging.Warn("Debounced search failed", "term", term, "error", err)
		}
	})
}

// Close stops any pending debounced search and cancels one that is already running.
func (v *View) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancel()
	if v.timer != nil {
		v.timer.Stop()
		v.timer = nil
	}
}

func (v *View) begin() uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.generation++
	v.state.Generation = v.generation
	v.state.Loading = true
	v.state.Error = ""
	return v.generation
}

func (v *View) publish(gen uint64, snap Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		logging.Debug("Discarding stale health data result", "generation", gen, "current", v.generation)
		return
	}
	v.state.Snapshot = snap
	v.state.HasData = true
}

func (v *View) finish(gen uint64, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if gen != v.generation {
		return
	}
	v.state.Loading = false
	if err != nil {
		v.state.Error = err.Error()
	}
}
