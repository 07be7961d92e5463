// Package health reports the service's health from the age of the cached openFDA data
// and the reachability of the database.
package health

import (
	"context"
	"math"
	"net/http"
	"time"

	"github.com/farmavigil/farmavigil-api/interfaces"
)

// Pinger is anything that can check its backing connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// Thresholds, as multiples of the cache TTL.
const (
	degradedAfterTTLs  = 3
	unhealthyAfterTTLs = 12
)

var serverStartTime = time.Now()

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	cache       interfaces.HealthDataCache
	db          Pinger
	pingTimeout time.Duration
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(cache interfaces.HealthDataCache, db Pinger) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		cache:       cache,
		db:          db,
		pingTimeout: 2 * time.Second,
	}
}

// HealthCheck classifies the service:
//   - unhealthy (503): database unreachable, no data ever fetched, or data far past its TTL
//   - degraded (503): refreshes have been failing for several TTL periods or the last batch was empty
//   - healthy (200): otherwise
func (h *HealthCheckerImpl) HealthCheck(ctx context.Context) (status string, data map[string]any, httpStatus int) {
	dbStatus := "ok"
	if h.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, h.pingTimeout)
		defer cancel()
		if err := h.db.Ping(pingCtx); err != nil {
			dbStatus = "unreachable"
		}
	}

	snap, hasData := h.cache.Peek()
	ttl := h.cache.TTL()
	isUpdating := h.cache.IsUpdating()

	data = map[string]any{
		"database":          dbStatus,
		"is_updating":       isUpdating,
		"cache_ttl_seconds": ttl.Seconds(),
		"uptime_seconds":    math.Round(time.Since(serverStartTime).Seconds()),
		"events":            len(snap.Events),
		"enforcements":      len(snap.Enforcements),
	}

	var dataAge time.Duration
	if hasData {
		dataAge = h.cache.Now().Sub(snap.FetchedAt)
		data["last_update"] = snap.FetchedAt.Format(time.RFC3339)
		data["data_age_minutes"] = math.Round(dataAge.Minutes()*10) / 10
	}

	switch {
	case dbStatus != "ok":
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case !hasData && isUpdating:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case !hasData:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > unhealthyAfterTTLs*ttl:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > degradedAfterTTLs*ttl || len(snap.Events) == 0:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	return status, data, httpStatus
}
