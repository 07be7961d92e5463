// Package interfaces defines the core abstractions of the dashboard API
// so that the openFDA client, the cache and the database can be swapped in tests.
package interfaces

import (
	"context"
	"encoding/json"
	"time"

	"github.com/farmavigil/farmavigil-api/openfda/entities"
	"github.com/farmavigil/farmavigil-api/store/models"
	"github.com/google/uuid"
)

// CacheSnapshot is one cached batch of events and enforcements.
type CacheSnapshot struct {
	Events       []entities.Event
	Enforcements []entities.Enforcement
	FetchedAt    time.Time
}

// EventSource retrieves records from the remote health-data API.
// Every operation reports failures through its error; callers decide how to degrade.
type EventSource interface {
	Events(ctx context.Context, limit int) ([]entities.Event, error)
	Enforcements(ctx context.Context, limit int) ([]entities.Enforcement, error)
	SearchEvents(ctx context.Context, term string, limit int) ([]entities.Event, error)
}

// HealthDataCache is the single-slot TTL cache for the last full batch.
type HealthDataCache interface {
	// Get returns the snapshot only while it is younger than the TTL
	Get() (CacheSnapshot, bool)
	// Peek returns the snapshot regardless of age
	Peek() (CacheSnapshot, bool)
	Store(events []entities.Event, enforcements []entities.Enforcement, fetchedAt time.Time)
	Now() time.Time
	TTL() time.Duration

	BeginUpdate() bool
	EndUpdate()
	IsUpdating() bool
}

// Repository is the persistence contract for users, dashboards and notifications.
// Every dashboard and notification operation is scoped by the owning user.
type Repository interface {
	EnsureUser(ctx context.Context, email, name string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)

	ListDashboards(ctx context.Context, userID uuid.UUID) ([]models.Dashboard, error)
	CreateDashboard(ctx context.Context, dashboard *models.Dashboard) error
	UpdateDashboard(ctx context.Context, userID, id uuid.UUID, patch models.DashboardPatch) (*models.Dashboard, error)

	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error)
	CreateNotification(ctx context.Context, notification *models.Notification) error
	MarkNotifications(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, isRead bool) (int64, error)

	Ping(ctx context.Context) error
}

// DataValidator validates user input before it reaches openFDA or the database.
type DataValidator interface {
	ValidateSearchTerm(input string) error
	ValidateDashboard(name, description *string, config json.RawMessage) error
	ValidateNotification(title, message, notificationType string) error
	ValidateID(input string) (uuid.UUID, error)
	ValidateIDs(inputs []string) ([]uuid.UUID, error)
}

// Scheduler defines the contract for background jobs.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports system health for the /health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) (status string, details map[string]any, httpStatus int)
}
