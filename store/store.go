// Package store persists users, dashboards and notifications through gorm.
// PostgreSQL (via lib/pq) is used in production; SQLite serves local development and tests.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmavigil/farmavigil-api/interfaces"
	"github.com/farmavigil/farmavigil-api/store/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// MaxNotifications caps notification listings to the most recent entries.
	MaxNotifications = 50
)

// ErrNotFound is returned when a record does not exist or is not owned by the caller.
var ErrNotFound = errors.New("record not found")

// Compile-time check to ensure Store implements Repository
var _ interfaces.Repository = (*Store)(nil)

// Store is the gorm-backed repository.
type Store struct {
	db *gorm.DB
}

// Open connects to the database for the given driver.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.New(postgres.Config{DriverName: "postgres", DSN: dsn})
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(
			slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
			logger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite allows a single writer; serialising connections avoids "database is locked".
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &Store{db: db}, nil
}

// AutoMigrate creates or updates the schema.
func (s *Store) AutoMigrate() error {
	if err := s.db.AutoMigrate(&models.User{}, &models.Dashboard{}, &models.Notification{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// EnsureUser returns the user with the given email, creating it on first sign-in.
func (s *Store) EnsureUser(ctx context.Context, email, name string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where(models.User{Email: email}).
		Attrs(models.User{Name: name}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, fmt.Errorf("failed to ensure user: %w", err)
	}
	return &user, nil
}

// UserByEmail looks a user up by email.
func (s *Store) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

// ListDashboards returns the user's dashboards, newest first.
func (s *Store) ListDashboards(ctx context.Context, userID uuid.UUID) ([]models.Dashboard, error) {
	dashboards := []models.Dashboard{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&dashboards).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list dashboards: %w", err)
	}
	return dashboards, nil
}

// CreateDashboard inserts a dashboard. A default dashboard clears the flag on the user's others
// in the same transaction.
func (s *Store) CreateDashboard(ctx context.Context, dashboard *models.Dashboard) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if dashboard.IsDefault {
			if err := clearDefault(tx, dashboard.UserID, uuid.Nil); err != nil {
				return err
			}
		}
		if err := tx.Create(dashboard).Error; err != nil {
			return fmt.Errorf("failed to create dashboard: %w", err)
		}
		return nil
	})
}

// UpdateDashboard applies patch to a dashboard owned by userID.
func (s *Store) UpdateDashboard(ctx context.Context, userID, id uuid.UUID, patch models.DashboardPatch) (*models.Dashboard, error) {
	var dashboard models.Dashboard

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("id = ? AND user_id = ?", id, userID).First(&dashboard).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load dashboard: %w", err)
		}

		updates := map[string]any{}
		if patch.Name != nil {
			updates["name"] = *patch.Name
		}
		if patch.Description != nil {
			updates["description"] = *patch.Description
		}
		if patch.Config != nil {
			updates["config"] = patch.Config
		}
		if patch.IsDefault != nil {
			if *patch.IsDefault {
				if err := clearDefault(tx, userID, id); err != nil {
					return err
				}
			}
			updates["is_default"] = *patch.IsDefault
		}

		if len(updates) > 0 {
			if err := tx.Model(&models.Dashboard{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to update dashboard: %w", err)
			}
		}

		return tx.Where("id = ?", id).First(&dashboard).Error
	})
	if err != nil {
		return nil, err
	}
	return &dashboard, nil
}

func clearDefault(tx *gorm.DB, userID, except uuid.UUID) error {
	query := tx.Model(&models.Dashboard{}).Where("user_id = ? AND is_default = ?", userID, true)
	if except != uuid.Nil {
		query = query.Where("id <> ?", except)
	}
	if err := query.Update("is_default", false).Error; err != nil {
		return fmt.Errorf("failed to clear default dashboard: %w", err)
	}
	return nil
}

// ListNotifications returns the user's most recent notifications, optionally unread only.
func (s *Store) ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]models.Notification, error) {
	notifications := []models.Notification{}

	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	err := query.Order("created_at desc").Limit(MaxNotifications).Find(&notifications).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

// CreateNotification inserts a notification; an empty type defaults to info.
func (s *Store) CreateNotification(ctx context.Context, notification *models.Notification) error {
	if err := s.db.WithContext(ctx).Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// MarkNotifications sets the read flag on the listed notifications owned by userID.
// Ids belonging to other users are ignored. Returns the number of rows changed.
func (s *Store) MarkNotifications(ctx context.Context, userID uuid.UUID, ids []uuid.UUID, isRead bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Update("is_read", isRead)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to update notifications: %w", result.Error)
	}
	return result.RowsAffected, nil
}
