// Package models defines the persisted entities: users, their dashboards and their notifications.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Notification types accepted by the API.
const (
	NotificationInfo    = "info"
	NotificationSuccess = "success"
	NotificationWarning = "warning"
	NotificationError   = "error"
)

// NotificationTypes lists the accepted notification types.
var NotificationTypes = []string{NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError}

// User is an account known through the identity provider; Email is the scoping key.
type User struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	Email     string    `json:"email" gorm:"size:320;uniqueIndex;not null"`
	Name      string    `json:"name,omitempty" gorm:"size:200"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Dashboard is a saved chart layout. At most one dashboard per user has IsDefault set.
type Dashboard struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID      uuid.UUID      `json:"userId" gorm:"type:uuid;index;not null"`
	Name        string         `json:"name" gorm:"size:200;not null"`
	Description string         `json:"description,omitempty" gorm:"type:text"`
	Config      datatypes.JSON `json:"config"`
	IsDefault   bool           `json:"isDefault" gorm:"not null"`
	CreatedAt   time.Time      `json:"createdAt" gorm:"index"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// DashboardPatch carries the fields of a dashboard update; nil fields are left unchanged.
type DashboardPatch struct {
	Name        *string
	Description *string
	Config      datatypes.JSON
	IsDefault   *bool
}

// Notification is a message addressed to one user.
type Notification struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID      `json:"userId" gorm:"type:uuid;index;not null"`
	Title     string         `json:"title" gorm:"size:200;not null"`
	Message   string         `json:"message" gorm:"type:text;not null"`
	Type      string         `json:"type" gorm:"size:32;not null"`
	Data      datatypes.JSON `json:"data"`
	IsRead    bool           `json:"isRead" gorm:"index;not null"`
	CreatedAt time.Time      `json:"createdAt" gorm:"index"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

func (d *Dashboard) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Type == "" {
		n.Type = NotificationInfo
	}
	return nil
}
