package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationRegistration is one weekly trigger owned by the cron
// scheduler. Rows survive restarts and are re-armed on boot.
type NotificationRegistration struct {
	ID        uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID  `json:"userId" gorm:"type:uuid;index;not null"`
	AlarmPath string     `json:"alarmPath" gorm:"index"` // users/{uid}/habits/{hid}/alarms/{aid}
	Title     string     `json:"title" gorm:"not null"`
	Body      string     `json:"body"`
	Sound     bool       `json:"sound"`
	Hour      int        `json:"hour" gorm:"not null"`
	Minute    int        `json:"minute" gorm:"not null"`
	Weekday   int        `json:"weekday" gorm:"not null"` // 1 = Sunday ... 7 = Saturday
	LastFired *time.Time `json:"lastFired"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (n *NotificationRegistration) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
