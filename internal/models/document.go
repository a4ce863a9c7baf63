package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document backs the SQL document store: one row per document path.
type Document struct {
	Path       string         `gorm:"primaryKey;size:512"`
	Collection string         `gorm:"index;size:512;not null"`
	DocID      string         `gorm:"size:128;not null"`
	Data       datatypes.JSON `gorm:"not null"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
