package models

import "time"

// Base carries the autoincrement identity and bookkeeping timestamps shared
// by every table. Timestamps are always written in UTC.
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
