package models

import "time"

// OneTimeCode is a six digit code issued at signup. It authorizes setting
// the account password once, until ExpiresAt.
type OneTimeCode struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	UserID     uint       `gorm:"not null;index:idx_otps_user_code,priority:1" json:"userId"`
	Code       string     `gorm:"size:6;not null;index:idx_otps_user_code,priority:2" json:"-"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `gorm:"not null;index" json:"expiresAt"`
	ConsumedAt *time.Time `json:"consumedAt,omitempty"`
}

func (OneTimeCode) TableName() string {
	return "otps"
}

// Expired reports whether the code is no longer valid at now. A code is
// valid only while its expiry is strictly after now.
func (c *OneTimeCode) Expired(now time.Time) bool {
	return !c.ExpiresAt.After(now)
}
