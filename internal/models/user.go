package models

import (
	"time"

	"gorm.io/gorm"
)

// Profile represents a user profile in the system. The id is owned by the
// identity provider and never changes; the row is upserted on first sign-in.
type Profile struct {
	ID           string `json:"id" gorm:"primaryKey"`
	Email        string `json:"email" gorm:"unique;not null"`
	PasswordHash string `json:"-" gorm:"column:password_hash;not null"`
	FullName     string `json:"full_name"`
	AvatarURL    string `json:"avatar_url"`
	Timezone     string `json:"timezone"`
	gorm.Model
}

// TableName specifies the table name for Profile Model
func (Profile) TableName() string {
	return "profiles"
}

// DisplayName returns the full name when set, otherwise the email local part.
func (p Profile) DisplayName() string {
	if p.FullName != "" {
		return p.FullName
	}
	for i := 0; i < len(p.Email); i++ {
		if p.Email[i] == '@' {
			return p.Email[:i]
		}
	}
	return p.Email
}

// PasswordResetPin is a short-lived PIN required before a password change.
// The pin must be verified before the password update and is deleted on use.
type PasswordResetPin struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Email     string    `json:"email" gorm:"index;not null"`
	Pin       string    `json:"-" gorm:"not null"`
	Verified  bool      `json:"verified" gorm:"default:false"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	gorm.Model
}

// TableName specifies the table name for PasswordResetPin Model
func (PasswordResetPin) TableName() string {
	return "password_reset_pins"
}
