package models

import (
	"time"

	"gorm.io/gorm"
)

// InvitationStatus represents the lifecycle of a project invitation
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "pending"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationDeclined InvitationStatus = "declined"
	InvitationExpired  InvitationStatus = "expired"
)

// ProjectInvitation is an invite sent to an email address that may not yet
// belong to a user. At most one pending invitation per (project, email).
type ProjectInvitation struct {
	ID        string           `json:"id" gorm:"primaryKey"`
	ProjectID string           `json:"project_id" gorm:"column:project_id;index;not null"`
	Email     string           `json:"email" gorm:"index;not null"`
	Role      Role             `json:"role" gorm:"not null;default:'member'"`
	Status    InvitationStatus `json:"status" gorm:"not null;default:'pending'"`
	Token     string           `json:"-" gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time        `json:"expires_at" gorm:"not null"`
	InvitedBy string           `json:"invited_by" gorm:"column:invited_by"`
	gorm.Model
}

// TableName specifies the table name for ProjectInvitation Model
func (ProjectInvitation) TableName() string {
	return "project_invitations"
}

// Expired reports whether the invitation's deadline has passed.
func (i ProjectInvitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
