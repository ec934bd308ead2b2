package models

import (
	"time"

	"gorm.io/gorm"
)

// Organization represents a tenant grouping projects and members
type Organization struct {
	ID          string `json:"id" gorm:"primaryKey"`
	Name        string `json:"name" gorm:"not null"`
	Slug        string `json:"slug" gorm:"unique;not null"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by" gorm:"column:created_by;index"`
	gorm.Model
}

// TableName specifies the table name for Organization Model
func (Organization) TableName() string {
	return "organizations"
}

// OrganizationMember links a user to an organization with a role.
// Invariant: every organization keeps at least one owner.
type OrganizationMember struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	OrganizationID string    `json:"organization_id" gorm:"column:organization_id;uniqueIndex:idx_org_user;not null"`
	UserID         string    `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_org_user;not null"`
	Role           Role      `json:"role" gorm:"not null;default:'member'"`
	JoinedAt       time.Time `json:"joined_at"`
	gorm.Model
}

// TableName specifies the table name for OrganizationMember Model
func (OrganizationMember) TableName() string {
	return "organization_members"
}
