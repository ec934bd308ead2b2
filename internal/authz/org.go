package authz

import (
	"errors"

	"collabboard-api/internal/models"

	"gorm.io/gorm"
)

// OrgRole returns the caller's role in an organization. ErrNotMember when no
// membership row exists. Organization roles follow the same hierarchy as
// project roles but are not cached; org membership churns far less than
// per-request project checks.
func (e *Engine) OrgRole(orgID, userID string) (models.Role, error) {
	var member models.OrganizationMember
	err := e.db.Where("organization_id = ? AND user_id = ?", orgID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotMember
		}
		return "", err
	}
	return member.Role, nil
}

// RequireOrgRole checks the caller holds at least min role in the org.
func (e *Engine) RequireOrgRole(callerID, orgID string, min models.Role) error {
	role, err := e.OrgRole(orgID, callerID)
	if err != nil {
		return err
	}
	if !role.AtLeast(min) {
		return ErrForbidden
	}
	return nil
}

// RequireRemoveOrgMember mirrors the project rules: self-removal allowed,
// admins remove strictly-lower roles, the last owner is protected.
func (e *Engine) RequireRemoveOrgMember(callerID, orgID string, target models.OrganizationMember) error {
	if target.Role == models.RoleOwner {
		var count int64
		if err := e.db.Model(&models.OrganizationMember{}).
			Where("organization_id = ? AND role = ?", orgID, models.RoleOwner).
			Count(&count).Error; err != nil {
			return err
		}
		if count <= 1 {
			return ErrLastOwner
		}
	}

	if target.UserID == callerID {
		return nil
	}

	callerRole, err := e.OrgRole(orgID, callerID)
	if err != nil {
		return err
	}
	if !callerRole.AtLeast(models.RoleAdmin) {
		return ErrForbidden
	}
	if target.Role.Level() >= callerRole.Level() {
		return ErrForbidden
	}
	return nil
}
