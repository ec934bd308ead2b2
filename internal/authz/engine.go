package authz

import (
	"errors"
	"time"

	"collabboard-api/internal/cache"
	"collabboard-api/internal/models"

	"gorm.io/gorm"
)

// Action names one of the gated operations in the policy table.
type Action string

const (
	ActionReadProject           Action = "read_project"
	ActionEditProject           Action = "edit_project"
	ActionCreateTask            Action = "create_task"
	ActionEditTask              Action = "edit_task"
	ActionDeleteTask            Action = "delete_task"
	ActionCreateComment         Action = "create_comment"
	ActionEditComment           Action = "edit_comment"
	ActionDeleteComment         Action = "delete_comment"
	ActionInviteMember          Action = "invite_member"
	ActionChangeMemberRole      Action = "change_member_role"
	ActionTransferOwnership     Action = "transfer_ownership"
	ActionRemoveMember          Action = "remove_member"
	ActionDeleteProject         Action = "delete_project"
	ActionConfigureIntegrations Action = "configure_integrations"
)

// minimumRole is the policy table: the lowest role that may perform each
// action. Composite rules (authorship, monotonicity, last-owner) layer on top.
var minimumRole = map[Action]models.Role{
	ActionReadProject:           models.RoleViewer,
	ActionEditProject:           models.RoleAdmin,
	ActionCreateTask:            models.RoleMember,
	ActionEditTask:              models.RoleMember,
	ActionDeleteTask:            models.RoleAdmin,
	ActionCreateComment:         models.RoleMember,
	ActionEditComment:           models.RoleMember,
	ActionDeleteComment:         models.RoleAdmin,
	ActionInviteMember:          models.RoleAdmin,
	ActionChangeMemberRole:      models.RoleAdmin,
	ActionTransferOwnership:     models.RoleOwner,
	ActionRemoveMember:          models.RoleAdmin,
	ActionDeleteProject:         models.RoleOwner,
	ActionConfigureIntegrations: models.RoleAdmin,
}

var (
	// ErrNotMember means the caller has no membership on the project at all.
	// Handlers surface this as 404 to hide resource existence.
	ErrNotMember = errors.New("not a project member")
	// ErrForbidden means the caller is a member but the role is insufficient
	// or a composite rule denied the action. Surfaced as 403.
	ErrForbidden = errors.New("insufficient role")
	// ErrLastOwner guards the at-least-one-owner invariant.
	ErrLastOwner = errors.New("cannot remove the last owner")
	// ErrRoleTooHigh rejects assigning a role at or above the caller's own.
	ErrRoleTooHigh = errors.New("cannot assign role equal or higher than your own")
	// ErrUnknownAction means the action is not in the policy table; denied.
	ErrUnknownAction = errors.New("unknown action")
)

// roleCacheTTL bounds staleness of the membership lookup cache. Role changes
// invalidate the affected entry immediately; the TTL covers writes that
// bypass the engine.
const roleCacheTTL = 30 * time.Second

type roleKey struct {
	projectID string
	userID    string
}

// Engine evaluates (caller, project, action) against the policy table backed
// by the project_members table, with a TTL cache on role lookups.
type Engine struct {
	db    *gorm.DB
	roles *cache.SimpleCache[roleKey, models.Role]
}

// NewEngine constructs an Engine over the given database handle.
func NewEngine(db *gorm.DB) *Engine {
	return &Engine{
		db:    db,
		roles: cache.NewSimpleCache[roleKey, models.Role](),
	}
}

// ProjectRole returns the caller's role on a project. ErrNotMember when no
// membership row exists.
func (e *Engine) ProjectRole(projectID, userID string) (models.Role, error) {
	key := roleKey{projectID: projectID, userID: userID}
	if role, ok := e.roles.Get(key); ok {
		return role, nil
	}

	var member models.ProjectMember
	err := e.db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrNotMember
		}
		return "", err
	}

	e.roles.Set(key, member.Role, roleCacheTTL)
	return member.Role, nil
}

// Invalidate drops the cached role for one (project, user) pair. Must be
// called after any membership mutation.
func (e *Engine) Invalidate(projectID, userID string) {
	e.roles.Delete(roleKey{projectID: projectID, userID: userID})
}

// Require checks the policy table for the action and returns nil when the
// caller's role on the project is sufficient.
func (e *Engine) Require(callerID, projectID string, action Action) error {
	min, ok := minimumRole[action]
	if !ok {
		return ErrUnknownAction
	}
	role, err := e.ProjectRole(projectID, callerID)
	if err != nil {
		return err
	}
	if !role.AtLeast(min) {
		return ErrForbidden
	}
	return nil
}

// RequireCommentEdit allows only the comment author, provided the author
// still holds at least member role.
func (e *Engine) RequireCommentEdit(callerID string, comment models.Comment) error {
	if err := e.Require(callerID, comment.ProjectID, ActionEditComment); err != nil {
		return err
	}
	if comment.CreatedBy != callerID {
		return ErrForbidden
	}
	return nil
}

// RequireCommentDelete allows project admins and the comment author.
func (e *Engine) RequireCommentDelete(callerID string, comment models.Comment) error {
	role, err := e.ProjectRole(comment.ProjectID, callerID)
	if err != nil {
		return err
	}
	if comment.CreatedBy == callerID {
		return nil
	}
	if !role.AtLeast(models.RoleAdmin) {
		return ErrForbidden
	}
	return nil
}

// RequireInvite checks that the caller may invite at the given role: admin
// or above, and the invited role must be strictly below the caller's own.
func (e *Engine) RequireInvite(callerID, projectID string, inviteeRole models.Role) error {
	role, err := e.ProjectRole(projectID, callerID)
	if err != nil {
		return err
	}
	if !role.AtLeast(models.RoleAdmin) {
		return ErrForbidden
	}
	if inviteeRole.Level() >= role.Level() {
		return ErrRoleTooHigh
	}
	return nil
}

// RequireRoleChange enforces role monotonicity: the caller must outrank both
// the target's current role and the new role. Promoting to owner is the
// ownership-transfer path and requires the caller to be an owner; demoting
// the only remaining owner is rejected.
func (e *Engine) RequireRoleChange(callerID, projectID string, targetCurrent, newRole models.Role) error {
	callerRole, err := e.ProjectRole(projectID, callerID)
	if err != nil {
		return err
	}
	if !callerRole.AtLeast(models.RoleAdmin) {
		return ErrForbidden
	}
	if newRole == models.RoleOwner || targetCurrent == models.RoleOwner {
		if callerRole != models.RoleOwner {
			return ErrForbidden
		}
		// Demoting an owner must leave at least one owner behind.
		if targetCurrent == models.RoleOwner && newRole != models.RoleOwner {
			count, err := e.ownerCount(projectID)
			if err != nil {
				return err
			}
			if count <= 1 {
				return ErrLastOwner
			}
		}
		return nil
	}
	if targetCurrent.Level() >= callerRole.Level() {
		return ErrForbidden
	}
	if newRole.Level() >= callerRole.Level() {
		return ErrRoleTooHigh
	}
	return nil
}

// RequireRemoveMember enforces the removal rules: admins may remove members
// strictly below their own role; self-removal is always allowed; nobody may
// remove the last owner.
func (e *Engine) RequireRemoveMember(callerID, projectID string, target models.ProjectMember) error {
	if target.Role == models.RoleOwner {
		count, err := e.ownerCount(projectID)
		if err != nil {
			return err
		}
		if count <= 1 {
			return ErrLastOwner
		}
	}

	if target.UserID == callerID {
		return nil
	}

	callerRole, err := e.ProjectRole(projectID, callerID)
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

func (e *Engine) ownerCount(projectID string) (int64, error) {
	var count int64
	err := e.db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND role = ?", projectID, models.RoleOwner).
		Count(&count).Error
	return count, err
}
