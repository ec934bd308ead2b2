package handlers

import (
	"errors"
	"net/http"
	"time"

	"collabboard-api/internal/authz"
	"collabboard-api/internal/database"
	"collabboard-api/internal/models"
	"collabboard-api/internal/realtime"
	"collabboard-api/internal/slack"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// invitationTTL bounds how long an emailed invitation stays redeemable.
const invitationTTL = 7 * 24 * time.Hour

// memberView is the membership row joined with the member's public profile.
type memberView struct {
	UserID   string      `json:"user_id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Role     models.Role `json:"role"`
	JoinedAt time.Time   `json:"joined_at"`
}

// ListMembers handles GET /api/projects/:id/members
func ListMembers(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	if err := getEngine().Require(userID, projectID, authz.ActionReadProject); err != nil {
		writeAuthzError(c, err)
		return
	}

	db := database.GetDB()

	var members []models.ProjectMember
	if err := db.Where("project_id = ?", projectID).Find(&members).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}

	ids := make([]string, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.UserID)
	}
	profileByID := make(map[string]models.Profile, len(ids))
	if len(ids) > 0 {
		var profiles []models.Profile
		if err := db.Where("id IN ?", ids).Find(&profiles).Error; err == nil {
			for _, p := range profiles {
				profileByID[p.ID] = p
			}
		}
	}

	views := make([]memberView, 0, len(members))
	for _, m := range members {
		p := profileByID[m.UserID]
		views = append(views, memberView{
			UserID:   m.UserID,
			Email:    p.Email,
			FullName: p.FullName,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"members": views, "count": len(views)})
}

// AddMember handles POST /api/projects/:id/members with {email, role}.
// An existing user is added directly; an unknown email gets a pending
// invitation and an email dispatch.
func AddMember(c *gin.Context) {
	caller, ok := callerProfile(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	var req struct {
		Email string      `json:"email" binding:"required,email"`
		Role  models.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A valid email is required"})
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	if err := getEngine().RequireInvite(caller.ID, projectID, req.Role); err != nil {
		writeAuthzError(c, err)
		return
	}

	db := database.GetDB()

	var project models.Project
	if err := db.Where("id = ?", projectID).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	var invitee models.Profile
	err := db.Where("email = ?", req.Email).First(&invitee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		inviteUnknownEmail(c, project, req.Email, req.Role, caller)
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		return
	}

	// A project inside an organization only admits org members.
	if project.OrganizationID != "" {
		if err := getEngine().RequireOrgRole(invitee.ID, project.OrganizationID, models.RoleViewer); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User is not a member of the parent organization"})
			return
		}
	}

	var existing models.ProjectMember
	if err := db.Where("project_id = ? AND user_id = ?", projectID, invitee.ID).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is already a member"})
		return
	}

	member := models.ProjectMember{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		UserID:    invitee.ID,
		Role:      req.Role,
		JoinedAt:  time.Now(),
	}
	if err := db.Create(&member).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add member"})
		return
	}
	getEngine().Invalidate(projectID, invitee.ID)

	getFanout().MemberAdded(project, invitee.ID, req.Role, caller)
	getFanout().PublishChange(projectID, realtime.ChangeEvent{
		Table: "project_members",
		Type:  realtime.EventInsert,
		New:   rowMap(member),
	})
	getBridge().NotifyProject(projectID, slack.Message{
		Kind: slack.EventMemberJoined,
		Text: invitee.DisplayName() + " joined " + project.Name,
	})

	c.JSON(http.StatusCreated, member)
}

func inviteUnknownEmail(c *gin.Context, project models.Project, email string, role models.Role, caller models.Profile) {
	db := database.GetDB()

	var pending models.ProjectInvitation
	err := db.Where("project_id = ? AND email = ? AND status = ?",
		project.ID, email, models.InvitationPending).First(&pending).Error
	if err == nil {
		if !pending.Expired(time.Now()) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "An invitation for that email is already pending"})
			return
		}
		db.Model(&pending).Update("status", models.InvitationExpired)
	}

	invitation := models.ProjectInvitation{
		ID:        uuid.NewString(),
		ProjectID: project.ID,
		Email:     email,
		Role:      role,
		Status:    models.InvitationPending,
		Token:     uuid.NewString(),
		ExpiresAt: time.Now().Add(invitationTTL),
		InvitedBy: caller.ID,
	}
	if err := db.Create(&invitation).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create invitation"})
		return
	}

	emailSent := true
	if err := Mail.SendInvitation(c.Request.Context(), email, project.Name, invitation.Token); err != nil {
		emailSent = false
	}

	c.JSON(http.StatusCreated, gin.H{
		"invitation_id": invitation.ID,
		"status":        invitation.Status,
		"email_sent":    emailSent,
	})
}

// ChangeMemberRole handles PATCH /api/projects/:id/members with
// {user_id, role}. Promoting to owner transfers ownership: the current
// owner drops to admin in the same transaction.
func ChangeMemberRole(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	var req struct {
		UserID string      `json:"user_id" binding:"required"`
		Role   models.Role `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and role are required"})
		return
	}
	if !req.Role.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	db := database.GetDB()

	var target models.ProjectMember
	if err := db.Where("project_id = ? AND user_id = ?", projectID, req.UserID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch member"})
		}
		return
	}

	if err := getEngine().RequireRoleChange(userID, projectID, target.Role, req.Role); err != nil {
		writeAuthzError(c, err)
		return
	}

	transfer := req.Role == models.RoleOwner && target.Role != models.RoleOwner

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&target).Update("role", req.Role).Error; err != nil {
			return err
		}
		if transfer {
			// The caller is the current owner; demote atomically so the
			// single-owner shape is preserved.
			return tx.Model(&models.ProjectMember{}).
				Where("project_id = ? AND user_id = ?", projectID, userID).
				Update("role", models.RoleAdmin).Error
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to change role"})
		return
	}

	getEngine().Invalidate(projectID, req.UserID)
	getEngine().Invalidate(projectID, userID)

	getFanout().PublishChange(projectID, realtime.ChangeEvent{
		Table: "project_members",
		Type:  realtime.EventUpdate,
		New:   map[string]any{"project_id": projectID, "user_id": req.UserID, "role": string(req.Role)},
	})

	c.JSON(http.StatusOK, gin.H{"user_id": req.UserID, "role": req.Role, "ownership_transferred": transfer})
}

// RemoveMember handles DELETE /api/projects/:id/members?user_id=
func RemoveMember(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	targetID := c.Query("user_id")
	if targetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	db := database.GetDB()

	var target models.ProjectMember
	if err := db.Where("project_id = ? AND user_id = ?", projectID, targetID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch member"})
		}
		return
	}

	if err := getEngine().RequireRemoveMember(userID, projectID, target); err != nil {
		writeAuthzError(c, err)
		return
	}

	if err := db.Delete(&target).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}
	getEngine().Invalidate(projectID, targetID)

	getFanout().PublishChange(projectID, realtime.ChangeEvent{
		Table: "project_members",
		Type:  realtime.EventDelete,
		Old:   rowMap(target),
	})
	getBridge().NotifyProject(projectID, slack.Message{
		Kind: slack.EventMemberLeft,
		Text: "A member left the project",
	})

	c.JSON(http.StatusOK, gin.H{"message": "Member removed", "user_id": targetID})
}

// AcceptInvitation handles POST /api/invitations/:token/accept. The caller
// must be signed in with the invited email.
func AcceptInvitation(c *gin.Context) {
	caller, ok := callerProfile(c)
	if !ok {
		return
	}
	token := c.Param("token")

	db := database.GetDB()

	var invitation models.ProjectInvitation
	if err := db.Where("token = ? AND status = ?", token, models.InvitationPending).First(&invitation).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invitation not found"})
		return
	}
	if invitation.Expired(time.Now()) {
		db.Model(&invitation).Update("status", models.InvitationExpired)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invitation has expired"})
		return
	}
	if invitation.Email != caller.Email {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invitation was issued to a different email"})
		return
	}

	var project models.Project
	if err := db.Where("id = ?", invitation.ProjectID).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project no longer exists"})
		return
	}

	// Org-scoped projects admit only org members, same as AddMember.
	if project.OrganizationID != "" {
		if err := getEngine().RequireOrgRole(caller.ID, project.OrganizationID, models.RoleViewer); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "User is not a member of the parent organization"})
			return
		}
	}

	member := models.ProjectMember{
		ID:        uuid.NewString(),
		ProjectID: invitation.ProjectID,
		UserID:    caller.ID,
		Role:      invitation.Role,
		JoinedAt:  time.Now(),
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&member).Error; err != nil {
			return err
		}
		return tx.Model(&invitation).Update("status", models.InvitationAccepted).Error
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Already a member"})
		return
	}
	getEngine().Invalidate(invitation.ProjectID, caller.ID)

	getFanout().PublishChange(invitation.ProjectID, realtime.ChangeEvent{
		Table: "project_members",
		Type:  realtime.EventInsert,
		New:   rowMap(member),
	})

	c.JSON(http.StatusOK, member)
}

// DeclineInvitation handles POST /api/invitations/:token/decline
func DeclineInvitation(c *gin.Context) {
	caller, ok := callerProfile(c)
	if !ok {
		return
	}
	token := c.Param("token")

	db := database.GetDB()

	var invitation models.ProjectInvitation
	if err := db.Where("token = ? AND status = ?", token, models.InvitationPending).First(&invitation).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Invitation not found"})
		return
	}
	if invitation.Email != caller.Email {
		c.JSON(http.StatusForbidden, gin.H{"error": "Invitation was issued to a different email"})
		return
	}

	if err := db.Model(&invitation).Update("status", models.InvitationDeclined).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to decline invitation"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": models.InvitationDeclined})
}
