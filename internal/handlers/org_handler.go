package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"collabboard-api/internal/database"
	"collabboard-api/internal/models"
	"collabboard-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var slugStrip = regexp.MustCompile(`[^a-z0-9-]+`)

// slugify turns a name into a url-safe slug base.
func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	slug = slugStrip.ReplaceAllString(slug, "")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "org"
	}
	return slug
}

// uniqueSlug appends a numeric suffix until the slug is free.
func uniqueSlug(db *gorm.DB, base string) string {
	slug := base
	for i := 2; ; i++ {
		var count int64
		db.Model(&models.Organization{}).Where("slug = ?", slug).Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// ListOrganizations handles GET /api/organizations
func ListOrganizations(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	db := database.GetDB()

	var memberships []models.OrganizationMember
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch memberships"})
		return
	}

	ids := make([]string, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.OrganizationID)
	}

	var orgs []models.Organization
	if len(ids) > 0 {
		if err := db.Where("id IN ?", ids).Find(&orgs).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch organizations"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"organizations": orgs, "count": len(orgs)})
}

// CreateOrganization handles POST /api/organizations
// The creator becomes the first owner; the slug is globally unique.
func CreateOrganization(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req struct {
		Name        string `json:"name" binding:"required"`
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	db := database.GetDB()

	org := models.Organization{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Slug:        uniqueSlug(db, slugify(req.Name)),
		Description: req.Description,
		CreatedBy:   userID,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}
		owner := models.OrganizationMember{
			ID:             uuid.NewString(),
			OrganizationID: org.ID,
			UserID:         userID,
			Role:           models.RoleOwner,
			JoinedAt:       time.Now(),
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create organization"})
		return
	}

	c.JSON(http.StatusCreated, org)
}

// GetOrganization handles GET /api/organizations/:id (members only)
func GetOrganization(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orgID := c.Param("id")

	if err := getEngine().RequireOrgRole(userID, orgID, models.RoleViewer); err != nil {
		writeAuthzError(c, err)
		return
	}

	var org models.Organization
	if err := database.GetDB().Where("id = ?", orgID).First(&org).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	c.JSON(http.StatusOK, org)
}

// UpdateOrganization handles PATCH /api/organizations/:id (admin and above)
func UpdateOrganization(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orgID := c.Param("id")

	if err := getEngine().RequireOrgRole(userID, orgID, models.RoleAdmin); err != nil {
		writeAuthzError(c, err)
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	var org models.Organization
	if err := db.Where("id = ?", orgID).First(&org).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	if req.Name != nil {
		org.Name = *req.Name
	}
	if req.Description != nil {
		org.Description = *req.Description
	}

	if err := db.Save(&org).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update organization"})
		return
	}

	c.JSON(http.StatusOK, org)
}

// DeleteOrganization handles DELETE /api/organizations/:id (owner only)
func DeleteOrganization(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orgID := c.Param("id")

	if err := getEngine().RequireOrgRole(userID, orgID, models.RoleOwner); err != nil {
		writeAuthzError(c, err)
		return
	}

	db := database.GetDB()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", orgID).Delete(&models.OrganizationMember{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", orgID).Delete(&models.Organization{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete organization"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Organization deleted", "id": orgID})
}

// AddOrgMember handles POST /api/organizations/:id/members with
// {email, role}. Existing users only; email-based org invitations are not
// part of the kernel.
func AddOrgMember(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orgID := c.Param("id")

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

	callerRole, err := getEngine().OrgRole(orgID, userID)
	if err != nil {
		writeAuthzError(c, err)
		return
	}
	if !callerRole.AtLeast(models.RoleAdmin) || req.Role.Level() >= callerRole.Level() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot assign role equal or higher than your own"})
		return
	}

	db := database.GetDB()

	var invitee models.Profile
	if err := db.Where("email = ?", req.Email).First(&invitee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No account for that email"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up user"})
		}
		return
	}

	member := models.OrganizationMember{
		ID:             uuid.NewString(),
		OrganizationID: orgID,
		UserID:         invitee.ID,
		Role:           req.Role,
		JoinedAt:       time.Now(),
	}
	if err := db.Create(&member).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "User is already a member"})
		return
	}

	realtime.GetHub().Publish([]string{invitee.ID}, realtime.ChangeEvent{
		Table: "organization_members",
		Type:  realtime.EventInsert,
		New:   rowMap(member),
	})

	c.JSON(http.StatusCreated, member)
}

// RemoveOrgMember handles DELETE /api/organizations/:id/members?user_id=
func RemoveOrgMember(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	orgID := c.Param("id")

	targetID := c.Query("user_id")
	if targetID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	db := database.GetDB()

	var target models.OrganizationMember
	if err := db.Where("organization_id = ? AND user_id = ?", orgID, targetID).First(&target).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch member"})
		}
		return
	}

	if err := getEngine().RequireRemoveOrgMember(userID, orgID, target); err != nil {
		writeAuthzError(c, err)
		return
	}

	if err := db.Delete(&target).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Member removed", "user_id": targetID})
}
