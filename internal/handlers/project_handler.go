package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"collabboard-api/internal/authz"
	"collabboard-api/internal/database"
	"collabboard-api/internal/models"
	"collabboard-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateProjectRequest represents the request payload for creating a project
type CreateProjectRequest struct {
	Name             string                 `json:"name" binding:"required"`
	Description      string                 `json:"description"`
	Color            string                 `json:"color"`
	OrganizationID   string                 `json:"organization_id"`
	WorkflowStages   []models.WorkflowStage `json:"workflow_stages"`
	RequiresApproval bool                   `json:"requires_approval"`
}

// UpdateProjectRequest represents the request payload for updating a project
type UpdateProjectRequest struct {
	Name             *string                `json:"name"`
	Description      *string                `json:"description"`
	Color            *string                `json:"color"`
	Status           *models.ProjectStatus  `json:"status"`
	WorkflowStages   []models.WorkflowStage `json:"workflow_stages"`
	RequiresApproval *bool                  `json:"requires_approval"`
}

// ListProjects handles GET /api/projects
// Returns the caller's projects annotated with task counts.
func ListProjects(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	db := database.GetDB()

	var memberships []models.ProjectMember
	if err := db.Where("user_id = ?", userID).Find(&memberships).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch memberships"})
		return
	}

	projectIDs := make([]string, 0, len(memberships))
	roleByProject := make(map[string]models.Role, len(memberships))
	for _, m := range memberships {
		projectIDs = append(projectIDs, m.ProjectID)
		roleByProject[m.ProjectID] = m.Role
	}

	var projects []models.Project
	if len(projectIDs) > 0 {
		if err := db.Where("id IN ?", projectIDs).Find(&projects).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch projects"})
			return
		}
	}

	type countRow struct {
		ProjectID string
		Count     int64
	}
	counts := make(map[string]int64, len(projects))
	if len(projectIDs) > 0 {
		var rows []countRow
		if err := db.Model(&models.Task{}).
			Select("project_id, COUNT(*) as count").
			Where("project_id IN ?", projectIDs).
			Group("project_id").
			Scan(&rows).Error; err == nil {
			for _, r := range rows {
				counts[r.ProjectID] = r.Count
			}
		}
	}

	type projectListItem struct {
		models.Project
		Role      models.Role `json:"role"`
		TaskCount int64       `json:"task_count"`
	}
	items := make([]projectListItem, 0, len(projects))
	for _, p := range projects {
		items = append(items, projectListItem{
			Project:   p,
			Role:      roleByProject[p.ID],
			TaskCount: counts[p.ID],
		})
	}

	c.JSON(http.StatusOK, gin.H{"projects": items, "count": len(items)})
}

// CreateProject handles POST /api/projects
// The creator becomes the project's first owner.
func CreateProject(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	// A project inside an organization requires org membership.
	if req.OrganizationID != "" {
		if err := getEngine().RequireOrgRole(userID, req.OrganizationID, models.RoleMember); err != nil {
			writeAuthzError(c, err)
			return
		}
	}

	stages := req.WorkflowStages
	if len(stages) == 0 {
		stages = models.DefaultWorkflowStages()
	}
	if err := validateStages(stages); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stagesJSON, err := json.Marshal(stages)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode workflow stages"})
		return
	}

	color := req.Color
	if color == "" {
		color = "#3b82f6"
	}

	project := models.Project{
		ID:               uuid.NewString(),
		OrganizationID:   req.OrganizationID,
		Name:             req.Name,
		Description:      req.Description,
		Color:            color,
		Status:           models.ProjectActive,
		WorkflowStages:   stagesJSON,
		RequiresApproval: req.RequiresApproval,
		CreatedBy:        userID,
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		owner := models.ProjectMember{
			ID:        uuid.NewString(),
			ProjectID: project.ID,
			UserID:    userID,
			Role:      models.RoleOwner,
			JoinedAt:  time.Now(),
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	getFanout().PublishChange(project.ID, realtime.ChangeEvent{
		Table: "projects",
		Type:  realtime.EventInsert,
		New:   rowMap(project),
	})

	c.JSON(http.StatusCreated, project)
}

// GetProject handles GET /api/projects/:id
func GetProject(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	if err := getEngine().Require(userID, projectID, authz.ActionReadProject); err != nil {
		writeAuthzError(c, err)
		return
	}

	var project models.Project
	if err := database.GetDB().Where("id = ?", projectID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project"})
		}
		return
	}

	c.JSON(http.StatusOK, project)
}

// UpdateProject handles PATCH /api/projects/:id (admin and above)
func UpdateProject(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	if err := getEngine().Require(userID, projectID, authz.ActionEditProject); err != nil {
		writeAuthzError(c, err)
		return
	}

	db := database.GetDB()

	var project models.Project
	if err := db.Where("id = ?", projectID).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		project.Name = *req.Name
	}
	if req.Description != nil {
		project.Description = *req.Description
	}
	if req.Color != nil {
		project.Color = *req.Color
	}
	if req.Status != nil {
		if *req.Status != models.ProjectActive && *req.Status != models.ProjectArchived {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid project status"})
			return
		}
		project.Status = *req.Status
	}
	if req.RequiresApproval != nil {
		project.RequiresApproval = *req.RequiresApproval
	}
	if len(req.WorkflowStages) > 0 {
		if err := validateStages(req.WorkflowStages); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		stagesJSON, err := json.Marshal(req.WorkflowStages)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode workflow stages"})
			return
		}
		project.WorkflowStages = stagesJSON
	}

	if err := db.Save(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	getFanout().PublishChange(project.ID, realtime.ChangeEvent{
		Table: "projects",
		Type:  realtime.EventUpdate,
		New:   rowMap(project),
	})

	c.JSON(http.StatusOK, project)
}

// DeleteProject handles DELETE /api/projects/:id (owner only). Deletion
// cascades tasks, comments, mentions, attention items and the project-scoped
// notifications' source rows.
func DeleteProject(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	if err := getEngine().Require(userID, projectID, authz.ActionDeleteProject); err != nil {
		writeAuthzError(c, err)
		return
	}

	db := database.GetDB()
	memberIDs := getFanout().MemberIDs(projectID)

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, step := range []any{
			&models.Mention{},
			&models.AttentionItem{},
			&models.Comment{},
			&models.Task{},
			&models.ProjectInvitation{},
			&models.SlackIntegration{},
			&models.ProjectMember{},
		} {
			if err := tx.Where("project_id = ?", projectID).Delete(step).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", projectID).Delete(&models.Project{}).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}

	realtime.GetHub().Publish(memberIDs, realtime.ChangeEvent{
		Table: "projects",
		Type:  realtime.EventDelete,
		Old:   map[string]any{"id": projectID},
	})

	c.JSON(http.StatusOK, gin.H{"message": "Project deleted", "id": projectID})
}

// GetProjectStats handles GET /api/projects/:id/stats
// Returns per-stage task counts plus the completed count, where completed
// means terminal stage and approval granted.
func GetProjectStats(c *gin.Context) {
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

	var project models.Project
	if err := db.Where("id = ?", projectID).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	type row struct {
		StageID string
		Count   int64
	}
	var rows []row
	if err := db.Model(&models.Task{}).
		Select("stage_id, COUNT(*) as count").
		Where("project_id = ?", projectID).
		Group("stage_id").
		Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	byStage := make(map[string]int64)
	var total int64
	for _, r := range rows {
		byStage[r.StageID] = r.Count
		total += r.Count
	}

	var completed int64
	if err := db.Model(&models.Task{}).
		Where("project_id = ? AND stage_id = ? AND approval_status = ?",
			projectID, project.TerminalStageID(), models.ApprovalApproved).
		Count(&completed).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"by_stage":              byStage,
		"total_tasks":           total,
		"completed_tasks_count": completed,
	})
}

// ConfigureSlackIntegration handles PUT /api/projects/:id/integrations/slack
func ConfigureSlackIntegration(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	projectID := c.Param("id")

	if err := getEngine().Require(userID, projectID, authz.ActionConfigureIntegrations); err != nil {
		writeAuthzError(c, err)
		return
	}

	var req struct {
		AccessToken          *string `json:"access_token"`
		WebhookURL           *string `json:"webhook_url"`
		ChannelID            *string `json:"channel_id"`
		NotifyOnTaskCreate   *bool   `json:"notify_on_task_create"`
		NotifyOnTaskUpdate   *bool   `json:"notify_on_task_update"`
		NotifyOnTaskDelete   *bool   `json:"notify_on_task_delete"`
		NotifyOnTaskMove     *bool   `json:"notify_on_task_move"`
		NotifyOnTaskComplete *bool   `json:"notify_on_task_complete"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	var integration models.SlackIntegration
	err := db.Where("project_id = ?", projectID).First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		integration = models.SlackIntegration{
			ID:                   uuid.NewString(),
			ProjectID:            projectID,
			NotifyOnTaskCreate:   true,
			NotifyOnTaskMove:     true,
			NotifyOnTaskComplete: true,
		}
	} else if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load integration"})
		return
	}

	if req.AccessToken != nil {
		integration.AccessToken = *req.AccessToken
	}
	if req.WebhookURL != nil {
		integration.WebhookURL = *req.WebhookURL
	}
	if req.ChannelID != nil {
		integration.ChannelID = *req.ChannelID
	}
	if req.NotifyOnTaskCreate != nil {
		integration.NotifyOnTaskCreate = *req.NotifyOnTaskCreate
	}
	if req.NotifyOnTaskUpdate != nil {
		integration.NotifyOnTaskUpdate = *req.NotifyOnTaskUpdate
	}
	if req.NotifyOnTaskDelete != nil {
		integration.NotifyOnTaskDelete = *req.NotifyOnTaskDelete
	}
	if req.NotifyOnTaskMove != nil {
		integration.NotifyOnTaskMove = *req.NotifyOnTaskMove
	}
	if req.NotifyOnTaskComplete != nil {
		integration.NotifyOnTaskComplete = *req.NotifyOnTaskComplete
	}

	if err := db.Save(&integration).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save integration"})
		return
	}

	c.JSON(http.StatusOK, integration)
}

func validateStages(stages []models.WorkflowStage) error {
	if len(stages) == 0 {
		return errors.New("workflow must define at least one stage")
	}
	seen := make(map[string]struct{}, len(stages))
	for _, s := range stages {
		if s.ID == "" || s.Name == "" {
			return errors.New("every workflow stage needs an id and a name")
		}
		if _, dup := seen[s.ID]; dup {
			return errors.New("duplicate workflow stage id: " + s.ID)
		}
		seen[s.ID] = struct{}{}
	}
	return nil
}
