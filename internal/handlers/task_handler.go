package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
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

// CreateTaskRequest represents the request payload for creating a task
type CreateTaskRequest struct {
	ProjectID   string              `json:"project_id" binding:"required"`
	Title       string              `json:"title" binding:"required"`
	Description string              `json:"description"`
	StageID     string              `json:"stage_id"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     *time.Time          `json:"due_date"`
	Tags        []string            `json:"tags"`
	Assignees   []string            `json:"assignees"`
}

// UpdateTaskRequest represents the request payload for updating a task.
// Only whitelisted fields are bindable; anything else in the body is
// silently stripped by the decoder.
type UpdateTaskRequest struct {
	Title          *string              `json:"title"`
	Description    *string              `json:"description"`
	Status         *models.TaskStatus   `json:"status"`
	StageID        *string              `json:"stage_id"`
	Priority       *models.TaskPriority `json:"priority"`
	DueDate        *time.Time           `json:"due_date"`
	Tags           []string             `json:"tags"`
	CustomFields   map[string]any       `json:"custom_fields"`
	Assignees      []string             `json:"assignees"`
	Position       *int                 `json:"position"`
	CompletedAt    *time.Time           `json:"completed_at"`

	hasAssignees bool
	hasTags      bool
	hasCustom    bool
}

// ListTasks handles GET /api/tasks?project_id=
// Returns the project's tasks ordered by stage position.
func ListTasks(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	projectID := c.Query("project_id")
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project_id is required"})
		return
	}

	if err := getEngine().Require(userID, projectID, authz.ActionReadProject); err != nil {
		writeAuthzError(c, err)
		return
	}

	var tasks []models.Task
	if err := database.GetDB().
		Where("project_id = ?", projectID).
		Order("stage_id asc, position asc").
		Find(&tasks).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "count": len(tasks)})
}

// GetTaskByID handles GET /api/tasks/:id
func GetTaskByID(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	task, ok := loadTaskAuthorized(c, userID, taskID, authz.ActionReadProject)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, task)
}

// CreateTask handles POST /api/tasks
// New tasks land at the bottom of their stage: position = stage max + 1.
func CreateTask(c *gin.Context) {
	caller, ok := callerProfile(c)
	if !ok {
		return
	}

	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := getEngine().Require(caller.ID, req.ProjectID, authz.ActionCreateTask); err != nil {
		writeAuthzError(c, err)
		return
	}

	db := database.GetDB()

	var project models.Project
	if err := db.Where("id = ?", req.ProjectID).First(&project).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	stageID := req.StageID
	if stageID == "" {
		stageID = project.Stages()[0].ID
	}
	if !project.HasStage(stageID) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stage_id is not part of the project workflow"})
		return
	}

	priority := req.Priority
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
		return
	}

	task := models.Task{
		ID:          uuid.NewString(),
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		Description: req.Description,
		StageID:     stageID,
		Priority:    priority,
		DueDate:     req.DueDate,
		Position:    nextPosition(db, req.ProjectID, stageID),
		Status:      models.StatusTodo,
		CreatedBy:   caller.ID,
	}
	if len(req.Tags) > 0 {
		task.Tags, _ = json.Marshal(req.Tags)
	}
	if len(req.Assignees) > 0 {
		task.Assignees, _ = json.Marshal(req.Assignees)
	}

	if err := db.Create(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create task"})
		return
	}

	getFanout().TaskAssigned(project, task, caller, nil)
	getFanout().PublishChange(project.ID, realtime.ChangeEvent{
		Table: "tasks",
		Type:  realtime.EventInsert,
		New:   rowMap(task),
	})
	getBridge().NotifyProject(project.ID, slack.Message{
		Kind: slack.EventTaskCreated,
		Text: fmt.Sprintf("%s created task %q in %s", caller.DisplayName(), task.Title, project.Name),
	})

	c.JSON(http.StatusCreated, task)
}

// UpdateTask handles PATCH /api/tasks/:id
// Pipeline: authorize, validate, load pre-state, persist, then derive the
// stage-move / assignment / completion events best-effort.
func UpdateTask(c *gin.Context) {
	caller, ok := callerProfile(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	db := database.GetDB()

	var task models.Task
	if err := db.Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task"})
		}
		return
	}

	if err := getEngine().Require(caller.ID, task.ProjectID, authz.ActionEditTask); err != nil {
		writeAuthzError(c, err)
		return
	}

	var project models.Project
	if err := db.Where("id = ?", task.ProjectID).First(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project"})
		return
	}

	// Raw decode first so "field present" is distinguishable from "zero".
	var raw map[string]json.RawMessage
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req, err := decodeTaskUpdate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Pre-state for change detection.
	oldStageID := task.StageID
	oldAssignees := task.AssigneeIDs()

	if req.Title != nil {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		task.Status = *req.Status
	}
	if req.Priority != nil {
		if !req.Priority.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid priority"})
			return
		}
		task.Priority = *req.Priority
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.hasTags {
		task.Tags, _ = json.Marshal(req.Tags)
	}
	if req.hasCustom {
		task.CustomFields, _ = json.Marshal(req.CustomFields)
	}
	if req.hasAssignees {
		task.Assignees, _ = json.Marshal(req.Assignees)
	}
	if req.CompletedAt != nil {
		task.CompletedAt = req.CompletedAt
	}

	stageChanged := false
	if req.StageID != nil && *req.StageID != oldStageID {
		if !project.HasStage(*req.StageID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "stage_id is not part of the project workflow"})
			return
		}
		task.StageID = *req.StageID
		stageChanged = true

		if req.Position != nil {
			task.Position = *req.Position
		} else {
			// Cross-stage moves append, preserving relative order.
			task.Position = nextPosition(db, task.ProjectID, task.StageID)
		}

		if task.StageID == project.TerminalStageID() {
			now := time.Now()
			task.Status = models.StatusDone
			task.CompletedAt = &now
			if project.RequiresApproval {
				task.ApprovalStatus = models.ApprovalPending
			} else {
				task.ApprovalStatus = models.ApprovalApproved
			}
		} else if oldStageID == project.TerminalStageID() {
			task.ApprovalStatus = models.ApprovalNone
			task.CompletedAt = nil
			task.Status = models.StatusInProgress
		}
	} else if req.Position != nil {
		task.Position = *req.Position
	}

	if err := db.Save(&task).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update task"})
		return
	}

	// Derived writes run after the primary write commits; failures are
	// logged inside the fanout and never surface here.
	if stageChanged {
		moverRole, _ := getEngine().ProjectRole(task.ProjectID, caller.ID)
		getFanout().TaskMoved(project, task, caller, moverRole, oldStageID, task.StageID)

		kind := slack.EventTaskMoved
		text := fmt.Sprintf("%s moved %q from %s to %s", caller.DisplayName(), task.Title,
			project.StageName(oldStageID), project.StageName(task.StageID))
		if task.StageID == project.TerminalStageID() && task.ApprovalStatus == models.ApprovalApproved {
			kind = slack.EventTaskCompleted
			text = fmt.Sprintf("%s completed %q", caller.DisplayName(), task.Title)
		}
		getBridge().NotifyProject(project.ID, slack.Message{Kind: kind, Text: text})
	} else {
		getBridge().NotifyProject(project.ID, slack.Message{
			Kind: slack.EventTaskUpdated,
			Text: fmt.Sprintf("%s updated %q", caller.DisplayName(), task.Title),
		})
	}
	if req.hasAssignees {
		getFanout().TaskAssigned(project, task, caller, oldAssignees)
	}
	getFanout().PublishChange(project.ID, realtime.ChangeEvent{
		Table: "tasks",
		Type:  realtime.EventUpdate,
		New:   rowMap(task),
	})

	c.JSON(http.StatusOK, task)
}

// ApproveTask handles POST /api/tasks/:id/approve (admin and above).
// Grants approval to a task waiting in the terminal stage.
func ApproveTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	task, ok := loadTaskAuthorized(c, userID, taskID, authz.ActionDeleteTask)
	if !ok {
		return
	}

	if task.ApprovalStatus != models.ApprovalPending {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Task is not awaiting approval"})
		return
	}

	db := database.GetDB()
	now := time.Now()
	if err := db.Model(&task).Updates(map[string]any{
		"approval_status": models.ApprovalApproved,
		"completed_at":    now,
	}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve task"})
		return
	}
	task.ApprovalStatus = models.ApprovalApproved
	task.CompletedAt = &now

	getFanout().PublishChange(task.ProjectID, realtime.ChangeEvent{
		Table: "tasks",
		Type:  realtime.EventUpdate,
		New:   rowMap(task),
	})

	c.JSON(http.StatusOK, task)
}

// DeleteTask handles DELETE /api/tasks/:id (admin and above). Dependent
// comments, mentions and attention items go with it.
func DeleteTask(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	taskID := c.Param("id")

	task, ok := loadTaskAuthorized(c, userID, taskID, authz.ActionDeleteTask)
	if !ok {
		return
	}

	db := database.GetDB()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Mention{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.AttentionItem{}).Error; err != nil {
			return err
		}
		if err := tx.Where("task_id = ?", taskID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&task).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete task"})
		return
	}

	getFanout().PublishChange(task.ProjectID, realtime.ChangeEvent{
		Table: "tasks",
		Type:  realtime.EventDelete,
		Old:   rowMap(task),
	})
	getBridge().NotifyProject(task.ProjectID, slack.Message{
		Kind: slack.EventTaskDeleted,
		Text: fmt.Sprintf("Task %q was deleted", task.Title),
	})

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully", "id": taskID})
}

// loadTaskAuthorized fetches a task and checks the caller may perform the
// action on its project. Writes the error response on failure.
func loadTaskAuthorized(c *gin.Context, userID, taskID string, action authz.Action) (models.Task, bool) {
	var task models.Task
	if err := database.GetDB().Where("id = ?", taskID).First(&task).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch task"})
		}
		return models.Task{}, false
	}

	if err := getEngine().Require(userID, task.ProjectID, action); err != nil {
		writeAuthzError(c, err)
		return models.Task{}, false
	}
	return task, true
}

// nextPosition appends to a stage: max position within the stage plus one.
func nextPosition(db *gorm.DB, projectID, stageID string) int {
	var max int
	db.Model(&models.Task{}).
		Where("project_id = ? AND stage_id = ?", projectID, stageID).
		Select("COALESCE(MAX(position), 0)").
		Scan(&max)
	return max + 1
}

// decodeTaskUpdate strips unknown fields and tracks which nullable
// collections were actually present in the body.
func decodeTaskUpdate(raw map[string]json.RawMessage) (UpdateTaskRequest, error) {
	var req UpdateTaskRequest
	for key, value := range raw {
		var err error
		switch key {
		case "title":
			err = json.Unmarshal(value, &req.Title)
		case "description":
			err = json.Unmarshal(value, &req.Description)
		case "status":
			err = json.Unmarshal(value, &req.Status)
		case "stage_id":
			err = json.Unmarshal(value, &req.StageID)
		case "priority":
			err = json.Unmarshal(value, &req.Priority)
		case "due_date":
			err = json.Unmarshal(value, &req.DueDate)
		case "tags":
			err = json.Unmarshal(value, &req.Tags)
			req.hasTags = err == nil
		case "custom_fields":
			err = json.Unmarshal(value, &req.CustomFields)
			req.hasCustom = err == nil
		case "assignees":
			err = json.Unmarshal(value, &req.Assignees)
			req.hasAssignees = err == nil
		case "position":
			err = json.Unmarshal(value, &req.Position)
		case "completed_at":
			err = json.Unmarshal(value, &req.CompletedAt)
		default:
			// Unknown fields (updated_at included) are dropped server-side.
		}
		if err != nil {
			return req, fmt.Errorf("invalid value for %q", key)
		}
	}
	return req, nil
}
