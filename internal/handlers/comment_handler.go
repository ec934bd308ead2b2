package handlers

import (
	"errors"
	"net/http"

	"collabboard-api/internal/authz"
	"collabboard-api/internal/database"
	"collabboard-api/internal/mentions"
	"collabboard-api/internal/models"
	"collabboard-api/internal/realtime"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateCommentRequest represents the request payload for posting a comment
type CreateCommentRequest struct {
	TaskID  string `json:"task_id" binding:"required"`
	Content string `json:"content" binding:"required"`
}

// ListComments handles GET /api/comments?task_id=
func ListComments(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	taskID := c.Query("task_id")
	if taskID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id is required"})
		return
	}

	task, ok := loadTaskAuthorized(c, userID, taskID, authz.ActionReadProject)
	if !ok {
		return
	}

	var comments []models.Comment
	if err := database.GetDB().
		Where("task_id = ?", task.ID).
		Order("created_at asc").
		Find(&comments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comments"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"comments": comments, "count": len(comments)})
}

// CreateComment handles POST /api/comments
// After the comment persists, the mention pipeline and the member fan-out
// run best-effort.
func CreateComment(c *gin.Context) {
	caller, ok := callerProfile(c)
	if !ok {
		return
	}

	var req CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task_id and content are required"})
		return
	}

	task, ok := loadTaskAuthorized(c, caller.ID, req.TaskID, authz.ActionCreateComment)
	if !ok {
		return
	}

	db := database.GetDB()

	var project models.Project
	if err := db.Where("id = ?", task.ProjectID).First(&project).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch project"})
		return
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Content:   req.Content,
		CreatedBy: caller.ID,
	}
	if err := db.Create(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create comment"})
		return
	}

	resolved := mentions.Resolve(comment.Content, caller.ID, memberProfiles(task.ProjectID))
	getFanout().MentionsCreated(project, task, comment, caller, resolved, 0)
	getFanout().CommentPosted(project, task, comment, caller, resolved)
	getFanout().PublishChange(project.ID, realtime.ChangeEvent{
		Table: "comments",
		Type:  realtime.EventInsert,
		New:   rowMap(comment),
	})

	c.JSON(http.StatusCreated, comment)
}

// UpdateComment handles PATCH /api/comments/:id (author only). Mention
// records are produced for newly added handles only; removed handles keep
// their receipts.
func UpdateComment(c *gin.Context) {
	caller, ok := callerProfile(c)
	if !ok {
		return
	}
	commentID := c.Param("id")

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		return
	}

	db := database.GetDB()

	var comment models.Comment
	if err := db.Where("id = ?", commentID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comment"})
		}
		return
	}

	if err := getEngine().RequireCommentEdit(caller.ID, comment); err != nil {
		writeAuthzError(c, err)
		return
	}

	oldContent := comment.Content
	comment.Content = req.Content
	comment.EditCount++

	if err := db.Save(&comment).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update comment"})
		return
	}

	var task models.Task
	var project models.Project
	if err := db.Where("id = ?", comment.TaskID).First(&task).Error; err == nil {
		if err := db.Where("id = ?", comment.ProjectID).First(&project).Error; err == nil {
			added := mentions.Delta(oldContent, comment.Content, caller.ID, memberProfiles(comment.ProjectID))
			getFanout().MentionsCreated(project, task, comment, caller, added, comment.EditCount)
		}
	}

	getFanout().PublishChange(comment.ProjectID, realtime.ChangeEvent{
		Table: "comments",
		Type:  realtime.EventUpdate,
		New:   rowMap(comment),
	})

	c.JSON(http.StatusOK, comment)
}

// DeleteComment handles DELETE /api/comments/:id (author, or project admin
// and above). Dependent mentions and attention items cascade; the mentioned
// users' notifications are sticky and stay.
func DeleteComment(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	commentID := c.Param("id")

	db := database.GetDB()

	var comment models.Comment
	if err := db.Where("id = ?", commentID).First(&comment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch comment"})
		}
		return
	}

	if err := getEngine().RequireCommentDelete(userID, comment); err != nil {
		writeAuthzError(c, err)
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.Mention{}).Error; err != nil {
			return err
		}
		if err := tx.Where("comment_id = ?", commentID).Delete(&models.AttentionItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&comment).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete comment"})
		return
	}

	getFanout().PublishChange(comment.ProjectID, realtime.ChangeEvent{
		Table: "comments",
		Type:  realtime.EventDelete,
		Old:   rowMap(comment),
	})

	c.JSON(http.StatusOK, gin.H{"message": "Comment deleted", "id": commentID})
}

// memberProfiles loads the profiles of every member of a project, for
// mention candidate matching.
func memberProfiles(projectID string) []models.Profile {
	db := database.GetDB()

	var ids []string
	if err := db.Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Pluck("user_id", &ids).Error; err != nil || len(ids) == 0 {
		return nil
	}

	var profiles []models.Profile
	if err := db.Where("id IN ?", ids).Find(&profiles).Error; err != nil {
		return nil
	}
	return profiles
}
