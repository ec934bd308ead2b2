package models

import (
	"gorm.io/gorm"
)

// Comment represents a comment on a task. ProjectID is denormalized from the
// task so authorization never needs the extra join.
type Comment struct {
	ID        string `json:"id" gorm:"primaryKey"`
	TaskID    string `json:"task_id" gorm:"column:task_id;index;not null"`
	ProjectID string `json:"project_id" gorm:"column:project_id;index;not null"`
	Content   string `json:"content" gorm:"not null"`
	CreatedBy string `json:"created_by" gorm:"column:created_by;index"`
	EditCount int    `json:"edit_count" gorm:"column:edit_count;default:0"`
	gorm.Model
}

// TableName specifies the table name for Comment Model
func (Comment) TableName() string {
	return "comments"
}

// Mention is a derived record created when a handle in a comment body
// resolves to a project member. Regenerated on edit for newly added handles
// only; removing a handle never deletes prior mention records.
type Mention struct {
	ID              string `json:"id" gorm:"primaryKey"`
	MentionedUserID string `json:"mentioned_user_id" gorm:"column:mentioned_user_id;index;not null"`
	MentionerUserID string `json:"mentioner_user_id" gorm:"column:mentioner_user_id;not null"`
	TaskID          string `json:"task_id" gorm:"column:task_id;index"`
	CommentID       string `json:"comment_id" gorm:"column:comment_id;index"`
	ProjectID       string `json:"project_id" gorm:"column:project_id;index"`
	MentionContext  string `json:"mention_context" gorm:"column:mention_context"`
	gorm.Model
}

// TableName specifies the table name for Mention Model
func (Mention) TableName() string {
	return "mentions"
}
