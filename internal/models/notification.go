package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// NotificationType represents the kind of notification. Stored as a free
// string column; the allowed values are enumerated here rather than policed
// at the database layer.
type NotificationType string

const (
	NotificationCommentAdded  NotificationType = "comment_added"
	NotificationMention       NotificationType = "mention"
	NotificationTaskMoved     NotificationType = "task_moved"
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationProjectInvite NotificationType = "project_invite"
)

// Notification is a push-style user-facing record; read/unread is toggled by
// the recipient. Data carries free-form references the client navigates by.
type Notification struct {
	ID      string            `json:"id" gorm:"primaryKey"`
	UserID  string            `json:"user_id" gorm:"column:user_id;index;not null"`
	Type    NotificationType  `json:"type" gorm:"not null"`
	Title   string            `json:"title" gorm:"not null"`
	Message string            `json:"message"`
	Data    datatypes.JSONMap `json:"data"`
	ReadAt  *time.Time        `json:"read_at" gorm:"column:read_at"`
	gorm.Model
}

// TableName specifies the table name for Notification Model
func (Notification) TableName() string {
	return "notifications"
}

// AttentionPriority ranks inbox entries
type AttentionPriority string

const (
	AttentionHigh   AttentionPriority = "high"
	AttentionNormal AttentionPriority = "normal"
	AttentionLow    AttentionPriority = "low"
)

// AttentionItem is an inbox entry specific to a single user. The dedup key is
// unique per user so the same logical event cannot enqueue twice.
type AttentionItem struct {
	ID            string            `json:"id" gorm:"primaryKey"`
	UserID        string            `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_user_dedup;not null"`
	AttentionType string            `json:"attention_type" gorm:"column:attention_type;not null"`
	Priority      AttentionPriority `json:"priority" gorm:"default:'normal'"`
	Title         string            `json:"title" gorm:"not null"`
	Body          string            `json:"body"`
	TaskID        string            `json:"task_id" gorm:"column:task_id;index"`
	CommentID     string            `json:"comment_id" gorm:"column:comment_id;index"`
	ProjectID     string            `json:"project_id" gorm:"column:project_id;index"`
	ActorUserID   string            `json:"actor_user_id" gorm:"column:actor_user_id"`
	DedupKey      string            `json:"dedup_key" gorm:"column:dedup_key;uniqueIndex:idx_user_dedup;not null"`
	ReadAt        *time.Time        `json:"read_at" gorm:"column:read_at"`
	gorm.Model
}

// TableName specifies the table name for AttentionItem Model
func (AttentionItem) TableName() string {
	return "attention_items"
}
