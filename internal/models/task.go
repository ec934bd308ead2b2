package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskStatus represents the coarse status of a task
type TaskStatus string

const (
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in_progress"
	StatusDone       TaskStatus = "done"
)

// TaskPriority represents the priority of a task
type TaskPriority string

const (
	PriorityUrgent TaskPriority = "urgent"
	PriorityHigh   TaskPriority = "high"
	PriorityMedium TaskPriority = "medium"
	PriorityLow    TaskPriority = "low"
	PriorityNone   TaskPriority = "none"
)

// Valid reports whether the priority is one of the allowed values.
func (p TaskPriority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow, PriorityNone:
		return true
	}
	return false
}

// ApprovalStatus tracks review state for tasks moved into the terminal stage
type ApprovalStatus string

const (
	ApprovalNone     ApprovalStatus = "none"
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
)

// Task represents a task on a project board
type Task struct {
	ID             string         `json:"id" gorm:"primaryKey"`
	ProjectID      string         `json:"project_id" gorm:"column:project_id;index;not null"`
	Title          string         `json:"title" gorm:"not null"`
	Description    string         `json:"description"`
	StageID        string         `json:"stage_id" gorm:"column:stage_id;not null;default:'todo'"`
	Priority       TaskPriority   `json:"priority" gorm:"default:'medium'"`
	DueDate        *time.Time     `json:"due_date" gorm:"column:due_date"`
	Tags           datatypes.JSON `json:"tags"`
	CustomFields   datatypes.JSON `json:"custom_fields" gorm:"column:custom_fields"`
	Assignees      datatypes.JSON `json:"assignees"`
	Position       int            `json:"position" gorm:"default:0"`
	Status         TaskStatus     `json:"status" gorm:"not null;default:'todo'"`
	ApprovalStatus ApprovalStatus `json:"approval_status" gorm:"column:approval_status;not null;default:'none'"`
	CompletedAt    *time.Time     `json:"completed_at" gorm:"column:completed_at"`
	CreatedBy      string         `json:"created_by" gorm:"column:created_by;index"`
	gorm.Model
}

// TableName specifies the table name for Task Model
func (Task) TableName() string {
	return "tasks"
}

// AssigneeIDs decodes the assignee list; an empty column yields nil.
func (t Task) AssigneeIDs() []string {
	if len(t.Assignees) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(t.Assignees, &ids); err != nil {
		return nil
	}
	return ids
}

// Completed reports whether the task counts as done in aggregate statistics:
// terminal stage reached and approval granted.
func (t Task) Completed(doneStageID string) bool {
	return t.StageID == doneStageID && t.ApprovalStatus == ApprovalApproved
}
