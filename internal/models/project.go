package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ProjectStatus represents the lifecycle status of a project
type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectArchived ProjectStatus = "archived"
)

// WorkflowStage is one column of a project's board. Every task's stage id
// must reference a stage defined on the parent project.
type WorkflowStage struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// StageDone is the id of the terminal stage in the default workflow.
const StageDone = "done"

// DefaultWorkflowStages returns the stage set new projects start with.
func DefaultWorkflowStages() []WorkflowStage {
	return []WorkflowStage{
		{ID: "todo", Name: "To Do", Color: "#94a3b8"},
		{ID: "in_progress", Name: "In Progress", Color: "#3b82f6"},
		{ID: "review", Name: "Review", Color: "#f59e0b"},
		{ID: StageDone, Name: "Done", Color: "#22c55e"},
	}
}

// Project represents a task board inside an organization
type Project struct {
	ID               string         `json:"id" gorm:"primaryKey"`
	OrganizationID   string         `json:"organization_id" gorm:"column:organization_id;index"`
	Name             string         `json:"name" gorm:"not null"`
	Description      string         `json:"description"`
	Color            string         `json:"color" gorm:"default:'#3b82f6'"`
	Status           ProjectStatus  `json:"status" gorm:"not null;default:'active'"`
	WorkflowStages   datatypes.JSON `json:"workflow_stages" gorm:"column:workflow_stages"`
	RequiresApproval bool           `json:"requires_approval" gorm:"column:requires_approval;default:false"`
	CreatedBy        string         `json:"created_by" gorm:"column:created_by;index"`
	gorm.Model
}

// TableName specifies the table name for Project Model
func (Project) TableName() string {
	return "projects"
}

// Stages decodes the workflow stage list; an empty column yields the defaults.
func (p Project) Stages() []WorkflowStage {
	if len(p.WorkflowStages) == 0 {
		return DefaultWorkflowStages()
	}
	var stages []WorkflowStage
	if err := json.Unmarshal(p.WorkflowStages, &stages); err != nil || len(stages) == 0 {
		return DefaultWorkflowStages()
	}
	return stages
}

// HasStage reports whether stageID references one of the project's stages.
func (p Project) HasStage(stageID string) bool {
	for _, s := range p.Stages() {
		if s.ID == stageID {
			return true
		}
	}
	return false
}

// StageName resolves a stage id to its display name; falls back to the id.
func (p Project) StageName(stageID string) string {
	for _, s := range p.Stages() {
		if s.ID == stageID {
			return s.Name
		}
	}
	return stageID
}

// TerminalStageID returns the id of the last stage in the workflow, the one
// that counts toward completion statistics.
func (p Project) TerminalStageID() string {
	stages := p.Stages()
	return stages[len(stages)-1].ID
}

// ProjectMember links a user to a project with a role.
// Invariants: at least one owner per project; the user must belong to the
// parent organization when the project has one.
type ProjectMember struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ProjectID string    `json:"project_id" gorm:"column:project_id;uniqueIndex:idx_project_user;not null"`
	UserID    string    `json:"user_id" gorm:"column:user_id;uniqueIndex:idx_project_user;not null"`
	Role      Role      `json:"role" gorm:"not null;default:'member'"`
	JoinedAt  time.Time `json:"joined_at"`
	gorm.Model
}

// TableName specifies the table name for ProjectMember Model
func (ProjectMember) TableName() string {
	return "project_members"
}
