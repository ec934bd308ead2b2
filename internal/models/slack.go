package models

import (
	"gorm.io/gorm"
)

// SlackIntegration holds the outbound credential and per-event toggles for a
// project (or an organization when ProjectID is empty). Posting prefers the
// access token + channel pair; the webhook URL is the fallback.
type SlackIntegration struct {
	ID             string `json:"id" gorm:"primaryKey"`
	ProjectID      string `json:"project_id" gorm:"column:project_id;index"`
	OrganizationID string `json:"organization_id" gorm:"column:organization_id;index"`
	AccessToken    string `json:"-" gorm:"column:access_token"`
	WebhookURL     string `json:"-" gorm:"column:webhook_url"`
	ChannelID      string `json:"channel_id" gorm:"column:channel_id"`

	NotifyOnTaskCreate   bool `json:"notify_on_task_create" gorm:"column:notify_on_task_create;default:true"`
	NotifyOnTaskUpdate   bool `json:"notify_on_task_update" gorm:"column:notify_on_task_update;default:false"`
	NotifyOnTaskDelete   bool `json:"notify_on_task_delete" gorm:"column:notify_on_task_delete;default:false"`
	NotifyOnTaskMove     bool `json:"notify_on_task_move" gorm:"column:notify_on_task_move;default:true"`
	NotifyOnTaskComplete bool `json:"notify_on_task_complete" gorm:"column:notify_on_task_complete;default:true"`

	// Organization-level toggles; unused for project integrations.
	NotifyOnAnnouncement bool `json:"notify_on_announcement" gorm:"column:notify_on_announcement;default:true"`
	NotifyOnMeeting      bool `json:"notify_on_meeting" gorm:"column:notify_on_meeting;default:false"`
	NotifyOnMemberJoin   bool `json:"notify_on_member_join" gorm:"column:notify_on_member_join;default:true"`
	NotifyOnMemberLeave  bool `json:"notify_on_member_leave" gorm:"column:notify_on_member_leave;default:false"`

	gorm.Model
}

// TableName specifies the table name for SlackIntegration Model
func (SlackIntegration) TableName() string {
	return "slack_integrations"
}
