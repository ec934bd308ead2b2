package notify

import (
	"fmt"
	"log"
	"time"

	"collabboard-api/internal/mentions"
	"collabboard-api/internal/models"
	"collabboard-api/internal/realtime"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// previewLen caps the comment excerpt embedded in notification messages.
const previewLen = 100

// Fanout derives recipient sets from domain events and persists the
// resulting notifications and attention items. Every method is best-effort:
// failures are logged and never propagate to the primary write.
type Fanout struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// New constructs a Fanout over the database and realtime hub.
func New(db *gorm.DB, hub *realtime.Hub) *Fanout {
	return &Fanout{db: db, hub: hub}
}

// MemberIDs returns every user id with a membership on the project.
func (f *Fanout) MemberIDs(projectID string) []string {
	var ids []string
	if err := f.db.Model(&models.ProjectMember{}).
		Where("project_id = ?", projectID).
		Pluck("user_id", &ids).Error; err != nil {
		log.Println("fanout: load member ids:", err)
		return nil
	}
	return ids
}

// PublishChange broadcasts a row change to every member of the project.
func (f *Fanout) PublishChange(projectID string, evt realtime.ChangeEvent) {
	f.hub.Publish(f.MemberIDs(projectID), evt)
}

// CommentPosted notifies project members about a new comment. Mentioned
// users are excluded; they receive the more specific mention notification.
func (f *Fanout) CommentPosted(project models.Project, task models.Task, comment models.Comment, author models.Profile, mentioned []mentions.Resolved) {
	skip := map[string]struct{}{author.ID: {}}
	for _, m := range mentioned {
		skip[m.UserID] = struct{}{}
	}

	preview := comment.Content
	if runes := []rune(preview); len(runes) > previewLen {
		preview = string(runes[:previewLen])
	}

	for _, userID := range f.MemberIDs(project.ID) {
		if _, ok := skip[userID]; ok {
			continue
		}
		f.insertNotification(models.Notification{
			UserID:  userID,
			Type:    models.NotificationCommentAdded,
			Title:   "New comment",
			Message: fmt.Sprintf("%s commented on %q in %s: %s", author.DisplayName(), task.Title, project.Name, preview),
			Data: map[string]any{
				"project_id": project.ID,
				"task_id":    task.ID,
				"comment_id": comment.ID,
			},
		})
	}
}

// MentionsCreated persists, per mentioned user, the mention record, the
// attention item and the notification in one transaction. editSeq > 0 marks
// records created by a comment edit so re-mentioning via edit is not
// suppressed by the dedup key of the original post.
func (f *Fanout) MentionsCreated(project models.Project, task models.Task, comment models.Comment, actor models.Profile, resolved []mentions.Resolved, editSeq int) {
	for _, m := range resolved {
		if m.UserID == actor.ID {
			continue
		}

		dedupKey := fmt.Sprintf("mention:%s:%s", comment.ID, m.UserID)
		if editSeq > 0 {
			dedupKey = fmt.Sprintf("%s:edit:%d", dedupKey, editSeq)
		}

		userID := m.UserID
		err := f.db.Transaction(func(tx *gorm.DB) error {
			mention := models.Mention{
				ID:              uuid.NewString(),
				MentionedUserID: userID,
				MentionerUserID: actor.ID,
				TaskID:          task.ID,
				CommentID:       comment.ID,
				ProjectID:       project.ID,
				MentionContext:  "comment",
			}
			if err := tx.Create(&mention).Error; err != nil {
				return err
			}

			item := models.AttentionItem{
				ID:            uuid.NewString(),
				UserID:        userID,
				AttentionType: "mention",
				Priority:      models.AttentionHigh,
				Title:         fmt.Sprintf("%s mentioned you on %q", actor.DisplayName(), task.Title),
				Body:          comment.Content,
				TaskID:        task.ID,
				CommentID:     comment.ID,
				ProjectID:     project.ID,
				ActorUserID:   actor.ID,
				DedupKey:      dedupKey,
			}
			// Duplicate (user_id, dedup_key) inserts are silently ignored.
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&item).Error; err != nil {
				return err
			}

			notification := models.Notification{
				ID:     uuid.NewString(),
				UserID: userID,
				Type:   models.NotificationMention,
				Title:  "You were mentioned",
				Message: fmt.Sprintf("%s mentioned you in a comment on %q in %s",
					actor.DisplayName(), task.Title, project.Name),
				Data: map[string]any{
					"project_id": project.ID,
					"task_id":    task.ID,
					"comment_id": comment.ID,
				},
			}
			return tx.Create(&notification).Error
		})
		if err != nil {
			log.Printf("fanout: mention records for %s: %v", userID, err)
			continue
		}

		f.hub.Publish([]string{userID}, realtime.ChangeEvent{
			Table: "notifications",
			Type:  realtime.EventInsert,
			New:   map[string]any{"user_id": userID, "type": string(models.NotificationMention)},
		})
	}
}

// TaskMoved notifies the project owner when someone else moves a task
// between stages.
func (f *Fanout) TaskMoved(project models.Project, task models.Task, mover models.Profile, moverRole models.Role, oldStageID, newStageID string) {
	var owner models.ProjectMember
	err := f.db.Where("project_id = ? AND role = ?", project.ID, models.RoleOwner).
		Order("joined_at asc").First(&owner).Error
	if err != nil {
		log.Println("fanout: load project owner:", err)
		return
	}
	if owner.UserID == mover.ID {
		return
	}

	f.insertNotification(models.Notification{
		UserID: owner.UserID,
		Type:   models.NotificationTaskMoved,
		Title:  "Task moved",
		Message: fmt.Sprintf("%s moved %q from %s to %s",
			mover.DisplayName(), task.Title, project.StageName(oldStageID), project.StageName(newStageID)),
		Data: map[string]any{
			"project_id":     project.ID,
			"task_id":        task.ID,
			"old_stage_name": project.StageName(oldStageID),
			"new_stage_name": project.StageName(newStageID),
			"moved_by_name":  mover.DisplayName(),
			"moved_by_role":  moverRole.Title(),
		},
	})
}

// TaskAssigned notifies users newly added to the task's assignee set.
func (f *Fanout) TaskAssigned(project models.Project, task models.Task, actor models.Profile, previous []string) {
	prior := make(map[string]struct{}, len(previous))
	for _, id := range previous {
		prior[id] = struct{}{}
	}

	for _, userID := range task.AssigneeIDs() {
		if _, ok := prior[userID]; ok {
			continue
		}
		if userID == actor.ID {
			continue
		}
		f.insertNotification(models.Notification{
			UserID:  userID,
			Type:    models.NotificationTaskAssigned,
			Title:   "Task assigned",
			Message: fmt.Sprintf("%s assigned %q to you in %s", actor.DisplayName(), task.Title, project.Name),
			Data: map[string]any{
				"project_id": project.ID,
				"task_id":    task.ID,
			},
		})
	}
}

// MemberAdded notifies a user added directly to a project.
func (f *Fanout) MemberAdded(project models.Project, userID string, role models.Role, actor models.Profile) {
	if userID == actor.ID {
		return
	}
	f.insertNotification(models.Notification{
		UserID:  userID,
		Type:    models.NotificationProjectInvite,
		Title:   "Added to project",
		Message: fmt.Sprintf("You were added to project %s as %s", project.Name, role.Title()),
		Data: map[string]any{
			"project_id": project.ID,
			"role":       string(role),
		},
	})
}

func (f *Fanout) insertNotification(n models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if err := f.db.Create(&n).Error; err != nil {
		log.Printf("fanout: insert %s notification for %s: %v", n.Type, n.UserID, err)
		return
	}

	f.hub.Publish([]string{n.UserID}, realtime.ChangeEvent{
		Table: "notifications",
		Type:  realtime.EventInsert,
		New:   map[string]any{"user_id": n.UserID, "type": string(n.Type), "created_at": time.Now().UTC().Format(time.RFC3339)},
	})
}
