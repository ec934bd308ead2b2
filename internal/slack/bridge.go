package slack

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"collabboard-api/internal/models"

	"gorm.io/gorm"
)

// EventKind names the domain events the bridge can forward.
type EventKind string

const (
	EventTaskCreated   EventKind = "task_created"
	EventTaskUpdated   EventKind = "task_updated"
	EventTaskDeleted   EventKind = "task_deleted"
	EventTaskMoved     EventKind = "task_moved"
	EventTaskCompleted EventKind = "task_completed"
	EventMemberJoined  EventKind = "member_joined"
	EventMemberLeft    EventKind = "member_left"
)

// Message is one outbound Slack post.
type Message struct {
	Kind EventKind
	Text string
}

// Bridge forwards domain events to a project's Slack channel. Posting is
// fire-and-forget: the HTTP response is never blocked on Slack.
type Bridge struct {
	db      *gorm.DB
	client  *http.Client
	apiBase string // overridable in tests
}

// NewBridge constructs a Bridge over the database handle.
func NewBridge(db *gorm.DB) *Bridge {
	return &Bridge{
		db:      db,
		client:  &http.Client{Timeout: 10 * time.Second},
		apiBase: "https://slack.com/api",
	}
}

// SetAPIBase points the bridge at a different Slack API endpoint. Tests use
// this with httptest servers.
func (b *Bridge) SetAPIBase(base string) {
	b.apiBase = base
}

// NotifyProject looks up the project's integration and, if the event's flag
// is enabled, posts the message on a separate goroutine.
func (b *Bridge) NotifyProject(projectID string, msg Message) {
	var integration models.SlackIntegration
	err := b.db.Where("project_id = ?", projectID).First(&integration).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Println("slack: load integration:", err)
		}
		return
	}
	if !eventEnabled(integration, msg.Kind) {
		return
	}

	go func() {
		if err := b.post(integration, msg); err != nil {
			log.Printf("slack: post %s for project %s: %v", msg.Kind, projectID, err)
		}
	}()
}

func eventEnabled(i models.SlackIntegration, kind EventKind) bool {
	switch kind {
	case EventTaskCreated:
		return i.NotifyOnTaskCreate
	case EventTaskUpdated:
		return i.NotifyOnTaskUpdate
	case EventTaskDeleted:
		return i.NotifyOnTaskDelete
	case EventTaskMoved:
		return i.NotifyOnTaskMove
	case EventTaskCompleted:
		return i.NotifyOnTaskComplete
	case EventMemberJoined:
		return i.NotifyOnMemberJoin
	case EventMemberLeft:
		return i.NotifyOnMemberLeave
	}
	return false
}

// post prefers the chat.postMessage API with the stored token; falls back to
// the incoming webhook; no-ops when neither credential is configured.
func (b *Bridge) post(i models.SlackIntegration, msg Message) error {
	switch {
	case i.AccessToken != "" && i.ChannelID != "":
		return b.postAPI(i, msg)
	case i.WebhookURL != "":
		return b.postWebhook(i.WebhookURL, msg)
	}
	return nil
}

func (b *Bridge) postAPI(i models.SlackIntegration, msg Message) error {
	payload, err := json.Marshal(map[string]string{
		"channel": i.ChannelID,
		"text":    msg.Text,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, b.apiBase+"/chat.postMessage", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+i.AccessToken)

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat.postMessage returned %d", resp.StatusCode)
	}

	var result struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("chat.postMessage: %s", result.Error)
	}
	return nil
}

func (b *Bridge) postWebhook(url string, msg Message) error {
	payload, err := json.Marshal(map[string]string{"text": msg.Text})
	if err != nil {
		return err
	}

	resp, err := b.client.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}
