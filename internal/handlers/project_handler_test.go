package handlers

import (
	"net/http"
	"testing"

	"collabboard-api/internal/models"
	"collabboard-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestCreateProject_CreatorBecomesOwner(t *testing.T) {
	r, db := setupAPI(t)

	user := testutil.SeedUser(db, "alice@example.com", "Alice")

	code, body := doJSON(t, r, user, http.MethodPost, "/api/projects", map[string]any{
		"name": "Apollo",
	})
	require.Equal(t, http.StatusCreated, code)
	projectID := body["id"].(string)

	var member models.ProjectMember
	require.NoError(t, db.Where("project_id = ? AND user_id = ?", projectID, user.ID).First(&member).Error)
	require.Equal(t, models.RoleOwner, member.Role)

	// Default workflow is applied.
	var project models.Project
	require.NoError(t, db.Where("id = ?", projectID).First(&project).Error)
	require.Len(t, project.Stages(), 4)
	require.Equal(t, "done", project.TerminalStageID())
}

func TestCreateProject_CustomStagesValidated(t *testing.T) {
	r, db := setupAPI(t)
	user := testutil.SeedUser(db, "alice@example.com", "Alice")

	code, _ := doJSON(t, r, user, http.MethodPost, "/api/projects", map[string]any{
		"name": "Broken",
		"workflow_stages": []map[string]any{
			{"id": "a", "name": "A"},
			{"id": "a", "name": "Duplicate"},
		},
	})
	require.Equal(t, http.StatusBadRequest, code)

	code, body := doJSON(t, r, user, http.MethodPost, "/api/projects", map[string]any{
		"name": "Custom",
		"workflow_stages": []map[string]any{
			{"id": "backlog", "name": "Backlog"},
			{"id": "shipped", "name": "Shipped"},
		},
	})
	require.Equal(t, http.StatusCreated, code)

	var project models.Project
	require.NoError(t, db.Where("id = ?", body["id"]).First(&project).Error)
	require.Equal(t, "shipped", project.TerminalStageID())
}

func TestUpdateProject_AdminGate(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	member := testutil.SeedUser(db, "member@example.com", "Member")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, member.ID, models.RoleMember)

	code, _ := doJSON(t, r, member, http.MethodPatch, "/api/projects/"+project.ID, map[string]any{
		"name": "Renamed",
	})
	require.Equal(t, http.StatusForbidden, code)

	code, body := doJSON(t, r, owner, http.MethodPatch, "/api/projects/"+project.ID, map[string]any{
		"name":   "Renamed",
		"status": "archived",
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Renamed", body["name"])
	require.Equal(t, "archived", body["status"])
}

func TestDeleteProject_OwnerOnlyAndCascades(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	admin := testutil.SeedUser(db, "admin@example.com", "Admin")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, admin.ID, models.RoleAdmin)
	task := testutil.SeedTask(db, project, "Doomed", "todo", owner)

	code, _ := doJSON(t, r, owner, http.MethodPost, "/api/comments", map[string]any{
		"task_id": task.ID,
		"content": "going down with the ship",
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = doJSON(t, r, admin, http.MethodDelete, "/api/projects/"+project.ID, nil)
	require.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, r, owner, http.MethodDelete, "/api/projects/"+project.ID, nil)
	require.Equal(t, http.StatusOK, code)

	var tasks, comments, members int64
	db.Model(&models.Task{}).Where("project_id = ?", project.ID).Count(&tasks)
	db.Model(&models.Comment{}).Where("project_id = ?", project.ID).Count(&comments)
	db.Model(&models.ProjectMember{}).Where("project_id = ?", project.ID).Count(&members)
	require.EqualValues(t, 0, tasks)
	require.EqualValues(t, 0, comments)
	require.EqualValues(t, 0, members)
}

func TestListProjects_AnnotatesRoleAndTaskCount(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	viewer := testutil.SeedUser(db, "viewer@example.com", "Viewer")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, viewer.ID, models.RoleViewer)
	testutil.SeedTask(db, project, "one", "todo", owner)
	testutil.SeedTask(db, project, "two", "todo", owner)

	code, body := doJSON(t, r, viewer, http.MethodGet, "/api/projects", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["count"])

	item := body["projects"].([]any)[0].(map[string]any)
	require.Equal(t, "viewer", item["role"])
	require.EqualValues(t, 2, item["task_count"])
}

func TestGetProjectStats(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedTask(db, project, "a", "todo", owner)
	testutil.SeedTask(db, project, "b", "todo", owner)
	task := testutil.SeedTask(db, project, "c", "in_progress", owner)

	code, _ := doJSON(t, r, owner, http.MethodPatch, "/api/tasks/"+task.ID, map[string]any{
		"stage_id": "done",
	})
	require.Equal(t, http.StatusOK, code)

	code, body := doJSON(t, r, owner, http.MethodGet, "/api/projects/"+project.ID+"/stats", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 3, body["total_tasks"])
	require.EqualValues(t, 1, body["completed_tasks_count"])

	byStage := body["by_stage"].(map[string]any)
	require.EqualValues(t, 2, byStage["todo"])
	require.EqualValues(t, 1, byStage["done"])
}

func TestConfigureSlackIntegration_AdminGateAndUpsert(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	member := testutil.SeedUser(db, "member@example.com", "Member")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, member.ID, models.RoleMember)

	code, _ := doJSON(t, r, member, http.MethodPut, "/api/projects/"+project.ID+"/integrations/slack", map[string]any{
		"webhook_url": "https://hooks.slack.com/services/x",
	})
	require.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, r, owner, http.MethodPut, "/api/projects/"+project.ID+"/integrations/slack", map[string]any{
		"webhook_url":           "https://hooks.slack.com/services/x",
		"notify_on_task_move":   false,
		"notify_on_task_create": true,
	})
	require.Equal(t, http.StatusOK, code)

	// A second PUT updates the same row.
	code, _ = doJSON(t, r, owner, http.MethodPut, "/api/projects/"+project.ID+"/integrations/slack", map[string]any{
		"channel_id": "C123",
	})
	require.Equal(t, http.StatusOK, code)

	var integrations []models.SlackIntegration
	require.NoError(t, db.Where("project_id = ?", project.ID).Find(&integrations).Error)
	require.Len(t, integrations, 1)
	require.Equal(t, "https://hooks.slack.com/services/x", integrations[0].WebhookURL)
	require.Equal(t, "C123", integrations[0].ChannelID)
	require.False(t, integrations[0].NotifyOnTaskMove)
}
