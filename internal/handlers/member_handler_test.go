package handlers

import (
	"net/http"
	"testing"

	"collabboard-api/internal/models"
	"collabboard-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestAddMember_ExistingUser(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	newcomer := testutil.SeedUser(db, "new@example.com", "Newcomer")
	project := testutil.SeedProject(db, "Apollo", owner)

	code, _ := doJSON(t, r, owner, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": newcomer.Email,
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, code)

	var member models.ProjectMember
	require.NoError(t, db.Where("project_id = ? AND user_id = ?", project.ID, newcomer.ID).First(&member).Error)
	require.Equal(t, models.RoleMember, member.Role)

	// The new member got the project-invite notification.
	var count int64
	db.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", newcomer.ID, models.NotificationProjectInvite).Count(&count)
	require.EqualValues(t, 1, count)

	// Adding twice is rejected.
	code, _ = doJSON(t, r, owner, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": newcomer.Email,
	})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAddMember_AdminCannotMintAdmin(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	admin := testutil.SeedUser(db, "admin@example.com", "Admin")
	newcomer := testutil.SeedUser(db, "new@example.com", "Newcomer")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, admin.ID, models.RoleAdmin)

	code, _ := doJSON(t, r, admin, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": newcomer.Email,
		"role":  "admin",
	})
	require.Equal(t, http.StatusForbidden, code)

	code, _ = doJSON(t, r, admin, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": newcomer.Email,
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, code)
}

func TestAddMember_UnknownEmailCreatesInvitation(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	project := testutil.SeedProject(db, "Apollo", owner)

	code, body := doJSON(t, r, owner, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": "nobody@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, code)
	require.Equal(t, string(models.InvitationPending), body["status"])

	var invitation models.ProjectInvitation
	require.NoError(t, db.Where("project_id = ? AND email = ?", project.ID, "nobody@example.com").
		First(&invitation).Error)
	require.NotEmpty(t, invitation.Token)

	// A second invite while the first is pending is rejected.
	code, _ = doJSON(t, r, owner, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": "nobody@example.com",
	})
	require.Equal(t, http.StatusBadRequest, code)
}

func TestAcceptInvitation(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	project := testutil.SeedProject(db, "Apollo", owner)

	code, _ := doJSON(t, r, owner, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": "invited@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, code)

	var invitation models.ProjectInvitation
	require.NoError(t, db.Where("email = ?", "invited@example.com").First(&invitation).Error)

	// The wrong account cannot redeem the token.
	interloper := testutil.SeedUser(db, "interloper@example.com", "Interloper")
	code, _ = doJSON(t, r, interloper, http.MethodPost, "/api/invitations/"+invitation.Token+"/accept", nil)
	require.Equal(t, http.StatusForbidden, code)

	invited := testutil.SeedUser(db, "invited@example.com", "Invited")
	code, _ = doJSON(t, r, invited, http.MethodPost, "/api/invitations/"+invitation.Token+"/accept", nil)
	require.Equal(t, http.StatusOK, code)

	var member models.ProjectMember
	require.NoError(t, db.Where("project_id = ? AND user_id = ?", project.ID, invited.ID).First(&member).Error)
	require.Equal(t, models.RoleMember, member.Role)

	// The token is spent.
	code, _ = doJSON(t, r, invited, http.MethodPost, "/api/invitations/"+invitation.Token+"/accept", nil)
	require.Equal(t, http.StatusNotFound, code)
}

func TestAcceptInvitation_OrgProjectRequiresOrgMembership(t *testing.T) {
	r, db := setupAPI(t)

	alice := testutil.SeedUser(db, "alice@example.com", "Alice")

	code, body := doJSON(t, r, alice, http.MethodPost, "/api/organizations", map[string]any{"name": "Acme"})
	require.Equal(t, http.StatusCreated, code)
	orgID := body["id"].(string)

	code, body = doJSON(t, r, alice, http.MethodPost, "/api/projects", map[string]any{
		"name":            "Board",
		"organization_id": orgID,
	})
	require.Equal(t, http.StatusCreated, code)
	projectID := body["id"].(string)

	code, _ = doJSON(t, r, alice, http.MethodPost, "/api/projects/"+projectID+"/members", map[string]any{
		"email": "carol@example.com",
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, code)

	var invitation models.ProjectInvitation
	require.NoError(t, db.Where("email = ?", "carol@example.com").First(&invitation).Error)

	// Carol signs up but is not an org member yet, so the token is not redeemable.
	carol := testutil.SeedUser(db, "carol@example.com", "Carol")
	code, _ = doJSON(t, r, carol, http.MethodPost, "/api/invitations/"+invitation.Token+"/accept", nil)
	require.Equal(t, http.StatusBadRequest, code)

	var count int64
	db.Model(&models.ProjectMember{}).Where("project_id = ? AND user_id = ?", projectID, carol.ID).Count(&count)
	require.EqualValues(t, 0, count)

	// Once enrolled in the organization the same token works.
	code, _ = doJSON(t, r, alice, http.MethodPost, "/api/organizations/"+orgID+"/members", map[string]any{
		"email": carol.Email,
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, code)

	code, _ = doJSON(t, r, carol, http.MethodPost, "/api/invitations/"+invitation.Token+"/accept", nil)
	require.Equal(t, http.StatusOK, code)
}

func TestDeclineInvitation(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	project := testutil.SeedProject(db, "Apollo", owner)

	code, _ := doJSON(t, r, owner, http.MethodPost, "/api/projects/"+project.ID+"/members", map[string]any{
		"email": "invited@example.com",
	})
	require.Equal(t, http.StatusCreated, code)

	var invitation models.ProjectInvitation
	require.NoError(t, db.Where("email = ?", "invited@example.com").First(&invitation).Error)

	invited := testutil.SeedUser(db, "invited@example.com", "Invited")
	code, _ = doJSON(t, r, invited, http.MethodPost, "/api/invitations/"+invitation.Token+"/decline", nil)
	require.Equal(t, http.StatusOK, code)

	var count int64
	db.Model(&models.ProjectMember{}).Where("project_id = ? AND user_id = ?", project.ID, invited.ID).Count(&count)
	require.EqualValues(t, 0, count)
}

func TestChangeMemberRole_TransfersOwnership(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	member := testutil.SeedUser(db, "member@example.com", "Member")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, member.ID, models.RoleMember)

	code, body := doJSON(t, r, owner, http.MethodPatch, "/api/projects/"+project.ID+"/members", map[string]any{
		"user_id": member.ID,
		"role":    "owner",
	})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["ownership_transferred"])

	var rows []models.ProjectMember
	require.NoError(t, db.Where("project_id = ?", project.ID).Find(&rows).Error)
	roles := map[string]models.Role{}
	for _, m := range rows {
		roles[m.UserID] = m.Role
	}
	require.Equal(t, models.RoleOwner, roles[member.ID])
	require.Equal(t, models.RoleAdmin, roles[owner.ID])
}

func TestChangeMemberRole_LastOwnerCannotDemote(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	member := testutil.SeedUser(db, "member@example.com", "Member")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, member.ID, models.RoleMember)

	// The sole owner cannot demote themselves to a lower role.
	code, _ := doJSON(t, r, owner, http.MethodPatch, "/api/projects/"+project.ID+"/members", map[string]any{
		"user_id": owner.ID,
		"role":    "member",
	})
	require.Equal(t, http.StatusBadRequest, code)

	var owners int64
	db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND role = ?", project.ID, models.RoleOwner).Count(&owners)
	require.GreaterOrEqual(t, owners, int64(1), "project lost its last owner")

	// With a second owner in place the demotion is allowed.
	second := testutil.SeedUser(db, "owner2@example.com", "Second Owner")
	testutil.SeedMember(db, project.ID, second.ID, models.RoleOwner)

	code, _ = doJSON(t, r, owner, http.MethodPatch, "/api/projects/"+project.ID+"/members", map[string]any{
		"user_id": owner.ID,
		"role":    "admin",
	})
	require.Equal(t, http.StatusOK, code)

	db.Model(&models.ProjectMember{}).
		Where("project_id = ? AND role = ?", project.ID, models.RoleOwner).Count(&owners)
	require.EqualValues(t, 1, owners)
}

func TestRemoveMember_LastOwnerProtected(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	member := testutil.SeedUser(db, "member@example.com", "Member")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, member.ID, models.RoleMember)

	// Even the owner cannot remove themselves while they are the only owner.
	code, _ := doJSON(t, r, owner, http.MethodDelete,
		"/api/projects/"+project.ID+"/members?user_id="+owner.ID, nil)
	require.Equal(t, http.StatusBadRequest, code)

	code, _ = doJSON(t, r, owner, http.MethodDelete,
		"/api/projects/"+project.ID+"/members?user_id="+member.ID, nil)
	require.Equal(t, http.StatusOK, code)

	var count int64
	db.Model(&models.ProjectMember{}).Where("project_id = ? AND user_id = ?", project.ID, member.ID).Count(&count)
	require.EqualValues(t, 0, count)
}

func TestListMembers_JoinsProfiles(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Olive Owner")
	project := testutil.SeedProject(db, "Apollo", owner)

	code, body := doJSON(t, r, owner, http.MethodGet, "/api/projects/"+project.ID+"/members", nil)
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["count"])

	first := body["members"].([]any)[0].(map[string]any)
	require.Equal(t, "owner@example.com", first["email"])
	require.Equal(t, "Olive Owner", first["full_name"])
	require.Equal(t, "owner", first["role"])
}
