package handlers

import (
	"net/http"
	"testing"

	"collabboard-api/internal/models"
	"collabboard-api/internal/testutil"

	"github.com/stretchr/testify/require"
)

func TestCreateComment_ResolvesMentions(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	author := testutil.SeedUser(db, "andy@example.com", "Andy Author")
	mia := testutil.SeedUser(db, "mia@example.com", "Mia Jones")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, author.ID, models.RoleMember)
	testutil.SeedMember(db, project.ID, mia.ID, models.RoleMember)
	task := testutil.SeedTask(db, project, "Ship it", "todo", author)

	code, body := doJSON(t, r, author, http.MethodPost, "/api/comments", map[string]any{
		"task_id": task.ID,
		"content": "ping @mia about this",
	})
	require.Equal(t, http.StatusCreated, code)
	commentID := body["id"].(string)

	var mention models.Mention
	require.NoError(t, db.Where("comment_id = ?", commentID).First(&mention).Error)
	require.Equal(t, mia.ID, mention.MentionedUserID)
	require.Equal(t, author.ID, mention.MentionerUserID)

	var item models.AttentionItem
	require.NoError(t, db.Where("user_id = ?", mia.ID).First(&item).Error)
	require.Equal(t, "mention", item.AttentionType)

	// Mentioned user gets the mention notification, not the comment one.
	var types []string
	db.Model(&models.Notification{}).Where("user_id = ?", mia.ID).Pluck("type", &types)
	require.Equal(t, []string{string(models.NotificationMention)}, types)

	// The remaining member gets the plain comment notification.
	db.Model(&models.Notification{}).Where("user_id = ?", owner.ID).Pluck("type", &types)
	require.Equal(t, []string{string(models.NotificationCommentAdded)}, types)
}

func TestUpdateComment_OnlyNewMentionsNotify(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	author := testutil.SeedUser(db, "andy@example.com", "Andy Author")
	mia := testutil.SeedUser(db, "mia@example.com", "Mia Jones")
	bob := testutil.SeedUser(db, "bob@example.com", "Bob Smith")
	project := testutil.SeedProject(db, "Apollo", owner)
	for _, u := range []models.Profile{author, mia, bob} {
		testutil.SeedMember(db, project.ID, u.ID, models.RoleMember)
	}
	task := testutil.SeedTask(db, project, "Ship it", "todo", author)

	code, body := doJSON(t, r, author, http.MethodPost, "/api/comments", map[string]any{
		"task_id": task.ID,
		"content": "cc @mia",
	})
	require.Equal(t, http.StatusCreated, code)
	commentID := body["id"].(string)

	code, body = doJSON(t, r, author, http.MethodPatch, "/api/comments/"+commentID, map[string]any{
		"content": "cc @mia and now @bob too",
	})
	require.Equal(t, http.StatusOK, code)
	require.EqualValues(t, 1, body["edit_count"])

	// Mia keeps exactly one mention; only Bob is new.
	var miaCount, bobCount int64
	db.Model(&models.Mention{}).Where("comment_id = ? AND mentioned_user_id = ?", commentID, mia.ID).Count(&miaCount)
	db.Model(&models.Mention{}).Where("comment_id = ? AND mentioned_user_id = ?", commentID, bob.ID).Count(&bobCount)
	require.EqualValues(t, 1, miaCount)
	require.EqualValues(t, 1, bobCount)
}

func TestUpdateComment_AuthorOnly(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	author := testutil.SeedUser(db, "andy@example.com", "Andy")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, author.ID, models.RoleMember)
	task := testutil.SeedTask(db, project, "Ship it", "todo", author)

	code, body := doJSON(t, r, author, http.MethodPost, "/api/comments", map[string]any{
		"task_id": task.ID,
		"content": "mine",
	})
	require.Equal(t, http.StatusCreated, code)
	commentID := body["id"].(string)

	// Even the project owner cannot edit someone else's words.
	code, _ = doJSON(t, r, owner, http.MethodPatch, "/api/comments/"+commentID, map[string]any{
		"content": "rewritten",
	})
	require.Equal(t, http.StatusForbidden, code)
}

func TestDeleteComment_AdminOrAuthor(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	author := testutil.SeedUser(db, "andy@example.com", "Andy")
	other := testutil.SeedUser(db, "other@example.com", "Other")
	mia := testutil.SeedUser(db, "mia@example.com", "Mia Jones")
	project := testutil.SeedProject(db, "Apollo", owner)
	for _, u := range []models.Profile{author, other, mia} {
		testutil.SeedMember(db, project.ID, u.ID, models.RoleMember)
	}
	task := testutil.SeedTask(db, project, "Ship it", "todo", author)

	code, body := doJSON(t, r, author, http.MethodPost, "/api/comments", map[string]any{
		"task_id": task.ID,
		"content": "hey @mia",
	})
	require.Equal(t, http.StatusCreated, code)
	commentID := body["id"].(string)

	// A non-author member cannot delete.
	code, _ = doJSON(t, r, other, http.MethodDelete, "/api/comments/"+commentID, nil)
	require.Equal(t, http.StatusForbidden, code)

	// The owner can; mentions and attention items cascade, notifications stay.
	code, _ = doJSON(t, r, owner, http.MethodDelete, "/api/comments/"+commentID, nil)
	require.Equal(t, http.StatusOK, code)

	var mentionCount, itemCount, notifCount int64
	db.Model(&models.Mention{}).Where("comment_id = ?", commentID).Count(&mentionCount)
	db.Model(&models.AttentionItem{}).Where("comment_id = ?", commentID).Count(&itemCount)
	db.Model(&models.Notification{}).Where("user_id = ?", mia.ID).Count(&notifCount)
	require.EqualValues(t, 0, mentionCount)
	require.EqualValues(t, 0, itemCount)
	require.EqualValues(t, 1, notifCount)
}

func TestSelfMention_NoReceipt(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	author := testutil.SeedUser(db, "andy@example.com", "Andy Author")
	project := testutil.SeedProject(db, "Apollo", owner)
	testutil.SeedMember(db, project.ID, author.ID, models.RoleMember)
	task := testutil.SeedTask(db, project, "Ship it", "todo", author)

	code, body := doJSON(t, r, author, http.MethodPost, "/api/comments", map[string]any{
		"task_id": task.ID,
		"content": "note to self: @andy fix this",
	})
	require.Equal(t, http.StatusCreated, code)
	commentID := body["id"].(string)

	var count int64
	db.Model(&models.Mention{}).Where("comment_id = ?", commentID).Count(&count)
	require.EqualValues(t, 0, count)
}

func TestListComments_RequiresTaskAccess(t *testing.T) {
	r, db := setupAPI(t)

	owner := testutil.SeedUser(db, "owner@example.com", "Owner")
	stranger := testutil.SeedUser(db, "stranger@example.com", "Stranger")
	project := testutil.SeedProject(db, "Apollo", owner)
	task := testutil.SeedTask(db, project, "Hidden", "todo", owner)

	code, _ := doJSON(t, r, stranger, http.MethodGet, "/api/comments?task_id="+task.ID, nil)
	require.Equal(t, http.StatusNotFound, code)
}
