package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"collabboard-api/internal/auth"
	"collabboard-api/internal/database"
	"collabboard-api/internal/middleware"
	"collabboard-api/internal/models"
	"collabboard-api/internal/testutil"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupAPI swaps in a fresh in-memory database and returns a router with the
// protected API surface mounted behind the JWT middleware.
func setupAPI(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := testutil.NewInMemoryDB()
	require.NoError(t, err)
	database.DB = db

	gin.SetMode(gin.TestMode)
	r := gin.New()

	api := r.Group("/api")
	api.POST("/signup", Signup)
	api.POST("/login", Login)
	api.POST("/auth/request-reset", RequestPasswordReset)
	api.POST("/auth/verify-pin", VerifyResetPin)
	api.POST("/auth/reset-password", ResetPassword)

	protected := api.Group("")
	protected.Use(middleware.JWTAuthMiddleware())
	{
		protected.GET("/users", GetAllUsers)
		protected.GET("/me", GetMe)
		protected.PATCH("/me", UpdateMe)

		protected.GET("/organizations", ListOrganizations)
		protected.POST("/organizations", CreateOrganization)
		protected.GET("/organizations/:id", GetOrganization)
		protected.PATCH("/organizations/:id", UpdateOrganization)
		protected.DELETE("/organizations/:id", DeleteOrganization)
		protected.POST("/organizations/:id/members", AddOrgMember)
		protected.DELETE("/organizations/:id/members", RemoveOrgMember)

		protected.GET("/projects", ListProjects)
		protected.POST("/projects", CreateProject)
		protected.GET("/projects/:id", GetProject)
		protected.PATCH("/projects/:id", UpdateProject)
		protected.DELETE("/projects/:id", DeleteProject)
		protected.GET("/projects/:id/stats", GetProjectStats)
		protected.PUT("/projects/:id/integrations/slack", ConfigureSlackIntegration)

		protected.GET("/projects/:id/members", ListMembers)
		protected.POST("/projects/:id/members", AddMember)
		protected.PATCH("/projects/:id/members", ChangeMemberRole)
		protected.DELETE("/projects/:id/members", RemoveMember)
		protected.POST("/invitations/:token/accept", AcceptInvitation)
		protected.POST("/invitations/:token/decline", DeclineInvitation)

		protected.GET("/tasks", ListTasks)
		protected.GET("/tasks/:id", GetTaskByID)
		protected.POST("/tasks", CreateTask)
		protected.PATCH("/tasks/:id", UpdateTask)
		protected.POST("/tasks/:id/approve", ApproveTask)
		protected.DELETE("/tasks/:id", DeleteTask)

		protected.GET("/comments", ListComments)
		protected.POST("/comments", CreateComment)
		protected.PATCH("/comments/:id", UpdateComment)
		protected.DELETE("/comments/:id", DeleteComment)

		protected.GET("/notifications", ListNotifications)
		protected.PATCH("/notifications/:id/read", MarkNotificationRead)
		protected.POST("/notifications/read-all", MarkAllNotificationsRead)
		protected.DELETE("/notifications/:id", DeleteNotification)
		protected.GET("/attention", ListAttentionItems)
		protected.PATCH("/attention/:id/read", MarkAttentionItemRead)
	}

	return r, db
}

// doJSON performs an authenticated request as the given user and decodes the
// JSON response body into a generic map.
func doJSON(t *testing.T, r *gin.Engine, user models.Profile, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user.ID != "" {
		token, err := auth.GenerateToken(user.ID, user.Email)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var decoded map[string]any
	if len(w.Body.Bytes()) > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &decoded); err != nil {
			decoded = nil
		}
	}
	return w.Code, decoded
}
