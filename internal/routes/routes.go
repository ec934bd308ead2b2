package routes

import (
	"collabboard-api/internal/handlers"
	"collabboard-api/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRoutes() *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.Default()

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Slack slash-command webhook; does its own signature verification
	ginRouter.POST("/slack/command", handlers.SlackCommand)

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/signup", handlers.Signup)
		api.POST("/login", handlers.Login)
		api.POST("/auth/request-reset", handlers.RequestPasswordReset)
		api.POST("/auth/verify-pin", handlers.VerifyResetPin)
		api.POST("/auth/reset-password", handlers.ResetPassword)
	}

	// Protected routes (authentication required)
	protectedRoutes := api.Group("")
	protectedRoutes.Use(middleware.JWTAuthMiddleware())
	{
		// Profile endpoints
		protectedRoutes.GET("/users", handlers.GetAllUsers)
		protectedRoutes.GET("/me", handlers.GetMe)
		protectedRoutes.PATCH("/me", handlers.UpdateMe)

		// Organization endpoints
		protectedRoutes.GET("/organizations", handlers.ListOrganizations)
		protectedRoutes.POST("/organizations", handlers.CreateOrganization)
		protectedRoutes.GET("/organizations/:id", handlers.GetOrganization)
		protectedRoutes.PATCH("/organizations/:id", handlers.UpdateOrganization)
		protectedRoutes.DELETE("/organizations/:id", handlers.DeleteOrganization)
		protectedRoutes.POST("/organizations/:id/members", handlers.AddOrgMember)
		protectedRoutes.DELETE("/organizations/:id/members", handlers.RemoveOrgMember)

		// Project endpoints
		protectedRoutes.GET("/projects", handlers.ListProjects)
		protectedRoutes.POST("/projects", handlers.CreateProject)
		protectedRoutes.GET("/projects/:id", handlers.GetProject)
		protectedRoutes.PATCH("/projects/:id", handlers.UpdateProject)
		protectedRoutes.DELETE("/projects/:id", handlers.DeleteProject)
		protectedRoutes.GET("/projects/:id/stats", handlers.GetProjectStats)
		protectedRoutes.PUT("/projects/:id/integrations/slack", handlers.ConfigureSlackIntegration)

		// Membership endpoints
		protectedRoutes.GET("/projects/:id/members", handlers.ListMembers)
		protectedRoutes.POST("/projects/:id/members", handlers.AddMember)
		protectedRoutes.PATCH("/projects/:id/members", handlers.ChangeMemberRole)
		protectedRoutes.DELETE("/projects/:id/members", handlers.RemoveMember)
		protectedRoutes.POST("/invitations/:token/accept", handlers.AcceptInvitation)
		protectedRoutes.POST("/invitations/:token/decline", handlers.DeclineInvitation)

		// Task endpoints
		protectedRoutes.GET("/tasks", handlers.ListTasks)
		protectedRoutes.GET("/tasks/:id", handlers.GetTaskByID)
		protectedRoutes.POST("/tasks", handlers.CreateTask)
		protectedRoutes.PATCH("/tasks/:id", handlers.UpdateTask)
		protectedRoutes.POST("/tasks/:id/approve", handlers.ApproveTask)
		protectedRoutes.DELETE("/tasks/:id", handlers.DeleteTask)

		// Comment endpoints
		protectedRoutes.GET("/comments", handlers.ListComments)
		protectedRoutes.POST("/comments", handlers.CreateComment)
		protectedRoutes.PATCH("/comments/:id", handlers.UpdateComment)
		protectedRoutes.DELETE("/comments/:id", handlers.DeleteComment)

		// Notification endpoints
		protectedRoutes.GET("/notifications", handlers.ListNotifications)
		protectedRoutes.PATCH("/notifications/:id/read", handlers.MarkNotificationRead)
		protectedRoutes.POST("/notifications/read-all", handlers.MarkAllNotificationsRead)
		protectedRoutes.DELETE("/notifications/:id", handlers.DeleteNotification)
		protectedRoutes.GET("/attention", handlers.ListAttentionItems)
		protectedRoutes.PATCH("/attention/:id/read", handlers.MarkAttentionItemRead)

		// Realtime change stream
		protectedRoutes.GET("/ws", handlers.WebSocketHandler)
	}

	return ginRouter
}
