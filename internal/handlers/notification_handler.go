package handlers

import (
	"net/http"
	"time"

	"collabboard-api/internal/database"
	"collabboard-api/internal/models"

	"github.com/gin-gonic/gin"
)

// ListNotifications handles GET /api/notifications
// Returns the caller's notifications, newest first.
func ListNotifications(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var notifications []models.Notification
	if err := database.GetDB().
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(100).
		Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch notifications"})
		return
	}

	unread := 0
	for _, n := range notifications {
		if n.ReadAt == nil {
			unread++
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": notifications,
		"count":         len(notifications),
		"unread":        unread,
	})
}

// MarkNotificationRead handles PATCH /api/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	notificationID := c.Param("id")

	now := time.Now()
	result := database.GetDB().Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read_at", now)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notification read"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": notificationID, "read_at": now})
}

// MarkAllNotificationsRead handles POST /api/notifications/read-all
func MarkAllNotificationsRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	now := time.Now()
	result := database.GetDB().Model(&models.Notification{}).
		Where("user_id = ? AND read_at IS NULL", userID).
		Update("read_at", now)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark notifications read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"marked": result.RowsAffected})
}

// DeleteNotification handles DELETE /api/notifications/:id
// Notifications are append-only server-side but deletable by their owner.
func DeleteNotification(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	notificationID := c.Param("id")

	result := database.GetDB().
		Where("id = ? AND user_id = ?", notificationID, userID).
		Delete(&models.Notification{})
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete notification"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted", "id": notificationID})
}

// ListAttentionItems handles GET /api/attention
func ListAttentionItems(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}

	var items []models.AttentionItem
	if err := database.GetDB().
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(100).
		Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attention items"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// MarkAttentionItemRead handles PATCH /api/attention/:id/read
func MarkAttentionItemRead(c *gin.Context) {
	userID, ok := callerID(c)
	if !ok {
		return
	}
	itemID := c.Param("id")

	now := time.Now()
	result := database.GetDB().Model(&models.AttentionItem{}).
		Where("id = ? AND user_id = ?", itemID, userID).
		Update("read_at", now)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark item read"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"id": itemID, "read_at": now})
}
