package handlers

import (
	"errors"
	"net/http"
	"time"

	"collabboard-api/internal/auth"
	"collabboard-api/internal/database"
	"collabboard-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SignupRequest represents the signup request payload
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
	Timezone string `json:"timezone"`
}

// LoginRequest represents the login request payload
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents the login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Signup handles POST /api/signup. The profile row is the upsert-on-first-
// sign-in record; an existing email is a conflict.
func Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and a password of at least 8 characters are required"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	profile := models.Profile{
		ID:           uuid.NewString(),
		Email:        req.Email,
		PasswordHash: hash,
		FullName:     req.FullName,
		Timezone:     req.Timezone,
	}
	if err := database.GetDB().Create(&profile).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is already registered"})
		return
	}

	token, err := auth.GenerateToken(profile.ID, profile.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, LoginResponse{Token: token, UserID: profile.ID, Email: profile.Email})
}

// Login handles POST /api/login
func Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	var profile models.Profile
	err := database.GetDB().Where("email = ?", req.Email).First(&profile).Error
	if err != nil || !auth.CheckPassword(profile.PasswordHash, req.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	token, err := auth.GenerateToken(profile.ID, profile.Email)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, UserID: profile.ID, Email: profile.Email})
}

// RequestPasswordReset handles POST /auth/request-reset. Always answers 200
// so the endpoint cannot be used to probe registered emails; the pin is
// dispatched through the email collaborator.
func RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email is required"})
		return
	}

	db := database.GetDB()

	var profile models.Profile
	if err := db.Where("email = ?", req.Email).First(&profile).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"message": "If the email is registered, a PIN has been sent"})
		return
	}

	pin, err := auth.NewResetPin()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate PIN"})
		return
	}

	// One live pin per email.
	db.Where("email = ?", req.Email).Delete(&models.PasswordResetPin{})

	record := models.PasswordResetPin{
		ID:        uuid.NewString(),
		Email:     req.Email,
		Pin:       pin,
		ExpiresAt: time.Now().Add(auth.PinTTL),
	}
	if err := db.Create(&record).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store PIN"})
		return
	}

	emailSent := true
	if err := Mail.SendResetPin(c.Request.Context(), req.Email, pin); err != nil {
		emailSent = false
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "If the email is registered, a PIN has been sent",
		"email_sent": emailSent,
	})
}

// VerifyResetPin handles POST /auth/verify-pin, marking the pin redeemable.
func VerifyResetPin(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
		Pin   string `json:"pin" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and pin are required"})
		return
	}

	db := database.GetDB()

	var record models.PasswordResetPin
	if err := db.Where("email = ?", req.Email).First(&record).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired PIN"})
		return
	}
	if err := auth.VerifyPin(record.Pin, req.Pin, record.ExpiresAt, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired PIN"})
		return
	}

	if err := db.Model(&record).Update("verified", true).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify PIN"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"verified": true})
}

// ResetPassword handles POST /auth/reset-password. Requires a verified,
// unexpired pin; the pin row is deleted on use.
func ResetPassword(c *gin.Context) {
	var req struct {
		Email       string `json:"email" binding:"required,email"`
		Pin         string `json:"pin" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email, pin and a new password of at least 8 characters are required"})
		return
	}

	db := database.GetDB()

	var profile models.Profile
	if err := db.Where("email = ?", req.Email).First(&profile).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "No account for that email"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up account"})
		}
		return
	}

	var record models.PasswordResetPin
	if err := db.Where("email = ?", req.Email).First(&record).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired PIN"})
		return
	}
	if !record.Verified {
		c.JSON(http.StatusBadRequest, gin.H{"error": "PIN has not been verified"})
		return
	}
	if err := auth.VerifyPin(record.Pin, req.Pin, record.ExpiresAt, time.Now()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired PIN"})
		return
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	if err := db.Model(&profile).Update("password_hash", hash).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	// Single use.
	db.Delete(&record)

	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
