package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"collabboard-api/internal/authz"
	"collabboard-api/internal/database"
	"collabboard-api/internal/mailer"
	"collabboard-api/internal/models"
	"collabboard-api/internal/notify"
	"collabboard-api/internal/realtime"
	"collabboard-api/internal/slack"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Shared collaborators, rebuilt lazily whenever the database handle changes
// (tests swap database.DB per test).
var (
	depsMu     sync.Mutex
	depsDB     *gorm.DB
	engineInst *authz.Engine
	fanoutInst *notify.Fanout
	bridgeInst *slack.Bridge
)

// Mail is the email collaborator; tests may replace it.
var Mail mailer.Mailer = mailer.LogMailer{}

func getEngine() *authz.Engine {
	depsMu.Lock()
	defer depsMu.Unlock()
	refreshDeps()
	return engineInst
}

func getFanout() *notify.Fanout {
	depsMu.Lock()
	defer depsMu.Unlock()
	refreshDeps()
	return fanoutInst
}

func getBridge() *slack.Bridge {
	depsMu.Lock()
	defer depsMu.Unlock()
	refreshDeps()
	return bridgeInst
}

func refreshDeps() {
	db := database.GetDB()
	if db == depsDB && engineInst != nil {
		return
	}
	depsDB = db
	engineInst = authz.NewEngine(db)
	fanoutInst = notify.New(db, realtime.GetHub())
	bridgeInst = slack.NewBridge(db)
}

// SetBridge swaps the Slack bridge; tests point it at a stub server.
func SetBridge(b *slack.Bridge) {
	depsMu.Lock()
	defer depsMu.Unlock()
	refreshDeps()
	bridgeInst = b
}

// callerID extracts the authenticated user id set by the JWT middleware.
// Writes the 401 response itself when absent.
func callerID(c *gin.Context) (string, bool) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "User ID not found in token",
		})
		return "", false
	}
	return userID, true
}

// callerProfile loads the caller's profile row.
func callerProfile(c *gin.Context) (models.Profile, bool) {
	userID, ok := callerID(c)
	if !ok {
		return models.Profile{}, false
	}
	var profile models.Profile
	if err := database.GetDB().Where("id = ?", userID).First(&profile).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unknown user"})
		return models.Profile{}, false
	}
	return profile, true
}

// writeAuthzError maps authorization failures onto HTTP status codes:
// non-members get 404 so resource existence stays hidden, insufficient roles
// get 403, rule conflicts get 400.
func writeAuthzError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, authz.ErrNotMember):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, authz.ErrLastOwner):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove the last owner"})
	case errors.Is(err, authz.ErrRoleTooHigh):
		c.JSON(http.StatusForbidden, gin.H{"error": "Cannot assign role equal or higher than your own"})
	case errors.Is(err, authz.ErrForbidden), errors.Is(err, authz.ErrUnknownAction):
		c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authorization check failed"})
	}
}

// rowMap converts a model into the generic row shape change events carry.
func rowMap(v any) map[string]any {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}
