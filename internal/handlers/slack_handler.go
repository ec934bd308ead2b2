package handlers

import (
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"collabboard-api/internal/slack"

	"github.com/gin-gonic/gin"
)

// SlackCommand handles POST /slack/command, the slash-command webhook.
// The raw body is verified against Slack's v0 signature before parsing.
// A missing signing secret means development mode: verification is skipped
// with a warning.
func SlackCommand(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	secret := os.Getenv("SLACK_SIGNING_SECRET")
	if secret == "" {
		log.Println("slack: SLACK_SIGNING_SECRET not set, skipping signature verification")
	} else {
		timestamp := c.GetHeader("x-slack-request-timestamp")
		signature := c.GetHeader("x-slack-signature")
		if err := slack.VerifySignature(secret, timestamp, signature, body, time.Now()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid request signature"})
			return
		}
	}

	form, err := url.ParseQuery(string(body))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed form payload"})
		return
	}

	command := form.Get("command")
	text := strings.TrimSpace(form.Get("text"))

	// Ephemeral response blocks; only the invoking user sees them.
	c.JSON(http.StatusOK, gin.H{
		"response_type": "ephemeral",
		"blocks": []gin.H{
			{
				"type": "section",
				"text": gin.H{
					"type": "mrkdwn",
					"text": commandReply(command, text),
				},
			},
		},
	})
}

func commandReply(command, text string) string {
	switch {
	case text == "" || text == "help":
		return "Usage: `" + command + " help` — more subcommands are configured per workspace."
	default:
		return "Received `" + text + "`."
	}
}
