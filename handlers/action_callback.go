package handlers

import (
	"log"
	"net/http"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"
	"genfity-wa-autoreply/services"

	"github.com/gin-gonic/gin"
)

// ActionResponsePayload is the callback shape the external automation
// platform posts for wait_for_webhook actions
type ActionResponsePayload struct {
	ExecutionID string `json:"execution_id" binding:"required"`
	Result      string `json:"result"`
}

// HandleActionResponse correlates an asynchronous action result back to its
// execution and delivers the result to the originating contact
func HandleActionResponse(c *gin.Context) {
	var payload ActionResponsePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Invalid payload"})
		return
	}

	db := database.GetDB()

	var execution models.ExternalActionExecution
	if err := db.Where("execution_id = ?", payload.ExecutionID).First(&execution).Error; err != nil {
		log.Printf("⚠️  [ActionResponse] Unknown execution id %s", payload.ExecutionID)
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Unknown execution id"})
		return
	}

	var action models.ExternalActionConfig
	if err := db.First(&action, execution.ActionConfigID).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Action config no longer exists"})
		return
	}

	if action.ResponseMode != models.ResponseModeWaitForWebhook {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Action is not awaiting a webhook response"})
		return
	}

	// Stale callbacks past the configured response timeout are ignored
	timeout := time.Duration(action.ResponseTimeout) * time.Second
	if timeout > 0 && time.Since(execution.CreatedAt) > timeout {
		log.Printf("⚠️  [ActionResponse] Stale callback for execution %s (%.0fs old)", payload.ExecutionID, time.Since(execution.CreatedAt).Seconds())
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Response timeout elapsed"})
		return
	}

	var conv models.Conversation
	if err := db.First(&conv, execution.ConversationID).Error; err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Conversation no longer exists"})
		return
	}

	if payload.Result != "" {
		if err := services.SendWAText(conv.InstanceID, conv.ContactJID, payload.Result); err != nil {
			log.Printf("❌ [ActionResponse] Failed to deliver async result: %v", err)
			c.JSON(http.StatusOK, gin.H{"success": false, "message": "Delivery failed"})
			return
		}
	}

	log.Printf("✅ [ActionResponse] Async result delivered for execution %s", payload.ExecutionID)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Result delivered"})
}
