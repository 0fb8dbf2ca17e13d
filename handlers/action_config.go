package handlers

import (
	"net/http"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"

	"github.com/gin-gonic/gin"
)

// Tenant-facing CRUD for external action configs. These are the executor's
// configuration input; everything else tenant-facing lives in the separate
// dashboard service.

// ListActionConfigs returns the caller tenant's action configs
func ListActionConfigs(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var configs []models.ExternalActionConfig
	if err := database.GetDB().Where("tenant_id = ?", tenantID).Find(&configs).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load action configs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": configs})
}

// CreateActionConfig registers a new outbound action webhook
func CreateActionConfig(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	var cfg models.ExternalActionConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action config"})
		return
	}

	cfg.ID = 0
	cfg.TenantID = tenantID
	cfg.CreatedAt = time.Now()
	cfg.UpdatedAt = time.Now()

	if cfg.TargetURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_url is required"})
		return
	}
	if cfg.ResponseMode == "" {
		cfg.ResponseMode = models.ResponseModeNone
	}

	if err := database.GetDB().Create(&cfg).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create action config"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"action": cfg})
}

// DeleteActionConfig removes an action config owned by the caller tenant
func DeleteActionConfig(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	id := c.Param("id")

	res := database.GetDB().
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.ExternalActionConfig{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete action config"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Action config not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetExecutionLog returns recent execution log rows for an action config
func GetExecutionLog(c *gin.Context) {
	tenantID := c.GetString("tenant_id")
	id := c.Param("id")

	var cfg models.ExternalActionConfig
	if err := database.GetDB().Where("tenant_id = ? AND id = ?", tenantID, id).First(&cfg).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Action config not found"})
		return
	}

	var executions []models.ExternalActionExecution
	if err := database.GetDB().
		Where("action_config_id = ?", cfg.ID).
		Order("created_at DESC").
		Limit(50).
		Find(&executions).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load execution log"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}
