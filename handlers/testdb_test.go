package handlers

import (
	"fmt"
	"strings"
	"testing"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gin.SetMode(gin.TestMode)

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Single connection keeps concurrent test writes serialized on sqlite
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}

	err = db.AutoMigrate(
		&models.Conversation{},
		&models.Message{},
		&models.BufferedMessage{},
		&models.AIConfig{},
		&models.KnowledgeFile{},
		&models.AIInteraction{},
		&models.UsageCounter{},
		&models.ExternalActionConfig{},
		&models.ExternalActionExecution{},
		&models.WebhookDebugLog{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return db
}
