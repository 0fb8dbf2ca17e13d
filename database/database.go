package database

import (
	"fmt"
	"log"
	"os"

	"genfity-wa-autoreply/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// InitDatabase initializes the database connection and schema
func InitDatabase() {
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	sslmode := os.Getenv("DB_SSLMODE")

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // No logging for cleaner output
	})
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	log.Println("Database connected successfully")

	if err := autoMigrateTables(); err != nil {
		log.Fatal("Failed to migrate database:", err)
	}

	// Create NOTIFY trigger for buffered messages (instant sweep wakeups)
	if err := createNotifyTrigger(); err != nil {
		log.Printf("Warning: Failed to create NOTIFY trigger: %v", err)
	}
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// autoMigrateTables checks and migrates only tables that don't exist
func autoMigrateTables() error {
	tables := []struct {
		name  string
		model interface{}
	}{
		{"conversations", &models.Conversation{}},
		{"messages", &models.Message{}},
		{"buffered_messages", &models.BufferedMessage{}},
		{"ai_configs", &models.AIConfig{}},
		{"knowledge_files", &models.KnowledgeFile{}},
		{"ai_interactions", &models.AIInteraction{}},
		{"usage_counters", &models.UsageCounter{}},
		{"external_action_configs", &models.ExternalActionConfig{}},
		{"external_action_executions", &models.ExternalActionExecution{}},
		{"webhook_debug_logs", &models.WebhookDebugLog{}},
	}

	migratedCount := 0
	skippedCount := 0

	log.Println("Checking database tables...")

	for _, table := range tables {
		if !DB.Migrator().HasTable(table.model) {
			log.Printf("Table '%s' not found, creating...", table.name)
			err := DB.AutoMigrate(table.model)
			if err != nil {
				return fmt.Errorf("failed to migrate table %s: %v", table.name, err)
			}
			log.Printf("✓ Created table: %s", table.name)
			migratedCount++
		} else {
			skippedCount++
		}
	}

	if migratedCount > 0 {
		log.Printf("Database migration completed: %d tables created, %d tables skipped", migratedCount, skippedCount)
	} else {
		log.Printf("All database tables already exist (%d tables), no migration needed", skippedCount)
	}
	return nil
}

// createNotifyTrigger creates a Postgres NOTIFY trigger so the sweeper wakes
// up as soon as a message lands in the buffer instead of waiting for the tick
func createNotifyTrigger() error {
	log.Println("Creating NOTIFY trigger for buffered messages...")

	err := DB.Exec(`
		CREATE OR REPLACE FUNCTION notify_buffered_message_insert()
		RETURNS TRIGGER AS $$
		BEGIN
			PERFORM pg_notify('buffered_messages_channel', 'new');
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql;
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create notify function: %v", err)
	}

	err = DB.Exec(`
		DROP TRIGGER IF EXISTS buffered_messages_insert_trigger ON buffered_messages;
	`).Error
	if err != nil {
		return fmt.Errorf("failed to drop existing trigger: %v", err)
	}

	err = DB.Exec(`
		CREATE TRIGGER buffered_messages_insert_trigger
		AFTER INSERT ON buffered_messages
		FOR EACH ROW
		EXECUTE FUNCTION notify_buffered_message_insert();
	`).Error
	if err != nil {
		return fmt.Errorf("failed to create trigger: %v", err)
	}

	log.Println("✓ NOTIFY trigger created successfully for buffered_messages_channel")
	return nil
}
