package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"

	"gorm.io/gorm"
)

// ErrQuotaExceeded marks a rejected generation request so callers can
// distinguish it from generic failures (429-equivalent)
var ErrQuotaExceeded = errors.New("monthly AI response quota exceeded")

// FindOrCreateConversation returns the conversation for (instance, contact),
// creating it on the first inbound message from a new contact
func FindOrCreateConversation(tenantID, instanceID, contactJID, contactName string, at time.Time) (*models.Conversation, error) {
	db := database.GetDB()

	var conv models.Conversation
	err := db.Where("instance_id = ? AND contact_jid = ?", instanceID, contactJID).First(&conv).Error

	if err == gorm.ErrRecordNotFound {
		conv = models.Conversation{
			TenantID:     tenantID,
			InstanceID:   instanceID,
			ContactJID:   contactJID,
			ContactName:  contactName,
			Status:       models.ConversationActive,
			Metadata:     "{}",
			LastActivity: at,
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := db.Create(&conv).Error; err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		log.Printf("✅ Created conversation #%d (instance: %s, contact: %s)", conv.ID, instanceID, contactJID)
		return &conv, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	// Touch last activity on every inbound message
	updates := map[string]interface{}{
		"last_activity": at,
		"updated_at":    time.Now(),
	}
	if contactName != "" && conv.ContactName == "" {
		updates["contact_name"] = contactName
	}
	if err := db.Model(&conv).Updates(updates).Error; err != nil {
		log.Printf("⚠️  Failed to touch conversation #%d: %v", conv.ID, err)
	}
	return &conv, nil
}

// AppendMessage appends one turn to a conversation's history (append-only)
func AppendMessage(conversationID uint, role, content, providerMsgID string, timestamp time.Time) (*models.Message, error) {
	msg := models.Message{
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		ProviderMsgID:  providerMsgID,
		Timestamp:      timestamp,
		CreatedAt:      time.Now(),
	}
	if err := database.GetDB().Create(&msg).Error; err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return &msg, nil
}

// BufferIncomingMessage stores one inbound message in the pre-batch buffer
func BufferIncomingMessage(conv *models.Conversation, content, providerMsgID string, receivedAt time.Time) (*models.BufferedMessage, error) {
	buf := models.BufferedMessage{
		ConversationID: conv.ID,
		InstanceID:     conv.InstanceID,
		ContactJID:     conv.ContactJID,
		Content:        content,
		ProviderMsgID:  providerMsgID,
		Status:         models.BufferPending,
		ReceivedAt:     receivedAt,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if err := database.GetDB().Create(&buf).Error; err != nil {
		return nil, fmt.Errorf("failed to buffer message: %w", err)
	}
	return &buf, nil
}

// GetAIConfig returns the active AI configuration for an instance, or nil
// when none exists (configuration absence is a skip, not an error)
func GetAIConfig(instanceID string) (*models.AIConfig, error) {
	var cfg models.AIConfig
	err := database.GetDB().Where("instance_id = ? AND is_active = ?", instanceID, true).First(&cfg).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch AI config: %w", err)
	}
	return &cfg, nil
}

// CountKnowledgeFiles returns the number of active knowledge files for a tenant
func CountKnowledgeFiles(tenantID string) (int, error) {
	var count int64
	err := database.GetDB().Model(&models.KnowledgeFile{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count knowledge files: %w", err)
	}
	return int(count), nil
}

// ReserveUsage performs the atomic check-and-increment against the tenant's
// usage counter. A single conditional UPDATE closes the race window two
// concurrent requests would otherwise slip through; a read-then-write pair
// here is the bug class this function exists to avoid.
//
// Returns ErrQuotaExceeded when used == limit. Metering errors fail open
// (allowed with a logged warning) so a metering outage never blocks traffic.
func ReserveUsage(tenantID string) error {
	db := database.GetDB()

	var counter models.UsageCounter
	err := db.Where("tenant_id = ?", tenantID).First(&counter).Error
	if err == gorm.ErrRecordNotFound {
		counter = models.UsageCounter{
			TenantID:  tenantID,
			Used:      0,
			ResetAt:   nextMonthlyReset(time.Now()),
			UpdatedAt: time.Now(),
		}
		// Concurrent first-request creation can race; the unique index wins
		if err := db.Create(&counter).Error; err != nil {
			log.Printf("⚠️  [Usage] Failed to create counter for tenant %s: %v (fail open)", tenantID, err)
		}
	} else if err != nil {
		log.Printf("⚠️  [Usage] Quota check failed for tenant %s: %v (fail open)", tenantID, err)
		return nil
	}

	// Monthly reset before the guard so a stale window never rejects
	if !counter.ResetAt.IsZero() && time.Now().After(counter.ResetAt) {
		db.Model(&models.UsageCounter{}).
			Where("tenant_id = ? AND reset_at = ?", tenantID, counter.ResetAt).
			Updates(map[string]interface{}{
				"used":       0,
				"reset_at":   nextMonthlyReset(time.Now()),
				"updated_at": time.Now(),
			})
	}

	res := db.Model(&models.UsageCounter{}).
		Where("tenant_id = ? AND used < monthly_limit", tenantID).
		Updates(map[string]interface{}{
			"used":       gorm.Expr("used + 1"),
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		// Fail open: metering outage must not block all traffic. Explicit
		// business trade-off, availability over strict fairness.
		log.Printf("⚠️  [Usage] Atomic reserve failed for tenant %s: %v (fail open)", tenantID, res.Error)
		return nil
	}
	if res.RowsAffected == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// ReleaseUsage gives back one reserved unit after a failed generation so a
// model-call failure never consumes quota
func ReleaseUsage(tenantID string) {
	res := database.GetDB().Model(&models.UsageCounter{}).
		Where("tenant_id = ? AND used > 0", tenantID).
		Updates(map[string]interface{}{
			"used":       gorm.Expr("used - 1"),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		log.Printf("⚠️  [Usage] Failed to release usage for tenant %s: %v", tenantID, res.Error)
	}
}

// GetUsage returns the current counter for a tenant (monitoring/read path)
func GetUsage(tenantID string) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	if err := database.GetDB().Where("tenant_id = ?", tenantID).First(&counter).Error; err != nil {
		return nil, err
	}
	return &counter, nil
}

// nextMonthlyReset returns the first instant of the next month (UTC)
func nextMonthlyReset(now time.Time) time.Time {
	year, month, _ := now.UTC().Date()
	return time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}
