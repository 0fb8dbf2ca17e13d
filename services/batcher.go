package services

import (
	"log"
	"strings"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"

	"github.com/google/uuid"
)

// Batching constants. BatchWindowSeconds documents the intended cadence of
// the external sweep trigger; the sweep itself is stateless and all ordering
// state lives in the status/batch_id columns.
const (
	MaxBatchSize       = 10
	BatchWindowSeconds = 8
)

// BatchEvent is the processing unit forwarded downstream: one message or a
// coalesced burst, with the individual ids preserved for logging
type BatchEvent struct {
	BatchID        string
	ConversationID uint
	InstanceID     string
	ContactJID     string
	Content        string
	MessageIDs     []uint
	ProviderMsgIDs []string
	ReceivedAts    []time.Time
}

// BatchProcessor handles one claimed batch; failures are terminal for the
// claimed messages (a processing attempt is never re-queued)
type BatchProcessor func(event *BatchEvent) error

type bufferGroup struct {
	ConversationID uint
	ContactJID     string `gorm:"column:contact_jid"`
	InstanceID     string
}

// ProcessPendingBatches runs one sweep: group pending unclaimed messages per
// conversation, claim each group atomically under a fresh batch id, and
// forward each claimed batch to the processor. Returns the number of batches
// forwarded.
func ProcessPendingBatches(process BatchProcessor) (int, error) {
	db := database.GetDB()

	var groups []bufferGroup
	err := db.Model(&models.BufferedMessage{}).
		Select("conversation_id, contact_jid, instance_id").
		Where("status = ? AND batch_id IS NULL", models.BufferPending).
		Group("conversation_id, contact_jid, instance_id").
		Scan(&groups).Error
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, group := range groups {
		if claimAndProcessGroup(group, process) {
			processed++
		}
	}
	return processed, nil
}

// claimAndProcessGroup claims up to MaxBatchSize oldest pending messages of
// one group and runs the downstream chain once for them
func claimAndProcessGroup(group bufferGroup, process BatchProcessor) bool {
	db := database.GetDB()

	// Oldest-first candidate set for this group
	var candidateIDs []uint
	err := db.Model(&models.BufferedMessage{}).
		Where("conversation_id = ? AND contact_jid = ? AND instance_id = ? AND status = ? AND batch_id IS NULL",
			group.ConversationID, group.ContactJID, group.InstanceID, models.BufferPending).
		Order("received_at ASC, id ASC").
		Limit(MaxBatchSize).
		Pluck("id", &candidateIDs).Error
	if err != nil || len(candidateIDs) == 0 {
		return false
	}

	// The claim: one conditional update that only succeeds for rows still
	// unclaimed at the moment of the update. Two concurrent sweeps cannot
	// both tag the same row.
	batchID := uuid.New().String()
	res := db.Model(&models.BufferedMessage{}).
		Where("id IN ? AND status = ? AND batch_id IS NULL", candidateIDs, models.BufferPending).
		Updates(map[string]interface{}{
			"batch_id":   batchID,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		log.Printf("❌ [Batcher] Claim failed for conversation #%d: %v", group.ConversationID, res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		// A concurrent sweep got here first
		return false
	}

	var claimed []models.BufferedMessage
	if err := db.Where("batch_id = ?", batchID).Order("received_at ASC, id ASC").Find(&claimed).Error; err != nil {
		log.Printf("❌ [Batcher] Failed to load claimed batch %s: %v", batchID, err)
		return false
	}

	// No active AI configuration: skip without generation
	cfg, err := GetAIConfig(group.InstanceID)
	if err != nil {
		log.Printf("⚠️  [Batcher] Config lookup failed for instance %s: %v", group.InstanceID, err)
	}
	if cfg == nil {
		markBatch(claimed, models.BufferSkipped)
		log.Printf("[Batcher] No active AI config for instance %s, skipped %d messages", group.InstanceID, len(claimed))
		return false
	}

	event := buildBatchEvent(batchID, group, claimed)

	if len(claimed) > 1 {
		log.Printf("📦 [Batcher] Batch %s coalesced %d messages for conversation #%d", batchID, len(claimed), group.ConversationID)
	}

	if err := process(event); err != nil {
		log.Printf("❌ [Batcher] Downstream processing failed for batch %s: %v", batchID, err)
	}

	// A processing attempt, successful or not, is terminal for the claimed
	// messages; there is no automatic re-queue
	markBatch(claimed, models.BufferProcessed)
	return true
}

// buildBatchEvent concatenates burst contents (oldest first) while keeping
// individual ids and timestamps for downstream logging
func buildBatchEvent(batchID string, group bufferGroup, claimed []models.BufferedMessage) *BatchEvent {
	event := &BatchEvent{
		BatchID:        batchID,
		ConversationID: group.ConversationID,
		InstanceID:     group.InstanceID,
		ContactJID:     group.ContactJID,
	}

	contents := make([]string, 0, len(claimed))
	for _, msg := range claimed {
		contents = append(contents, msg.Content)
		event.MessageIDs = append(event.MessageIDs, msg.ID)
		event.ProviderMsgIDs = append(event.ProviderMsgIDs, msg.ProviderMsgID)
		event.ReceivedAts = append(event.ReceivedAts, msg.ReceivedAt)
	}
	event.Content = strings.Join(contents, "\n\n")
	return event
}

// markBatch moves every claimed message to a terminal status through the
// model's transition function
func markBatch(claimed []models.BufferedMessage, status string) {
	db := database.GetDB()
	for i := range claimed {
		msg := &claimed[i]
		if err := msg.Transition(status); err != nil {
			log.Printf("⚠️  [Batcher] %v", err)
			continue
		}
		if err := db.Model(msg).Updates(map[string]interface{}{
			"status":     msg.Status,
			"updated_at": msg.UpdatedAt,
		}).Error; err != nil {
			log.Printf("⚠️  [Batcher] Failed to mark message #%d %s: %v", msg.ID, status, err)
		}
	}
}
