package models

import (
	"fmt"
	"time"
)

// BufferedMessage status values. Status and BatchID must move together:
// use Transition instead of writing the columns directly.
const (
	BufferPending   = "pending"
	BufferProcessed = "processed"
	BufferSkipped   = "skipped"
)

// BufferedMessage: transient pre-batch record, write-once-read-rarely.
// BatchID is the claim token: NULL until a sweep claims the row.
type BufferedMessage struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	InstanceID     string    `gorm:"index;not null" json:"instance_id"`
	ContactJID     string    `gorm:"column:contact_jid;index;not null" json:"contact_jid"`
	Content        string    `gorm:"type:text" json:"content"`
	ProviderMsgID  string    `gorm:"index" json:"provider_msg_id"`
	BatchID        *string   `gorm:"index" json:"batch_id"`                 // nullable until claimed
	Status         string    `gorm:"index;default:'pending'" json:"status"` // pending|processed|skipped
	ReceivedAt     time.Time `gorm:"index" json:"received_at"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (BufferedMessage) TableName() string {
	return "buffered_messages"
}

// Transition validates a buffered-message status change. The only legal
// moves are pending→processed and pending→skipped, and a terminal status
// requires the row to have been claimed (batch id set) first for processed.
func (m *BufferedMessage) Transition(status string) error {
	if m.Status != BufferPending {
		return fmt.Errorf("buffered message %d is terminal (%s), cannot move to %s", m.ID, m.Status, status)
	}
	switch status {
	case BufferProcessed:
		if m.BatchID == nil {
			return fmt.Errorf("buffered message %d cannot be processed without a batch claim", m.ID)
		}
	case BufferSkipped:
		// skip is allowed with or without a claim
	default:
		return fmt.Errorf("invalid buffered message status %q", status)
	}
	m.Status = status
	m.UpdatedAt = time.Now()
	return nil
}
