package models

import "time"

// Conversation status values
const (
	ConversationActive = "active"
	ConversationClosed = "closed"
)

// Conversation: satu percakapan per (instance, contact)
// Created on first inbound message, mutated on every message, never hard-deleted
type Conversation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     string    `gorm:"index;not null" json:"tenant_id"`
	InstanceID   string    `gorm:"index;not null" json:"instance_id"`
	ContactJID   string    `gorm:"column:contact_jid;index;not null" json:"contact_jid"` // nomor pengirim
	ContactName  string    `json:"contact_name"`
	Status       string    `gorm:"index;default:'active'" json:"status"` // active|closed
	Metadata     string    `gorm:"type:text" json:"metadata"`            // opaque JSON (needs_human, tags, dll)
	LastActivity time.Time `gorm:"index" json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (Conversation) TableName() string {
	return "conversations"
}

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message: append-only chat turn, ordered by timestamp then insertion order
type Message struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	Role           string    `gorm:"index;not null" json:"role"` // user|assistant
	Content        string    `gorm:"type:text" json:"content"`
	ProviderMsgID  string    `gorm:"index" json:"provider_msg_id"` // dari WA (Info.ID), optional
	Processed      bool      `gorm:"default:false" json:"processed"`
	Timestamp      time.Time `gorm:"index" json:"timestamp"`
	CreatedAt      time.Time `json:"created_at"`
}

func (Message) TableName() string {
	return "messages"
}
