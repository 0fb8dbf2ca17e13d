package models

import "time"

// WebhookDebugLog: append-only log semua hasil normalisasi webhook.
// Writes are fire-and-forget; failures here never block the handler.
type WebhookDebugLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	InstanceID string    `gorm:"index" json:"instance_id"`
	Event      string    `gorm:"index" json:"event"`
	Strategy   string    `json:"strategy"` // which extractor produced the event
	Success    bool      `gorm:"default:false;index" json:"success"`
	RawBody    string    `gorm:"type:text" json:"raw_body"`
	Normalized string    `gorm:"type:text" json:"normalized"`
	ErrorMsg   string    `gorm:"type:text" json:"error_msg"`
	CreatedAt  time.Time `json:"created_at"`
}

func (WebhookDebugLog) TableName() string {
	return "webhook_debug_logs"
}
