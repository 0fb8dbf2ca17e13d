package models

import "time"

// AIConfig: konfigurasi bot per instance (tenant-managed)
type AIConfig struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	TenantID             string    `gorm:"index;not null" json:"tenant_id"`
	InstanceID           string    `gorm:"uniqueIndex;not null" json:"instance_id"`
	IsActive             bool      `gorm:"default:false;index" json:"is_active"`
	SystemPrompt         string    `gorm:"type:text" json:"system_prompt"`
	FallbackText         string    `gorm:"type:text" json:"fallback_text"` // reply when no knowledge exists
	QuotaText            string    `gorm:"type:text" json:"quota_text"`    // reply when quota exhausted
	HandoffText          string    `gorm:"type:text" json:"handoff_text"`  // reply when escalating to a human
	DataCollectionFields string    `gorm:"type:text" json:"data_collection_fields"` // JSON array of field names
	Temperature          float32   `gorm:"default:0.3" json:"temperature"`
	ModelID              string    `json:"model_id"` // empty = provider default
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func (AIConfig) TableName() string {
	return "ai_configs"
}

// KnowledgeFile: satu dokumen knowledge base per tenant.
// The vector index itself lives in the retrieval service; this row only
// tracks existence and metadata (file counts feed quality scoring).
type KnowledgeFile struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TenantID  string    `gorm:"index;not null" json:"tenant_id"`
	Title     string    `gorm:"not null" json:"title"`
	Kind      string    `gorm:"default:'faq'" json:"kind"`
	IsActive  bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (KnowledgeFile) TableName() string {
	return "knowledge_files"
}

// AIInteraction: satu row per balasan AI, immutable setelah dibuat
type AIInteraction struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TenantID       string    `gorm:"index;not null" json:"tenant_id"`
	InstanceID     string    `gorm:"index;not null" json:"instance_id"`
	ConversationID uint      `gorm:"index;not null" json:"conversation_id"`
	ContactJID     string    `gorm:"column:contact_jid;index;not null" json:"contact_jid"`
	Prompt         string    `gorm:"type:text" json:"prompt"`
	Answer         string    `gorm:"type:text" json:"answer"`
	InputTokens    int       `gorm:"default:0" json:"input_tokens"`
	OutputTokens   int       `gorm:"default:0" json:"output_tokens"`
	ModelID        string    `json:"model_id"`
	LatencyMs      int       `gorm:"default:0" json:"latency_ms"`
	QualityJSON    string    `gorm:"type:text" json:"quality_json"` // intent, confidence, escalation decision
	CreatedAt      time.Time `json:"created_at"`
}

func (AIInteraction) TableName() string {
	return "ai_interactions"
}

// UsageCounter: kuota balasan AI per tenant per bulan.
// Used must only ever change via the conditional increment in services;
// a read-then-write here is the race we are avoiding.
type UsageCounter struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     string    `gorm:"uniqueIndex;not null" json:"tenant_id"`
	Used         int       `gorm:"default:0" json:"used"`
	MonthlyLimit int       `gorm:"default:500" json:"monthly_limit"`
	ResetAt      time.Time `gorm:"index" json:"reset_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}
