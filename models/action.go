package models

import "time"

// External action response modes
const (
	ResponseModeNone           = "none"
	ResponseModeConfirmation   = "simple_confirmation"
	ResponseModeCustomMessage  = "custom_message"
	ResponseModeWaitForWebhook = "wait_for_webhook"
)

// External action execution states
const (
	ExecutionPending = "pending"
	ExecutionSuccess = "success"
	ExecutionFailed  = "failed"
)

// ExternalActionConfig: webhook bisnis yang dikonfigurasi tenant.
// PayloadTemplate is a JSON skeleton with {{var}} placeholders in string values.
type ExternalActionConfig struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TenantID        string    `gorm:"index;not null" json:"tenant_id"`
	InstanceID      string    `gorm:"index;not null" json:"instance_id"`
	Name            string    `gorm:"not null" json:"name"`
	IsActive        bool      `gorm:"default:true;index" json:"is_active"`
	TriggerKeywords string    `gorm:"type:text" json:"trigger_keywords"` // JSON array, intent matching
	TargetURL       string    `gorm:"not null" json:"target_url"`
	HTTPMethod      string    `gorm:"default:'POST'" json:"http_method"`
	Headers         string    `gorm:"type:text" json:"headers"`          // JSON object
	PayloadTemplate string    `gorm:"type:text" json:"payload_template"` // JSON skeleton with {{var}}
	RetryAttempts   int       `gorm:"default:2" json:"retry_attempts"`
	TimeoutSeconds  int       `gorm:"default:15" json:"timeout_seconds"`
	ResponseMode    string    `gorm:"default:'none'" json:"response_mode"`
	ResponseText    string    `gorm:"type:text" json:"response_text"` // for simple_confirmation / custom_message
	ResponseTimeout int       `gorm:"default:300" json:"response_timeout"` // seconds, wait_for_webhook only
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (ExternalActionConfig) TableName() string {
	return "external_action_configs"
}

// ExternalActionExecution: satu row per attempt sequence, keyed by ExecutionID
// generated before the first attempt (correlation for wait_for_webhook too).
type ExternalActionExecution struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ExecutionID    string    `gorm:"uniqueIndex;not null" json:"execution_id"`
	ActionConfigID uint      `gorm:"index;not null" json:"action_config_id"`
	ConversationID uint      `gorm:"index" json:"conversation_id"`
	MessageID      *uint     `json:"message_id"` // nullable: lookup failure must not abort execution
	Status         string    `gorm:"index;default:'pending'" json:"status"` // pending|success|failed
	RequestPayload string    `gorm:"type:text" json:"request_payload"`
	ResponseBody   string    `gorm:"type:text" json:"response_body"`
	HTTPStatusCode int       `gorm:"default:0" json:"http_status_code"`
	Success        bool      `gorm:"default:false" json:"success"`
	ErrorMsg       string    `gorm:"type:text" json:"error_msg"`
	RetryCount     int       `gorm:"default:0" json:"retry_count"` // retries actually used
	ElapsedMs      int64     `gorm:"default:0" json:"elapsed_ms"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (ExternalActionExecution) TableName() string {
	return "external_action_executions"
}
