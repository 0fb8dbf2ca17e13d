package services

import (
	"encoding/json"
	"log"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"
)

// LogWebhookDebug persists one normalization outcome to the append-only debug
// log. Fire-and-forget: runs on its own goroutine and swallows every failure,
// logging must never block or fail the webhook response.
func LogWebhookDebug(rawBody string, event *NormalizedEvent, strategy string, normErr string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️  [WebhookLog] Recovered from panic: %v", r)
			}
		}()

		entry := models.WebhookDebugLog{
			Strategy:  strategy,
			RawBody:   truncateForLog(rawBody, 8192),
			Success:   strategy != "fallback" && normErr == "",
			ErrorMsg:  normErr,
			CreatedAt: time.Now(),
		}
		if event != nil {
			entry.InstanceID = event.Instance
			entry.Event = event.Event
			if normalized, err := json.Marshal(event); err == nil {
				entry.Normalized = truncateForLog(string(normalized), 8192)
			}
		}

		if err := database.GetDB().Create(&entry).Error; err != nil {
			log.Printf("⚠️  [WebhookLog] Failed to save debug log: %v", err)
		}
	}()
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
