package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"genfity-wa-autoreply/services"

	"github.com/gin-gonic/gin"
)

// cleanJID removes device suffix from WhatsApp JID
// Example: "6281233784490:24@s.whatsapp.net" → "6281233784490@s.whatsapp.net"
func cleanJID(jid string) string {
	if strings.Contains(jid, ":") {
		parts := strings.Split(jid, ":")
		if len(parts) >= 2 {
			phonePart := parts[0]
			domainPart := parts[len(parts)-1]

			if strings.Contains(domainPart, "@") {
				domain := domainPart[strings.Index(domainPart, "@"):]
				return phonePart + domain
			}
		}
	}
	return jid
}

// HandleInboundWebhook receives provider chat events. Provider retry
// avoidance takes priority over strict HTTP semantics: everything past the
// shared-secret check answers 200 and signals internal failure only through
// the JSON body and the debug log.
func HandleInboundWebhook(c *gin.Context) {
	// Shared-secret check is the only hard rejection
	secret := os.Getenv("WEBHOOK_SECRET")
	if secret != "" && c.GetHeader("X-Webhook-Secret") != secret {
		c.JSON(http.StatusForbidden, gin.H{"success": false, "message": "Invalid webhook secret"})
		return
	}

	rawBytes, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Failed to read body"})
		return
	}
	raw := string(rawBytes)

	event, strategy := services.NormalizeWebhook(raw)
	services.LogWebhookDebug(raw, event, strategy, "")

	if event.Event == "error" {
		log.Printf("⚠️  Webhook normalization failed (all strategies), raw kept in debug log")
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Unparseable payload"})
		return
	}

	if event.Event != "messages.upsert" {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": fmt.Sprintf("Event %s ignored", event.Event)})
		return
	}

	inbound, err := extractInboundMessage(event)
	if err != nil {
		log.Printf("⚠️  Webhook message extraction failed: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Unsupported message shape"})
		return
	}

	// Skip own messages
	if inbound.FromMe {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Skipped: own message"})
		return
	}

	if strings.TrimSpace(inbound.Body) == "" {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Non-text message ignored"})
		return
	}

	log.Printf("📨 Webhook received: instance=%s, from=%s", event.Instance, inbound.From)

	// Instance → tenant resolution comes from the AI config; an instance
	// without one still gets its conversation recorded (batcher skips it)
	tenantID := ""
	if cfg, err := services.GetAIConfig(event.Instance); err == nil && cfg != nil {
		tenantID = cfg.TenantID
	}

	conv, err := services.FindOrCreateConversation(tenantID, event.Instance, inbound.From, inbound.PushName, inbound.Timestamp)
	if err != nil {
		log.Printf("❌ Failed to resolve conversation: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Failed to resolve conversation"})
		return
	}

	// Conversation history (the generation context reads from here)
	if _, err := services.AppendMessage(conv.ID, "user", inbound.Body, inbound.MessageID, inbound.Timestamp); err != nil {
		log.Printf("⚠️  Failed to append message: %v", err)
	}

	// Buffer for the batching sweep; the NOTIFY trigger wakes the sweeper
	if _, err := services.BufferIncomingMessage(conv, inbound.Body, inbound.MessageID, time.Now()); err != nil {
		log.Printf("❌ Failed to buffer message: %v", err)
		c.JSON(http.StatusOK, gin.H{"success": false, "message": "Failed to buffer message"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Queued for processing", "aiProcessed": true})
}

// inboundMessage is the flattened view of a normalized messages.upsert event
type inboundMessage struct {
	MessageID string
	From      string
	Body      string
	PushName  string
	FromMe    bool
	Timestamp time.Time
}

// extractInboundMessage pulls the message fields out of the canonical event
// data, tolerating the provider's wrapped and unwrapped envelope variants
func extractInboundMessage(event *services.NormalizedEvent) (*inboundMessage, error) {
	data := event.Data

	// Unwrap data.message / data.messages[0] envelopes
	if inner, ok := data["message"].(map[string]interface{}); ok {
		if _, hasKey := inner["key"]; hasKey {
			data = inner
		}
	}
	if list, ok := data["messages"].([]interface{}); ok && len(list) > 0 {
		if first, ok := list[0].(map[string]interface{}); ok {
			data = first
		}
	}

	key, _ := data["key"].(map[string]interface{})
	if key == nil {
		return nil, fmt.Errorf("no message key in event data")
	}

	remoteJid, _ := key["remoteJid"].(string)
	if remoteJid == "" {
		return nil, fmt.Errorf("no remoteJid in message key")
	}

	msg := &inboundMessage{
		From:      cleanJID(remoteJid),
		Timestamp: time.Now(),
	}
	msg.MessageID, _ = key["id"].(string)
	msg.FromMe, _ = key["fromMe"].(bool)
	msg.PushName, _ = data["pushName"].(string)

	if ts, ok := data["messageTimestamp"].(float64); ok && ts > 0 {
		msg.Timestamp = time.Unix(int64(ts), 0)
	}

	if content, ok := data["message"].(map[string]interface{}); ok {
		if text, ok := content["conversation"].(string); ok && text != "" {
			msg.Body = text
		} else if ext, ok := content["extendedTextMessage"].(map[string]interface{}); ok {
			msg.Body, _ = ext["text"].(string)
		}
	}
	if msg.Body == "" {
		if text, ok := data["body"].(string); ok {
			msg.Body = text
		}
	}

	return msg, nil
}
