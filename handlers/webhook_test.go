package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"genfity-wa-autoreply/models"

	"github.com/gin-gonic/gin"
)

func postWebhook(t *testing.T, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	router := gin.New()
	router.POST("/webhook/inbound", HandleInboundWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhook/inbound", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var parsed map[string]interface{}
	json.Unmarshal(w.Body.Bytes(), &parsed)
	return w, parsed
}

func upsertBody(instance, jid, text string) string {
	payload := map[string]interface{}{
		"event":    "messages.upsert",
		"instance": instance,
		"data": map[string]interface{}{
			"key": map[string]interface{}{
				"remoteJid": jid,
				"id":        "wa-msg-1",
				"fromMe":    false,
			},
			"pushName":         "Budi",
			"messageTimestamp": float64(1756450000),
			"message": map[string]interface{}{
				"conversation": text,
			},
		},
	}
	out, _ := json.Marshal(payload)
	return string(out)
}

func TestHandleInboundWebhookRejectsBadSecret(t *testing.T) {
	setupTestDB(t)
	t.Setenv("WEBHOOK_SECRET", "topsecret")

	w, _ := postWebhook(t, upsertBody("inst-1", "628111@s.whatsapp.net", "hi"), map[string]string{
		"X-Webhook-Secret": "wrong",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a bad secret, got %d", w.Code)
	}
}

func TestHandleInboundWebhookPersistsAndBuffers(t *testing.T) {
	db := setupTestDB(t)
	t.Setenv("WEBHOOK_SECRET", "topsecret")

	db.Create(&models.AIConfig{TenantID: "tenant-7", InstanceID: "inst-1", IsActive: true})

	w, parsed := postWebhook(t, upsertBody("inst-1", "628111:24@s.whatsapp.net", "do you ship to Bali?"), map[string]string{
		"X-Webhook-Secret": "topsecret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if parsed["success"] != true || parsed["aiProcessed"] != true {
		t.Errorf("unexpected response %+v", parsed)
	}

	var conv models.Conversation
	if err := db.First(&conv).Error; err != nil {
		t.Fatalf("conversation not created: %v", err)
	}
	// Device suffix stripped
	if conv.ContactJID != "628111@s.whatsapp.net" {
		t.Errorf("expected cleaned JID, got %s", conv.ContactJID)
	}
	if conv.TenantID != "tenant-7" {
		t.Errorf("tenant must resolve through the instance config, got %q", conv.TenantID)
	}
	if conv.ContactName != "Budi" {
		t.Errorf("push name must be stored, got %q", conv.ContactName)
	}

	var msg models.Message
	if err := db.Where("role = ?", models.RoleUser).First(&msg).Error; err != nil {
		t.Fatalf("user message not appended: %v", err)
	}
	if msg.Content != "do you ship to Bali?" || msg.ProviderMsgID != "wa-msg-1" {
		t.Errorf("unexpected message row %+v", msg)
	}

	var buf models.BufferedMessage
	if err := db.First(&buf).Error; err != nil {
		t.Fatalf("message not buffered: %v", err)
	}
	if buf.Status != models.BufferPending || buf.BatchID != nil {
		t.Errorf("buffered message must start pending and unclaimed, got %+v", buf)
	}
}

func TestHandleInboundWebhookSkipsOwnMessages(t *testing.T) {
	db := setupTestDB(t)

	body := strings.Replace(upsertBody("inst-1", "628111@s.whatsapp.net", "echo"), `"fromMe":false`, `"fromMe":true`, 1)
	w, parsed := postWebhook(t, body, nil)
	if w.Code != http.StatusOK || parsed["success"] != true {
		t.Fatalf("own messages must be acknowledged, got %d %+v", w.Code, parsed)
	}

	var count int64
	db.Model(&models.BufferedMessage{}).Count(&count)
	if count != 0 {
		t.Error("own messages must not be buffered")
	}
}

func TestHandleInboundWebhookIgnoresOtherEvents(t *testing.T) {
	db := setupTestDB(t)

	w, parsed := postWebhook(t, `{"event":"connection.update","instance":"inst-1","data":{"state":"open"}}`, nil)
	if w.Code != http.StatusOK || parsed["success"] != true {
		t.Fatalf("non-message events must be acknowledged, got %d %+v", w.Code, parsed)
	}

	var count int64
	db.Model(&models.Conversation{}).Count(&count)
	if count != 0 {
		t.Error("non-message events must not create conversations")
	}
}

func TestHandleInboundWebhookGarbageStillAnswers200(t *testing.T) {
	setupTestDB(t)

	w, parsed := postWebhook(t, "complete garbage with no structure", nil)
	if w.Code != http.StatusOK {
		t.Errorf("unparseable payloads must still answer 200, got %d", w.Code)
	}
	if parsed["success"] != false {
		t.Error("the body must signal the internal failure")
	}
}

func TestHandleInboundWebhookNonTextIgnored(t *testing.T) {
	db := setupTestDB(t)

	body := `{"event":"messages.upsert","instance":"inst-1","data":{"key":{"remoteJid":"628111@s.whatsapp.net","id":"m1","fromMe":false},"message":{"imageMessage":{"url":"x"}}}}`
	w, parsed := postWebhook(t, body, nil)
	if w.Code != http.StatusOK || parsed["success"] != true {
		t.Fatalf("non-text messages must be acknowledged, got %d %+v", w.Code, parsed)
	}

	var count int64
	db.Model(&models.BufferedMessage{}).Count(&count)
	if count != 0 {
		t.Error("non-text messages must not be buffered")
	}
}

func TestCleanJID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"6281233784490:24@s.whatsapp.net", "6281233784490@s.whatsapp.net"},
		{"628111@s.whatsapp.net", "628111@s.whatsapp.net"},
		{"bare-string", "bare-string"},
	}
	for _, tt := range tests {
		if got := cleanJID(tt.in); got != tt.want {
			t.Errorf("cleanJID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
