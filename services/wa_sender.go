package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// SendTextRequest payload for the WA gateway
type SendTextRequest struct {
	InstanceID string `json:"instanceId"`
	To         string `json:"to"`
	Text       string `json:"text"`
}

func gatewayURL() string {
	url := os.Getenv("WA_GATEWAY_URL")
	if url == "" {
		url = "http://localhost:8070/wa"
	}
	return url
}

// SendWAText delivers a message to the contact via the WA gateway.
// The gateway handles session validation and delivery to the provider.
func SendWAText(instanceID, to, text string) error {
	payload := SendTextRequest{
		InstanceID: instanceID,
		To:         to,
		Text:       text,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", gatewayURL()+"/chat/send/text", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", instanceID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send WA message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	return nil
}

// SetTypingState toggles the typing indicator ("composing" / "stop") for a
// contact. Best effort: callers log and continue on failure.
func SetTypingState(instanceID, to, state string) error {
	payload := map[string]string{
		"instanceId": instanceID,
		"to":         to,
		"state":      state,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", gatewayURL()+"/chat/presence", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("token", instanceID)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to set typing state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway returned %d", resp.StatusCode)
	}

	log.Printf("[WASender] Typing state %q set for %s", state, to)
	return nil
}
