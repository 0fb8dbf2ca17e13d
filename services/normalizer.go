package services

import (
	"encoding/json"
	"net/url"
	"regexp"
	"strings"
)

// NormalizedEvent is the canonical shape every provider payload is reduced to
type NormalizedEvent struct {
	Event    string                 `json:"event"`
	Instance string                 `json:"instance"`
	Data     map[string]interface{} `json:"data"`
}

// extractorStrategy attempts to parse a raw webhook body into a generic map.
// Strategies run in order; the first one that succeeds wins.
type extractorStrategy struct {
	name    string
	extract func(raw string) (map[string]interface{}, bool)
}

var extractorChain = []extractorStrategy{
	{"json", extractJSON},
	{"form", extractForm},
	{"repaired-json", extractRepairedJSON},
	{"balanced-substring", extractBalancedJSON},
}

// NormalizeWebhook converts an arbitrary provider body into a canonical
// {event, instance, data} triple. It never returns an error: when every
// strategy fails the raw text is wrapped as a parsing-error event so the
// handler can still answer 200 to the provider.
func NormalizeWebhook(raw string) (*NormalizedEvent, string) {
	for _, strategy := range extractorChain {
		payload, ok := strategy.extract(raw)
		if !ok {
			continue
		}
		return buildEvent(payload), strategy.name
	}

	// All strategies failed: fail soft
	return &NormalizedEvent{
		Event:    "error",
		Instance: "parsing-error",
		Data:     map[string]interface{}{"raw": raw},
	}, "fallback"
}

// buildEvent maps a parsed payload onto the canonical triple, detecting
// provider-specific shapes along the way
func buildEvent(payload map[string]interface{}) *NormalizedEvent {
	// Unwrap body.* envelope if present
	if body, ok := payload["body"].(map[string]interface{}); ok {
		inner := buildEvent(body)
		if inner.Instance == "" {
			inner.Instance = stringField(payload, "instance", "instanceName", "instanceId")
		}
		return inner
	}

	event := stringField(payload, "event", "type")
	instance := stringField(payload, "instance", "instanceName", "instanceId", "session")

	data, _ := payload["data"].(map[string]interface{})
	if data == nil {
		data = payload
	}

	// Presence of a nested message key.remoteJid marks a message upsert
	if event == "" && hasRemoteJid(data) {
		event = "messages.upsert"
	}
	if event == "" {
		event = "unknown"
	}

	return &NormalizedEvent{Event: event, Instance: instance, Data: data}
}

// hasRemoteJid checks for the provider's message envelope: data.key.remoteJid
// or data.message(s) containing one
func hasRemoteJid(data map[string]interface{}) bool {
	if key, ok := data["key"].(map[string]interface{}); ok {
		if _, ok := key["remoteJid"]; ok {
			return true
		}
	}
	for _, field := range []string{"message", "messages"} {
		switch v := data[field].(type) {
		case map[string]interface{}:
			if hasRemoteJid(v) {
				return true
			}
		case []interface{}:
			for _, item := range v {
				if m, ok := item.(map[string]interface{}); ok && hasRemoteJid(m) {
					return true
				}
			}
		}
	}
	return false
}

func stringField(payload map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := payload[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// extractJSON: straight JSON parse
func extractJSON(raw string) (map[string]interface{}, bool) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, false
	}
	return payload, true
}

// extractForm: form-encoded body (key=value&key=value)
func extractForm(raw string) (map[string]interface{}, bool) {
	trimmed := strings.TrimSpace(raw)
	if !strings.Contains(trimmed, "=") || strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return nil, false
	}
	values, err := url.ParseQuery(trimmed)
	if err != nil || len(values) == 0 {
		return nil, false
	}
	payload := make(map[string]interface{}, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		// Form values can themselves carry JSON (common with payload= wrappers)
		var nested map[string]interface{}
		if err := json.Unmarshal([]byte(vals[0]), &nested); err == nil {
			payload[key] = nested
		} else {
			payload[key] = vals[0]
		}
	}
	if len(payload) == 0 {
		return nil, false
	}
	return payload, true
}

var (
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
	reControlChars  = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)
	reBalancedJSON  = regexp.MustCompile(`(?s)(\{.*\}|\[.*\])`)
)

// extractRepairedJSON: tolerant re-parse after stripping trailing commas and
// control characters (some providers emit hand-built JSON)
func extractRepairedJSON(raw string) (map[string]interface{}, bool) {
	repaired := reTrailingComma.ReplaceAllString(raw, "$1")
	repaired = reControlChars.ReplaceAllString(repaired, "")
	repaired = strings.TrimSpace(repaired)
	if repaired == raw {
		return nil, false
	}
	return extractJSON(repaired)
}

// extractBalancedJSON: last resort, pull the first balanced {...}/[...]
// substring out of surrounding garbage
func extractBalancedJSON(raw string) (map[string]interface{}, bool) {
	match := reBalancedJSON.FindString(raw)
	if match == "" {
		return nil, false
	}
	if payload, ok := extractJSON(match); ok {
		return payload, true
	}
	return extractRepairedJSON(match)
}
