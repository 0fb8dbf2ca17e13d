package services

import (
	"net/url"
	"testing"
)

func TestNormalizeWebhookValidJSON(t *testing.T) {
	raw := `{"event":"messages.upsert","instance":"inst-1","data":{"key":{"remoteJid":"628111@s.whatsapp.net"}}}`

	event, strategy := NormalizeWebhook(raw)
	if strategy != "json" {
		t.Errorf("expected json strategy, got %s", strategy)
	}
	if event.Event != "messages.upsert" {
		t.Errorf("expected messages.upsert, got %s", event.Event)
	}
	if event.Instance != "inst-1" {
		t.Errorf("expected inst-1, got %s", event.Instance)
	}
}

func TestNormalizeWebhookDetectsUpsertWithoutEventField(t *testing.T) {
	raw := `{"instance":"inst-2","data":{"key":{"remoteJid":"628222@s.whatsapp.net"},"message":{"conversation":"hi"}}}`

	event, _ := NormalizeWebhook(raw)
	if event.Event != "messages.upsert" {
		t.Errorf("expected remoteJid presence to mark messages.upsert, got %s", event.Event)
	}
}

func TestNormalizeWebhookUnwrapsBodyEnvelope(t *testing.T) {
	raw := `{"instance":"outer-inst","body":{"event":"messages.upsert","data":{"key":{"remoteJid":"628333@s.whatsapp.net"}}}}`

	event, _ := NormalizeWebhook(raw)
	if event.Event != "messages.upsert" {
		t.Errorf("expected inner event, got %s", event.Event)
	}
	if event.Instance != "outer-inst" {
		t.Errorf("expected outer instance to fill the missing inner one, got %s", event.Instance)
	}
}

func TestNormalizeWebhookFormEncoded(t *testing.T) {
	raw := url.Values{
		"event":    {"messages.upsert"},
		"instance": {"inst-form"},
	}.Encode()

	event, strategy := NormalizeWebhook(raw)
	if strategy != "form" {
		t.Errorf("expected form strategy, got %s", strategy)
	}
	if event.Event != "messages.upsert" || event.Instance != "inst-form" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestNormalizeWebhookFormWithNestedJSON(t *testing.T) {
	raw := "payload=" + url.QueryEscape(`{"instance":"inst-nested","key":{"remoteJid":"628444@s.whatsapp.net"}}`)

	event, strategy := NormalizeWebhook(raw)
	if strategy != "form" {
		t.Errorf("expected form strategy, got %s", strategy)
	}
	if event.Data["payload"] == nil {
		t.Error("expected nested JSON form value to be decoded into data")
	}
}

func TestNormalizeWebhookRepairsTrailingComma(t *testing.T) {
	raw := `{"event":"messages.upsert","instance":"inst-3",}`

	event, strategy := NormalizeWebhook(raw)
	if strategy != "repaired-json" {
		t.Errorf("expected repaired-json strategy, got %s", strategy)
	}
	if event.Event != "messages.upsert" || event.Instance != "inst-3" {
		t.Errorf("unexpected event: %+v", event)
	}
}

func TestNormalizeWebhookBalancedSubstring(t *testing.T) {
	raw := `--boundary garbage {"event":"messages.upsert","instance":"inst-4"} trailing noise`

	event, strategy := NormalizeWebhook(raw)
	if strategy != "balanced-substring" {
		t.Errorf("expected balanced-substring strategy, got %s", strategy)
	}
	if event.Instance != "inst-4" {
		t.Errorf("unexpected instance: %s", event.Instance)
	}
}

func TestNormalizeWebhookFallbackNeverErrors(t *testing.T) {
	raw := "complete garbage with no structure at all"

	event, strategy := NormalizeWebhook(raw)
	if strategy != "fallback" {
		t.Errorf("expected fallback strategy, got %s", strategy)
	}
	if event.Event != "error" || event.Instance != "parsing-error" {
		t.Errorf("expected parsing-error event, got %+v", event)
	}
	if event.Data["raw"] != raw {
		t.Error("expected the raw body to be preserved in the error event")
	}
}

func TestNormalizeWebhookUnknownEvent(t *testing.T) {
	raw := `{"instance":"inst-5","data":{"something":"else"}}`

	event, _ := NormalizeWebhook(raw)
	if event.Event != "unknown" {
		t.Errorf("expected unknown event, got %s", event.Event)
	}
}
