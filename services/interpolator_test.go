package services

import (
	"encoding/json"
	"testing"
)

func TestInterpolateTemplateSubstitutesVariables(t *testing.T) {
	template := `{"text":"{{message}}","from":"{{phone}}"}`
	vars := map[string]string{"message": "I want to order", "phone": "628111"}

	out, err := InterpolateTemplate(template, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if parsed["text"] != "I want to order" {
		t.Errorf("expected substituted message, got %v", parsed["text"])
	}
	if parsed["from"] != "628111" {
		t.Errorf("expected substituted phone, got %v", parsed["from"])
	}
}

func TestInterpolateTemplateLeavesUnmatchedPlaceholders(t *testing.T) {
	template := `{"text":"{{message}}","ref":"{{order_ref}}"}`
	vars := map[string]string{"message": "hello"}

	out, err := InterpolateTemplate(template, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	json.Unmarshal([]byte(out), &parsed)
	if parsed["ref"] != "{{order_ref}}" {
		t.Errorf("unmatched placeholder must stay intact, got %v", parsed["ref"])
	}
}

func TestInterpolateTemplateNestedStructures(t *testing.T) {
	template := `{"customer":{"name":"{{name}}","tags":["{{intent}}","static"]},"count":3,"flag":true}`
	vars := map[string]string{"name": "Budi", "intent": "order"}

	out, err := InterpolateTemplate(template, vars)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var parsed map[string]interface{}
	json.Unmarshal([]byte(out), &parsed)

	customer := parsed["customer"].(map[string]interface{})
	if customer["name"] != "Budi" {
		t.Errorf("expected nested substitution, got %v", customer["name"])
	}
	tags := customer["tags"].([]interface{})
	if tags[0] != "order" || tags[1] != "static" {
		t.Errorf("expected array substitution, got %v", tags)
	}
	if parsed["count"] != float64(3) || parsed["flag"] != true {
		t.Error("non-string values must pass through untouched")
	}
}

func TestInterpolateTemplateRejectsInvalidJSON(t *testing.T) {
	if _, err := InterpolateTemplate(`not json at all`, nil); err == nil {
		t.Error("expected an error for a non-JSON template")
	}
}

func TestInterpolateStringWhitespaceTolerantPlaceholders(t *testing.T) {
	got := InterpolateString("Hi {{ name }}, order {{order_ref}} noted", map[string]string{
		"name":      "Sari",
		"order_ref": "A-42",
	})
	want := "Hi Sari, order A-42 noted"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
