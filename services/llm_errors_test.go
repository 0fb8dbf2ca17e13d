package services

import (
	"errors"
	"fmt"
	"testing"

	openai "github.com/sashabaranov/go-openai"
)

func TestClassifyLLMErrorFromAPIError(t *testing.T) {
	apiErr := &openai.APIError{HTTPStatusCode: 429, Message: "Rate limit exceeded"}
	wrapped := fmt.Errorf("call failed: %w", apiErr)

	classified := ClassifyLLMError(wrapped)
	if classified.StatusCode != 429 {
		t.Errorf("expected 429, got %d", classified.StatusCode)
	}
	if !classified.IsRetryable() {
		t.Error("429 must be retryable")
	}
}

func TestClassifyLLMErrorMessagePatterns(t *testing.T) {
	tests := []struct {
		msg  string
		code int
	}{
		{"context deadline exceeded", 408},
		{"prompt context length too long", 400},
		{"invalid api key provided", 401},
		{"insufficient credits on account", 402},
		{"rate limit hit, slow down", 429},
		{"upstream bad gateway", 502},
		{"model service unavailable", 503},
		{"something completely different", 500},
	}
	for _, tt := range tests {
		got := ClassifyLLMError(errors.New(tt.msg))
		if got.StatusCode != tt.code {
			t.Errorf("ClassifyLLMError(%q) = %d, want %d", tt.msg, got.StatusCode, tt.code)
		}
	}
}

func TestLLMErrorPredicates(t *testing.T) {
	if !(&LLMError{StatusCode: 401}).IsAuthError() {
		t.Error("401 is an auth error")
	}
	if !(&LLMError{StatusCode: 402}).IsPaymentError() {
		t.Error("402 is a payment error")
	}
	if (&LLMError{StatusCode: 500}).IsRetryable() {
		t.Error("500 is not retryable")
	}
	ctxErr := &LLMError{StatusCode: 400, Message: "maximum context length exceeded"}
	if !ctxErr.IsContextLengthError() {
		t.Error("400 with a context-length message must be classified as such")
	}
}
