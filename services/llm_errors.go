package services

import (
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// LLMError is a classified provider error. Model calls are not retried
// automatically (the generation cost is already incurred); the class is used
// for logging and for the circuit breaker decision.
type LLMError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("[LLM %d] %s", e.StatusCode, e.Message)
}

// IsRetryable returns true if the error is temporary
func (e *LLMError) IsRetryable() bool {
	return e.StatusCode == 408 || // Request Timeout
		e.StatusCode == 429 || // Too Many Requests
		e.StatusCode == 502 || // Bad Gateway
		e.StatusCode == 503 // Service Unavailable
}

// IsAuthError returns true if the error is related to authentication
func (e *LLMError) IsAuthError() bool {
	return e.StatusCode == 401
}

// IsPaymentError returns true if the error is related to insufficient credits
func (e *LLMError) IsPaymentError() bool {
	return e.StatusCode == 402
}

// IsContextLengthError returns true if the context is too long
func (e *LLMError) IsContextLengthError() bool {
	if e.StatusCode != 400 {
		return false
	}

	msgLower := strings.ToLower(e.Message)
	return strings.Contains(msgLower, "context") &&
		(strings.Contains(msgLower, "length") ||
			strings.Contains(msgLower, "exceeded") ||
			strings.Contains(msgLower, "too long"))
}

// ClassifyLLMError converts a provider SDK error into an LLMError
func ClassifyLLMError(err error) *LLMError {
	if err == nil {
		return nil
	}

	// Try to unwrap as OpenAI API error
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &LLMError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	}

	// Fallback: parse error message for common patterns
	errMsg := err.Error()
	errMsgLower := strings.ToLower(errMsg)

	switch {
	case strings.Contains(errMsgLower, "timeout") || strings.Contains(errMsgLower, "deadline exceeded"):
		return &LLMError{StatusCode: 408, Message: "Request timeout"}
	case strings.Contains(errMsgLower, "context") &&
		(strings.Contains(errMsgLower, "length") || strings.Contains(errMsgLower, "too long")):
		return &LLMError{StatusCode: 400, Message: errMsg}
	case strings.Contains(errMsgLower, "unauthorized") || strings.Contains(errMsgLower, "invalid api key"):
		return &LLMError{StatusCode: 401, Message: "Authentication failed"}
	case strings.Contains(errMsgLower, "insufficient") || strings.Contains(errMsgLower, "billing"):
		return &LLMError{StatusCode: 402, Message: "Insufficient credits"}
	case strings.Contains(errMsgLower, "rate limit") || strings.Contains(errMsgLower, "too many requests"):
		return &LLMError{StatusCode: 429, Message: "Rate limit exceeded"}
	case strings.Contains(errMsgLower, "bad gateway"):
		return &LLMError{StatusCode: 502, Message: "Bad gateway"}
	case strings.Contains(errMsgLower, "service unavailable") || strings.Contains(errMsgLower, "temporarily unavailable"):
		return &LLMError{StatusCode: 503, Message: "Service temporarily unavailable"}
	}

	// Unknown error - treat as non-retryable
	return &LLMError{StatusCode: 500, Message: errMsg}
}
