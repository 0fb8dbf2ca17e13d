package services

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// maxBackoff caps the delay between webhook retry attempts
const maxBackoff = 10 * time.Second

// sleep indirection so retry tests do not wait out real backoff
var sleep = time.Sleep

// plainTextSuccessTokens: bodies some automation platforms answer with
// instead of JSON; combined with a 2xx these count as structured success
var plainTextSuccessTokens = map[string]bool{
	"ok": true, "okay": true, "accepted": true, "done": true,
	"success": true, "received": true, "queued": true,
}

// ExecutionResult summarizes one completed attempt sequence
type ExecutionResult struct {
	ExecutionID  string
	Success      bool
	HTTPStatus   int
	ResponseBody string
	RetryCount   int
	ParsedBody   map[string]interface{}
	ParseError   bool
}

// ExecuteAction dispatches a configured business webhook for a matched
// intent: interpolate payload, attempt with retries and capped exponential
// backoff, and persist exactly one execution-log row for the whole sequence.
func ExecuteAction(action *models.ExternalActionConfig, conv *models.Conversation, vars map[string]string, messageID *uint) (*ExecutionResult, error) {
	executionID := uuid.New().String()
	start := time.Now()

	payload, prepErr := InterpolateTemplate(action.PayloadTemplate, vars)
	if prepErr != nil {
		payload = ""
		prepErr = fmt.Errorf("payload interpolation failed: %w", prepErr)
	} else if action.ResponseMode == models.ResponseModeWaitForWebhook {
		// wait_for_webhook: the external platform pushes an asynchronous result
		// back, correlated by the execution id we inject before the first attempt
		injected, err := injectCallbackFields(payload, executionID)
		if err != nil {
			prepErr = err
		} else {
			payload = injected
		}
	}

	// One row per sequence: opened pending before the first attempt, closed
	// with the terminal status once the sequence ends. Payload-preparation
	// failures close it immediately, they still get their row.
	openExecutionLog(executionID, action, conv, messageID, payload)

	if prepErr != nil {
		closeExecutionLog(executionID, &ExecutionResult{ExecutionID: executionID}, start, prepErr.Error())
		return nil, prepErr
	}

	timeout := time.Duration(action.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	client := resty.New().SetTimeout(timeout)

	method := strings.ToUpper(action.HTTPMethod)
	if method == "" {
		method = "POST"
	}

	headers := map[string]string{"Content-Type": "application/json"}
	if action.Headers != "" {
		var configured map[string]string
		if err := json.Unmarshal([]byte(action.Headers), &configured); err == nil {
			for k, v := range configured {
				headers[k] = InterpolateString(v, vars)
			}
		} else {
			log.Printf("⚠️  [Executor] Invalid header map on action #%d: %v", action.ID, err)
		}
	}

	result := &ExecutionResult{ExecutionID: executionID}
	var lastErr string

	// retry_attempts retries after the first attempt, so attempts+1 total
	for attempt := 0; attempt <= action.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt)
			log.Printf("🔄 [Executor] Action #%d attempt %d/%d in %v", action.ID, attempt+1, action.RetryAttempts+1, delay)
			sleep(delay)
			result.RetryCount = attempt
		}

		resp, err := client.R().
			SetHeaders(headers).
			SetBody(payload).
			Execute(method, action.TargetURL)
		if err != nil {
			lastErr = err.Error()
			continue
		}

		result.HTTPStatus = resp.StatusCode()
		result.ResponseBody = resp.String()

		if resp.IsError() {
			lastErr = fmt.Sprintf("target returned %d", resp.StatusCode())
			continue
		}

		// 2xx: the status code is authoritative for success; body
		// interpretation is best-effort
		result.Success = true
		lastErr = ""
		interpretResponseBody(result)
		break
	}

	closeExecutionLog(executionID, result, start, lastErr)

	if !result.Success {
		return result, fmt.Errorf("action %d exhausted %d attempts: %s", action.ID, action.RetryAttempts+1, lastErr)
	}
	return result, nil
}

// backoffDelay: min(1000 × 2^attempt, 10000) ms
func backoffDelay(attempt int) time.Duration {
	delay := time.Second * time.Duration(1<<uint(attempt))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

// interpretResponseBody attempts a JSON parse of the response, recognizing
// plain-text success tokens before tagging anything as a parse error
func interpretResponseBody(result *ExecutionResult) {
	body := strings.TrimSpace(result.ResponseBody)
	if body == "" {
		return
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(body), &parsed); err == nil {
		result.ParsedBody = parsed
		return
	}

	if plainTextSuccessTokens[strings.ToLower(body)] {
		result.ParsedBody = map[string]interface{}{"status": body}
		return
	}

	// Not fatal: raw text kept, tagged as a parse-error artifact
	result.ParseError = true
}

// injectCallbackFields adds the correlation id and the callback URL the
// external platform posts its asynchronous result to
func injectCallbackFields(payload, executionID string) (string, error) {
	var parsed map[string]interface{}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil {
		return "", fmt.Errorf("failed to inject callback fields: %w", err)
	}

	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8070"
	}

	parsed["execution_id"] = executionID
	parsed["callback_url"] = fmt.Sprintf("%s/webhook/action-response", baseURL)

	out, err := json.Marshal(parsed)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// openExecutionLog creates the sequence's single log row in the pending
// state so an in-flight execution is visible to callback correlation and
// operators. Telemetry failures are logged and swallowed.
func openExecutionLog(executionID string, action *models.ExternalActionConfig, conv *models.Conversation, messageID *uint, requestPayload string) {
	entry := models.ExternalActionExecution{
		ExecutionID:    executionID,
		ActionConfigID: action.ID,
		Status:         models.ExecutionPending,
		RequestPayload: requestPayload,
		MessageID:      messageID,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	if conv != nil {
		entry.ConversationID = conv.ID
	}

	if err := database.GetDB().Create(&entry).Error; err != nil {
		log.Printf("⚠️  [Executor] Failed to open execution log %s: %v", executionID, err)
	}
}

// closeExecutionLog moves the pending row to its terminal status with the
// final attempt's outcome.
func closeExecutionLog(executionID string, result *ExecutionResult, start time.Time, errMsg string) {
	status := models.ExecutionFailed
	if result.Success {
		status = models.ExecutionSuccess
	}

	updates := map[string]interface{}{
		"status":           status,
		"response_body":    result.ResponseBody,
		"http_status_code": result.HTTPStatus,
		"success":          result.Success,
		"error_msg":        errMsg,
		"retry_count":      result.RetryCount,
		"elapsed_ms":       time.Since(start).Milliseconds(),
		"updated_at":       time.Now(),
	}

	err := database.GetDB().Model(&models.ExternalActionExecution{}).
		Where("execution_id = ?", executionID).
		Updates(updates).Error
	if err != nil {
		log.Printf("⚠️  [Executor] Failed to close execution log %s: %v", executionID, err)
	}
}
