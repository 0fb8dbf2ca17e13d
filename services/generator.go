package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"
)

// llmBreaker isolates the LLM provider so a provider outage fails fast
// instead of stacking up slow requests
var llmBreaker = NewCircuitBreaker("llm", 5, 60*time.Second)

// formattingSuffix is always appended to the system prompt: the target
// channel is plain-text chat, not a markdown renderer
const formattingSuffix = "\n\nFormatting rules: reply in plain text for a chat channel. " +
	"No headings, no markdown links. Use *single asterisks* for emphasis only."

const emptyContextAddendum = "\n\nNo knowledge base content matched this question. " +
	"Answer only from the conversation itself; if you cannot, say so honestly and " +
	"suggest the customer rephrase or wait for a human agent."

const imageAddendum = "\n\nThe customer attached an image. Describe what is relevant " +
	"in it for their question before answering."

const dataCollectionAddendumFmt = "\n\nYou also collect structured data. Fields to collect: %s.\n" +
	"Respond ONLY with a JSON object shaped exactly like:\n" +
	`{"response": "<your reply>", "needsDataCollection": <bool>, "requestedFields": ["<field>", ...]}`

// GenerateRequest is one reply-generation task
type GenerateRequest struct {
	Config        *models.AIConfig
	Conversation  *models.Conversation
	Context       *AssembledContext
	UserMessage   string
	ImageURL      string
	HasRAGContent bool
}

// GenerateResult is the outcome of a successful generation
type GenerateResult struct {
	Reply               string
	NeedsDataCollection bool
	RequestedFields     []string
	InputTokens         int
	OutputTokens        int
	Interaction         *models.AIInteraction
}

// dataCollectionReply is the machine-readable contract for tenants with
// configured collection fields
type dataCollectionReply struct {
	Response            string   `json:"response"`
	NeedsDataCollection bool     `json:"needsDataCollection"`
	RequestedFields     []string `json:"requestedFields"`
}

// GenerateReply produces the assistant's reply with usage metering.
//
// Ordering matters: quota is reserved atomically before the model call and
// released on failure, so a failed call never nets a consumed unit and two
// concurrent requests cannot both pass a stale check.
func GenerateReply(ctx context.Context, provider AIProvider, req GenerateRequest) (*GenerateResult, error) {
	if err := ReserveUsage(req.Config.TenantID); err != nil {
		return nil, err // ErrQuotaExceeded: distinct 429-equivalent rejection
	}

	systemPrompt := buildSystemPrompt(req.Config, req.HasRAGContent, req.ImageURL != "")
	opts := GenerationOptions{
		Temperature: req.Config.Temperature,
		ModelID:     req.Config.ModelID,
	}

	start := time.Now()
	var raw string
	var inTok, outTok int

	cbErr := llmBreaker.Call(func() error {
		var llmErr error
		raw, inTok, outTok, llmErr = askProvider(ctx, provider, systemPrompt, req.Context.Text, req.ImageURL, opts)
		return llmErr
	})
	if cbErr != nil {
		// Model-call failure: no partial reply stored, no quota consumed
		ReleaseUsage(req.Config.TenantID)
		classified := ClassifyLLMError(cbErr)
		return nil, fmt.Errorf("generation failed: %w", classified)
	}

	latency := time.Since(start).Milliseconds()

	result := &GenerateResult{InputTokens: inTok, OutputTokens: outTok}

	if hasDataCollectionFields(req.Config) {
		parsed := parseDataCollectionReply(raw)
		result.Reply = parsed.Response
		result.NeedsDataCollection = parsed.NeedsDataCollection
		result.RequestedFields = parsed.RequestedFields
	} else {
		result.Reply = raw
	}

	result.Reply = FormatForWhatsApp(result.Reply)

	// Persist the assistant turn and the interaction row
	if _, err := AppendMessage(req.Conversation.ID, models.RoleAssistant, result.Reply, "", time.Now()); err != nil {
		log.Printf("⚠️  [Generator] Failed to persist assistant message: %v", err)
	}

	// The user turns that fed this reply are consumed now
	if err := database.GetDB().Model(&models.Message{}).
		Where("conversation_id = ? AND role = ? AND processed = ?", req.Conversation.ID, models.RoleUser, false).
		Update("processed", true).Error; err != nil {
		log.Printf("⚠️  [Generator] Failed to mark user messages processed: %v", err)
	}

	modelUsed := provider.GetModelName()
	if req.Config.ModelID != "" {
		modelUsed = req.Config.ModelID
	}

	interaction := models.AIInteraction{
		TenantID:       req.Config.TenantID,
		InstanceID:     req.Config.InstanceID,
		ConversationID: req.Conversation.ID,
		ContactJID:     req.Conversation.ContactJID,
		Prompt:         req.Context.Text,
		Answer:         result.Reply,
		InputTokens:    inTok,
		OutputTokens:   outTok,
		ModelID:        modelUsed,
		LatencyMs:      int(latency),
		CreatedAt:      time.Now(),
	}
	if err := database.GetDB().Create(&interaction).Error; err != nil {
		log.Printf("⚠️  [Generator] Failed to persist AI interaction: %v", err)
	}
	result.Interaction = &interaction

	log.Printf("✅ [Generator] Reply generated for conversation #%d in %dms (tokens: %d in, %d out)",
		req.Conversation.ID, latency, inTok, outTok)

	return result, nil
}

// askProvider routes to the multimodal path when an image is attached and the
// provider supports it, and applies per-tenant overrides when it doesn't have
// to fall back to the plain AskLLM surface
func askProvider(ctx context.Context, provider AIProvider, systemPrompt, userContent, imageURL string, opts GenerationOptions) (string, int, int, error) {
	if imageURL != "" {
		if vp, ok := provider.(VisionProvider); ok {
			return vp.AskLLMWithImage(ctx, systemPrompt, userContent, imageURL, opts)
		}
		userContent += "\n\n[Image attached: " + imageURL + "]"
	}
	if tp, ok := provider.(TunableProvider); ok {
		return tp.AskLLMTuned(ctx, systemPrompt, userContent, opts)
	}
	return provider.AskLLM(ctx, systemPrompt, userContent)
}

// buildSystemPrompt assembles base prompt + formatting suffix + conditional
// addenda
func buildSystemPrompt(cfg *models.AIConfig, hasRAGContent, hasImage bool) string {
	prompt := cfg.SystemPrompt
	if prompt == "" {
		prompt = "You are a friendly and professional customer service assistant."
	}

	prompt += formattingSuffix

	if !hasRAGContent {
		prompt += emptyContextAddendum
	}
	if hasImage {
		prompt += imageAddendum
	}
	if fields := dataCollectionFields(cfg); len(fields) > 0 {
		prompt += fmt.Sprintf(dataCollectionAddendumFmt, strings.Join(fields, ", "))
	}

	return prompt
}

func hasDataCollectionFields(cfg *models.AIConfig) bool {
	return len(dataCollectionFields(cfg)) > 0
}

func dataCollectionFields(cfg *models.AIConfig) []string {
	if cfg.DataCollectionFields == "" {
		return nil
	}
	var fields []string
	if err := json.Unmarshal([]byte(cfg.DataCollectionFields), &fields); err != nil {
		log.Printf("⚠️  [Generator] Invalid data collection fields on config #%d: %v", cfg.ID, err)
		return nil
	}
	return fields
}

var reEmbeddedObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseDataCollectionReply splits the user-facing reply from the collection
// flag: JSON parse, then best-effort regex extraction of an embedded object,
// then raw text
func parseDataCollectionReply(raw string) dataCollectionReply {
	trimmed := strings.TrimSpace(raw)

	var parsed dataCollectionReply
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Response != "" {
		return parsed
	}

	if match := reEmbeddedObject.FindString(trimmed); match != "" {
		if err := json.Unmarshal([]byte(match), &parsed); err == nil && parsed.Response != "" {
			return parsed
		}
	}

	return dataCollectionReply{Response: raw}
}
