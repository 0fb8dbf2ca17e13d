package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"
)

// Pipeline runs the per-batch chain: assemble context, generate, assess
// quality, reply or escalate, and independently dispatch matched business
// actions.
type Pipeline struct {
	Provider  AIProvider
	Retriever Retriever
}

// NewPipeline wires the pipeline from environment configuration
func NewPipeline() (*Pipeline, error) {
	provider, err := GetAIProvider()
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Provider:  provider,
		Retriever: NewHTTPRetriever(),
	}, nil
}

// ProcessBatch is the BatchProcessor for claimed batches
func (p *Pipeline) ProcessBatch(event *BatchEvent) error {
	ctx := context.Background()

	db := database.GetDB()
	var conv models.Conversation
	if err := db.First(&conv, event.ConversationID).Error; err != nil {
		return err
	}

	log.Printf("💬 [Pipeline] Batch %s for conversation #%d: %s", event.BatchID, conv.ID, trimContent(event.Content, 200))

	cfg, err := GetAIConfig(event.InstanceID)
	if err != nil {
		return err
	}
	if cfg == nil {
		// Batcher already skips unconfigured groups; double-check here since
		// config can be deactivated between claim and processing
		return nil
	}

	// Typing indicator around generation, best effort
	if err := SetTypingState(conv.InstanceID, conv.ContactJID, "composing"); err != nil {
		log.Printf("⚠️  [Pipeline] Failed to set typing state: %v", err)
	}
	defer func() {
		if err := SetTypingState(conv.InstanceID, conv.ContactJID, "stop"); err != nil {
			log.Printf("⚠️  [Pipeline] Failed to stop typing state: %v", err)
		}
	}()

	// Retrieval: failures degrade to an empty-context generation rather than
	// dropping the reply entirely
	var results []SearchResult
	if p.Retriever != nil {
		results, err = p.Retriever.Search(ctx, cfg.TenantID, event.Content, 5)
		if err != nil {
			log.Printf("⚠️  [Pipeline] Retrieval failed for tenant %s: %v", cfg.TenantID, err)
			results = nil
		}
	}

	fileCount, err := CountKnowledgeFiles(cfg.TenantID)
	if err != nil {
		log.Printf("⚠️  [Pipeline] Knowledge file count failed: %v", err)
	}

	// No knowledge at all: configured fallback reply, no generation
	if fileCount == 0 && len(results) == 0 && cfg.FallbackText != "" {
		log.Printf("[Pipeline] No knowledge for tenant %s, sending fallback", cfg.TenantID)
		p.deliver(&conv, cfg.FallbackText)
		return nil
	}

	passages := make([]string, 0, len(results))
	for _, res := range results {
		passages = append(passages, res.Content)
	}

	assembled, err := AssembleContext(conv.ID, event.Content, passages, MaxContextTokens)
	if err != nil {
		return err
	}
	log.Printf("[Pipeline] Context for batch %s: conv=%d rag=%d total=%d tokens",
		event.BatchID, assembled.Breakdown.ConversationTokens, assembled.Breakdown.RAGTokens, assembled.Breakdown.TotalTokens)

	result, err := GenerateReply(ctx, p.Provider, GenerateRequest{
		Config:        cfg,
		Conversation:  &conv,
		Context:       assembled,
		UserMessage:   event.Content,
		HasRAGContent: len(passages) > 0,
	})
	if errors.Is(err, ErrQuotaExceeded) {
		log.Printf("🚫 [Pipeline] Quota exhausted for tenant %s", cfg.TenantID)
		if cfg.QuotaText != "" {
			p.deliver(&conv, cfg.QuotaText)
		}
		return err
	}
	if err != nil {
		// True unexpected-error path: silence toward the contact, failure
		// recorded for the operator
		return err
	}

	// Quality assessment is independent of generation success
	lang := DetectLanguage(event.Content)
	business := DetectBusinessContext(event.Content)

	var actions []models.ExternalActionConfig
	if err := db.Where("instance_id = ? AND is_active = ?", event.InstanceID, true).Find(&actions).Error; err != nil {
		log.Printf("⚠️  [Pipeline] Action config lookup failed: %v", err)
	}
	match := DetectIntent(event.Content, actions)

	intentName := ""
	intentConfidence := 0.0
	if match != nil {
		intentName = match.Keyword
		intentConfidence = match.Confidence
	}

	quality := AssessQuality(QualityInput{
		Message:          event.Content,
		Intent:           intentName,
		IntentConfidence: intentConfidence,
		Business:         business,
		Language:         lang,
		SearchResults:    results,
		KnowledgeFiles:   fileCount,
	})
	log.Printf("[Pipeline] Quality for batch %s: %s", event.BatchID, quality.Breakdown)

	p.recordQuality(result.Interaction, intentName, intentConfidence, quality)

	if quality.ShouldEscalate {
		p.escalate(&conv, cfg, quality)
	} else {
		p.deliver(&conv, result.Reply)
	}

	// Independent leg: matched business intent triggers the action executor
	if match != nil {
		p.dispatchAction(&conv, event, match)
	}

	return nil
}

// deliver sends a reply to the contact via the WA gateway
func (p *Pipeline) deliver(conv *models.Conversation, text string) {
	if text == "" {
		return
	}
	if err := SendWAText(conv.InstanceID, conv.ContactJID, text); err != nil {
		log.Printf("❌ [Pipeline] Failed to deliver reply to %s: %v", conv.ContactJID, err)
	}
}

// escalate hands the conversation to a human: flag it and send the handoff
// text instead of the generated reply
func (p *Pipeline) escalate(conv *models.Conversation, cfg *models.AIConfig, quality QualityResult) {
	log.Printf("🙋 [Pipeline] Escalating conversation #%d (score %.3f < %.2f)", conv.ID, quality.Score, quality.Threshold)

	meta := map[string]interface{}{}
	if conv.Metadata != "" {
		_ = json.Unmarshal([]byte(conv.Metadata), &meta)
	}
	meta["needs_human"] = true
	meta["escalated_at"] = time.Now().UTC().Format(time.RFC3339)
	if encoded, err := json.Marshal(meta); err == nil {
		if err := database.GetDB().Model(conv).Updates(map[string]interface{}{
			"metadata":   string(encoded),
			"updated_at": time.Now(),
		}).Error; err != nil {
			log.Printf("⚠️  [Pipeline] Failed to flag conversation #%d: %v", conv.ID, err)
		}
	}

	if cfg.HandoffText != "" {
		p.deliver(conv, cfg.HandoffText)
	}
}

// recordQuality attaches the quality metadata to the interaction row
// (best effort, the row is otherwise immutable)
func (p *Pipeline) recordQuality(interaction *models.AIInteraction, intent string, confidence float64, quality QualityResult) {
	if interaction == nil || interaction.ID == 0 {
		return
	}
	payload := map[string]interface{}{
		"intent":          intent,
		"confidence":      confidence,
		"score":           quality.Score,
		"should_escalate": quality.ShouldEscalate,
		"threshold":       quality.Threshold,
		"breakdown":       quality.Breakdown,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return
	}
	if err := database.GetDB().Model(interaction).Update("quality_json", string(encoded)).Error; err != nil {
		log.Printf("⚠️  [Pipeline] Failed to record quality metadata: %v", err)
	}
}

// dispatchAction runs the external action executor for a matched intent.
// The originating message id is looked up best effort: lookup failure logs
// with a null reference rather than aborting the execution.
func (p *Pipeline) dispatchAction(conv *models.Conversation, event *BatchEvent, match *IntentMatch) {
	vars := ExtractVariables(conv, event.Content, match)

	var messageID *uint
	if len(event.ProviderMsgIDs) > 0 {
		var msg models.Message
		providerID := event.ProviderMsgIDs[len(event.ProviderMsgIDs)-1]
		if err := database.GetDB().Where("provider_msg_id = ?", providerID).First(&msg).Error; err == nil {
			messageID = &msg.ID
		} else {
			log.Printf("⚠️  [Pipeline] Message lookup for execution log failed (%s), logging with null reference", providerID)
		}
	}

	result, err := ExecuteAction(match.Action, conv, vars, messageID)
	if err != nil {
		log.Printf("❌ [Pipeline] Action %q failed for conversation #%d: %v", match.Action.Name, conv.ID, err)
		return
	}

	switch match.Action.ResponseMode {
	case models.ResponseModeConfirmation:
		text := match.Action.ResponseText
		if text == "" {
			text = "Done! Your request has been submitted."
		}
		p.deliver(conv, text)
	case models.ResponseModeCustomMessage:
		p.deliver(conv, InterpolateString(match.Action.ResponseText, resultVars(vars, result)))
	case models.ResponseModeWaitForWebhook:
		// Reply arrives asynchronously via the action-response endpoint,
		// correlated by result.ExecutionID
		log.Printf("[Pipeline] Awaiting async result for execution %s", result.ExecutionID)
	}
}

// resultVars extends the variable map with values from the webhook response
// body so custom messages can reference them
func resultVars(vars map[string]string, result *ExecutionResult) map[string]string {
	out := make(map[string]string, len(vars)+len(result.ParsedBody))
	for k, v := range vars {
		out[k] = v
	}
	for k, v := range result.ParsedBody {
		if s, ok := v.(string); ok {
			out["response."+k] = s
		}
	}
	return out
}

// trimContent is a logging helper for long message bodies
func trimContent(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.TrimSpace(s[:max]) + "..."
}
