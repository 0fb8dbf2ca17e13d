package services

import (
	"fmt"
	"strings"

	"genfity-wa-autoreply/database"
	"genfity-wa-autoreply/models"
)

// ContextBreakdown reports how the token budget was spent, for logging
type ContextBreakdown struct {
	ConversationTokens int `json:"conversation_tokens"`
	RAGTokens          int `json:"rag_tokens"`
	TotalTokens        int `json:"total_tokens"`
}

// AssembledContext is the final prompt context handed to the LLM
type AssembledContext struct {
	Text      string
	Breakdown ContextBreakdown
}

// maxHistoryMessages is how many recent turns are considered for context
const maxHistoryMessages = 10

// AssembleContext builds the bounded prompt context from recent conversation
// turns and retrieved passages, rebalancing when the combined size exceeds
// maxTokens. RAG content wins over history once the budget is tight: factual
// grounding matters more than conversational continuity.
func AssembleContext(conversationID uint, query string, passages []string, maxTokens int) (*AssembledContext, error) {
	if maxTokens <= 0 {
		maxTokens = MaxContextTokens
	}

	historyLines, err := fetchHistoryLines(conversationID)
	if err != nil {
		return nil, err
	}

	history := strings.Join(historyLines, "\n")
	history = truncateHistory(history, MaxConversationTokens)

	rag := strings.Join(passages, "\n---\n")

	historyTokens := EstimateTokens(history)
	ragTokens := EstimateTokens(rag)

	// Fits as-is: concatenate both sections unmodified
	if historyTokens+ragTokens > maxTokens {
		// Shrink history first
		history = truncateHistory(history, historyBudget(maxTokens, ragTokens))
		historyTokens = EstimateTokens(history)

		// Shrink RAG section-by-section only when still over budget by >20%
		overflowLimit := int(float64(maxTokens) * OverflowMargin)
		if historyTokens+ragTokens > overflowLimit {
			rag = trimRAGSections(rag, overflowLimit-historyTokens)
			ragTokens = EstimateTokens(rag)
		}
	}

	var sb strings.Builder
	if history != "" {
		sb.WriteString("CONVERSATION HISTORY:\n")
		sb.WriteString(history)
		sb.WriteString("\n\n")
	}
	if rag != "" {
		sb.WriteString("RELEVANT INFORMATION:\n")
		sb.WriteString(rag)
		sb.WriteString("\n\n")
	}
	sb.WriteString(query)

	return &AssembledContext{
		Text: sb.String(),
		Breakdown: ContextBreakdown{
			ConversationTokens: historyTokens,
			RAGTokens:          ragTokens,
			TotalTokens:        historyTokens + ragTokens,
		},
	}, nil
}

// fetchHistoryLines loads the most recent turns in chronological order and
// tags the final two so the model can resolve short follow-up replies
func fetchHistoryLines(conversationID uint) ([]string, error) {
	if conversationID == 0 {
		return nil, nil
	}

	db := database.GetDB()
	var messages []models.Message
	err := db.Where("conversation_id = ?", conversationID).
		Order("timestamp DESC, id DESC").
		Limit(maxHistoryMessages).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chat history: %w", err)
	}

	// Reverse to chronological order (oldest first)
	lines := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		role := "Customer"
		if msg.Role == models.RoleAssistant {
			role = "Assistant"
		}

		marker := ""
		switch i {
		case 0:
			marker = "[LAST MESSAGE] "
		case 1:
			marker = "[PREVIOUS] "
		}
		lines = append(lines, fmt.Sprintf("%s%s: %s", marker, role, msg.Content))
	}
	return lines, nil
}

// truncateHistory drops oldest lines first until the history fits the budget
func truncateHistory(history string, budget int) string {
	if EstimateTokens(history) <= budget {
		return history
	}
	lines := strings.Split(history, "\n")
	for len(lines) > 1 {
		lines = lines[1:]
		if EstimateTokens(strings.Join(lines, "\n")) <= budget {
			break
		}
	}
	result := strings.Join(lines, "\n")
	if EstimateTokens(result) > budget {
		// Single oversized line: hard cut (budget is tokens, ×4 chars).
		// Cut on rune boundaries so multibyte text stays valid UTF-8.
		max := budget * 4
		if runes := []rune(result); len(runes) > max {
			result = string(runes[len(runes)-max:])
		}
	}
	return result
}

// trimRAGSections drops sections from the tail (lowest-ranked first) until
// the retrieved content fits the remaining budget; sections are delimited by
// a --- separator and the first-ranked ones are kept
func trimRAGSections(rag string, budget int) string {
	if budget <= 0 {
		return ""
	}
	sections := strings.Split(rag, "\n---\n")
	for len(sections) > 1 && EstimateTokens(strings.Join(sections, "\n---\n")) > budget {
		sections = sections[:len(sections)-1]
	}
	result := strings.Join(sections, "\n---\n")
	if EstimateTokens(result) > budget {
		max := budget * 4
		if max < 0 {
			max = 0
		}
		if runes := []rune(result); len(runes) > max {
			result = string(runes[:max])
		}
	}
	return result
}
