package services

import "unicode/utf8"

// Token budget constants for the context assembler. Estimates assume ~4
// characters per token, which is close enough for budgeting plain chat text.
const (
	MaxContextTokens      = 12000 // total budget per request
	MaxConversationTokens = 4000  // history cap before any rebalancing
	MinConversationTokens = 300   // history never shrinks below this
	MinRAGTokens          = 2000  // floor reserved for retrieved content
	OverflowMargin        = 1.2   // output may exceed budget by at most 20%
)

// EstimateTokens estimates the token count of a text (chars × 0.25).
// Characters are runes, not bytes: multibyte scripts like Arabic would
// otherwise double-count and halve the effective budget.
func EstimateTokens(text string) int {
	return int(float64(utf8.RuneCountInString(text)) * 0.25)
}

// historyBudget returns the rebalanced history allocation when the combined
// context exceeds the budget: max(MinConversationTokens, 20% of budget),
// shrinking further when RAG content is under its floor and needs the room
func historyBudget(maxTokens, ragTokens int) int {
	budget := maxTokens / 5
	if budget < MinConversationTokens {
		budget = MinConversationTokens
	}
	if ragTokens < MinRAGTokens {
		// Leave the RAG floor available for retrieval even when the current
		// result set is small
		remaining := maxTokens - MinRAGTokens
		if remaining < budget {
			budget = remaining
		}
		if budget < MinConversationTokens {
			budget = MinConversationTokens
		}
	}
	return budget
}
