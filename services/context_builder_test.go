package services

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"genfity-wa-autoreply/models"
)

func seedConversation(t *testing.T, turns []models.Message) *models.Conversation {
	t.Helper()
	db := setupTestDB(t)

	conv := models.Conversation{
		TenantID:     "tenant-1",
		InstanceID:   "inst-1",
		ContactJID:   "628111@s.whatsapp.net",
		Status:       models.ConversationActive,
		Metadata:     "{}",
		LastActivity: time.Now(),
	}
	if err := db.Create(&conv).Error; err != nil {
		t.Fatalf("failed to seed conversation: %v", err)
	}
	for i := range turns {
		turns[i].ConversationID = conv.ID
		if err := db.Create(&turns[i]).Error; err != nil {
			t.Fatalf("failed to seed message: %v", err)
		}
	}
	return &conv
}

func TestAssembleContextUnderBudgetIsVerbatim(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	conv := seedConversation(t, []models.Message{
		{Role: models.RoleUser, Content: "Do you ship to Bali?", Timestamp: base},
		{Role: models.RoleAssistant, Content: "Yes, we ship nationwide.", Timestamp: base.Add(time.Minute)},
		{Role: models.RoleUser, Content: "How long does it take?", Timestamp: base.Add(2 * time.Minute)},
	})

	passages := []string{"Shipping takes 2-4 days.", "Free shipping above 200k."}
	assembled, err := AssembleContext(conv.ID, "How long does it take?", passages, MaxContextTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(assembled.Text, "CONVERSATION HISTORY:") {
		t.Error("expected a history section")
	}
	if !strings.Contains(assembled.Text, "RELEVANT INFORMATION:") {
		t.Error("expected a retrieved-content section")
	}
	// Under budget nothing is truncated
	for _, p := range passages {
		if !strings.Contains(assembled.Text, p) {
			t.Errorf("passage %q missing from assembled context", p)
		}
	}
	if !strings.Contains(assembled.Text, "Shipping takes 2-4 days.\n---\nFree shipping above 200k.") {
		t.Error("passages must be joined with a --- separator")
	}
	if !strings.HasSuffix(assembled.Text, "How long does it take?") {
		t.Error("query must close the assembled context")
	}
}

func TestAssembleContextTagsRecencyMarkers(t *testing.T) {
	base := time.Now().Add(-time.Hour)
	conv := seedConversation(t, []models.Message{
		{Role: models.RoleUser, Content: "first", Timestamp: base},
		{Role: models.RoleAssistant, Content: "second", Timestamp: base.Add(time.Minute)},
		{Role: models.RoleUser, Content: "third", Timestamp: base.Add(2 * time.Minute)},
	})

	assembled, err := AssembleContext(conv.ID, "follow-up", nil, MaxContextTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(assembled.Text, "[LAST MESSAGE] Customer: third") {
		t.Errorf("newest turn must carry the last-message marker:\n%s", assembled.Text)
	}
	if !strings.Contains(assembled.Text, "[PREVIOUS] Assistant: second") {
		t.Errorf("second-newest turn must carry the previous marker:\n%s", assembled.Text)
	}
	if strings.Contains(assembled.Text, "[LAST MESSAGE] Customer: first") {
		t.Error("older turns must not carry recency markers")
	}
	// Oldest first
	if strings.Index(assembled.Text, "first") > strings.Index(assembled.Text, "third") {
		t.Error("history must be chronological, oldest first")
	}
}

func TestAssembleContextOversizedRAGStaysWithinOverflowMargin(t *testing.T) {
	setupTestDB(t)

	huge := strings.Repeat("knowledge content ", 3000) // ~13k tokens
	maxTokens := 1000

	assembled, err := AssembleContext(0, "question", []string{huge}, maxTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	limit := int(float64(maxTokens) * OverflowMargin)
	if assembled.Breakdown.TotalTokens > limit {
		t.Errorf("assembled context %d tokens exceeds the %d overflow limit",
			assembled.Breakdown.TotalTokens, limit)
	}
}

func TestAssembleContextDropsLowestRankedSectionsFirst(t *testing.T) {
	setupTestDB(t)

	first := "FIRST " + strings.Repeat("alpha ", 700)  // ~1k tokens
	second := "SECOND " + strings.Repeat("beta ", 700) // ~1k tokens
	third := "THIRD " + strings.Repeat("gamma ", 700)  // ~1k tokens

	assembled, err := AssembleContext(0, "q", []string{first, second, third}, 1500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(assembled.Text, "FIRST") {
		t.Error("top-ranked section must survive trimming")
	}
	if strings.Contains(assembled.Text, "THIRD") {
		t.Error("lowest-ranked section must be dropped first")
	}
}

func TestAssembleContextNoHistoryNoRAG(t *testing.T) {
	setupTestDB(t)

	assembled, err := AssembleContext(0, "just the question", nil, MaxContextTokens)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if assembled.Text != "just the question" {
		t.Errorf("expected bare query, got %q", assembled.Text)
	}
	if assembled.Breakdown.TotalTokens != 0 {
		t.Errorf("expected zero budget spend, got %d", assembled.Breakdown.TotalTokens)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := EstimateTokens(strings.Repeat("a", 400)); got != 100 {
		t.Errorf("expected 100 tokens for 400 chars, got %d", got)
	}
	if got := EstimateTokens(""); got != 0 {
		t.Errorf("expected 0 tokens for empty text, got %d", got)
	}

	// Characters, not bytes: an Arabic letter is one character even though
	// it encodes as two bytes
	if got := EstimateTokens(strings.Repeat("م", 400)); got != 100 {
		t.Errorf("expected 100 tokens for 400 Arabic chars, got %d", got)
	}
}

func TestTruncateHistoryHardCutKeepsValidUTF8(t *testing.T) {
	// A single oversized line forces the hard cut
	line := strings.Repeat("مرحبا ", 200)

	got := truncateHistory(line, 50)
	if !utf8.ValidString(got) {
		t.Fatal("hard cut must land on a rune boundary")
	}
	if EstimateTokens(got) > 50 {
		t.Errorf("cut history still over budget: %d tokens", EstimateTokens(got))
	}
	if !strings.HasSuffix(line, got) {
		t.Error("history cut must keep the newest tail verbatim")
	}
}

func TestTrimRAGSectionsHardCutKeepsValidUTF8(t *testing.T) {
	section := strings.Repeat("مرحبا ", 200)

	got := trimRAGSections(section, 50)
	if !utf8.ValidString(got) {
		t.Fatal("hard cut must land on a rune boundary")
	}
	if EstimateTokens(got) > 50 {
		t.Errorf("cut section still over budget: %d tokens", EstimateTokens(got))
	}
	if !strings.HasPrefix(section, got) {
		t.Error("section cut must keep the highest-ranked head verbatim")
	}
}
