package services

import (
	"fmt"
	"log"
	"strings"
)

// QualityInput carries everything the quality engine scores on
type QualityInput struct {
	Message          string
	Intent           string
	IntentConfidence float64
	Business         BusinessContext
	Language         LanguageInfo
	SearchResults    []SearchResult
	KnowledgeFiles   int
}

// QualityResult is the scoring outcome driving the escalation decision
type QualityResult struct {
	Score          float64 `json:"score"`
	ShouldEscalate bool    `json:"should_escalate"`
	Threshold      float64 `json:"threshold"`
	Clarity        float64 `json:"clarity"`
	Context        float64 `json:"context"`
	IntentScore    float64 `json:"intent_score"`
	Breakdown      string  `json:"breakdown"`
}

// qualityWeights are the industry-adapted sub-score weights
type qualityWeights struct {
	clarity float64
	context float64
	intent  float64
}

var defaultWeights = qualityWeights{clarity: 0.3, context: 0.5, intent: 0.2}

var industryWeights = map[string]qualityWeights{
	"technical": {clarity: 0.4, context: 0.4, intent: 0.2},
	"sales":     {clarity: 0.2, context: 0.6, intent: 0.2},
	"medical":   {clarity: 0.4, context: 0.5, intent: 0.1},
}

// DefaultEscalationThreshold applies when no industry override exists
const DefaultEscalationThreshold = 0.4

// ShouldEscalate is the escalation rule: strictly below threshold hands off,
// exactly at threshold stays with the bot.
func ShouldEscalate(score, threshold float64) bool {
	return score < threshold
}

var industryThresholds = map[string]float64{
	"medical":       0.6,
	"finance":       0.6,
	"education":     0.5,
	"entertainment": 0.3,
}

// vaguePatterns are known low-information question phrasings per language
var vaguePatterns = map[string][]string{
	"en": {"help", "info", "question", "can you help", "i need help", "hello?"},
	"id": {"tolong", "bantuan", "tanya", "bisa bantu", "minta info", "gimana"},
	"ar": {"مساعدة", "سؤال", "معلومات"},
}

// AssessQuality scores whether the exchange was adequate and decides human
// escalation. Escalation uses strict less-than: a score exactly at the
// threshold stays with the bot.
//
// On any internal error the engine fails safe with a neutral score and no
// escalation: availability over over-escalating on transient errors.
func AssessQuality(in QualityInput) (result QualityResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️  [Quality] Recovered from scoring error: %v (neutral fallback)", r)
			result = QualityResult{
				Score:          0.5,
				ShouldEscalate: false,
				Threshold:      DefaultEscalationThreshold,
				Breakdown:      fmt.Sprintf("internal error (%v), neutral fallback applied", r),
			}
		}
	}()

	industry := in.Business.Industry

	clarity := scoreClarityFn(in)
	contextScore := scoreContext(in)
	intentScore := scoreIntent(in)

	weights, ok := industryWeights[industry]
	if !ok {
		weights = defaultWeights
	}

	threshold, ok := industryThresholds[industry]
	if !ok {
		threshold = DefaultEscalationThreshold
	}

	score := clarity*weights.clarity + contextScore*weights.context + intentScore*weights.intent

	result = QualityResult{
		Score:          score,
		ShouldEscalate: ShouldEscalate(score, threshold),
		Threshold:      threshold,
		Clarity:        clarity,
		Context:        contextScore,
		IntentScore:    intentScore,
		Breakdown: fmt.Sprintf(
			"industry=%s clarity=%.2f(w%.1f) context=%.2f(w%.1f) intent=%.2f(w%.1f) score=%.3f threshold=%.2f escalate=%v",
			industry, clarity, weights.clarity, contextScore, weights.context,
			intentScore, weights.intent, score, threshold, score < threshold),
	}
	return result
}

// scoreClarityFn indirection so the recovery path is reachable from tests
var scoreClarityFn = scoreClarity

// scoreClarity: how well-formed and specific the inbound message is
func scoreClarity(in QualityInput) float64 {
	score := 0.5

	words := len(strings.Fields(in.Message))
	threshold := 6
	if in.Language.RTL {
		threshold = 8
	}

	if words >= threshold {
		score += 0.3
	}
	if words < 3 {
		score -= 0.4
	}
	if len(in.Business.Terms) >= 3 {
		score += 0.2
	}
	if in.Business.CommunicationStyle == "formal" {
		score += 0.1
	}
	if matchesVaguePattern(in.Message, in.Language.Code) {
		score -= 0.3
	}

	return clamp(score, 0.1, 0.9)
}

// scoreContext: how much grounding material exists for this message
func scoreContext(in QualityInput) float64 {
	best := 0.0
	above06 := 0
	for _, res := range in.SearchResults {
		if res.Score > best {
			best = res.Score
		}
		if res.Score > 0.6 {
			above06++
		}
	}

	var score float64
	switch {
	case best >= 0.8:
		score = 0.9
	case best >= 0.6:
		score = 0.7
	case best >= 0.4:
		score = 0.5
	default:
		score = 0.2
	}

	if above06 > 1 {
		score += 0.1
	}

	if in.KnowledgeFiles == 0 && score > 0.3 {
		score = 0.3
	}
	if in.KnowledgeFiles >= 5 {
		score += 0.1
	}

	// Blend 80/20 with the business-context confidence
	score = score*0.8 + in.Business.Confidence*0.2

	return clamp(score, 0, 1)
}

// scoreIntent: how relevant the detected intent is to what we can answer
func scoreIntent(in QualityInput) float64 {
	score := (0.5 + in.IntentConfidence) / 2

	if in.Business.Industry != "generic" && in.Business.Industry != "" {
		score += 0.1
	}

	for _, res := range in.SearchResults {
		if res.Score > 0.6 && len(res.Content) >= 100 {
			score += 0.2
			break
		}
	}

	return clamp(score, 0.1, 0.9)
}

func matchesVaguePattern(message, lang string) bool {
	patterns, ok := vaguePatterns[lang]
	if !ok {
		patterns = vaguePatterns["en"]
	}
	trimmed := strings.ToLower(strings.TrimSpace(message))
	for _, pattern := range patterns {
		if trimmed == pattern || strings.HasPrefix(trimmed, pattern+" ") || strings.HasPrefix(trimmed, pattern+"?") {
			return true
		}
	}
	return false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
