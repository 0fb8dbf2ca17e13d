package services

import (
	"encoding/json"
	"strconv"
	"strings"
	"unicode"

	"genfity-wa-autoreply/models"
)

// LanguageInfo is the language-detection result for an inbound message
type LanguageInfo struct {
	Code string `json:"code"` // "en", "id", "ar", ...
	RTL  bool   `json:"rtl"`
}

// BusinessContext describes what the analyzer inferred about the message
type BusinessContext struct {
	Industry           string   `json:"industry"`            // "generic" when nothing specific detected
	CommunicationStyle string   `json:"communication_style"` // formal|casual
	Terms              []string `json:"terms"`               // detected business terms
	Confidence         float64  `json:"confidence"`
}

// IntentMatch is the result of matching a message against configured actions
type IntentMatch struct {
	Action     *models.ExternalActionConfig
	Keyword    string
	Confidence float64
}

// DetectLanguage performs a lightweight script/stop-word detection. Accuracy
// only needs to be good enough for the quality engine's word-count thresholds
// and vague-pattern lists.
func DetectLanguage(text string) LanguageInfo {
	for _, r := range text {
		if unicode.Is(unicode.Arabic, r) || unicode.Is(unicode.Hebrew, r) {
			code := "ar"
			if unicode.Is(unicode.Hebrew, r) {
				code = "he"
			}
			return LanguageInfo{Code: code, RTL: true}
		}
	}

	lower := " " + strings.ToLower(text) + " "
	idMarkers := []string{" yang ", " tidak ", " saya ", " apakah ", " bagaimana ", " tolong ", " berapa "}
	for _, marker := range idMarkers {
		if strings.Contains(lower, marker) {
			return LanguageInfo{Code: "id"}
		}
	}
	return LanguageInfo{Code: "en"}
}

// industryKeywords maps industries to the terms that indicate them
var industryKeywords = map[string][]string{
	"technical":     {"api", "error", "bug", "install", "server", "login", "password", "configuration", "integration", "update"},
	"sales":         {"price", "discount", "quote", "order", "buy", "purchase", "harga", "diskon", "beli", "promo"},
	"medical":       {"appointment", "doctor", "symptom", "prescription", "clinic", "dokter", "obat", "janji"},
	"finance":       {"invoice", "payment", "refund", "transfer", "billing", "tagihan", "pembayaran", "transaksi"},
	"education":     {"course", "class", "enrollment", "exam", "kelas", "kursus", "pendaftaran", "ujian"},
	"entertainment": {"ticket", "event", "show", "booking", "tiket", "acara", "konser"},
}

var formalMarkers = []string{
	"dear", "regards", "sincerely", "good morning", "good afternoon",
	"selamat pagi", "selamat siang", "dengan hormat", "terima kasih", "mohon",
}

// DetectBusinessContext infers industry, communication style and business
// terms from the message text
func DetectBusinessContext(text string) BusinessContext {
	lower := strings.ToLower(text)

	ctx := BusinessContext{
		Industry:           "generic",
		CommunicationStyle: "casual",
		Confidence:         0.3,
	}

	bestHits := 0
	for industry, keywords := range industryKeywords {
		hits := 0
		var matched []string
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				hits++
				matched = append(matched, kw)
			}
		}
		if hits > bestHits {
			bestHits = hits
			ctx.Industry = industry
			ctx.Terms = matched
		} else if hits > 0 && hits == bestHits {
			// Ties keep the first industry but accumulate the terms
			ctx.Terms = append(ctx.Terms, matched...)
		}
	}

	if bestHits > 0 {
		ctx.Confidence = 0.5 + 0.1*float64(bestHits)
		if ctx.Confidence > 0.9 {
			ctx.Confidence = 0.9
		}
	}

	for _, marker := range formalMarkers {
		if strings.Contains(lower, marker) {
			ctx.CommunicationStyle = "formal"
			break
		}
	}

	return ctx
}

// DetectIntent matches a message against the trigger keywords of the active
// action configs for an instance. Longest keyword match wins; confidence
// scales with how much of the message the keyword covers.
func DetectIntent(text string, actions []models.ExternalActionConfig) *IntentMatch {
	lower := strings.ToLower(text)

	var best *IntentMatch
	for i := range actions {
		action := &actions[i]
		if !action.IsActive {
			continue
		}

		var keywords []string
		if err := json.Unmarshal([]byte(action.TriggerKeywords), &keywords); err != nil {
			continue
		}

		for _, kw := range keywords {
			kwLower := strings.ToLower(strings.TrimSpace(kw))
			if kwLower == "" || !strings.Contains(lower, kwLower) {
				continue
			}
			confidence := 0.6 + 0.4*float64(len(kwLower))/float64(len(lower))
			if confidence > 0.95 {
				confidence = 0.95
			}
			if best == nil || len(kwLower) > len(best.Keyword) {
				best = &IntentMatch{Action: action, Keyword: kwLower, Confidence: confidence}
			}
		}
	}
	return best
}

// ExtractVariables builds the variable map used for payload interpolation
func ExtractVariables(conv *models.Conversation, message string, match *IntentMatch) map[string]string {
	vars := map[string]string{
		"message":         message,
		"phone":           strings.Split(conv.ContactJID, "@")[0],
		"name":            conv.ContactName,
		"conversation_id": strconv.Itoa(int(conv.ID)),
		"instance_id":     conv.InstanceID,
		"tenant_id":       conv.TenantID,
	}
	if match != nil {
		vars["intent"] = match.Keyword
	}
	return vars
}
