package services

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// GetAIProvider creates the configured AI provider and logs which optional
// capabilities (vision input, per-tenant tuning) the pipeline can rely on.
func GetAIProvider() (AIProvider, error) {
	providerMode := strings.ToLower(os.Getenv("AI_PROVIDER"))

	// Default to openrouter if not specified
	if providerMode == "" {
		providerMode = "openrouter"
		log.Printf("[AIProvider] AI_PROVIDER not set, defaulting to 'openrouter'")
	}

	var provider AIProvider
	var err error

	switch providerMode {
	case "openrouter":
		provider, err = NewOpenRouterClient()
	case "gemini":
		provider, err = NewGeminiClient()
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER: %s (valid options: openrouter, gemini)", providerMode)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s: %w", providerMode, err)
	}

	_, hasVision := provider.(VisionProvider)
	_, hasTuning := provider.(TunableProvider)

	log.Printf("[AIProvider] ✓ %s ready (model: %s, vision: %v, tenant overrides: %v)",
		provider.GetProviderName(), provider.GetModelName(), hasVision, hasTuning)

	return provider, nil
}
