package services

import "context"

// AIProvider is the interface that all AI providers must implement
type AIProvider interface {
	// AskLLM sends a prompt to the AI and returns response with token usage
	// Returns: (response string, inputTokens int, outputTokens int, error)
	AskLLM(ctx context.Context, systemPrompt string, userPrompt string) (string, int, int, error)

	// GetProviderName returns the name of the provider (e.g., "openrouter", "gemini")
	GetProviderName() string

	// GetModelName returns the model name being used
	GetModelName() string
}

// GenerationOptions carries per-tenant overrides for a single model call.
// Zero values mean "use the provider's configured default".
type GenerationOptions struct {
	Temperature float32
	ModelID     string
}

// VisionProvider is implemented by providers that accept an image reference
// alongside the user prompt. Callers type-assert and fall back to AskLLM
// with a textual image note when the provider doesn't support it.
type VisionProvider interface {
	AskLLMWithImage(ctx context.Context, systemPrompt, userPrompt, imageURL string, opts GenerationOptions) (string, int, int, error)
}

// TunableProvider is implemented by providers that honor per-tenant
// generation overrides (temperature, model) on text-only calls.
type TunableProvider interface {
	AskLLMTuned(ctx context.Context, systemPrompt, userPrompt string, opts GenerationOptions) (string, int, int, error)
}
