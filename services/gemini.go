package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"google.golang.org/genai"
)

// GeminiClient wraps Google Gemini API client
type GeminiClient struct {
	client     *genai.Client
	model      string
	timeout    time.Duration
	imageFetch *http.Client
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient() (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY not set in environment")
	}

	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = "gemini-2.5-flash" // default model
	}

	timeoutMs := 120000 // default 120 seconds
	if t := os.Getenv("AI_TIMEOUT_MS"); t != "" {
		if parsed, err := strconv.Atoi(t); err == nil {
			timeoutMs = parsed
		}
	}

	ctx := context.Background()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	log.Printf("[GeminiClient] Initialized with model=%s, timeout=%dms", model, timeoutMs)

	return &GeminiClient{
		client:     client,
		model:      model,
		timeout:    time.Duration(timeoutMs) * time.Millisecond,
		imageFetch: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// AskLLM sends a prompt to Gemini and returns the response with token usage
func (gc *GeminiClient) AskLLM(ctx context.Context, systemPrompt string, userPrompt string) (string, int, int, error) {
	parts := []*genai.Part{genai.NewPartFromText(userPrompt)}
	return gc.generate(ctx, systemPrompt, parts, GenerationOptions{})
}

// AskLLMTuned sends a prompt with per-tenant overrides applied
func (gc *GeminiClient) AskLLMTuned(ctx context.Context, systemPrompt, userPrompt string, opts GenerationOptions) (string, int, int, error) {
	parts := []*genai.Part{genai.NewPartFromText(userPrompt)}
	return gc.generate(ctx, systemPrompt, parts, opts)
}

// AskLLMWithImage downloads the referenced image and sends it inline next to
// the prompt. Gemini takes image bytes, not remote URLs, so a fetch failure
// fails the whole call.
func (gc *GeminiClient) AskLLMWithImage(ctx context.Context, systemPrompt, userPrompt, imageURL string, opts GenerationOptions) (string, int, int, error) {
	data, mimeType, err := gc.fetchImage(ctx, imageURL)
	if err != nil {
		return "", 0, 0, fmt.Errorf("failed to fetch image for Gemini: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(userPrompt),
		genai.NewPartFromBytes(data, mimeType),
	}
	return gc.generate(ctx, systemPrompt, parts, opts)
}

func (gc *GeminiClient) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := gc.imageFetch.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("image fetch returned status %d", resp.StatusCode)
	}

	// Media attachments are capped well below this, anything bigger is broken
	data, err := io.ReadAll(io.LimitReader(resp.Body, 20<<20))
	if err != nil {
		return nil, "", err
	}
	if len(data) == 0 {
		return nil, "", fmt.Errorf("image fetch returned empty body")
	}

	mimeType := resp.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	return data, mimeType, nil
}

func (gc *GeminiClient) generate(ctx context.Context, systemPrompt string, parts []*genai.Part, opts GenerationOptions) (string, int, int, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, gc.timeout)
	defer cancel()

	model := gc.model
	if opts.ModelID != "" {
		model = opts.ModelID
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemPrompt, genai.RoleUser),
	}
	if opts.Temperature > 0 {
		config.Temperature = genai.Ptr(opts.Temperature)
	}

	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	startTime := time.Now()

	result, err := gc.client.Models.GenerateContent(timeoutCtx, model, contents, config)
	if err != nil {
		return "", 0, 0, fmt.Errorf("Gemini API error: %w", err)
	}

	latency := time.Since(startTime).Milliseconds()

	responseText := ""
	if result != nil && len(result.Candidates) > 0 {
		responseText = result.Text()
	}

	if responseText == "" {
		return "", 0, 0, fmt.Errorf("empty response from Gemini")
	}

	inputTokens := 0
	outputTokens := 0

	if result.UsageMetadata != nil {
		inputTokens = int(result.UsageMetadata.PromptTokenCount)
		outputTokens = int(result.UsageMetadata.CandidatesTokenCount)
	}

	log.Printf("[GeminiClient] Success | model=%s | latency=%dms | in=%d | out=%d | total=%d",
		model, latency, inputTokens, outputTokens, inputTokens+outputTokens)

	return responseText, inputTokens, outputTokens, nil
}

// GetProviderName returns the provider name for logging
func (gc *GeminiClient) GetProviderName() string {
	return "gemini"
}

// GetModelName returns the model name being used
func (gc *GeminiClient) GetModelName() string {
	return gc.model
}
