package services

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// SearchResult is one ranked passage returned by the retrieval service
type SearchResult struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
}

// Retriever queries the similarity-search service. The vector index itself
// is an opaque external collaborator; this client only speaks its HTTP API.
type Retriever interface {
	Search(ctx context.Context, tenantID, query string, topK int) ([]SearchResult, error)
}

// HTTPRetriever talks to the retrieval service over HTTP
type HTTPRetriever struct {
	client  *resty.Client
	baseURL string
}

// NewHTTPRetriever builds the retrieval client from environment config
func NewHTTPRetriever() *HTTPRetriever {
	baseURL := os.Getenv("RETRIEVAL_API_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8091/api"
	}

	timeoutMs := 10000
	if t := os.Getenv("RETRIEVAL_TIMEOUT_MS"); t != "" {
		if parsed, err := strconv.Atoi(t); err == nil {
			timeoutMs = parsed
		}
	}

	client := resty.New().
		SetTimeout(time.Duration(timeoutMs) * time.Millisecond).
		SetHeader("Content-Type", "application/json")

	return &HTTPRetriever{client: client, baseURL: baseURL}
}

type searchRequest struct {
	TenantID string `json:"tenantId"`
	Query    string `json:"query"`
	TopK     int    `json:"topK"`
}

type searchResponse struct {
	Results []SearchResult `json:"results"`
}

// Search returns ranked passages for a query, best match first
func (r *HTTPRetriever) Search(ctx context.Context, tenantID, query string, topK int) ([]SearchResult, error) {
	if topK <= 0 {
		topK = 5
	}

	var out searchResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(searchRequest{TenantID: tenantID, Query: query, TopK: topK}).
		SetResult(&out).
		Post(r.baseURL + "/search")
	if err != nil {
		return nil, fmt.Errorf("retrieval service call failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("retrieval service returned %d: %s", resp.StatusCode(), resp.String())
	}

	log.Printf("[Retriever] tenant=%s topK=%d results=%d", tenantID, topK, len(out.Results))
	return out.Results, nil
}
