package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/christoph-ui/lakecore/internal/metrics"
)

const (
	defaultEmbeddingsURL   = "https://api.openai.com/v1/embeddings"
	defaultEmbeddingsModel = "multilingual-e5-large"

	// e5-style models expect task prefixes on the input text.
	passagePrefix = "passage: "
	queryPrefix   = "query: "
)

// HTTPEmbeddingsProvider implements EmbeddingsProvider against an
// OpenAI-compatible embeddings endpoint. Returned vectors are normalized to
// unit length.
type HTTPEmbeddingsProvider struct {
	apiKey      string
	endpoint    string
	model       string
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// EmbeddingsOption configures the HTTPEmbeddingsProvider.
type EmbeddingsOption func(*HTTPEmbeddingsProvider)

// WithEmbeddingsModel sets the model to use.
func WithEmbeddingsModel(model string) EmbeddingsOption {
	return func(p *HTTPEmbeddingsProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithEmbeddingsEndpoint sets the embeddings endpoint URL.
func WithEmbeddingsEndpoint(url string) EmbeddingsOption {
	return func(p *HTTPEmbeddingsProvider) {
		if url != "" {
			p.endpoint = url
		}
	}
}

// WithEmbeddingsHTTPClient sets the HTTP client to use.
func WithEmbeddingsHTTPClient(client *http.Client) EmbeddingsOption {
	return func(p *HTTPEmbeddingsProvider) {
		p.httpClient = client
	}
}

// NewHTTPEmbeddingsProvider creates a new embeddings provider.
func NewHTTPEmbeddingsProvider(apiKey string, opts ...EmbeddingsOption) *HTTPEmbeddingsProvider {
	p := &HTTPEmbeddingsProvider{
		apiKey:     apiKey,
		endpoint:   defaultEmbeddingsURL,
		model:      defaultEmbeddingsModel,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}

	for _, opt := range opts {
		opt(p)
	}

	p.rateLimiter = NewRateLimiter(p.RateLimit())

	return p
}

// Name returns the provider's unique identifier.
func (p *HTTPEmbeddingsProvider) Name() string {
	return "http-embeddings"
}

// Type returns the provider type.
func (p *HTTPEmbeddingsProvider) Type() ProviderType {
	return ProviderTypeEmbeddings
}

// Available returns true if the provider is configured and ready.
func (p *HTTPEmbeddingsProvider) Available() bool {
	return p.apiKey != ""
}

// RateLimit returns the rate limit configuration.
func (p *HTTPEmbeddingsProvider) RateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 500,
		BurstSize:         50,
	}
}

// ModelName returns the name of the embedding model.
func (p *HTTPEmbeddingsProvider) ModelName() string {
	return p.model
}

// EmbedPassage embeds one passage.
func (p *HTTPEmbeddingsProvider) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embed(ctx, []string{passagePrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedPassages embeds a batch of passages in one call, preserving order.
func (p *HTTPEmbeddingsProvider) EmbedPassages(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = passagePrefix + t
	}
	return p.embed(ctx, inputs)
}

// EmbedQuery embeds a search query.
func (p *HTTPEmbeddingsProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.embed(ctx, []string{queryPrefix + text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (p *HTTPEmbeddingsProvider) embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if !p.Available() {
		return nil, fmt.Errorf("embeddings provider not available; API key not set")
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait failed; %w", err)
	}

	requestBody := map[string]any{
		"model": p.model,
		"input": inputs,
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request; %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request; %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "error").Inc()
		return nil, fmt.Errorf("API request failed; %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response; %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "error").Inc()
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(body))
	}

	var apiResp embeddingsResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response; %w", err)
	}

	if len(apiResp.Data) != len(inputs) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(inputs), len(apiResp.Data))
	}

	// The API may return items out of order; the index field is
	// authoritative.
	vectors := make([][]float32, len(inputs))
	for _, item := range apiResp.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("embedding index %d out of range", item.Index)
		}
		vec := make([]float32, len(item.Embedding))
		for i, v := range item.Embedding {
			vec[i] = float32(v)
		}
		vectors[item.Index] = Normalize(vec)
	}

	metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "ok").Inc()
	return vectors, nil
}

// Normalize scales a vector to unit length. Zero vectors are returned as-is.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// embeddingsResponse represents the embeddings API response.
type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}
