// Package providers defines the external model boundaries the core is
// parameterized over: single-shot chat completion and passage embeddings.
// Missing credentials make a provider unavailable; callers degrade
// gracefully instead of failing.
package providers

import (
	"context"
)

// ProviderType represents the type of provider.
type ProviderType string

const (
	ProviderTypeChat       ProviderType = "chat"
	ProviderTypeEmbeddings ProviderType = "embeddings"
)

// Provider is the base interface for all providers.
type Provider interface {
	// Name returns the provider's unique identifier.
	Name() string

	// Type returns the provider type.
	Type() ProviderType

	// Available returns true if the provider is configured and ready.
	Available() bool

	// RateLimit returns the rate limit configuration for this provider.
	RateLimit() RateLimitConfig
}

// RateLimitConfig defines rate limiting parameters for a provider.
type RateLimitConfig struct {
	RequestsPerMinute int
	BurstSize         int
}

// ChatRequest is a single-shot prompt for a chat model.
type ChatRequest struct {
	// System is an optional system prompt.
	System string

	// Prompt is the user message.
	Prompt string

	// MaxTokens bounds the completion length. Zero means provider default.
	MaxTokens int
}

// ChatProvider performs single-shot text-in/text-out completions. The
// classifier, adaptive handler generator, structured extractor, and metadata
// enrichment all consume this interface.
type ChatProvider interface {
	Provider

	// Complete sends one prompt and returns the completion text.
	Complete(ctx context.Context, req ChatRequest) (string, error)

	// ModelName returns the model identifier used by this provider.
	ModelName() string
}

// EmbeddingsProvider generates unit-length vectors for passages and queries.
// The dimension is fixed per model; stores detect it at first insert.
type EmbeddingsProvider interface {
	Provider

	// EmbedPassage embeds one passage.
	EmbedPassage(ctx context.Context, text string) ([]float32, error)

	// EmbedPassages embeds a batch of passages in one call, preserving order.
	EmbedPassages(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a search query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the name of the embedding model.
	ModelName() string
}
