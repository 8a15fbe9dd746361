package providers

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/christoph-ui/lakecore/internal/metrics"
)

const defaultChatModel = "gpt-4o-mini"

// OpenAIChatProvider implements ChatProvider against any OpenAI-compatible
// chat completions endpoint.
type OpenAIChatProvider struct {
	apiKey      string
	baseURL     string
	model       string
	client      *openai.Client
	rateLimiter *RateLimiter
}

// ChatOption configures the OpenAIChatProvider.
type ChatOption func(*OpenAIChatProvider)

// WithChatModel sets the model to use.
func WithChatModel(model string) ChatOption {
	return func(p *OpenAIChatProvider) {
		if model != "" {
			p.model = model
		}
	}
}

// WithChatBaseURL points the provider at an OpenAI-compatible endpoint.
func WithChatBaseURL(url string) ChatOption {
	return func(p *OpenAIChatProvider) {
		p.baseURL = url
	}
}

// NewOpenAIChatProvider creates a chat provider. An empty API key yields an
// unavailable provider; Complete then returns an error and callers fall back.
func NewOpenAIChatProvider(apiKey string, opts ...ChatOption) *OpenAIChatProvider {
	p := &OpenAIChatProvider{
		apiKey: apiKey,
		model:  defaultChatModel,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.apiKey != "" {
		cfg := openai.DefaultConfig(p.apiKey)
		if p.baseURL != "" {
			cfg.BaseURL = p.baseURL
		}
		p.client = openai.NewClientWithConfig(cfg)
	}

	p.rateLimiter = NewRateLimiter(p.RateLimit())

	return p
}

// Name returns the provider's unique identifier.
func (p *OpenAIChatProvider) Name() string {
	return "openai-chat"
}

// Type returns the provider type.
func (p *OpenAIChatProvider) Type() ProviderType {
	return ProviderTypeChat
}

// Available returns true if the provider is configured and ready.
func (p *OpenAIChatProvider) Available() bool {
	return p.client != nil
}

// RateLimit returns the rate limit configuration.
func (p *OpenAIChatProvider) RateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 300,
		BurstSize:         30,
	}
}

// ModelName returns the model identifier used by this provider.
func (p *OpenAIChatProvider) ModelName() string {
	return p.model
}

// Complete sends one prompt and returns the completion text.
func (p *OpenAIChatProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	if !p.Available() {
		return "", fmt.Errorf("chat provider not available; API key not set")
	}

	if err := p.rateLimiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait failed; %w", err)
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: 0,
	})
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "error").Inc()
		return "", fmt.Errorf("chat completion failed; %w", err)
	}

	if len(resp.Choices) == 0 {
		metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "empty").Inc()
		return "", fmt.Errorf("chat completion returned no choices")
	}

	metrics.ProviderCallsTotal.WithLabelValues(p.Name(), "ok").Inc()
	return resp.Choices[0].Message.Content, nil
}
