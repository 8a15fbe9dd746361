package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/metrics"
	"github.com/christoph-ui/lakecore/internal/providers"
)

const classifySystemPrompt = `You classify business documents into exactly one category.
Categories: tax, legal, products, hr, correspondence, general.
Respond with a JSON object: {"category": "<category>", "confidence": <0.0-1.0>}.
Respond with JSON only, no explanation.`

type llmResponse struct {
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// classifyLLM prompts the model with the filename and a bounded text sample.
// Parse failures are salvaged by substring search over the category tokens;
// out-of-set answers fall through to the rule tier.
func (c *Classifier) classifyLLM(ctx context.Context, in Input) (Result, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sample := document.TruncateBytes(in.Text, c.maxSampleBytes)

	prompt := fmt.Sprintf("Filename: %s\n\nContent:\n%s", in.Filename, sample)

	raw, err := c.chat.Complete(ctx, providers.ChatRequest{
		System:    classifySystemPrompt,
		Prompt:    prompt,
		MaxTokens: 100,
	})
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(c.chat.Name(), "error").Inc()
		c.logger.Warn("llm classification failed, falling back to rules",
			"filename", in.Filename, "error", err)
		return Result{}, false
	}
	metrics.ProviderCallsTotal.WithLabelValues(c.chat.Name(), "ok").Inc()

	if res, ok := parseLLMResponse(raw); ok {
		return res, true
	}

	c.logger.Warn("llm classification returned unusable response",
		"filename", in.Filename)
	return Result{}, false
}

// parseLLMResponse decodes the JSON answer, trimming code fences when the
// model wraps its output. A failed decode falls back to scanning the raw
// text for a category token.
func parseLLMResponse(raw string) (Result, bool) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var resp llmResponse
	if err := json.Unmarshal([]byte(cleaned), &resp); err == nil {
		cat := strings.ToLower(strings.TrimSpace(resp.Category))
		if document.ValidCategory(cat) {
			conf := resp.Confidence
			if conf <= 0 || conf > 1 {
				conf = 0.7
			}
			return Result{Category: document.Category(cat), Confidence: conf, Tier: "llm"}, true
		}
		return Result{}, false
	}

	// Salvage: the first category token found in the raw text wins.
	lowered := strings.ToLower(raw)
	for _, cat := range document.Categories {
		if strings.Contains(lowered, string(cat)) {
			return Result{Category: cat, Confidence: 0.5, Tier: "llm"}, true
		}
	}

	return Result{}, false
}
