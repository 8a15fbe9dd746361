// Package classify assigns documents to a closed category set using a
// pre-assignment gate, an LLM tier, and a rule tier in that order.
package classify

import (
	"context"
	"log/slog"
	"time"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/metrics"
	"github.com/christoph-ui/lakecore/internal/providers"
)

// Result is a classification outcome.
type Result struct {
	Category   document.Category
	Confidence float64

	// Tier names the tier that produced the result: "preassigned", "llm",
	// or "rules".
	Tier string
}

// Classifier resolves a document to one of the closed categories.
type Classifier struct {
	chat    providers.ChatProvider
	logger  *slog.Logger
	timeout time.Duration

	// maxSampleBytes bounds the text sample sent to the LLM tier.
	maxSampleBytes int

	// llmThreshold is the rule confidence below which the batch variant
	// escalates to the LLM tier.
	llmThreshold float64
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithChatProvider enables the LLM tier.
func WithChatProvider(p providers.ChatProvider) Option {
	return func(c *Classifier) { c.chat = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Classifier) { c.logger = l }
}

// WithTimeout bounds each LLM classification call.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) { c.timeout = d }
}

// WithLLMThreshold sets the rule confidence below which batch
// classification escalates to the LLM tier.
func WithLLMThreshold(v float64) Option {
	return func(c *Classifier) { c.llmThreshold = v }
}

// New creates a Classifier. Without a chat provider only the rule tier and
// the pre-assignment gate operate.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		logger:         slog.Default(),
		timeout:        30 * time.Second,
		maxSampleBytes: 3072,
		llmThreshold:   0.4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Input is one classification request.
type Input struct {
	Path        string
	Filename    string
	Text        string
	PreAssigned document.Category
}

// Classify resolves a single input. Pre-assigned in-set categories win
// outright; the LLM tier runs when text and a provider exist; the rule tier
// is the fallback and always yields an in-set category.
func (c *Classifier) Classify(ctx context.Context, in Input) Result {
	if document.ValidCategory(string(in.PreAssigned)) {
		metrics.ClassifiedTotal.WithLabelValues(string(in.PreAssigned), "preassigned").Inc()
		return Result{Category: in.PreAssigned, Confidence: 1.0, Tier: "preassigned"}
	}

	if c.chat != nil && in.Text != "" {
		if res, ok := c.classifyLLM(ctx, in); ok {
			metrics.ClassifiedTotal.WithLabelValues(string(res.Category), "llm").Inc()
			return res
		}
	}

	res := c.classifyRules(in.Path, in.Filename)
	metrics.ClassifiedTotal.WithLabelValues(string(res.Category), "rules").Inc()
	return res
}

// ClassifyBatch rule-classifies every input first and escalates only the
// low-confidence items to the LLM tier.
func (c *Classifier) ClassifyBatch(ctx context.Context, inputs []Input) []Result {
	results := make([]Result, len(inputs))

	for i, in := range inputs {
		if document.ValidCategory(string(in.PreAssigned)) {
			metrics.ClassifiedTotal.WithLabelValues(string(in.PreAssigned), "preassigned").Inc()
			results[i] = Result{Category: in.PreAssigned, Confidence: 1.0, Tier: "preassigned"}
			continue
		}
		results[i] = c.classifyRules(in.Path, in.Filename)
	}

	if c.chat == nil {
		for i := range results {
			if results[i].Tier == "rules" {
				metrics.ClassifiedTotal.WithLabelValues(string(results[i].Category), "rules").Inc()
			}
		}
		return results
	}

	for i, in := range inputs {
		if results[i].Tier != "rules" {
			continue
		}
		if results[i].Confidence >= c.llmThreshold || in.Text == "" {
			metrics.ClassifiedTotal.WithLabelValues(string(results[i].Category), "rules").Inc()
			continue
		}
		if res, ok := c.classifyLLM(ctx, in); ok {
			metrics.ClassifiedTotal.WithLabelValues(string(res.Category), "llm").Inc()
			results[i] = res
			continue
		}
		metrics.ClassifiedTotal.WithLabelValues(string(results[i].Category), "rules").Inc()
	}

	return results
}
