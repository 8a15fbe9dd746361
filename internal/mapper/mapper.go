// Package mapper extracts structured product records from document text via
// the LLM and projects them onto the declared standard tables. It activates
// only for documents in the products category of customers with a deployment
// context.
package mapper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/metrics"
	"github.com/christoph-ui/lakecore/internal/providers"
)

// maxTextBytes caps the document text sent to the model.
const maxTextBytes = 8192

// defaultCurrency applies when a product record omits its currency.
const defaultCurrency = "EUR"

// Output holds rows destined for the three standard tables.
type Output struct {
	Products            []map[string]any
	SyndicationProducts []map[string]any
	DataQuality         []map[string]any
}

// Merge appends other's rows.
func (o *Output) Merge(other Output) {
	o.Products = append(o.Products, other.Products...)
	o.SyndicationProducts = append(o.SyndicationProducts, other.SyndicationProducts...)
	o.DataQuality = append(o.DataQuality, other.DataQuality...)
}

// Empty reports whether no rows were produced.
func (o *Output) Empty() bool {
	return len(o.Products) == 0 && len(o.SyndicationProducts) == 0 && len(o.DataQuality) == 0
}

// Mapper drives structured extraction for one customer.
type Mapper struct {
	chat    providers.ChatProvider
	logger  *slog.Logger
	timeout time.Duration
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mapper) { m.logger = l }
}

// WithTimeout bounds each extraction call.
func WithTimeout(d time.Duration) Option {
	return func(m *Mapper) { m.timeout = d }
}

// New creates a Mapper over the given chat provider.
func New(chat providers.ChatProvider, opts ...Option) *Mapper {
	m := &Mapper{
		chat:    chat,
		logger:  slog.Default(),
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Eligible reports whether a document qualifies for structured extraction.
func Eligible(deployment *document.DeploymentContext, category document.Category) bool {
	return deployment != nil && category == document.CategoryProducts
}

type llmOutput struct {
	Products            []map[string]any `json:"products"`
	SyndicationProducts []map[string]any `json:"syndication_products"`
	DataQuality         []map[string]any `json:"data_quality"`
}

// Extract maps one document's text onto the standard tables. Records missing
// their primary key are dropped with a warning; per-document failures return
// an error the caller logs without failing the run.
func (m *Mapper) Extract(ctx context.Context, deployment *document.DeploymentContext, fd *document.FileDescriptor) (Output, error) {
	if m.chat == nil {
		return Output{}, fmt.Errorf("structured extraction requires a chat provider")
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	text := document.TruncateBytes(fd.Text, maxTextBytes)

	raw, err := m.chat.Complete(ctx, providers.ChatRequest{
		System:    structuredSystemPrompt,
		Prompt:    buildPrompt(deployment, fd.Name, text),
		MaxTokens: 4096,
	})
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(m.chat.Name(), "error").Inc()
		return Output{}, fmt.Errorf("structured extraction for %s; %w", fd.Name, err)
	}
	metrics.ProviderCallsTotal.WithLabelValues(m.chat.Name(), "ok").Inc()

	var parsed llmOutput
	if err := json.Unmarshal([]byte(trimFences(raw)), &parsed); err != nil {
		return Output{}, fmt.Errorf("parsing structured extraction response for %s; %w", fd.Name, err)
	}

	out := m.validate(parsed, fd)
	m.audit(&out, fd, len(parsed.Products))
	return out, nil
}

// validate projects raw records onto their schemas, applying defaults and
// dropping rows without primary keys.
func (m *Mapper) validate(parsed llmOutput, fd *document.FileDescriptor) Output {
	var out Output

	for _, raw := range parsed.Products {
		row, ok := coerceRecord(raw, productsSchema)
		if !ok {
			m.logger.Warn("dropping product record without primary key",
				"file", fd.Name, "pk", productsSchema.primaryKey)
			continue
		}
		if _, has := row["currency"]; !has {
			row["currency"] = defaultCurrency
		}
		out.Products = append(out.Products, row)
	}

	for _, raw := range parsed.SyndicationProducts {
		// Syndication ids default to the product's GTIN when omitted.
		if _, has := raw["id"]; !has {
			if gtin, ok := raw["gtin"]; ok {
				raw["id"] = gtin
			}
		}
		row, ok := coerceRecord(raw, syndicationSchema)
		if !ok {
			m.logger.Warn("dropping syndication record without primary key",
				"file", fd.Name, "pk", syndicationSchema.primaryKey)
			continue
		}
		if _, has := row["currency"]; !has {
			row["currency"] = defaultCurrency
		}
		out.SyndicationProducts = append(out.SyndicationProducts, row)
	}

	for _, raw := range parsed.DataQuality {
		if _, has := raw["id"]; !has {
			raw["id"] = uuid.NewString()
		}
		row, ok := coerceRecord(raw, dataQualitySchema)
		if !ok {
			continue
		}
		out.DataQuality = append(out.DataQuality, row)
	}

	return out
}

// audit guarantees at least one data-quality row per document that yielded
// product records.
func (m *Mapper) audit(out *Output, fd *document.FileDescriptor, rawCount int) {
	if len(out.Products) == 0 || len(out.DataQuality) > 0 {
		return
	}
	status := "ok"
	if rawCount > len(out.Products) {
		status = "partial"
	}
	out.DataQuality = append(out.DataQuality, map[string]any{
		"id":          uuid.NewString(),
		"check_name":  "structured_extraction",
		"status":      status,
		"details":     fmt.Sprintf("%d of %d records accepted", len(out.Products), rawCount),
		"source_file": fd.Name,
		"checked_at":  time.Now().UTC().Format(time.RFC3339),
	})
}

const structuredSystemPrompt = `You map raw product document text onto three standard tables.
Respond with a JSON object of the shape:
{"products": [...], "syndication_products": [...], "data_quality": [...]}
products rows require "gtin"; syndication_products rows require "id" (use the GTIN); data_quality rows describe checks performed.
Use the customer's transformation rules verbatim where they apply.
Respond with JSON only.`

func buildPrompt(deployment *document.DeploymentContext, filename, text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Company: %s\nIndustry: %s\nDeclared source format: %s\n\n",
		deployment.CompanyName, deployment.Industry, deployment.SourceFormat)
	if deployment.TransformationRules != "" {
		fmt.Fprintf(&b, "Transformation rules:\n%s\n\n", deployment.TransformationRules)
	}
	fmt.Fprintf(&b, "File: %s\n\nContent:\n%s", filename, text)
	return b.String()
}

func trimFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	return strings.TrimSpace(cleaned)
}
