package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/providers"
)

const metadataSystemPrompt = `You extract document metadata. Respond with a single JSON object:
{"document_type": "...", "entities": ["..."], "date": "...", "language": "de|en|...", "summary": "one sentence"}
Use null for unknown fields. No prose, no code fences.`

// metadataSampleBytes caps the text sent for metadata enrichment.
const metadataSampleBytes = 2048

type documentMetadata struct {
	DocumentType string   `json:"document_type"`
	Entities     []string `json:"entities"`
	Date         string   `json:"date"`
	Language     string   `json:"language"`
	Summary      string   `json:"summary"`
}

// enrichOne asks the LLM for lightweight document metadata and merges it
// into the descriptor. Failures are logged and skipped; enrichment never
// fails a file.
func (o *Orchestrator) enrichOne(ctx context.Context, fd *document.FileDescriptor) {
	sample := document.TruncateBytes(fd.Text, metadataSampleBytes)

	callCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	raw, err := o.chat.Complete(callCtx, providers.ChatRequest{
		System:    metadataSystemPrompt,
		Prompt:    "Filename: " + fd.Name + "\n\nContent:\n" + sample,
		MaxTokens: 300,
	})
	if err != nil {
		o.logger.Debug("metadata enrichment failed", "file", fd.Name, "error", err)
		return
	}

	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var meta documentMetadata
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &meta); err != nil {
		o.logger.Debug("metadata enrichment returned invalid JSON", "file", fd.Name)
		return
	}

	if fd.Metadata == nil {
		fd.Metadata = make(map[string]any)
	}
	if meta.DocumentType != "" {
		fd.Metadata["document_type"] = meta.DocumentType
	}
	if len(meta.Entities) > 0 {
		fd.Metadata["entities"] = meta.Entities
	}
	if meta.Date != "" {
		fd.Metadata["date"] = meta.Date
	}
	if meta.Language != "" {
		fd.Metadata["language"] = meta.Language
	}
	if meta.Summary != "" {
		fd.Metadata["summary"] = meta.Summary
	}
}
