// Package chunker splits extracted document text into embedding-sized
// fragments. The strategy is chosen by file extension: prose paragraphs,
// header-prefixed tabular rows, code boundaries, or packed lines for
// structured markup.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/christoph-ui/lakecore/internal/document"
)

// Strategy names a chunking approach.
type Strategy string

const (
	StrategyProse      Strategy = "prose"
	StrategyTabular    Strategy = "tabular"
	StrategyCode       Strategy = "code"
	StrategyStructured Strategy = "structured"
)

// Options configures chunking behavior.
type Options struct {
	// MaxChunkSize is the maximum chunk length in characters.
	MaxChunkSize int

	// MinChunkSize is the minimum chunk length; when more than one chunk
	// exists, shorter chunks are dropped.
	MinChunkSize int

	// Overlap is the character budget carried over from the tail of the
	// previous prose chunk.
	Overlap int
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: 2000,
		MinChunkSize: 100,
		Overlap:      200,
	}
}

var tabularExts = map[string]bool{
	".csv": true, ".tsv": true, ".xlsx": true, ".xls": true, ".ods": true,
}

var codeExts = map[string]bool{
	".py": true, ".go": true, ".js": true, ".ts": true, ".java": true,
	".c": true, ".cpp": true, ".cs": true, ".rb": true, ".php": true,
	".rs": true, ".kt": true, ".swift": true, ".sh": true, ".sql": true,
}

var structuredExts = map[string]bool{
	".json": true, ".xml": true, ".html": true, ".htm": true,
	".yaml": true, ".yml": true,
}

// ForExtension selects the chunking strategy for a lowercased, dot-prefixed
// extension.
func ForExtension(ext string) Strategy {
	switch {
	case tabularExts[ext]:
		return StrategyTabular
	case codeExts[ext]:
		return StrategyCode
	case structuredExts[ext]:
		return StrategyStructured
	default:
		return StrategyProse
	}
}

// Chunker splits normalized text into chunks.
type Chunker struct {
	opts Options
}

// New creates a Chunker with the given options.
func New(opts Options) *Chunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultOptions().MaxChunkSize
	}
	if opts.Overlap >= opts.MaxChunkSize {
		opts.Overlap = opts.MaxChunkSize / 4
	}
	return &Chunker{opts: opts}
}

// Chunk splits text for the given document using the strategy implied by its
// extension. Empty input yields no chunks; input below the minimum yields a
// single chunk.
func (c *Chunker) Chunk(documentID, text, ext string) []document.Chunk {
	normalized := Normalize(text)
	if normalized == "" {
		return []document.Chunk{}
	}

	if utf8.RuneCountInString(normalized) < c.opts.MinChunkSize {
		return c.assemble(documentID, []string{normalized})
	}

	var parts []string
	switch ForExtension(ext) {
	case StrategyTabular:
		parts = c.chunkTabular(normalized)
	case StrategyCode:
		parts = c.chunkCode(normalized)
	case StrategyStructured:
		parts = c.chunkStructured(normalized)
	default:
		parts = c.chunkProse(normalized)
	}

	// When multiple chunks exist, fragments below the minimum carry too
	// little signal to embed.
	if len(parts) > 1 {
		kept := parts[:0]
		for _, p := range parts {
			if utf8.RuneCountInString(p) >= c.opts.MinChunkSize {
				kept = append(kept, p)
			}
		}
		parts = kept
	}

	return c.assemble(documentID, parts)
}

// assemble turns raw chunk texts into document.Chunk values with stable ids.
func (c *Chunker) assemble(documentID string, parts []string) []document.Chunk {
	chunks := make([]document.Chunk, 0, len(parts))
	for i, text := range parts {
		chunks = append(chunks, document.Chunk{
			ID:         document.ChunkID(documentID, i),
			DocumentID: documentID,
			Ordinal:    i,
			Text:       text,
			CharCount:  utf8.RuneCountInString(text),
			WordCount:  len(strings.Fields(text)),
		})
	}
	return chunks
}

// Normalize collapses runs of newlines to two and runs of spaces to one.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var b strings.Builder
	b.Grow(len(text))

	newlines := 0
	spaces := 0
	for _, r := range text {
		switch r {
		case '\n':
			spaces = 0
			newlines++
			if newlines <= 2 {
				b.WriteRune(r)
			}
		case ' ', '\t':
			newlines = 0
			spaces++
			if spaces <= 1 {
				b.WriteByte(' ')
			}
		default:
			newlines = 0
			spaces = 0
			b.WriteRune(r)
		}
	}

	return strings.TrimSpace(b.String())
}
