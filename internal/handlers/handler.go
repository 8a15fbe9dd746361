// Package handlers maps file extensions to text extractors. Built-in
// handlers cover the common office and data formats; the adaptive generator
// synthesizes handlers for everything else when a model credential exists.
package handlers

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Handler extracts plain text from one file format. An empty result with a
// nil error means the file genuinely holds no extractable text.
type Handler interface {
	// Name returns the handler's unique identifier.
	Name() string

	// Extract reads the file at path and returns its text content.
	Extract(ctx context.Context, path string) (string, error)
}

// Registry maps lowercased, dot-prefixed extensions to handlers. Reads are
// safe for concurrent use; registration is last-writer-wins.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		logger:   logger,
	}
}

// Register binds an extension to a handler, replacing any previous binding.
func (r *Registry) Register(ext string, h Handler) {
	ext = normalizeExt(ext)

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, exists := r.handlers[ext]; exists && prev.Name() != h.Name() {
		r.logger.Debug("replacing handler", "extension", ext,
			"previous", prev.Name(), "handler", h.Name())
	}
	r.handlers[ext] = h
}

// Get returns the handler bound to an extension.
func (r *Registry) Get(ext string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[normalizeExt(ext)]
	return h, ok
}

// Extensions returns the sorted set of registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for ext := range r.handlers {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Options configures the built-in handler set.
type Options struct {
	// OCRFloor is the minimum text-layer length below which PDF extraction
	// falls back to OCR.
	OCRFloor int

	// OCREnabled gates subprocess OCR for PDFs and images.
	OCREnabled bool

	Logger *slog.Logger
}

// DefaultRegistry returns a registry with every built-in handler bound to
// its extensions.
func DefaultRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OCRFloor <= 0 {
		opts.OCRFloor = 50
	}

	r := NewRegistry(opts.Logger)

	text := &TextHandler{}
	for _, ext := range []string{".txt", ".md", ".markdown", ".log", ".rst"} {
		r.Register(ext, text)
	}

	pdf := &PDFHandler{OCRFloor: opts.OCRFloor, OCREnabled: opts.OCREnabled, logger: opts.Logger}
	r.Register(".pdf", pdf)

	office := &OfficeHandler{}
	for _, ext := range []string{".docx", ".odt"} {
		r.Register(ext, office)
	}

	sheet := &SpreadsheetHandler{}
	for _, ext := range []string{".xlsx", ".ods"} {
		r.Register(ext, sheet)
	}
	r.Register(".xls", &LegacySpreadsheetHandler{inner: sheet})

	csv := &CSVHandler{}
	for _, ext := range []string{".csv", ".tsv"} {
		r.Register(ext, csv)
	}

	r.Register(".xml", &XMLHandler{})
	for _, ext := range []string{".html", ".htm"} {
		r.Register(ext, &HTMLHandler{})
	}
	r.Register(".json", &JSONHandler{})
	for _, ext := range []string{".eml", ".msg"} {
		r.Register(ext, &EmailHandler{})
	}

	image := &ImageHandler{OCREnabled: opts.OCREnabled, logger: opts.Logger}
	for _, ext := range []string{".png", ".jpg", ".jpeg", ".tiff", ".tif", ".bmp", ".webp", ".gif"} {
		r.Register(ext, image)
	}

	r.Register(".dxf", &CADHandler{})

	return r
}
