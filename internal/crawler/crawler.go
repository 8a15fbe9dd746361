// Package crawler walks customer folders and produces FileDescriptors for
// the pipeline. Dot-prefixed entries are skipped, oversized files are
// excluded, and extensions without a registered handler are collected for
// the adaptive generator.
package crawler

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/handlers"
)

// Folder is one crawl root with an optional pre-assigned category.
type Folder struct {
	Path     string
	Category document.Category
}

// Result holds the crawl output for one run.
type Result struct {
	Files []*document.FileDescriptor

	// UnknownFormats collects extensions with no registered handler, for a
	// later adaptive-generation attempt.
	UnknownFormats map[string]bool

	// Skipped counts files excluded by the size ceiling.
	Skipped int
}

// Crawler discovers files under the configured limits.
type Crawler struct {
	maxDepth    int
	maxFileSize int64
	registry    *handlers.Registry
	logger      *slog.Logger
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithMaxDepth bounds directory recursion.
func WithMaxDepth(d int) Option {
	return func(c *Crawler) { c.maxDepth = d }
}

// WithMaxFileSize sets the per-file size ceiling in bytes.
func WithMaxFileSize(n int64) Option {
	return func(c *Crawler) { c.maxFileSize = n }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Crawler) { c.logger = l }
}

// New creates a Crawler consulting the given handler registry for known
// extensions.
func New(registry *handlers.Registry, opts ...Option) *Crawler {
	c := &Crawler{
		maxDepth:    20,
		maxFileSize: 100 << 20,
		registry:    registry,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Crawl walks every folder and returns the discovered descriptors. A missing
// or unreadable folder is a user-input error and fails the crawl.
func (c *Crawler) Crawl(ctx context.Context, folders []Folder) (*Result, error) {
	result := &Result{UnknownFormats: make(map[string]bool)}

	for _, folder := range folders {
		info, err := os.Stat(folder.Path)
		if err != nil {
			return nil, fmt.Errorf("crawling %s; %w", folder.Path, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("crawling %s; not a directory", folder.Path)
		}

		if err := c.walkFolder(ctx, folder, result); err != nil {
			return nil, err
		}
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})
	return result, nil
}

func (c *Crawler) walkFolder(ctx context.Context, folder Folder, result *Result) error {
	root := filepath.Clean(folder.Path)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("crawling %s; %w", path, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		name := d.Name()
		if strings.HasPrefix(name, ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if depthOf(root, path) > c.maxDepth {
				return filepath.SkipDir
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return fmt.Errorf("inspecting %s; %w", path, err)
		}
		if info.Size() > c.maxFileSize {
			c.logger.Warn("skipping oversized file",
				"path", path, "size", info.Size(), "ceiling", c.maxFileSize)
			result.Skipped++
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if _, known := c.registry.Get(ext); !known && ext != "" {
			result.UnknownFormats[ext] = true
		}

		result.Files = append(result.Files, &document.FileDescriptor{
			ID:          document.DocumentID(path),
			Path:        path,
			Name:        name,
			Extension:   ext,
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			MIMEType:    mimeTypeFor(ext),
			PreAssigned: folder.Category,
			Status:      document.ExtractionPending,
			Metadata:    make(map[string]any),
		})
		return nil
	})
}

// depthOf counts directory levels below the crawl root.
func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// mimeFallbacks covers extensions the platform table often lacks.
var mimeFallbacks = map[string]string{
	".csv":  "text/csv",
	".tsv":  "text/tab-separated-values",
	".eml":  "message/rfc822",
	".msg":  "application/vnd.ms-outlook",
	".dxf":  "image/vnd.dxf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".odt":  "application/vnd.oasis.opendocument.text",
	".ods":  "application/vnd.oasis.opendocument.spreadsheet",
	".md":   "text/markdown",
}

func mimeTypeFor(ext string) string {
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	if t, ok := mimeFallbacks[ext]; ok {
		return t
	}
	return "application/octet-stream"
}
