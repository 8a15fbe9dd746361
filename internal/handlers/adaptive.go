package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/christoph-ui/lakecore/internal/metrics"
	"github.com/christoph-ui/lakecore/internal/providers"
)

// probeFloor is the minimum text a synthesized handler must produce from the
// sample file to be accepted.
const probeFloor = 20

// sampleWindow is the byte window fed into format analysis and the prompt.
const sampleWindow = 4096

// SubprocessHandler runs a persisted handler script in an isolated
// interpreter process. The script prints extracted text to stdout.
type SubprocessHandler struct {
	script  string
	handler string
}

var _ Handler = (*SubprocessHandler)(nil)

// NewSubprocessHandler wraps a persisted handler script.
func NewSubprocessHandler(script string) *SubprocessHandler {
	base := filepath.Base(script)
	return &SubprocessHandler{
		script:  script,
		handler: "adaptive:" + strings.TrimSuffix(base, filepath.Ext(base)),
	}
}

func (h *SubprocessHandler) Name() string { return h.handler }

func (h *SubprocessHandler) Extract(ctx context.Context, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "python3", h.script, path)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("running %s on %s; %w", h.handler, path, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Generator synthesizes handlers for unknown extensions and persists them
// under the customer's handler store.
type Generator struct {
	chat    providers.ChatProvider
	store   string
	logger  *slog.Logger
	timeout time.Duration

	// mu serializes generation; registry reads stay lock-free on this path.
	mu      sync.Mutex
	session map[string]Handler
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithGeneratorLogger sets the logger.
func WithGeneratorLogger(l *slog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = l }
}

// WithGeneratorTimeout bounds one generation call.
func WithGeneratorTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.timeout = d }
}

// NewGenerator creates a Generator writing into the given handler store
// directory.
func NewGenerator(chat providers.ChatProvider, store string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		chat:    chat,
		store:   store,
		logger:  slog.Default(),
		timeout: 60 * time.Second,
		session: make(map[string]Handler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether generation can run at all.
func (g *Generator) Available() bool {
	return g != nil && g.chat != nil && g.chat.Available()
}

// LoadPersisted registers every previously synthesized handler found in the
// store. The filename encodes the extension: "<ext>_handler.py".
func (g *Generator) LoadPersisted(registry *Registry) error {
	if g.store == "" {
		return nil
	}

	matches, err := filepath.Glob(filepath.Join(g.store, "*_handler.*"))
	if err != nil {
		return fmt.Errorf("scanning handler store %s; %w", g.store, err)
	}

	for _, script := range matches {
		base := filepath.Base(script)
		stem := strings.TrimSuffix(base, filepath.Ext(base))
		ext := "." + strings.TrimSuffix(stem, "_handler")
		if ext == "." {
			continue
		}
		registry.Register(ext, NewSubprocessHandler(script))
		g.logger.Debug("loaded persisted handler", "extension", ext, "script", script)
	}
	return nil
}

// Generate synthesizes, validates, probes, persists, and registers a handler
// for the given file's extension. A nil error guarantees the handler is
// registered and ready.
func (g *Generator) Generate(ctx context.Context, registry *Registry, path, ext string) (Handler, error) {
	ext = normalizeExt(ext)

	g.mu.Lock()
	defer g.mu.Unlock()

	if h, ok := g.session[ext]; ok {
		return h, nil
	}

	sample, err := readSample(path)
	if err != nil {
		return nil, err
	}
	analysis := Analyze(sample)

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	source, err := g.synthesize(ctx, ext, analysis)
	if err != nil {
		metrics.ProviderCallsTotal.WithLabelValues(g.chat.Name(), "error").Inc()
		return nil, err
	}
	metrics.ProviderCallsTotal.WithLabelValues(g.chat.Name(), "ok").Inc()

	if err := validateSource(source); err != nil {
		return nil, fmt.Errorf("validating synthesized handler for %s; %w", ext, err)
	}

	script, err := g.probeAndPersist(ctx, ext, source, path)
	if err != nil {
		return nil, err
	}

	h := NewSubprocessHandler(script)
	registry.Register(ext, h)
	g.session[ext] = h
	metrics.AdaptiveHandlersGenerated.Inc()
	g.logger.Info("synthesized handler", "extension", ext, "script", script)

	return h, nil
}

const generatorSystemPrompt = `You write self-contained Python 3 file handlers.
The handler is a class with an extract(self, path) method returning the file's text content as a string, or None when nothing is extractable.
Use only the Python standard library.
End the script with a __main__ block that instantiates the class, calls extract(sys.argv[1]), and prints the result.
Respond with Python source only, no explanation and no markdown fences.`

func (g *Generator) synthesize(ctx context.Context, ext string, a Analysis) (string, error) {
	var hints []string
	if a.XMLPreamble {
		hints = append(hints, "starts with an XML preamble")
	}
	if a.JSONLike {
		hints = append(hints, "brace-first, JSON-like")
	}
	if a.MarkupTags {
		hints = append(hints, "contains markup tags")
	}
	if a.TabDensity > 0.01 {
		hints = append(hints, "tab-separated columns")
	}
	if a.CommaDensity > 0.02 {
		hints = append(hints, "comma-separated columns")
	}
	if len(a.DomainKeys) > 0 {
		hints = append(hints, "product-data markers: "+strings.Join(a.DomainKeys, ", "))
	}

	prompt := fmt.Sprintf(
		"File extension: %s\nEncoding: %s\nStructural hints: %s\n\nSample (first %d bytes):\n%s",
		ext, a.Encoding, strings.Join(hints, "; "), sampleWindow, a.SampleText)

	raw, err := g.chat.Complete(ctx, providers.ChatRequest{
		System:    generatorSystemPrompt,
		Prompt:    prompt,
		MaxTokens: 4096,
	})
	if err != nil {
		return "", fmt.Errorf("synthesizing handler for %s; %w", ext, err)
	}

	source := strings.TrimSpace(raw)
	source = strings.TrimPrefix(source, "```python")
	source = strings.TrimPrefix(source, "```")
	source = strings.TrimSuffix(source, "```")
	return strings.TrimSpace(source), nil
}

// validateSource checks the structural contract: a class with an extract
// method taking a path, plus a runnable entry point.
func validateSource(source string) error {
	if !strings.Contains(source, "class ") {
		return fmt.Errorf("no class definition")
	}
	if !strings.Contains(source, "def extract(") {
		return fmt.Errorf("no extract method")
	}
	if !strings.Contains(source, "__main__") {
		return fmt.Errorf("no entry point")
	}
	return nil
}

// probeAndPersist runs the candidate against the original sample file and,
// when it produces enough text, moves it into the handler store.
func (g *Generator) probeAndPersist(ctx context.Context, ext, source, samplePath string) (string, error) {
	scratch, err := os.MkdirTemp("", "lakecore-handler-*")
	if err != nil {
		return "", fmt.Errorf("creating probe scratch dir; %w", err)
	}
	defer os.RemoveAll(scratch)

	candidate := filepath.Join(scratch, "candidate.py")
	if err := os.WriteFile(candidate, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("writing candidate handler; %w", err)
	}

	cmd := exec.CommandContext(ctx, "python3", candidate, samplePath)
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("probing synthesized handler for %s; %w", ext, err)
	}
	if len(strings.TrimSpace(string(out))) < probeFloor {
		return "", fmt.Errorf("synthesized handler for %s produced %d chars, floor is %d",
			ext, len(strings.TrimSpace(string(out))), probeFloor)
	}

	if err := os.MkdirAll(g.store, 0o755); err != nil {
		return "", fmt.Errorf("creating handler store %s; %w", g.store, err)
	}
	script := filepath.Join(g.store, strings.TrimPrefix(ext, ".")+"_handler.py")
	if err := os.WriteFile(script, []byte(source), 0o644); err != nil {
		return "", fmt.Errorf("persisting handler %s; %w", script, err)
	}
	return script, nil
}

func readSample(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading sample of %s; %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, sampleWindow)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return nil, fmt.Errorf("reading sample of %s; %w", path, err)
	}
	return buf[:n], nil
}
