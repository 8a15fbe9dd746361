package orchestrator

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christoph-ui/lakecore/internal/crawler"
	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/entity"
	"github.com/christoph-ui/lakecore/internal/handlers"
	"github.com/christoph-ui/lakecore/internal/lakehouse/tabular"
	"github.com/christoph-ui/lakecore/internal/lakehouse/vector"
	"github.com/christoph-ui/lakecore/internal/progress"
	"github.com/christoph-ui/lakecore/internal/providers"
)

type stubEmbedder struct {
	dim   int
	calls int
	fail  bool
}

func (s *stubEmbedder) Name() string                         { return "stub-embed" }
func (s *stubEmbedder) Type() providers.ProviderType         { return providers.ProviderTypeEmbeddings }
func (s *stubEmbedder) Available() bool                      { return true }
func (s *stubEmbedder) RateLimit() providers.RateLimitConfig { return providers.RateLimitConfig{} }
func (s *stubEmbedder) ModelName() string                    { return "stub" }

func (s *stubEmbedder) EmbedPassage(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedPassages(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (s *stubEmbedder) EmbedPassages(_ context.Context, texts []string) ([][]float32, error) {
	s.calls++
	if s.fail {
		return nil, errors.New("embedder down")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, s.dim)
		for j := range vec {
			vec[j] = float32((len(text)+i+j)%7) + 1
		}
		var sum float64
		for _, v := range vec {
			sum += float64(v) * float64(v)
		}
		norm := float32(math.Sqrt(sum))
		for j := range vec {
			vec[j] /= norm
		}
		out[i] = vec
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return s.EmbedPassage(ctx, text)
}

type failingHandler struct{}

func (failingHandler) Name() string { return "failing" }
func (failingHandler) Extract(context.Context, string) (string, error) {
	return "", errors.New("parse error")
}

func newTestOrchestrator(t *testing.T, opts ...Option) (*Orchestrator, *tabular.Store, *vector.Store, *handlers.Registry) {
	t.Helper()
	ctx := context.Background()

	tab, err := tabular.Open(ctx, t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { tab.Close() })

	vec, err := vector.Open(ctx, t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { vec.Close() })

	registry := handlers.DefaultRegistry(handlers.Options{})
	return New(registry, tab, vec, opts...), tab, vec, registry
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunSingleCSV(t *testing.T) {
	embedder := &stubEmbedder{dim: 16}
	o, tab, vec, _ := newTestOrchestrator(t, WithEmbeddings(embedder))

	dir := t.TempDir()
	writeFile(t, dir, "katalog.csv", "sku,name,price\n1,FRCDM-40,43.00\n2,FRCDM-63,55.00\n3,FRCDM-80,61.00\n")

	var snapshots []progress.Progress
	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: dir, Category: document.CategoryProducts}},
		Observers:  []progress.Observer{func(p progress.Progress) { snapshots = append(snapshots, p) }},
	})
	require.NoError(t, err)

	assert.Equal(t, progress.StatusComplete, snap.Status)
	assert.Equal(t, 1, snap.Total)
	assert.Equal(t, 1, snap.Processed)
	assert.Zero(t, snap.Failed)
	assert.InDelta(t, 100.0, snap.Percent(), 0.001)
	assert.Equal(t, 1, snap.Categories["products"])
	assert.NotEmpty(t, snapshots)

	ctx := context.Background()
	docs, err := tab.RowCount(ctx, "products_documents", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, docs)

	chunks, err := tab.RowCount(ctx, "products_chunks", "acme")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, chunks, 1)

	embeddings, err := vec.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, chunks, embeddings)
}

func TestRunEmptyFolder(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t)

	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: t.TempDir()}},
	})
	require.NoError(t, err)
	assert.Equal(t, progress.StatusComplete, snap.Status)
	assert.Zero(t, snap.Total)
}

func TestRunUnknownExtensionWithoutGenerator(t *testing.T) {
	o, tab, vec, _ := newTestOrchestrator(t)

	dir := t.TempDir()
	writeFile(t, dir, "data.xyz", "opaque payload")

	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: dir}},
	})
	require.NoError(t, err)

	assert.Equal(t, progress.StatusComplete, snap.Status)
	assert.Equal(t, 1, snap.Total)
	assert.Zero(t, snap.Processed)
	assert.Zero(t, snap.Failed)

	ctx := context.Background()
	tables, err := tab.Tables(ctx)
	require.NoError(t, err)
	assert.NotContains(t, tables, "general_documents")

	count, err := vec.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunPerFileFailureDoesNotFailRun(t *testing.T) {
	o, _, _, registry := newTestOrchestrator(t)
	registry.Register(".bad", failingHandler{})

	dir := t.TempDir()
	writeFile(t, dir, "broken.bad", "content")
	writeFile(t, dir, "fine.txt", "Ein ganz normales Dokument mit genug Text für einen Chunk.")

	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: dir}},
	})
	require.NoError(t, err)

	assert.Equal(t, progress.StatusComplete, snap.Status)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 1, snap.Processed)
	assert.Equal(t, 1, snap.Failed)
	require.NotEmpty(t, snap.Errors)
	assert.Contains(t, snap.Errors[0], "parse error")
}

func TestRunMissingFolderFailsRun(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t)

	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: "/nonexistent/folder"}},
	})
	require.Error(t, err)
	assert.Equal(t, progress.StatusFailed, snap.Status)
}

func TestRunCancellation(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t)

	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "some text")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var notified bool
	snap, err := o.Run(ctx, Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: dir}},
		Observers:  []progress.Observer{func(progress.Progress) { notified = true }},
	})
	require.Error(t, err)
	assert.Equal(t, progress.StatusFailed, snap.Status)
	assert.Contains(t, snap.Errors, "cancelled")
	assert.True(t, notified)
}

func TestRunWithoutEmbedderSkipsVectors(t *testing.T) {
	o, tab, vec, _ := newTestOrchestrator(t)

	dir := t.TempDir()
	writeFile(t, dir, "notiz.txt", "Ein kurzer Text, der trotzdem geladen werden soll.")

	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: dir}},
	})
	require.NoError(t, err)
	assert.Equal(t, progress.StatusComplete, snap.Status)

	ctx := context.Background()
	docs, err := tab.RowCount(ctx, "general_documents", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, docs)

	count, err := vec.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestRunEmbedderFailureFailsRun(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t,
		WithEmbeddings(&stubEmbedder{dim: 8, fail: true}),
		WithStoreRetries(1))

	dir := t.TempDir()
	writeFile(t, dir, "doc.txt", "Genug Text, um mindestens einen Chunk zu erzeugen und einzubetten.")

	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: dir}},
	})
	require.Error(t, err)
	assert.Equal(t, progress.StatusFailed, snap.Status)
}

func TestRunEntityExtractionAnnotatesMetadata(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(t, WithEntityExtractor(entity.New()))

	dir := t.TempDir()
	writeFile(t, dir, "produkt.txt",
		"Der Eaton FRCDM-40 Fehlerstromschutzschalter wird in Bonn vertrieben.")

	snap, err := o.Run(context.Background(), Request{
		CustomerID: "acme",
		Folders:    []crawler.Folder{{Path: dir}},
	})
	require.NoError(t, err)
	assert.Equal(t, progress.StatusComplete, snap.Status)
	assert.Equal(t, 1, snap.Processed)
}

func TestRunReingestDoesNotDuplicate(t *testing.T) {
	o, tab, _, _ := newTestOrchestrator(t)

	dir := t.TempDir()
	writeFile(t, dir, "stabil.txt", "Unveränderter Inhalt, der zweimal ingestiert wird.")

	req := Request{CustomerID: "acme", Folders: []crawler.Folder{{Path: dir}}}
	for i := 0; i < 2; i++ {
		_, err := o.Run(context.Background(), req)
		require.NoError(t, err)
	}

	docs, err := tab.RowCount(context.Background(), "general_documents", "acme")
	require.NoError(t, err)
	assert.Equal(t, 1, docs)
}
