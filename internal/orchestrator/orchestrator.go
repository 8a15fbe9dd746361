// Package orchestrator drives one ingestion run through its stages: crawl,
// extract, classify, process, embed, and load. Stages are barriers; within
// the extraction stage files fan out over a bounded worker group.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/christoph-ui/lakecore/internal/chunker"
	"github.com/christoph-ui/lakecore/internal/classify"
	"github.com/christoph-ui/lakecore/internal/crawler"
	"github.com/christoph-ui/lakecore/internal/deployment"
	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/entity"
	"github.com/christoph-ui/lakecore/internal/handlers"
	"github.com/christoph-ui/lakecore/internal/lakehouse/graphstore"
	"github.com/christoph-ui/lakecore/internal/lakehouse/tabular"
	"github.com/christoph-ui/lakecore/internal/lakehouse/vector"
	"github.com/christoph-ui/lakecore/internal/mapper"
	"github.com/christoph-ui/lakecore/internal/metrics"
	"github.com/christoph-ui/lakecore/internal/paths"
	"github.com/christoph-ui/lakecore/internal/progress"
	"github.com/christoph-ui/lakecore/internal/providers"
)

// Orchestrator runs ingestions for one customer deployment. Stores and
// providers are injected; optional collaborators degrade to no-ops when
// absent.
type Orchestrator struct {
	registry *handlers.Registry
	tab      *tabular.Store
	vec      *vector.Store

	crawl      *crawler.Crawler
	classifier *classify.Classifier
	chunk      *chunker.Chunker
	generator  *handlers.Generator
	entities   *entity.Extractor
	schemaMap  *mapper.Mapper
	embedder   providers.EmbeddingsProvider
	chat       providers.ChatProvider
	graph      *graphstore.Store
	resolver   *paths.Resolver

	logger         *slog.Logger
	maxWorkers     int
	embedBatchSize int
	storeRetries   int
	enrichMetadata bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithMaxWorkers bounds extraction concurrency.
func WithMaxWorkers(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxWorkers = n
		}
	}
}

// WithEmbedBatchSize sets the number of chunks per embedding call.
func WithEmbedBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.embedBatchSize = n
		}
	}
}

// WithStoreRetries sets the retry budget for transient store writes.
func WithStoreRetries(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.storeRetries = n
		}
	}
}

// WithCrawler overrides the default crawler.
func WithCrawler(c *crawler.Crawler) Option {
	return func(o *Orchestrator) { o.crawl = c }
}

// WithClassifier overrides the default classifier.
func WithClassifier(c *classify.Classifier) Option {
	return func(o *Orchestrator) { o.classifier = c }
}

// WithChunker overrides the default chunker.
func WithChunker(c *chunker.Chunker) Option {
	return func(o *Orchestrator) { o.chunk = c }
}

// WithGenerator enables adaptive handler generation for unknown formats.
func WithGenerator(g *handlers.Generator) Option {
	return func(o *Orchestrator) { o.generator = g }
}

// WithEntityExtractor enables the entity extraction sub-stage.
func WithEntityExtractor(e *entity.Extractor) Option {
	return func(o *Orchestrator) { o.entities = e }
}

// WithMapper enables structured extraction for products documents.
func WithMapper(m *mapper.Mapper) Option {
	return func(o *Orchestrator) { o.schemaMap = m }
}

// WithEmbeddings enables the embedding stage.
func WithEmbeddings(p providers.EmbeddingsProvider) Option {
	return func(o *Orchestrator) { o.embedder = p }
}

// WithChatProvider enables LLM metadata enrichment during processing.
func WithChatProvider(p providers.ChatProvider) Option {
	return func(o *Orchestrator) {
		o.chat = p
		o.enrichMetadata = p != nil
	}
}

// WithGraphStore enables graph loading. A nil or disconnected store is safe;
// its writes are no-ops.
func WithGraphStore(g *graphstore.Store) Option {
	return func(o *Orchestrator) { o.graph = g }
}

// WithResolver enables deployment descriptor loading.
func WithResolver(r *paths.Resolver) Option {
	return func(o *Orchestrator) { o.resolver = r }
}

// New creates an Orchestrator over the given registry and stores.
func New(registry *handlers.Registry, tab *tabular.Store, vec *vector.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry:       registry,
		tab:            tab,
		vec:            vec,
		logger:         slog.Default(),
		maxWorkers:     4,
		embedBatchSize: 32,
		storeRetries:   3,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.crawl == nil {
		o.crawl = crawler.New(registry, crawler.WithLogger(o.logger))
	}
	if o.classifier == nil {
		o.classifier = classify.New(classify.WithLogger(o.logger))
	}
	if o.chunk == nil {
		o.chunk = chunker.New(chunker.DefaultOptions())
	}
	return o
}

// Request describes one ingestion run.
type Request struct {
	CustomerID string
	Folders    []crawler.Folder

	// Observers receive progress snapshots for the run.
	Observers []progress.Observer
}

// Run executes one ingestion end to end and returns the final progress
// snapshot. Per-file failures are recorded on the snapshot; the returned
// error is non-nil only when the run itself failed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (progress.Progress, error) {
	runID := uuid.NewString()
	tracker := progress.NewTracker(runID, req.CustomerID, o.logger)
	for _, obs := range req.Observers {
		tracker.OnProgress(obs)
	}

	o.logger.Info("starting ingestion run",
		"run_id", runID, "customer_id", req.CustomerID, "folders", len(req.Folders))

	err := o.run(ctx, req, tracker)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			tracker.AppendError("cancelled")
		} else {
			tracker.AppendError(err.Error())
		}
		tracker.SetStatus(progress.StatusFailed)
		metrics.RunsTotal.WithLabelValues("failed").Inc()
		o.logger.Error("ingestion run failed", "run_id", runID, "error", err)
		return tracker.Snapshot(), err
	}

	tracker.SetStatus(progress.StatusComplete)
	metrics.RunsTotal.WithLabelValues("complete").Inc()

	snap := tracker.Snapshot()
	o.logger.Info("ingestion run complete",
		"run_id", runID,
		"total", snap.Total, "processed", snap.Processed, "failed", snap.Failed)
	return snap, nil
}

func (o *Orchestrator) run(ctx context.Context, req Request, tracker *progress.Tracker) error {
	deploymentCtx := o.loadDeployment(req.CustomerID)

	tracker.SetStatus(progress.StatusCrawling)
	result, err := o.crawlStage(ctx, req, tracker)
	if err != nil {
		return err
	}

	if err := o.extractStage(ctx, req.CustomerID, result, tracker); err != nil {
		return err
	}

	tracker.SetStatus(progress.StatusClassifying)
	o.classifyStage(ctx, result.Files, tracker)

	tracker.SetStatus(progress.StatusProcessing)
	if err := o.structuredStage(ctx, req.CustomerID, deploymentCtx, result.Files, tracker); err != nil {
		return err
	}
	o.processStage(ctx, result.Files, tracker)
	o.graphStage(ctx, req.CustomerID, result.Files, tracker)

	tracker.SetStatus(progress.StatusEmbedding)
	records, err := o.embedStage(ctx, result.Files, tracker)
	if err != nil {
		return err
	}

	tracker.SetStatus(progress.StatusLoading)
	return o.loadStage(ctx, req.CustomerID, result.Files, records, tracker)
}

// loadDeployment fetches the customer's deployment descriptor. Absence or a
// parse failure disables structured extraction without failing the run.
func (o *Orchestrator) loadDeployment(customerID string) *document.DeploymentContext {
	if o.resolver == nil || customerID == "" {
		return nil
	}
	deploymentCtx, err := deployment.LoadForCustomer(o.resolver, customerID)
	if err != nil {
		o.logger.Warn("deployment descriptor unreadable, structured extraction disabled",
			"customer_id", customerID, "error", err)
		return nil
	}
	return deploymentCtx
}

func (o *Orchestrator) crawlStage(ctx context.Context, req Request, tracker *progress.Tracker) (*crawler.Result, error) {
	defer observeStage("crawl")()
	tracker.SetPhase("crawling folders")

	result, err := o.crawl.Crawl(ctx, req.Folders)
	if err != nil {
		return nil, fmt.Errorf("crawling; %w", err)
	}

	tracker.SetTotal(len(result.Files))
	for ext := range result.UnknownFormats {
		o.logger.Info("unknown format discovered", "extension", ext)
	}
	return result, nil
}

// extractStage runs text extraction over a bounded worker group. Unknown
// extensions get one adaptive generation attempt; files stay unsupported when
// generation is unavailable or fails.
func (o *Orchestrator) extractStage(ctx context.Context, customerID string, result *crawler.Result, tracker *progress.Tracker) error {
	defer observeStage("extract")()
	tracker.SetPhase("extracting text")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxWorkers)

	for _, fd := range result.Files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o.extractOne(gctx, fd)
			switch fd.Status {
			case document.ExtractionFailed:
				tracker.FileFailed(fd.Name, fd.LastError)
			case document.ExtractionUnsupported:
				tracker.SetCurrentFile(fd.Name)
			default:
				tracker.FileProcessed(fd.Name)
			}
			metrics.FilesProcessedTotal.WithLabelValues(string(fd.Status)).Inc()
			return nil
		})
	}
	return g.Wait()
}

func (o *Orchestrator) extractOne(ctx context.Context, fd *document.FileDescriptor) {
	handler, ok := o.registry.Get(fd.Extension)
	if !ok {
		if o.generator == nil || !o.generator.Available() {
			fd.Status = document.ExtractionUnsupported
			return
		}
		generated, err := o.generator.Generate(ctx, o.registry, fd.Path, fd.Extension)
		if err != nil {
			o.logger.Warn("adaptive handler generation failed",
				"extension", fd.Extension, "error", err)
			fd.Status = document.ExtractionUnsupported
			return
		}
		handler = generated
	}

	text, err := handler.Extract(ctx, fd.Path)
	if err != nil {
		fd.Status = document.ExtractionFailed
		fd.LastError = err.Error()
		metrics.HandlerExtractionsTotal.WithLabelValues(handler.Name(), "error").Inc()
		return
	}

	fd.Text = text
	if len(text) == 0 {
		fd.Status = document.ExtractionEmpty
	} else {
		fd.Status = document.ExtractionOK
	}
	metrics.HandlerExtractionsTotal.WithLabelValues(handler.Name(), "ok").Inc()
}

// classifyStage assigns categories single-threaded so progress ordering
// stays predictable.
func (o *Orchestrator) classifyStage(ctx context.Context, files []*document.FileDescriptor, tracker *progress.Tracker) {
	defer observeStage("classify")()
	tracker.SetPhase("classifying documents")

	for _, fd := range files {
		if !extracted(fd) {
			continue
		}
		result := o.classifier.Classify(ctx, classify.Input{
			Path:        fd.Path,
			Filename:    fd.Name,
			Text:        fd.Text,
			PreAssigned: fd.PreAssigned,
		})
		fd.Detected = result.Category
		tracker.SetCurrentFile(fd.Name)
		tracker.CountCategory(string(result.Category))
	}
}

// structuredStage runs the schema mapper over eligible products documents
// and commits the merged output to the standard tables before embedding.
func (o *Orchestrator) structuredStage(ctx context.Context, customerID string, deploymentCtx *document.DeploymentContext, files []*document.FileDescriptor, tracker *progress.Tracker) error {
	if o.schemaMap == nil || deploymentCtx == nil {
		return nil
	}
	defer observeStage("structured")()
	tracker.SetPhase("structured extraction")

	var merged mapper.Output
	for _, fd := range files {
		if fd.Status != document.ExtractionOK || !mapper.Eligible(deploymentCtx, fd.Detected) {
			continue
		}
		out, err := o.schemaMap.Extract(ctx, deploymentCtx, fd)
		if err != nil {
			o.logger.Warn("structured extraction failed", "file", fd.Name, "error", err)
			continue
		}
		merged.Merge(out)
	}
	if merged.Empty() {
		return nil
	}

	for table, rows := range map[string][]map[string]any{
		"products":             merged.Products,
		"syndication_products": merged.SyndicationProducts,
		"data_quality_audit":   merged.DataQuality,
	} {
		if len(rows) == 0 {
			continue
		}
		if err := o.withRetry(ctx, func() error {
			return o.tab.Append(ctx, table, customerID, rows)
		}); err != nil {
			return fmt.Errorf("writing %s; %w", table, err)
		}
	}
	return nil
}

// processStage chunks each extracted document and optionally enriches its
// metadata via the LLM.
func (o *Orchestrator) processStage(ctx context.Context, files []*document.FileDescriptor, tracker *progress.Tracker) {
	defer observeStage("process")()
	tracker.SetPhase("chunking")

	for _, fd := range files {
		if fd.Status != document.ExtractionOK {
			continue
		}
		fd.Chunks = o.chunk.Chunk(fd.ID, fd.Text, fd.Extension)
		tracker.SetCurrentFile(fd.Name)

		if o.enrichMetadata {
			o.enrichOne(ctx, fd)
		}
	}
}

// graphStage extracts entities and loads them with their relationships into
// the graph. Disabled without an extractor; a disconnected graph store
// swallows the writes.
func (o *Orchestrator) graphStage(ctx context.Context, customerID string, files []*document.FileDescriptor, tracker *progress.Tracker) {
	if o.entities == nil {
		return
	}
	defer observeStage("entities")()
	tracker.SetPhase("entity extraction")

	for _, fd := range files {
		if fd.Status != document.ExtractionOK {
			continue
		}
		ents, rels := o.entities.Extract(fd.Text, fd.ID)
		if len(ents) == 0 {
			continue
		}
		if fd.Metadata == nil {
			fd.Metadata = make(map[string]any)
		}
		fd.Metadata["entity_count"] = len(ents)

		if o.graph == nil {
			continue
		}
		if err := o.graph.UpsertDocument(ctx, customerID, fd.ID, fd.Name, fd.Detected); err != nil {
			o.logger.Warn("graph document upsert failed", "file", fd.Name, "error", err)
			continue
		}
		for _, ent := range ents {
			if err := o.graph.UpsertEntity(ctx, customerID, ent); err != nil {
				o.logger.Warn("graph entity upsert failed", "entity", ent.Text, "error", err)
				continue
			}
			if err := o.graph.LinkMention(ctx, customerID, fd.ID, ent.ID()); err != nil {
				o.logger.Warn("graph mention link failed", "entity", ent.Text, "error", err)
			}
		}
		for _, rel := range rels {
			if err := o.graph.UpsertRelationship(ctx, customerID, rel); err != nil {
				o.logger.Warn("graph relationship upsert failed", "type", rel.Type, "error", err)
			}
		}
	}
}

// embedStage flattens every chunk, embeds in batches, and scatters vectors
// back in ordinal order.
func (o *Orchestrator) embedStage(ctx context.Context, files []*document.FileDescriptor, tracker *progress.Tracker) ([]document.EmbeddingRecord, error) {
	if o.embedder == nil || !o.embedder.Available() {
		return nil, nil
	}
	defer observeStage("embed")()
	tracker.SetPhase("embedding chunks")

	var records []document.EmbeddingRecord
	for _, fd := range files {
		if fd.Status != document.ExtractionOK {
			continue
		}
		for _, chunk := range fd.Chunks {
			records = append(records, document.EmbeddingRecord{
				ChunkID:    chunk.ID,
				DocumentID: fd.ID,
				Filename:   fd.Name,
				Category:   fd.Detected,
				Ordinal:    chunk.Ordinal,
				Text:       chunk.Text,
				CharCount:  chunk.CharCount,
			})
		}
	}
	if len(records) == 0 {
		return nil, nil
	}

	for start := 0; start < len(records); start += o.embedBatchSize {
		end := start + o.embedBatchSize
		if end > len(records) {
			end = len(records)
		}
		texts := make([]string, 0, end-start)
		for _, rec := range records[start:end] {
			texts = append(texts, rec.Text)
		}

		var vectors [][]float32
		err := o.withRetry(ctx, func() error {
			var embedErr error
			vectors, embedErr = o.embedder.EmbedPassages(ctx, texts)
			return embedErr
		})
		if err != nil {
			return nil, fmt.Errorf("embedding batch at %d; %w", start, err)
		}
		if len(vectors) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d passages", len(vectors), len(texts))
		}
		for i, vec := range vectors {
			records[start+i].Vector = vec
		}
	}
	return records, nil
}

// loadStage groups documents by category and writes documents, chunks, and
// embeddings to the lakehouse.
func (o *Orchestrator) loadStage(ctx context.Context, customerID string, files []*document.FileDescriptor, records []document.EmbeddingRecord, tracker *progress.Tracker) error {
	defer observeStage("load")()
	tracker.SetPhase("loading lakehouse")

	byCategory := make(map[document.Category][]*document.FileDescriptor)
	for _, fd := range files {
		if !extracted(fd) {
			continue
		}
		byCategory[fd.Detected] = append(byCategory[fd.Detected], fd)
	}

	for category, group := range byCategory {
		var chunks []document.Chunk
		for _, fd := range group {
			chunks = append(chunks, fd.Chunks...)
		}

		if err := o.withRetry(ctx, func() error {
			return o.tab.AppendDocuments(ctx, customerID, category, group)
		}); err != nil {
			return fmt.Errorf("loading %s documents; %w", category, err)
		}
		if len(chunks) > 0 {
			if err := o.withRetry(ctx, func() error {
				return o.tab.AppendChunks(ctx, customerID, category, chunks)
			}); err != nil {
				return fmt.Errorf("loading %s chunks; %w", category, err)
			}
		}
	}

	if len(records) > 0 {
		err := o.withRetry(ctx, func() error {
			appendErr := o.vec.Append(ctx, customerID, records)
			if errors.Is(appendErr, vector.ErrDimensionMismatch) {
				// Invariant violation; retrying cannot help.
				return backoffAbort{appendErr}
			}
			return appendErr
		})
		if err != nil {
			return fmt.Errorf("loading embeddings; %w", err)
		}
	}

	if o.graph != nil {
		if err := o.graph.Flush(ctx); err != nil {
			o.logger.Warn("graph flush failed", "error", err)
		}
	}
	return nil
}

// backoffAbort marks an error as non-retryable inside withRetry.
type backoffAbort struct{ err error }

func (b backoffAbort) Error() string { return b.err.Error() }
func (b backoffAbort) Unwrap() error { return b.err }

// withRetry retries transient failures with exponential backoff. The retry
// budget exhausted, the last error fails the run.
func (o *Orchestrator) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= o.storeRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var abort backoffAbort
		if errors.As(lastErr, &abort) {
			return abort.err
		}
		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
		o.logger.Warn("store write failed, retrying", "attempt", attempt+1, "error", lastErr)
	}
	return lastErr
}

func extracted(fd *document.FileDescriptor) bool {
	return fd.Status == document.ExtractionOK || fd.Status == document.ExtractionEmpty
}

func observeStage(stage string) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}
