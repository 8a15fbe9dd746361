// Package app assembles the ingestion stack from configuration: path
// resolver, handler registry, providers, stores, and the orchestrator. The
// CLI commands share this wiring.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/christoph-ui/lakecore/internal/chunker"
	"github.com/christoph-ui/lakecore/internal/classify"
	"github.com/christoph-ui/lakecore/internal/config"
	"github.com/christoph-ui/lakecore/internal/crawler"
	"github.com/christoph-ui/lakecore/internal/entity"
	"github.com/christoph-ui/lakecore/internal/handlers"
	"github.com/christoph-ui/lakecore/internal/lakehouse/graphstore"
	"github.com/christoph-ui/lakecore/internal/lakehouse/tabular"
	"github.com/christoph-ui/lakecore/internal/lakehouse/vector"
	"github.com/christoph-ui/lakecore/internal/mapper"
	"github.com/christoph-ui/lakecore/internal/objectstore"
	"github.com/christoph-ui/lakecore/internal/orchestrator"
	"github.com/christoph-ui/lakecore/internal/paths"
	"github.com/christoph-ui/lakecore/internal/progress"
	"github.com/christoph-ui/lakecore/internal/providers"
)

// App holds the long-lived collaborators of the ingestion core. Stores are
// per customer and opened per run.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	resolver *paths.Resolver
	registry *handlers.Registry
	chat     providers.ChatProvider
	embedder providers.EmbeddingsProvider
	graph    *graphstore.Store
}

// New builds the application from configuration. Missing LLM or embedding
// credentials disable those paths; a missing graph host disables the graph.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var resolverOpts []paths.Option
	if cfg.Deployment.Type != "" {
		resolverOpts = append(resolverOpts, paths.WithMode(paths.Mode(cfg.Deployment.Type)))
	}
	if cfg.Deployment.SelfHostedBase != "" {
		resolverOpts = append(resolverOpts, paths.WithSelfHostedBase(cfg.Deployment.SelfHostedBase))
	}
	if cfg.Deployment.DevelopmentBase != "" {
		resolverOpts = append(resolverOpts, paths.WithDevelopmentBase(cfg.Deployment.DevelopmentBase))
	}
	resolver := paths.NewResolver(resolverOpts...)

	registry := handlers.DefaultRegistry(handlers.Options{
		OCREnabled: true,
		Logger:     logger,
	})

	a := &App{
		cfg:      cfg,
		logger:   logger,
		resolver: resolver,
		registry: registry,
	}

	if cfg.LLM.APIKey != "" {
		chatOpts := []providers.ChatOption{}
		if cfg.LLM.Model != "" {
			chatOpts = append(chatOpts, providers.WithChatModel(cfg.LLM.Model))
		}
		if cfg.LLM.BaseURL != "" {
			chatOpts = append(chatOpts, providers.WithChatBaseURL(cfg.LLM.BaseURL))
		}
		a.chat = providers.NewOpenAIChatProvider(cfg.LLM.APIKey, chatOpts...)
	}

	if cfg.Embeddings.APIKey != "" || cfg.Embeddings.BaseURL != "" {
		embedOpts := []providers.EmbeddingsOption{}
		if cfg.Embeddings.Model != "" {
			embedOpts = append(embedOpts, providers.WithEmbeddingsModel(cfg.Embeddings.Model))
		}
		if cfg.Embeddings.BaseURL != "" {
			embedOpts = append(embedOpts, providers.WithEmbeddingsEndpoint(cfg.Embeddings.BaseURL))
		}
		a.embedder = providers.NewHTTPEmbeddingsProvider(cfg.Embeddings.APIKey, embedOpts...)
	}

	if cfg.Graph.Host != "" {
		a.graph = graphstore.New(
			graphstore.WithConfig(graphstore.Config{
				Host:        cfg.Graph.Host,
				Port:        cfg.Graph.Port,
				GraphName:   cfg.Graph.GraphName,
				PasswordEnv: cfg.Graph.PasswordEnv,
				MaxRetries:  3,
				RetryDelay:  graphstore.DefaultConfig().RetryDelay,
				MaxHops:     cfg.Graph.MaxHops,
			}),
			graphstore.WithLogger(logger),
		)
		if err := a.graph.Start(ctx); err != nil {
			logger.Warn("graph database unreachable, graph loading disabled", "error", err)
		}
	}

	return a, nil
}

// Resolver exposes the path resolver for commands that need raw locations.
func (a *App) Resolver() *paths.Resolver {
	return a.resolver
}

// Close releases long-lived connections.
func (a *App) Close(ctx context.Context) {
	if a.graph != nil {
		if err := a.graph.Stop(ctx); err != nil {
			a.logger.Warn("graph shutdown failed", "error", err)
		}
	}
}

// OpenTabular opens the customer's tabular store.
func (a *App) OpenTabular(ctx context.Context, customerID string) (*tabular.Store, error) {
	dir, err := a.resolver.Resolve(customerID, paths.KindTabularRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving tabular root; %w", err)
	}
	return tabular.Open(ctx, dir, a.logger)
}

// OpenVector opens the customer's vector store.
func (a *App) OpenVector(ctx context.Context, customerID string) (*vector.Store, error) {
	dir, err := a.resolver.Resolve(customerID, paths.KindVectorRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving vector root; %w", err)
	}
	return vector.Open(ctx, dir, vector.WithLogger(a.logger))
}

// PullStaging mirrors the customer's bucket prefix into the upload staging
// directory and returns that directory. Disabled without a configured bucket.
func (a *App) PullStaging(ctx context.Context, customerID string) (string, error) {
	if a.cfg.ObjectStore.Bucket == "" {
		return "", nil
	}

	staging, err := a.resolver.Resolve(customerID, paths.KindUploadStaging)
	if err != nil {
		return "", fmt.Errorf("resolving upload staging; %w", err)
	}

	client, err := objectstore.NewS3Client(ctx, objectstore.Config{
		Endpoint: a.cfg.ObjectStore.Endpoint,
		Region:   a.cfg.ObjectStore.Region,
	}, a.logger)
	if err != nil {
		return "", err
	}

	puller := objectstore.NewPuller(client, a.cfg.ObjectStore.Bucket, a.logger)
	if _, err := puller.Pull(ctx, customerID, staging); err != nil {
		return "", fmt.Errorf("pulling staged uploads; %w", err)
	}
	return staging, nil
}

// Ingest runs one ingestion for the customer over the given folders. With a
// configured upload bucket the staged objects are pulled first and their
// staging directory joins the crawl.
func (a *App) Ingest(ctx context.Context, customerID string, folders []crawler.Folder, observers ...progress.Observer) (progress.Progress, error) {
	if staging, err := a.PullStaging(ctx, customerID); err != nil {
		a.logger.Warn("staging pull failed, ingesting local folders only", "error", err)
	} else if staging != "" {
		folders = append(folders, crawler.Folder{Path: staging})
	}

	tab, err := a.OpenTabular(ctx, customerID)
	if err != nil {
		return progress.Progress{}, err
	}
	defer tab.Close()

	vec, err := a.OpenVector(ctx, customerID)
	if err != nil {
		return progress.Progress{}, err
	}
	defer vec.Close()

	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithMaxWorkers(a.cfg.Ingest.MaxWorkers),
		orchestrator.WithEmbedBatchSize(a.cfg.Ingest.EmbedBatchSize),
		orchestrator.WithStoreRetries(a.cfg.Ingest.StoreRetries),
		orchestrator.WithResolver(a.resolver),
		orchestrator.WithCrawler(crawler.New(a.registry,
			crawler.WithMaxDepth(a.cfg.Ingest.MaxDepth),
			crawler.WithMaxFileSize(a.cfg.Ingest.MaxFileSize),
			crawler.WithLogger(a.logger))),
		orchestrator.WithChunker(chunker.New(chunker.Options{
			MaxChunkSize: a.cfg.Chunker.MaxChunkSize,
			MinChunkSize: a.cfg.Chunker.MinChunkSize,
			Overlap:      a.cfg.Chunker.Overlap,
		})),
	}

	classifierOpts := []classify.Option{classify.WithLogger(a.logger)}
	if a.chat != nil {
		classifierOpts = append(classifierOpts, classify.WithChatProvider(a.chat))
		if a.cfg.LLM.ClassifyTimeout > 0 {
			classifierOpts = append(classifierOpts, classify.WithTimeout(a.cfg.LLM.ClassifyTimeout))
		}
	}
	opts = append(opts, orchestrator.WithClassifier(classify.New(classifierOpts...)))

	if a.chat != nil {
		handlerStore, err := a.resolver.Resolve(customerID, paths.KindHandlerStore)
		if err != nil {
			return progress.Progress{}, fmt.Errorf("resolving handler store; %w", err)
		}
		generatorOpts := []handlers.GeneratorOption{handlers.WithGeneratorLogger(a.logger)}
		if a.cfg.LLM.GenerateTimeout > 0 {
			generatorOpts = append(generatorOpts, handlers.WithGeneratorTimeout(a.cfg.LLM.GenerateTimeout))
		}
		generator := handlers.NewGenerator(a.chat, handlerStore, generatorOpts...)
		if err := generator.LoadPersisted(a.registry); err != nil {
			a.logger.Warn("failed to load persisted handlers", "error", err)
		}
		opts = append(opts,
			orchestrator.WithGenerator(generator),
			orchestrator.WithMapper(mapper.New(a.chat, mapper.WithLogger(a.logger))))
		if a.cfg.Ingest.MetadataEnrichment {
			opts = append(opts, orchestrator.WithChatProvider(a.chat))
		}
	}

	if a.cfg.Ingest.EntityExtraction {
		opts = append(opts, orchestrator.WithEntityExtractor(entity.New(entity.WithLogger(a.logger))))
	}
	if a.embedder != nil {
		opts = append(opts, orchestrator.WithEmbeddings(a.embedder))
	}
	if a.graph != nil {
		opts = append(opts, orchestrator.WithGraphStore(a.graph))
	}

	o := orchestrator.New(a.registry, tab, vec, opts...)
	return o.Run(ctx, orchestrator.Request{
		CustomerID: customerID,
		Folders:    folders,
		Observers:  observers,
	})
}
