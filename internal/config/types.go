package config

import (
	"fmt"
	"time"
)

// Config is the typed configuration for the ingestion core.
type Config struct {
	Deployment  DeploymentConfig  `mapstructure:"deployment"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	Chunker     ChunkerConfig     `mapstructure:"chunker"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Embeddings  EmbeddingsConfig  `mapstructure:"embeddings"`
	Graph       GraphConfig       `mapstructure:"graph"`
	ObjectStore ObjectStoreConfig `mapstructure:"objectstore"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// DeploymentConfig controls path resolution.
type DeploymentConfig struct {
	// Type is one of managed, self_hosted, development. Empty means
	// auto-detect.
	Type string `mapstructure:"type"`

	// SelfHostedBase overrides the host-persistent base prefix.
	SelfHostedBase string `mapstructure:"self_hosted_base"`

	// DevelopmentBase overrides the project-local base prefix.
	DevelopmentBase string `mapstructure:"development_base"`
}

// IngestConfig controls the orchestrator.
type IngestConfig struct {
	// MaxWorkers bounds concurrent extraction and embedding work.
	MaxWorkers int `mapstructure:"max_workers"`

	// MaxFileSize is the crawl size ceiling in bytes.
	MaxFileSize int64 `mapstructure:"max_file_size"`

	// MaxDepth bounds folder recursion during crawl.
	MaxDepth int `mapstructure:"max_depth"`

	// EmbedBatchSize is the number of chunks per embedding call.
	EmbedBatchSize int `mapstructure:"embed_batch_size"`

	// EntityExtraction toggles the entity extraction sub-stage.
	EntityExtraction bool `mapstructure:"entity_extraction"`

	// MetadataEnrichment toggles the LLM metadata extraction sub-stage.
	MetadataEnrichment bool `mapstructure:"metadata_enrichment"`

	// StoreRetries is the retry budget for transient store write failures.
	StoreRetries int `mapstructure:"store_retries"`
}

// ChunkerConfig controls text chunking.
type ChunkerConfig struct {
	MaxChunkSize int `mapstructure:"max_chunk_size"`
	MinChunkSize int `mapstructure:"min_chunk_size"`
	Overlap      int `mapstructure:"overlap"`
}

// LLMConfig configures the chat provider shared by the classifier, adaptive
// handler generator, structured extractor, and metadata enrichment. Missing
// credentials disable the LLM paths; nothing fails.
type LLMConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`

	ClassifyTimeout time.Duration `mapstructure:"classify_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
}

// EmbeddingsConfig configures the embeddings provider.
type EmbeddingsConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
	Model   string `mapstructure:"model"`
}

// GraphConfig configures the graph store connection. An empty host disables
// the graph phase.
type GraphConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	GraphName   string `mapstructure:"graph_name"`
	PasswordEnv string `mapstructure:"password_env"`
	MaxHops     int    `mapstructure:"max_hops"`
}

// ObjectStoreConfig configures the optional S3 staging pull.
type ObjectStoreConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
}

// LoggingConfig configures slog output.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Deployment.Type {
	case "", "managed", "self_hosted", "development":
	default:
		return fmt.Errorf("invalid deployment.type %q", c.Deployment.Type)
	}

	if c.Ingest.MaxWorkers <= 0 {
		return fmt.Errorf("ingest.max_workers must be positive, got %d", c.Ingest.MaxWorkers)
	}
	if c.Ingest.EmbedBatchSize <= 0 {
		return fmt.Errorf("ingest.embed_batch_size must be positive, got %d", c.Ingest.EmbedBatchSize)
	}
	if c.Chunker.MaxChunkSize <= c.Chunker.MinChunkSize {
		return fmt.Errorf("chunker.max_chunk_size (%d) must exceed chunker.min_chunk_size (%d)",
			c.Chunker.MaxChunkSize, c.Chunker.MinChunkSize)
	}
	if c.Chunker.Overlap >= c.Chunker.MaxChunkSize {
		return fmt.Errorf("chunker.overlap (%d) must be below chunker.max_chunk_size (%d)",
			c.Chunker.Overlap, c.Chunker.MaxChunkSize)
	}
	if c.Graph.MaxHops <= 0 {
		return fmt.Errorf("graph.max_hops must be positive, got %d", c.Graph.MaxHops)
	}

	return nil
}
