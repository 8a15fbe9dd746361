package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if cfg.Ingest.MaxDepth != 20 {
		t.Errorf("MaxDepth = %d, want 20", cfg.Ingest.MaxDepth)
	}
	if cfg.Ingest.EmbedBatchSize != 32 {
		t.Errorf("EmbedBatchSize = %d, want 32", cfg.Ingest.EmbedBatchSize)
	}
	if cfg.LLM.ClassifyTimeout != 30*time.Second {
		t.Errorf("ClassifyTimeout = %v, want 30s", cfg.LLM.ClassifyTimeout)
	}
}

func TestLoadFromPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
deployment:
  type: development
ingest:
  max_workers: 8
chunker:
  max_chunk_size: 1500
  min_chunk_size: 50
  overlap: 100
graph:
  host: localhost
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}

	if cfg.Ingest.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d, want 8", cfg.Ingest.MaxWorkers)
	}
	if cfg.Chunker.MaxChunkSize != 1500 {
		t.Errorf("MaxChunkSize = %d, want 1500", cfg.Chunker.MaxChunkSize)
	}
	// Defaults still apply for unset keys.
	if cfg.Graph.Port != 6379 {
		t.Errorf("Graph.Port = %d, want default 6379", cfg.Graph.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad deployment type", func(c *Config) { c.Deployment.Type = "cloud" }},
		{"zero workers", func(c *Config) { c.Ingest.MaxWorkers = 0 }},
		{"zero batch", func(c *Config) { c.Ingest.EmbedBatchSize = 0 }},
		{"min above max chunk", func(c *Config) { c.Chunker.MinChunkSize = 5000 }},
		{"overlap above max", func(c *Config) { c.Chunker.Overlap = 10000 }},
		{"zero hops", func(c *Config) { c.Graph.MaxHops = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
