// Package config loads the typed lakecore configuration from YAML files and
// environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix    = "LAKECORE"
	envConfigDir = "LAKECORE_CONFIG_DIR"
)

// Load reads and returns the typed configuration. Config files are searched
// in priority order:
//  1. Directory specified by LAKECORE_CONFIG_DIR
//  2. ~/.config/lakecore/
//  3. Current working directory
//
// A missing config file is fine; defaults plus environment variables apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if envPath := os.Getenv(envConfigDir); envPath != "" {
		v.AddConfigPath(envPath)
	}
	if home := os.Getenv("HOME"); home != "" {
		v.AddConfigPath(filepath.Join(home, ".config", "lakecore"))
	}
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config; %w", err)
		}
	}

	return unmarshal(v)
}

// LoadFromPath reads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config from %s; %w", path, err)
	}

	return unmarshal(v)
}

// Default returns the configuration using defaults only.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg, _ := unmarshal(v)
	return cfg
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config; %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config; %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.type", "")
	v.SetDefault("deployment.self_hosted_base", "/var/lib/lakecore")
	v.SetDefault("deployment.development_base", "./data")

	v.SetDefault("ingest.max_workers", 4)
	v.SetDefault("ingest.max_file_size", int64(100*1024*1024))
	v.SetDefault("ingest.max_depth", 20)
	v.SetDefault("ingest.embed_batch_size", 32)
	v.SetDefault("ingest.entity_extraction", true)
	v.SetDefault("ingest.metadata_enrichment", false)
	v.SetDefault("ingest.store_retries", 3)

	v.SetDefault("chunker.max_chunk_size", 2000)
	v.SetDefault("chunker.min_chunk_size", 100)
	v.SetDefault("chunker.overlap", 200)

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.classify_timeout", 30*time.Second)
	v.SetDefault("llm.generate_timeout", 60*time.Second)

	v.SetDefault("embeddings.api_key", "")
	v.SetDefault("embeddings.base_url", "")
	v.SetDefault("embeddings.model", "multilingual-e5-large")

	v.SetDefault("graph.host", "")
	v.SetDefault("graph.port", 6379)
	v.SetDefault("graph.graph_name", "lakecore")
	v.SetDefault("graph.password_env", "LAKECORE_GRAPH_PASSWORD")
	v.SetDefault("graph.max_hops", 3)

	v.SetDefault("objectstore.endpoint", "")
	v.SetDefault("objectstore.region", "eu-central-1")
	v.SetDefault("objectstore.bucket", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", "")
}
