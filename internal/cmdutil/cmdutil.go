// Package cmdutil holds helpers shared by the CLI subcommands.
package cmdutil

import (
	"fmt"
	"log/slog"

	"github.com/christoph-ui/lakecore/internal/config"
	"github.com/christoph-ui/lakecore/internal/logging"
)

var logManager *logging.Manager

// SetLogManager registers the root command's logging manager so subcommands
// log through the same handler.
func SetLogManager(m *logging.Manager) {
	logManager = m
}

// Logger returns the shared logger, falling back to the default.
func Logger() *slog.Logger {
	if logManager != nil {
		return logManager.Logger()
	}
	return slog.Default()
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration; %w", err)
	}
	return cfg, nil
}
