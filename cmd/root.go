// Package cmd wires the lakecore CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	daemoncmd "github.com/christoph-ui/lakecore/cmd/daemon"
	ingestcmd "github.com/christoph-ui/lakecore/cmd/ingest"
	maintaincmd "github.com/christoph-ui/lakecore/cmd/maintain"
	versioncmd "github.com/christoph-ui/lakecore/cmd/version"
	"github.com/christoph-ui/lakecore/internal/cmdutil"
	"github.com/christoph-ui/lakecore/internal/config"
	"github.com/christoph-ui/lakecore/internal/logging"
)

var logManager *logging.Manager

var lakecoreCmd = &cobra.Command{
	Use:   "lakecore",
	Short: "Customer data ingestion and lakehouse core",
	Long: "Lakecore ingests heterogeneous customer documents into a local lakehouse.\n\n" +
		"Files are crawled, extracted per format, classified into a fixed category set, " +
		"chunked, optionally mapped onto standard product schemas, embedded, and loaded " +
		"into tabular, vector, and graph stores partitioned per customer.",
	PersistentPreRunE: runInitialize,
}

func init() {
	logManager = logging.NewManager()
	cmdutil.SetLogManager(logManager)

	lakecoreCmd.AddCommand(ingestcmd.IngestCmd)
	lakecoreCmd.AddCommand(daemoncmd.DaemonCmd)
	lakecoreCmd.AddCommand(maintaincmd.MaintainCmd)
	lakecoreCmd.AddCommand(versioncmd.VersionCmd)
}

// runInitialize upgrades logging once the configuration is readable. Config
// errors are deferred to the subcommand so version keeps working on a broken
// config file.
func runInitialize(cmd *cobra.Command, args []string) error {
	logger := logManager.Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Warn("configuration unreadable, continuing with defaults", "error", err)
		return nil
	}

	level := logging.ParseLevelOrDefault(cfg.Logging.Level)
	if cfg.Logging.File != "" {
		if err := logManager.Upgrade(cfg.Logging.File, level); err != nil {
			logger.Warn("failed to enable file logging, continuing with stderr only", "error", err)
		}
	} else {
		logManager.SetLevel(level)
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	lakecoreCmd.SilenceErrors = true
	lakecoreCmd.SilenceUsage = true

	defer func() { _ = logManager.Close() }()

	err := lakecoreCmd.Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
