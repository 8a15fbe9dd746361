// Package daemon provides the staging watcher daemon command.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/christoph-ui/lakecore/internal/app"
	"github.com/christoph-ui/lakecore/internal/cmdutil"
	"github.com/christoph-ui/lakecore/internal/crawler"
	"github.com/christoph-ui/lakecore/internal/paths"
	"github.com/christoph-ui/lakecore/internal/watcher"
)

var (
	flagCustomers   []string
	flagMetricsAddr string
)

// DaemonCmd watches upload staging directories and ingests settled batches.
var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Watch upload staging and ingest new uploads",
	Long: "Watch upload staging and ingest new uploads.\n\n" +
		"For each configured customer the daemon watches the upload staging " +
		"directory. Once a batch of uploads has settled, an ingestion run " +
		"is started automatically.",
	Example: `  # Watch staging for two customers
  lakecore daemon --customer acme --customer globex`,
	PreRunE: validateDaemon,
	RunE:    runDaemon,
}

func init() {
	DaemonCmd.Flags().StringArrayVar(&flagCustomers, "customer", nil, "customer to watch (repeatable, required)")
	DaemonCmd.Flags().StringVar(&flagMetricsAddr, "metrics-addr", "", "address for the Prometheus metrics endpoint (empty disables)")
	_ = DaemonCmd.MarkFlagRequired("customer")
}

func validateDaemon(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	logger := cmdutil.Logger()

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	w, err := watcher.New(func(runCtx context.Context, customerID, folder string) {
		snap, runErr := a.Ingest(runCtx, customerID, []crawler.Folder{{Path: folder}})
		if runErr != nil {
			logger.Error("triggered ingestion failed",
				"customer_id", customerID, "error", runErr)
			return
		}
		logger.Info("triggered ingestion complete",
			"customer_id", customerID,
			"total", snap.Total, "processed", snap.Processed, "failed", snap.Failed)
	}, watcher.WithLogger(logger))
	if err != nil {
		return err
	}
	defer w.Stop()

	for _, customerID := range flagCustomers {
		staging, err := a.Resolver().Resolve(customerID, paths.KindUploadStaging)
		if err != nil {
			return fmt.Errorf("resolving staging for %s; %w", customerID, err)
		}
		if err := w.WatchCustomer(customerID, staging); err != nil {
			return fmt.Errorf("watching staging for %s; %w", customerID, err)
		}
	}

	if flagMetricsAddr != "" {
		go serveMetrics(logger, flagMetricsAddr)
	}

	if err := w.Start(ctx); err != nil {
		return err
	}
	logger.Info("daemon running", "customers", len(flagCustomers))

	<-ctx.Done()
	logger.Info("daemon shutting down")
	return nil
}

func serveMetrics(logger *slog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics endpoint failed", "error", err)
	}
}
