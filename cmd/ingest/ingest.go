// Package ingest provides the one-shot ingestion command.
package ingest

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/christoph-ui/lakecore/internal/app"
	"github.com/christoph-ui/lakecore/internal/cmdutil"
	"github.com/christoph-ui/lakecore/internal/crawler"
	"github.com/christoph-ui/lakecore/internal/document"
	"github.com/christoph-ui/lakecore/internal/progress"
)

var (
	flagCustomer string
	flagFolders  []string
	flagCategory string
)

// IngestCmd runs one ingestion over the given folders.
var IngestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest customer folders into the lakehouse",
	Long: "Ingest customer folders into the lakehouse.\n\n" +
		"Crawls each folder, extracts text per format, classifies documents, " +
		"chunks and embeds them, and loads the results into the customer's " +
		"tabular, vector, and graph stores.",
	Example: `  # Ingest two folders for one customer
  lakecore ingest --customer acme --folder /data/uploads --folder /data/archive

  # Pre-assign a category to every file in the folder
  lakecore ingest --customer acme --folder /data/catalogs --category products`,
	PreRunE: validateIngest,
	RunE:    runIngest,
}

func init() {
	IngestCmd.Flags().StringVar(&flagCustomer, "customer", "", "customer identifier (required)")
	IngestCmd.Flags().StringArrayVar(&flagFolders, "folder", nil, "folder to ingest (repeatable, required)")
	IngestCmd.Flags().StringVar(&flagCategory, "category", "", "pre-assigned category for all folders")
	_ = IngestCmd.MarkFlagRequired("customer")
	_ = IngestCmd.MarkFlagRequired("folder")
}

func validateIngest(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if flagCategory != "" && !document.ValidCategory(flagCategory) {
		return fmt.Errorf("invalid category %q; valid categories: tax, legal, products, hr, correspondence, general", flagCategory)
	}
	return nil
}

func runIngest(cmd *cobra.Command, args []string) error {
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
	defer a.Close(ctx)

	folders := make([]crawler.Folder, 0, len(flagFolders))
	for _, path := range flagFolders {
		folders = append(folders, crawler.Folder{
			Path:     path,
			Category: document.Category(flagCategory),
		})
	}

	out := cmd.OutOrStdout()
	var lastPhase string
	observer := func(p progress.Progress) {
		if p.Phase != lastPhase && p.Phase != "" {
			lastPhase = p.Phase
			fmt.Fprintf(out, "%s (%d/%d)\n", p.Phase, p.Processed+p.Failed, p.Total)
		}
	}

	snap, err := a.Ingest(ctx, flagCustomer, folders, observer)
	if err != nil {
		return fmt.Errorf("ingestion failed; %w", err)
	}

	fmt.Fprintf(out, "Run %s complete: %d files, %d processed, %d failed\n",
		snap.RunID, snap.Total, snap.Processed, snap.Failed)
	for category, count := range snap.Categories {
		fmt.Fprintf(out, "  %s: %d\n", category, count)
	}
	for _, msg := range snap.Errors {
		fmt.Fprintf(out, "  error: %s\n", msg)
	}
	return nil
}
