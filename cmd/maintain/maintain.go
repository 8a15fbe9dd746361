// Package maintain provides lakehouse maintenance subcommands.
package maintain

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/christoph-ui/lakecore/internal/app"
	"github.com/christoph-ui/lakecore/internal/cmdutil"
)

var (
	flagCustomer  string
	flagTable     string
	flagRetention time.Duration
)

// MaintainCmd is the parent for lakehouse maintenance operations.
var MaintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Lakehouse maintenance operations",
	Long: "Lakehouse maintenance operations.\n\n" +
		"Compaction reclaims free pages in the tabular and vector stores. " +
		"Vacuum additionally removes rows older than a retention window " +
		"from one table before reclaiming space.",
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Compact the customer's tabular and vector stores",
	Example: `  # Reclaim space for one customer
  lakecore maintain compact --customer acme`,
	PreRunE: validateMaintain,
	RunE:    runCompact,
}

var vacuumCmd = &cobra.Command{
	Use:   "vacuum",
	Short: "Remove rows beyond the retention window",
	Example: `  # Drop document rows older than 30 days
  lakecore maintain vacuum --customer acme --table general_documents --retention 720h`,
	PreRunE: validateVacuum,
	RunE:    runVacuum,
}

func init() {
	MaintainCmd.PersistentFlags().StringVar(&flagCustomer, "customer", "", "customer identifier (required)")
	_ = MaintainCmd.MarkPersistentFlagRequired("customer")

	vacuumCmd.Flags().StringVar(&flagTable, "table", "", "table to vacuum (required)")
	vacuumCmd.Flags().DurationVar(&flagRetention, "retention", 30*24*time.Hour, "retention window")
	_ = vacuumCmd.MarkFlagRequired("table")

	MaintainCmd.AddCommand(compactCmd)
	MaintainCmd.AddCommand(vacuumCmd)
}

func validateMaintain(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	return nil
}

func validateVacuum(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	if flagRetention <= 0 {
		return fmt.Errorf("retention must be positive, got %s", flagRetention)
	}
	return nil
}

func runCompact(cmd *cobra.Command, args []string) error {
	logger := cmdutil.Logger()
	ctx := cmd.Context()

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	tab, err := a.OpenTabular(ctx, flagCustomer)
	if err != nil {
		return err
	}
	defer tab.Close()
	if err := tab.Compact(ctx); err != nil {
		return fmt.Errorf("compacting tabular store; %w", err)
	}

	vec, err := a.OpenVector(ctx, flagCustomer)
	if err != nil {
		return err
	}
	defer vec.Close()
	if err := vec.Compact(ctx); err != nil {
		return fmt.Errorf("compacting vector store; %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Compacted stores for %s\n", flagCustomer)
	return nil
}

func runVacuum(cmd *cobra.Command, args []string) error {
	logger := cmdutil.Logger()
	ctx := cmd.Context()

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	tab, err := a.OpenTabular(ctx, flagCustomer)
	if err != nil {
		return err
	}
	defer tab.Close()

	deleted, err := tab.Vacuum(ctx, flagTable, flagRetention)
	if err != nil {
		return fmt.Errorf("vacuuming %s; %w", flagTable, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d rows from %s\n", deleted, flagTable)
	return nil
}
