package cmd

import (
	"context"

	"catalog-sync/core/scan"

	"github.com/spf13/cobra"
)

var refreshThreshold int

// refreshCmd re-probes listings that are close to selling out.
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Re-check listings with low stock",
	Long: `Probes every catalog entry whose stock is below the threshold, one at a
time. Entries that are gone or sold out are removed; the rest are updated in place.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(cmd, func(ctx context.Context, rt *runtime) (scan.Summary, error) {
			threshold := refreshThreshold
			if threshold <= 0 {
				threshold = rt.cfg.Sync.LowStockThreshold
			}
			return rt.engine.RefreshLowStock(ctx, threshold)
		})
	},
}

// dedupeCmd collapses duplicate identifiers in the persisted catalog.
var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove duplicate identifiers from the catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(cmd, func(ctx context.Context, rt *runtime) (scan.Summary, error) {
			return rt.engine.Dedupe(ctx)
		})
	},
}

func init() {
	RootCmd.AddCommand(refreshCmd, dedupeCmd)
	refreshCmd.Flags().IntVar(&refreshThreshold, "threshold", 0, "Refresh entries with stock below this (default from sync.low_stock_threshold)")
}
