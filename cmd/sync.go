package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"catalog-sync/core/scan"

	"github.com/spf13/cobra"
)

var (
	syncStart     int64
	syncEnd       int64
	syncBatch     int
	syncWindow    int64
	discoverStart int64
	discoverCeil  int64
	discoverStep  int64
)

// syncCmd is the parent command for the scanning operations.
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Scan the remote marketplace into the local catalog",
	Long: `Probes listing identifiers under the configured rate limit and merges the
findings into the persisted catalog batch by batch. Interrupting a scan keeps
every batch merged so far.`,
}

var syncFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Rescan a contiguous identifier range",
	Long: `Scans [start, end] in batches and merges the active listings found into
the catalog. Listings that are not found are left untouched; use refresh to
prune them.

Examples:
  catalog-sync sync full --start 1 --end 120000
  catalog-sync sync full --start 50000 --end 60000 --batch 500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(cmd, func(ctx context.Context, rt *runtime) (scan.Summary, error) {
			batch := syncBatch
			if batch <= 0 {
				batch = rt.cfg.Sync.BatchSize
			}
			return rt.engine.FullRescan(ctx, syncStart, syncEnd, batch)
		})
	},
}

var syncIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Scan the identifiers above the highest known one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(cmd, func(ctx context.Context, rt *runtime) (scan.Summary, error) {
			window, batch := syncWindow, syncBatch
			if window <= 0 {
				window = rt.cfg.Sync.WindowSize
			}
			if batch <= 0 {
				batch = rt.cfg.Sync.BatchSize
			}
			return rt.engine.IncrementalUpdate(ctx, window, batch)
		})
	},
}

var syncDiscoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Sample the identifier space sparsely, then scan the populated ranges",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEngine(cmd, func(ctx context.Context, rt *runtime) (scan.Summary, error) {
			opts := rt.cfg.Sync.DiscoverOptions()
			if discoverStart > 0 {
				opts.Start = discoverStart
			}
			if discoverCeil > 0 {
				opts.Ceiling = discoverCeil
			}
			if discoverStep > 0 {
				opts.Step = discoverStep
			}
			if syncBatch > 0 {
				opts.BatchSize = syncBatch
			}
			return rt.engine.Discover(ctx, opts)
		})
	},
}

// runEngine wires the runtime, runs op until it finishes or the process is
// interrupted, then prints its summary.
func runEngine(cmd *cobra.Command, op func(ctx context.Context, rt *runtime) (scan.Summary, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	sum, err := op(ctx, rt)
	if sum.RunID != "" {
		if perr := printSummary(sum); perr != nil {
			return perr
		}
	}
	return err
}

func init() {
	RootCmd.AddCommand(syncCmd)
	syncCmd.AddCommand(syncFullCmd, syncIncrementalCmd, syncDiscoverCmd)

	syncCmd.PersistentFlags().IntVar(&syncBatch, "batch", 0, "Identifiers per batch (default from sync.batch_size)")

	syncFullCmd.Flags().Int64Var(&syncStart, "start", 1, "First identifier to scan")
	syncFullCmd.Flags().Int64Var(&syncEnd, "end", 0, "Last identifier to scan")
	_ = syncFullCmd.MarkFlagRequired("end")

	syncIncrementalCmd.Flags().Int64Var(&syncWindow, "window", 0, "Identifiers to scan above the cursor (default from sync.window_size)")

	syncDiscoverCmd.Flags().Int64Var(&discoverStart, "start", 0, "First sampled identifier (default from sync.discovery_start)")
	syncDiscoverCmd.Flags().Int64Var(&discoverCeil, "ceiling", 0, "Last identifier that may be sampled (default from sync.discovery_ceiling)")
	syncDiscoverCmd.Flags().Int64Var(&discoverStep, "step", 0, "Sampling stride (default from sync.discovery_step)")
}
