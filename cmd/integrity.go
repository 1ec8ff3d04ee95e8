package cmd

import (
	"context"
	"errors"

	"catalog-sync/feature/integrity"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var fixFlag bool

// integrityCmd represents the integrity command
var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Perform integrity checks on the catalog",
	Long:  `Checks the local snapshot, the mirrored copy and the run history table.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, true, true)
	},
}

var snapshotCheckCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Check the local snapshot for duplicates, inactive entries and leftovers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), true, false, false)
	},
}

var mirrorCheckCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Check the snapshot mirror bucket",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, true, false)
	},
}

var historyCheckCmd = &cobra.Command{
	Use:   "history",
	Short: "Check the run history table schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIntegrityChecks(cmd.Context(), false, false, true)
	},
}

func init() {
	RootCmd.AddCommand(integrityCmd)
	integrityCmd.AddCommand(snapshotCheckCmd, mirrorCheckCmd, historyCheckCmd)

	snapshotCheckCmd.Flags().BoolVar(&fixFlag, "fix", false, "Rewrite the snapshot without duplicates")
	mirrorCheckCmd.Flags().BoolVar(&fixFlag, "fix", false, "Create the bucket and publish the local snapshot")
	historyCheckCmd.Flags().BoolVar(&fixFlag, "fix", false, "Migrate the history table")
}

func runIntegrityChecks(ctx context.Context, runSnapshot, runMirror, runHistory bool) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	logg := rt.logger
	svc := integrity.NewService(rt.store, rt.staging, rt.engine, rt.client, rt.mirror, rt.db, logg.Named("integrity"))
	single := !(runSnapshot && runMirror && runHistory)
	failed := false

	if runSnapshot {
		logg.Info("Checking local snapshot...")
		report, err := svc.CheckSnapshot()
		if err != nil {
			return err
		}
		switch {
		case report.Healthy():
			logg.Info("Snapshot is intact.", zap.String("path", report.Path), zap.Int("records", report.Records))
		case single && fixFlag:
			logg.Warn("Snapshot issues detected", zap.Int("duplicates", len(report.Duplicates)), zap.Int("inactive", len(report.Inactive)), zap.Bool("corrupt", report.Corrupt))
			sum, err := svc.FixSnapshot(ctx)
			if err != nil {
				return err
			}
			logg.Info("Snapshot fixed successfully.", zap.Int("removed", sum.Removed), zap.Int("records", sum.After))
		default:
			failed = true
			logg.Warn("Snapshot issues detected",
				zap.Int("duplicates", len(report.Duplicates)),
				zap.Int("inactive", len(report.Inactive)),
				zap.Bool("unsorted", report.Unsorted),
				zap.Int("staged_entries", report.StagedEntries),
				zap.Bool("corrupt", report.Corrupt),
				zap.String("error", report.Error),
			)
			if single {
				logg.Info("Run with --fix to rewrite the snapshot.")
			}
		}
	}

	if runMirror {
		logg.Info("Checking snapshot mirror...")
		report, err := svc.CheckMirror(ctx)
		switch {
		case errors.Is(err, integrity.ErrMirrorDisabled):
			logg.Info("Snapshot mirror is disabled, skipping.")
		case err != nil:
			return err
		case report.Healthy():
			logg.Info("Mirror is intact.", zap.String("bucket", report.Bucket), zap.Int("records", report.Records), zap.Int("snapshots", report.Snapshots))
		case single && fixFlag:
			logg.Info("Fixing snapshot mirror...")
			if err := svc.FixMirror(ctx); err != nil {
				return err
			}
			logg.Info("Mirror fixed successfully.")
		default:
			failed = true
			logg.Warn("Mirror issues detected",
				zap.String("bucket", report.Bucket),
				zap.Bool("bucket_exists", report.BucketExists),
				zap.Bool("latest_present", report.LatestPresent),
				zap.Bool("latest_valid", report.LatestValid),
			)
			if single {
				logg.Info("Run with --fix to publish the local snapshot.")
			}
		}
	}

	if runHistory {
		logg.Info("Checking run history schema...")
		report, err := svc.CheckHistory()
		switch {
		case errors.Is(err, integrity.ErrHistoryDisabled):
			logg.Info("Run history is disabled, skipping.")
		case err != nil:
			return err
		case report.Healthy():
			logg.Info("History schema matches expected definition.", zap.String("table", report.Table))
		case single && fixFlag:
			logg.Info("Migrating history table...")
			if err := svc.FixHistory(); err != nil {
				return err
			}
			logg.Info("History table migrated successfully.")
		default:
			failed = true
			logg.Warn("History schema mismatches found", zap.String("table", report.Table), zap.Bool("exists", report.Exists), zap.Strings("missing_columns", report.MissingColumns))
			if single {
				logg.Info("Run with --fix to migrate the table.")
			}
		}
	}

	if failed {
		return errors.New("integrity issues detected")
	}
	return nil
}
