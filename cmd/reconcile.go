package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"catalog-sync/core/reconcile"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	restoreFromMirror bool
	dryRunReconcile   bool
	yesConfirm        bool
	reconcileID       int64
)

// reconcileCmd compares the local snapshot with the mirrored copy.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile the local catalog with the snapshot mirror",
	Long: `Reports listings missing on either side and field mismatches between the
local snapshot and the latest mirrored snapshot. Optionally repairs the drift by
publishing the local snapshot (default) or restoring the mirrored one.

Examples:
  # Report only
  catalog-sync reconcile --dry-run

  # Publish the local snapshot (with interactive confirmation)
  catalog-sync reconcile

  # Replace the local snapshot with the mirrored one
  catalog-sync reconcile --restore --yes

  # Compare a single listing
  catalog-sync reconcile --id 4211`,
	RunE: runReconcile,
}

func init() {
	reconcileCmd.Flags().BoolVar(&restoreFromMirror, "restore", false, "Repair by restoring the mirrored snapshot locally")
	reconcileCmd.Flags().BoolVar(&dryRunReconcile, "dry-run", false, "Force dry-run (no mutations even with --yes)")
	reconcileCmd.Flags().BoolVar(&yesConfirm, "yes", false, "Auto-confirm the repair (non-interactive)")
	reconcileCmd.Flags().Int64Var(&reconcileID, "id", 0, "Compare a single listing")

	RootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()
	l := rt.logger

	if rt.mirror == nil {
		return errors.New("snapshot mirror is disabled, set storage.enabled")
	}
	spec := &reconcile.Spec{Local: rt.store, Mirror: rt.mirror}

	if reconcileID > 0 {
		result, err := reconcile.ReconcileOne(ctx, spec, reconcileID)
		if err != nil {
			return err
		}
		return renderResults([]reconcile.ReconcileResult{*result})
	}

	opts := reconcile.ReconcileOptions{
		DryRun:  dryRunReconcile,
		Restore: restoreFromMirror,
	}

	l.Info("Planning reconciliation...", zap.String("mirror", rt.mirror.Name()))
	plan, cache, err := reconcile.ReconcileWithPlan(ctx, spec, opts)
	if err != nil {
		return fmt.Errorf("failed to plan reconciliation: %w", err)
	}

	printReconcileReport(l, plan)
	if len(plan.Results) > 0 {
		shown := plan.Results[:min(len(plan.Results), 20)]
		if err := renderResults(shown); err != nil {
			return err
		}
		if len(plan.Results) > len(shown) {
			l.Info("Additional drifted listings not shown", zap.Int("count", len(plan.Results)-len(shown)))
		}
	}

	if len(plan.Actions) == 0 {
		l.Info("Catalog and mirror are in sync.")
		return nil
	}
	if dryRunReconcile {
		l.Info("Dry-run mode: No changes were made.")
		return nil
	}

	if !confirmDestructiveAction() {
		l.Warn("Operation cancelled by user. No changes were made.")
		return nil
	}
	opts.Confirmed = true

	l.Info("Applying actions...")
	executed, err := reconcile.ApplyPlan(ctx, spec, cache, plan, opts)
	if err != nil {
		return fmt.Errorf("failed to apply plan: %w", err)
	}
	l.Info("Successfully executed actions", zap.Int("count", executed))
	return nil
}

// printReconcileReport logs the plan summary and actions.
func printReconcileReport(l *zap.Logger, plan *reconcile.ReconcilePlan) {
	s := plan.Summary

	l.Info("Reconciliation report",
		zap.Int("total_items", s.TotalItems),
		zap.Int("local_items", s.LocalItems),
		zap.Int("mirror_items", s.MirrorItems),
		zap.Int("missing_local", s.MissingLocal),
		zap.Int("missing_mirror", s.MissingMirror),
		zap.Int("mismatches", s.Mismatches),
		zap.Bool("mirror_empty", s.MirrorEmpty),
	)
	for _, action := range plan.Actions {
		l.Info("Planned action",
			zap.String("type", string(action.Type)),
			zap.String("reason", action.Reason),
		)
	}
}

func renderResults(results []reconcile.ReconcileResult) error {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Name,
			strconv.FormatBool(r.LocalPresent),
			strconv.FormatBool(r.MirrorPresent),
			strings.Join(r.Mismatch, "; "),
		})
	}
	return renderTable([]string{"ID", "Name", "Local", "Mirror", "Mismatch"}, rows)
}

// confirmDestructiveAction prompts the user for confirmation or uses --yes flag.
func confirmDestructiveAction() bool {
	if yesConfirm {
		fmt.Println("\n✓ Auto-confirmed via --yes flag")
		return true
	}

	fmt.Print("\n⚠️  Type 'yes' to confirm: ")
	reader := bufio.NewReader(os.Stdin)
	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(response) == "yes"
}
