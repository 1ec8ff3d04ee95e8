package reconcile

import (
	"context"
	"fmt"

	"catalog-sync/core/catalog"
)

// ReconcileWithPlan performs reconciliation and returns a plan with the
// drifted listings and the repair to run. It does NOT execute anything; use
// ApplyPlan for that.
func ReconcileWithPlan(ctx context.Context, spec *Spec, opts ReconcileOptions) (*ReconcilePlan, *ReconcileCache, error) {
	cache, err := BuildCache(ctx, spec)
	if err != nil {
		return nil, nil, err
	}

	results := reconcileFromCache(cache)
	summary, drifted := summarize(results, cache)

	plan := &ReconcilePlan{Results: drifted, Summary: summary, Actions: []Action{}}
	if summary.Drifted() {
		plan.Actions = append(plan.Actions, planAction(summary, opts))
	}
	return plan, cache, nil
}

// ApplyPlan executes the actions in a reconcile plan with the documents held
// by cache. Requires opts.Confirmed=true and opts.DryRun=false to actually
// execute. A restore takes the data directory lock.
func ApplyPlan(ctx context.Context, spec *Spec, cache *ReconcileCache, plan *ReconcilePlan, opts ReconcileOptions) (executed int, err error) {
	if !opts.Confirmed || opts.DryRun {
		return 0, nil
	}

	for _, action := range plan.Actions {
		switch action.Type {
		case ActionPublish:
			data := cache.LocalData
			if len(data) == 0 {
				if data, err = catalog.Encode(nil); err != nil {
					return executed, err
				}
			}
			if err := spec.Mirror.Publish(ctx, data); err != nil {
				return executed, fmt.Errorf("failed to publish local snapshot: %w", err)
			}
		case ActionRestore:
			if len(cache.MirrorData) == 0 {
				return executed, fmt.Errorf("mirror %s holds no snapshot to restore", spec.Mirror.Name())
			}
			if err := restore(spec.Local, cache.MirrorData); err != nil {
				return executed, err
			}
		default:
			return executed, fmt.Errorf("unknown reconcile action %q", action.Type)
		}
		executed++
	}

	InvalidateCache(spec)
	return executed, nil
}

// ReconcileAndApply is a convenience wrapper that plans and optionally applies actions.
func ReconcileAndApply(ctx context.Context, spec *Spec, opts ReconcileOptions) (*ReconcilePlan, int, error) {
	plan, cache, err := ReconcileWithPlan(ctx, spec, opts)
	if err != nil {
		return nil, 0, err
	}

	executed, err := ApplyPlan(ctx, spec, cache, plan, opts)
	return plan, executed, err
}

func restore(store *catalog.SnapshotStore, data []byte) error {
	unlock, err := store.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	if err := store.WriteRaw(data); err != nil {
		return fmt.Errorf("failed to restore local snapshot: %w", err)
	}
	return nil
}

// summarize counts drift and keeps only the results that differ.
func summarize(results []ReconcileResult, cache *ReconcileCache) (PlanSummary, []ReconcileResult) {
	summary := PlanSummary{
		TotalItems:  len(results),
		LocalItems:  len(cache.LocalIndex),
		MirrorItems: len(cache.MirrorIndex),
		MirrorEmpty: cache.MirrorIndex == nil,
	}

	drifted := []ReconcileResult{}
	for _, result := range results {
		if result.InSync() {
			continue
		}
		switch {
		case !result.LocalPresent:
			summary.MissingLocal++
		case !result.MirrorPresent:
			summary.MissingMirror++
		default:
			summary.Mismatches++
		}
		drifted = append(drifted, result)
	}
	return summary, drifted
}

func planAction(summary PlanSummary, opts ReconcileOptions) Action {
	reason := fmt.Sprintf("missing locally: %d, missing in mirror: %d, mismatched: %d",
		summary.MissingLocal, summary.MissingMirror, summary.Mismatches)
	if summary.MirrorEmpty {
		reason = "mirror holds no snapshot"
	}

	if opts.Restore && !summary.MirrorEmpty {
		return Action{Type: ActionRestore, Reason: reason}
	}
	return Action{Type: ActionPublish, Reason: reason}
}
