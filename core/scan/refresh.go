package scan

import (
	"context"
	"fmt"

	"catalog-sync/core/catalog"
	"catalog-sync/core/metrics"
	"catalog-sync/core/probe"

	"go.uber.org/zap"
)

// RefreshLowStock re-probes catalogued records whose stock is below threshold.
func (e *Engine) RefreshLowStock(ctx context.Context, threshold int) (Summary, error) {
	return e.Refresh(ctx, func(r catalog.Record) bool {
		return r.InStock < threshold
	})
}

// Refresh re-probes every catalogued record matching stale, one at a time.
// Active results replace the record; anything else removes it. Each outcome
// is persisted before the next record is probed. Refresh never adds records.
func (e *Engine) Refresh(ctx context.Context, stale func(catalog.Record) bool) (Summary, error) {
	sum, release, err := e.begin(KindRefresh)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	current := e.CurrentCatalog()
	if current.Len() == 0 {
		e.finish(ctx, sum, ErrEmptyCatalog)
		return *sum, ErrEmptyCatalog
	}

	candidates := current.Filter(stale)
	e.logger.Info("Starting refresh", zap.Int("candidates", len(candidates)), zap.Int("records", current.Len()))

	err = e.refresh(ctx, sum, candidates)
	if sum.Updated+sum.Removed > 0 {
		e.publish(ctx)
	}
	e.finish(ctx, sum, err)
	return *sum, err
}

func (e *Engine) refresh(ctx context.Context, sum *Summary, candidates []catalog.Record) error {
	for i, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		e.setState(StateChecking, 0, i+1, len(candidates))
		res := e.prober.Probe(context.WithoutCancel(ctx), rec.ID)
		sum.count(res)

		current := e.CurrentCatalog()
		var next *catalog.Catalog
		action := "removed"
		if res.Outcome == probe.OutcomeActive {
			next = current.With(*res.Record)
			action = "updated"
		} else {
			next = current.Without(rec.ID)
		}

		e.setState(StatePersisting, 0, i+1, len(candidates))
		if err := e.persist(next); err != nil {
			return fmt.Errorf("failed to persist refresh of %d: %w", rec.ID, err)
		}

		metrics.RecordRefresh(action)
		if action == "updated" {
			sum.Updated++
		} else {
			sum.Removed++
		}
		e.logger.Debug("Refreshed record",
			zap.Int64("id", rec.ID),
			zap.String("outcome", res.Outcome.String()),
			zap.String("action", action),
		)
	}
	return nil
}

// Dedupe rewrites the persisted snapshot with one record per identifier and
// no inactive records. Leftover staged entries from an interrupted scan are
// discarded, not merged.
func (e *Engine) Dedupe(ctx context.Context) (Summary, error) {
	sum, release, err := e.begin(KindDedupe)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	if err := e.staging.Clear(); err != nil {
		err = fmt.Errorf("failed to reset staging log: %w", err)
		e.finish(ctx, sum, err)
		return *sum, err
	}

	// The in-memory catalog is already unique; count what the file held.
	if records, loadErr := e.store.Load(); loadErr == nil {
		sum.Before = len(records)
	}

	e.setState(StateMerging, 0, 0, 0)
	err = e.merge(ctx, sum)
	if err == nil {
		sum.Removed = max(sum.Before-e.CurrentCatalog().Len(), 0)
	}
	e.finish(ctx, sum, err)
	return *sum, err
}
