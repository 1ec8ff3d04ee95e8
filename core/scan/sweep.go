package scan

import (
	"context"
	"fmt"
	"sync"

	"catalog-sync/core/probe"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// FullRescan probes every identifier in [start, end] in batches of batchSize,
// merging after each batch.
func (e *Engine) FullRescan(ctx context.Context, start, end int64, batchSize int) (Summary, error) {
	if start < 1 || end < start || batchSize < 1 {
		return Summary{}, fmt.Errorf("%w: start=%d end=%d batch=%d", ErrInvalidRange, start, end, batchSize)
	}

	sum, release, err := e.begin(KindFull)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	sum.StartID, sum.EndID = start, end
	err = e.sweep(ctx, sum, []Range{{Start: start, End: end}}, batchSize)
	e.finish(ctx, sum, err)
	return *sum, err
}

// IncrementalUpdate sweeps [cursor+1, cursor+window] in batches, where cursor
// is the highest catalogued identifier when the update starts.
func (e *Engine) IncrementalUpdate(ctx context.Context, window int64, batchSize int) (Summary, error) {
	if window < 1 || batchSize < 1 {
		return Summary{}, fmt.Errorf("%w: window=%d batch=%d", ErrInvalidRange, window, batchSize)
	}

	sum, release, err := e.begin(KindIncremental)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	current := e.CurrentCatalog()
	if current.Len() == 0 {
		e.finish(ctx, sum, ErrEmptyCatalog)
		return *sum, ErrEmptyCatalog
	}

	cursor := current.Cursor()
	r := Range{Start: cursor + 1, End: cursor + window}
	sum.StartID, sum.EndID = r.Start, r.End

	e.logger.Info("Starting incremental update", zap.Int64("cursor", cursor), zap.Stringer("range", r), zap.Int("batch_size", batchSize))
	err = e.sweep(ctx, sum, []Range{r}, batchSize)
	e.finish(ctx, sum, err)
	return *sum, err
}

// sweep scans ranges in order, one batch at a time. Leftover staging from an
// interrupted run is discarded first. Cancellation is honoured between chunks;
// a batch interrupted that way is discarded rather than merged.
func (e *Engine) sweep(ctx context.Context, sum *Summary, ranges []Range, batchSize int) error {
	if err := e.staging.Clear(); err != nil {
		return fmt.Errorf("failed to reset staging log: %w", err)
	}

	total := 0
	for _, r := range ranges {
		total += int((r.Len() + int64(batchSize) - 1) / int64(batchSize))
	}

	batch := 0
	for _, r := range ranges {
		for start := r.Start; start <= r.End; start += int64(batchSize) {
			if err := ctx.Err(); err != nil {
				return err
			}
			batch++
			end := min(start+int64(batchSize)-1, r.End)

			e.setState(StateScanning, batch, 0, total)
			if err := e.scanBatch(ctx, sum, Range{Start: start, End: end}); err != nil {
				if clearErr := e.staging.Clear(); clearErr != nil {
					e.logger.Warn("Failed to discard interrupted batch", zap.Error(clearErr))
				}
				return err
			}

			e.setState(StateMerging, batch, 0, total)
			if err := e.merge(ctx, sum); err != nil {
				return err
			}
			e.logger.Debug("Batch merged",
				zap.Int("batch", batch),
				zap.Int("total", total),
				zap.Stringer("range", Range{Start: start, End: end}),
				zap.Int("records", e.CurrentCatalog().Len()),
			)
		}
	}
	return nil
}

// scanBatch probes r chunk by chunk and stages active results.
func (e *Engine) scanBatch(ctx context.Context, sum *Summary, r Range) error {
	for start := r.Start; start <= r.End; start += int64(e.chunk) {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+int64(e.chunk)-1, r.End)
		ids := make([]int64, 0, end-start+1)
		for id := start; id <= end; id++ {
			ids = append(ids, id)
		}
		var failures sync.Mutex
		results := e.probeAll(ctx, ids, func(res probe.Result) {
			if res.Outcome != probe.OutcomeActive {
				return
			}
			if err := e.staging.Append(*res.Record); err != nil {
				e.logger.Warn("Failed to stage record", zap.Int64("id", res.ID), zap.Error(err))
				failures.Lock()
				sum.StageFailures++
				failures.Unlock()
			}
		})
		for _, res := range results {
			sum.count(res)
		}
	}
	return nil
}

// probeAll probes ids concurrently and returns results in input order. each,
// when set, is called from the probing goroutine as soon as a result is known.
// Probes are detached from ctx so admitted lookups always complete.
func (e *Engine) probeAll(ctx context.Context, ids []int64, each func(probe.Result)) []probe.Result {
	results := make([]probe.Result, len(ids))
	probeCtx := context.WithoutCancel(ctx)

	var g errgroup.Group
	g.SetLimit(e.chunk)
	for i, id := range ids {
		g.Go(func() error {
			res := e.prober.Probe(probeCtx, id)
			if each != nil {
				each(res)
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}
