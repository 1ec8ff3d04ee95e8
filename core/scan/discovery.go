package scan

import (
	"context"
	"sort"

	"go.uber.org/zap"
)

// Discover samples every Step-th identifier from Start up to Ceiling to find
// dense runs of assigned identifiers, then refines each run at step 1 widened
// by Margin on both sides. Sampling stops early after EmptyRunLimit
// consecutive empty samples.
func (e *Engine) Discover(ctx context.Context, opts DiscoverOptions) (Summary, error) {
	if err := opts.validate(); err != nil {
		return Summary{}, err
	}

	sum, release, err := e.begin(KindDiscover)
	if err != nil {
		return Summary{}, err
	}
	defer release()

	sum.StartID = opts.Start

	e.setState(StateScanning, 0, 0, 0)
	runs, last, err := e.sample(ctx, sum, opts)
	sum.EndID = last
	if err != nil {
		e.finish(ctx, sum, err)
		return *sum, err
	}

	sum.Ranges = refine(runs, opts.Margin)
	e.logger.Info("Discovery sampling finished",
		zap.Int("runs", len(runs)),
		zap.Int("ranges", len(sum.Ranges)),
		zap.Int64("last_sampled", last),
	)
	if len(sum.Ranges) > 0 {
		sum.EndID = sum.Ranges[len(sum.Ranges)-1].End
	}

	err = e.sweep(ctx, sum, sum.Ranges, opts.BatchSize)
	e.finish(ctx, sum, err)
	return *sum, err
}

// sample runs the sparse pass and returns runs of consecutive found samples
// together with the last identifier sampled.
func (e *Engine) sample(ctx context.Context, sum *Summary, opts DiscoverOptions) ([]Range, int64, error) {
	var (
		runs     []Range
		open     bool
		run      Range
		empty    int
		lastSeen int64
	)

	closeRun := func() {
		if open {
			runs = append(runs, run)
			open = false
		}
	}

	next := opts.Start
	for next <= opts.Ceiling {
		if err := ctx.Err(); err != nil {
			closeRun()
			return runs, lastSeen, err
		}

		ids := make([]int64, 0, e.chunk)
		for ; next <= opts.Ceiling && len(ids) < e.chunk; next += opts.Step {
			ids = append(ids, next)
		}

		for _, res := range e.probeAll(ctx, ids, nil) {
			sum.count(res)
			lastSeen = res.ID

			if res.Outcome.Found() {
				if !open {
					run = Range{Start: res.ID}
					open = true
				}
				run.End = res.ID
				empty = 0
				continue
			}

			closeRun()
			empty++
			if empty >= opts.EmptyRunLimit {
				e.logger.Debug("Empty run limit reached", zap.Int64("id", res.ID), zap.Int("empty", empty))
				return runs, lastSeen, nil
			}
		}
	}

	closeRun()
	return runs, lastSeen, nil
}

// refine widens runs by margin, clamps them to identifiers >= 1 and
// coalesces overlapping or adjacent ranges.
func refine(runs []Range, margin int64) []Range {
	if len(runs) == 0 {
		return nil
	}

	widened := make([]Range, len(runs))
	for i, r := range runs {
		widened[i] = Range{Start: max(r.Start-margin, 1), End: r.End + margin}
	}
	sort.Slice(widened, func(i, j int) bool { return widened[i].Start < widened[j].Start })

	out := []Range{widened[0]}
	for _, r := range widened[1:] {
		last := &out[len(out)-1]
		if r.Start <= last.End+1 {
			last.End = max(last.End, r.End)
			continue
		}
		out = append(out, r)
	}
	return out
}
