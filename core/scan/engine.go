package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"catalog-sync/core/catalog"
	"catalog-sync/core/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"k8s.io/utils/clock"
)

// Options holds the optional collaborators of an Engine.
type Options struct {
	// ChunkSize bounds how many probes run concurrently. Defaults to 100.
	ChunkSize int
	// Mirror, when set, receives every persisted snapshot.
	Mirror Mirror
	// Recorder, when set, stores a row per finished operation.
	Recorder Recorder
	Clock    clock.PassiveClock
	Logger   *zap.Logger
}

// Engine owns the catalog. Readers get immutable snapshots; only one
// mutating operation runs at a time, guarded in-process by a mutex and across
// processes by the data directory lock.
type Engine struct {
	store   *catalog.SnapshotStore
	staging *catalog.StagingStore
	merger  *catalog.Merger
	prober  Prober

	chunk    int
	mirror   Mirror
	recorder Recorder
	clock    clock.PassiveClock
	logger   *zap.Logger

	current atomic.Pointer[catalog.Catalog]
	run     sync.Mutex

	statusMu sync.RWMutex
	status   Status
}

// New creates an engine with an empty in-memory catalog. Call Open to load
// the persisted snapshot.
func New(store *catalog.SnapshotStore, staging *catalog.StagingStore, prober Prober, opts Options) *Engine {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 100
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	e := &Engine{
		store:    store,
		staging:  staging,
		merger:   catalog.NewMerger(store, staging, opts.Logger),
		prober:   prober,
		chunk:    opts.ChunkSize,
		mirror:   opts.Mirror,
		recorder: opts.Recorder,
		clock:    opts.Clock,
		logger:   opts.Logger,
		status:   Status{State: StateIdle},
	}
	e.current.Store(catalog.Empty())
	return e
}

// Open loads the persisted snapshot. When no local snapshot exists and a
// mirror is configured, the latest mirrored snapshot is restored first. A
// corrupt snapshot is logged and loaded as empty.
func (e *Engine) Open(ctx context.Context) error {
	if !e.store.Exists() && e.mirror != nil {
		if err := e.restore(ctx); err != nil {
			e.logger.Warn("Failed to restore catalog from mirror", zap.Error(err))
		}
	}

	records, err := e.store.Load()
	if err != nil {
		if !errors.Is(err, catalog.ErrCorrupt) {
			return err
		}
		e.logger.Warn("Persisted catalog is corrupt, starting empty", zap.String("path", e.store.Path()), zap.Error(err))
		records = nil
	}

	e.swap(catalog.New(records))
	e.logger.Info("Catalog loaded", zap.Int("records", e.CurrentCatalog().Len()), zap.Int64("cursor", e.CurrentCatalog().Cursor()))
	return nil
}

func (e *Engine) restore(ctx context.Context) error {
	data, err := e.mirror.Restore(ctx)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	if _, err := catalog.Decode(data); err != nil {
		return err
	}
	if err := e.store.WriteRaw(data); err != nil {
		return err
	}
	e.logger.Info("Catalog restored from mirror", zap.Int("bytes", len(data)))
	return nil
}

// Close releases the staging log.
func (e *Engine) Close() error {
	return e.staging.Close()
}

// CurrentCatalog returns the current read-only snapshot.
func (e *Engine) CurrentCatalog() *catalog.Catalog {
	return e.current.Load()
}

// Status returns the current phase of the engine.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	s := e.status
	e.statusMu.RUnlock()

	c := e.CurrentCatalog()
	s.Records = c.Len()
	s.Cursor = c.Cursor()
	return s
}

func (e *Engine) swap(c *catalog.Catalog) {
	e.current.Store(c)
	metrics.SetCatalog(c.Len(), c.Cursor())
}

// begin claims the engine for one operation. The returned summary is
// pre-filled with the kind, run ID and start time.
func (e *Engine) begin(kind Kind) (*Summary, func(), error) {
	if !e.run.TryLock() {
		return nil, nil, ErrBusy
	}
	unlock, err := e.store.Lock()
	if err != nil {
		e.run.Unlock()
		return nil, nil, err
	}

	sum := &Summary{
		Kind:      kind,
		RunID:     uuid.NewString(),
		StartedAt: e.clock.Now().UTC(),
		Before:    e.CurrentCatalog().Len(),
	}

	e.statusMu.Lock()
	e.status.Kind = kind
	e.status.RunID = sum.RunID
	e.status.StartedAt = sum.StartedAt
	e.status.Batch, e.status.Item, e.status.Total = 0, 0, 0
	e.statusMu.Unlock()

	release := func() {
		unlock()
		e.run.Unlock()
	}
	return sum, release, nil
}

// finish closes an operation: counters, history and logs.
func (e *Engine) finish(ctx context.Context, sum *Summary, runErr error) {
	sum.FinishedAt = e.clock.Now().UTC()
	sum.After = e.CurrentCatalog().Len()
	if errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded) {
		sum.Canceled = true
	}

	metrics.RecordRun(string(sum.Kind), runErr)

	if e.recorder != nil {
		if err := e.recorder.Record(context.WithoutCancel(ctx), *sum, runErr); err != nil {
			e.logger.Warn("Failed to record run history", zap.String("run_id", sum.RunID), zap.Error(err))
		}
	}

	last := *sum
	e.statusMu.Lock()
	e.status = Status{State: StateIdle, Last: &last}
	e.statusMu.Unlock()

	fields := []zap.Field{
		zap.String("kind", string(sum.Kind)),
		zap.String("run_id", sum.RunID),
		zap.Int("checked", sum.Checked),
		zap.Int("found", sum.Found),
		zap.Int("added", sum.Added),
		zap.Int("updated", sum.Updated),
		zap.Int("removed", sum.Removed),
		zap.Int("after", sum.After),
		zap.Duration("duration", sum.FinishedAt.Sub(sum.StartedAt)),
	}
	if runErr != nil {
		e.logger.Warn("Sync operation stopped", append(fields, zap.Error(runErr))...)
		return
	}
	e.logger.Info("Sync operation finished", fields...)
}

func (e *Engine) setState(state State, batch, item, total int) {
	e.statusMu.Lock()
	e.status.State = state
	if batch > 0 {
		e.status.Batch = batch
	}
	if item > 0 {
		e.status.Item = item
	}
	if total > 0 {
		e.status.Total = total
	}
	e.statusMu.Unlock()
}

// merge folds the staging log into the snapshot and swaps the in-memory catalog.
func (e *Engine) merge(ctx context.Context, sum *Summary) error {
	started := time.Now()
	counts, merged, err := e.merger.Merge()
	metrics.RecordMerge(err, time.Since(started))
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	e.swap(merged)
	sum.Added += counts.Added
	sum.Removed += counts.Removed
	sum.Batches++
	e.publish(ctx)
	return nil
}

// persist replaces the snapshot with c and swaps it in.
func (e *Engine) persist(c *catalog.Catalog) error {
	if err := e.store.Save(c.Records()); err != nil {
		return err
	}
	e.swap(c)
	return nil
}

// publish pushes the persisted snapshot to the mirror. Failures only log.
func (e *Engine) publish(ctx context.Context) {
	if e.mirror == nil {
		return
	}
	data, err := e.store.Bytes()
	if err != nil || data == nil {
		e.logger.Warn("Failed to read snapshot for mirroring", zap.Error(err))
		return
	}
	if err := e.mirror.Publish(context.WithoutCancel(ctx), data); err != nil {
		e.logger.Warn("Failed to publish snapshot to mirror", zap.Error(err))
	}
}
