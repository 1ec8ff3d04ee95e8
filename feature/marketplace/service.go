package marketplace

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"catalog-sync/core/catalog"
	"catalog-sync/core/history"
	"catalog-sync/core/scan"

	"go.uber.org/zap"
)

// PageSize is the number of search results per page.
const PageSize = 5

// ErrUnknownKind is returned for an unsupported operation name.
var ErrUnknownKind = errors.New("unknown sync kind")

// Engine is the part of the sync engine the service drives.
type Engine interface {
	CurrentCatalog() *catalog.Catalog
	Status() scan.Status
	FullRescan(ctx context.Context, start, end int64, batchSize int) (scan.Summary, error)
	IncrementalUpdate(ctx context.Context, window int64, batchSize int) (scan.Summary, error)
	Discover(ctx context.Context, opts scan.DiscoverOptions) (scan.Summary, error)
	RefreshLowStock(ctx context.Context, threshold int) (scan.Summary, error)
	Dedupe(ctx context.Context) (scan.Summary, error)
}

// JobParams overrides the configured defaults of a background operation.
// Zero values fall back to the configuration.
type JobParams struct {
	Start     int64 `json:"start" query:"start"`
	End       int64 `json:"end" query:"end"`
	BatchSize int   `json:"batch_size" query:"batch_size"`
	Window    int64 `json:"window" query:"window"`
	Threshold int   `json:"threshold" query:"threshold"`
}

// Job describes a started background operation.
type Job struct {
	Kind   scan.Kind `json:"kind"`
	Params JobParams `json:"params"`
}

// Stats summarises the catalog.
type Stats struct {
	Total      int     `json:"total"`
	InStock    int     `json:"in_stock"`
	TotalValue float64 `json:"total_value"`
	Cursor     int64   `json:"cursor"`
}

// Page is one page of search results.
type Page struct {
	Query   string           `json:"query,omitempty"`
	Page    int              `json:"page"`
	Pages   int              `json:"pages"`
	Total   int              `json:"total"`
	Results []catalog.Record `json:"results"`
}

// Service answers catalog queries and runs engine operations in the background.
type Service struct {
	engine   Engine
	history  *history.Recorder
	cfg      scan.Config
	itemBase string
	logger   *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewService creates a marketplace service. history may be nil.
func NewService(engine Engine, recorder *history.Recorder, cfg scan.Config, itemBase string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		engine:   engine,
		history:  recorder,
		cfg:      cfg,
		itemBase: itemBase,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ItemURL returns the listing page of r.
func (s *Service) ItemURL(r catalog.Record) string {
	return r.URL(s.itemBase)
}

// Search returns the purchasable listings whose title, name or slug contains
// query, cheapest first. An empty query matches every purchasable listing.
func (s *Service) Search(query string) []catalog.Record {
	q := strings.ToLower(strings.TrimSpace(query))
	results := s.engine.CurrentCatalog().Filter(func(r catalog.Record) bool {
		if !purchasable(r) {
			return false
		}
		if q == "" {
			return true
		}
		return strings.Contains(strings.ToLower(r.Title), q) ||
			strings.Contains(strings.ToLower(r.Name), q) ||
			strings.Contains(strings.ToLower(r.Slug), q)
	})

	sort.SliceStable(results, func(i, j int) bool {
		return *results[i].Price < *results[j].Price
	})
	return results
}

func purchasable(r catalog.Record) bool {
	return r.Direction != catalog.DirectionBuy && !r.SoldOut && r.InStock >= 1 && r.Price != nil
}

// Paginate slices results into pages of size. page is 1-based and clamped to
// the available range.
func Paginate(results []catalog.Record, page, size int) Page {
	if size <= 0 {
		size = PageSize
	}
	pages := (len(results) + size - 1) / size
	if page < 1 {
		page = 1
	}
	if pages > 0 && page > pages {
		page = pages
	}

	out := Page{Page: page, Pages: pages, Total: len(results), Results: []catalog.Record{}}
	start := (page - 1) * size
	if start >= len(results) {
		return out
	}
	end := min(start+size, len(results))
	out.Results = results[start:end]
	return out
}

// Stats summarises the current catalog.
func (s *Service) Stats() Stats {
	c := s.engine.CurrentCatalog()
	st := Stats{Total: c.Len(), Cursor: c.Cursor()}
	for _, r := range c.Records() {
		if r.InStock > 0 {
			st.InStock++
		}
		if p, ok := r.PriceAmount(); ok {
			st.TotalValue += p
		}
	}
	return st
}

// Get returns the record with id.
func (s *Service) Get(id int64) (catalog.Record, bool) {
	return s.engine.CurrentCatalog().Get(id)
}

// Status returns the engine status.
func (s *Service) Status() scan.Status {
	return s.engine.Status()
}

// History returns the most recent runs, or nil when history is disabled.
func (s *Service) History(ctx context.Context, limit int) ([]history.ScanRun, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// HistoryEnabled reports whether runs are recorded.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

// StartJob validates the request and runs the operation in the background.
// It returns scan.ErrBusy when an operation is already running.
func (s *Service) StartJob(kind scan.Kind, params JobParams) (Job, error) {
	run, params, err := s.prepare(kind, params)
	if err != nil {
		return Job{}, err
	}
	if s.engine.Status().State != scan.StateIdle || !s.running.CompareAndSwap(false, true) {
		return Job{}, scan.ErrBusy
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)

		l := s.logger.With(zap.String("kind", string(kind)))
		l.Info("Background sync started")
		sum, err := run(s.ctx)
		switch {
		case err == nil:
			l.Info("Background sync finished", zap.String("run_id", sum.RunID), zap.Int("added", sum.Added), zap.Int("removed", sum.Removed), zap.Int("after", sum.After))
		case errors.Is(err, context.Canceled):
			l.Warn("Background sync canceled", zap.String("run_id", sum.RunID))
		default:
			l.Error("Background sync failed", zap.String("run_id", sum.RunID), zap.Error(err))
		}
	}()

	return Job{Kind: kind, Params: params}, nil
}

// Running reports whether a background job is in flight.
func (s *Service) Running() bool {
	return s.running.Load()
}

// Shutdown cancels a running job and waits for it to stop.
func (s *Service) Shutdown() {
	s.cancel()
	s.wg.Wait()
}

type runFunc func(ctx context.Context) (scan.Summary, error)

func (s *Service) prepare(kind scan.Kind, p JobParams) (runFunc, JobParams, error) {
	if p.BatchSize == 0 {
		p.BatchSize = s.cfg.BatchSize
	}
	if p.BatchSize < 1 {
		return nil, p, fmt.Errorf("%w: batch size must be at least 1", scan.ErrInvalidRange)
	}

	switch kind {
	case scan.KindFull:
		if p.Start == 0 {
			p.Start = s.cfg.DiscoveryStart
		}
		if p.End == 0 {
			p.End = s.cfg.DiscoveryCeiling
		}
		if p.Start < 1 || p.End < p.Start {
			return nil, p, fmt.Errorf("%w: [%d,%d]", scan.ErrInvalidRange, p.Start, p.End)
		}
		return func(ctx context.Context) (scan.Summary, error) {
			return s.engine.FullRescan(ctx, p.Start, p.End, p.BatchSize)
		}, p, nil

	case scan.KindIncremental:
		if p.Window == 0 {
			p.Window = s.cfg.WindowSize
		}
		if p.Window < 1 {
			return nil, p, fmt.Errorf("%w: window must be at least 1", scan.ErrInvalidRange)
		}
		if s.engine.CurrentCatalog().Len() == 0 {
			return nil, p, scan.ErrEmptyCatalog
		}
		return func(ctx context.Context) (scan.Summary, error) {
			return s.engine.IncrementalUpdate(ctx, p.Window, p.BatchSize)
		}, p, nil

	case scan.KindDiscover:
		opts := s.cfg.DiscoverOptions()
		opts.BatchSize = p.BatchSize
		if p.Start != 0 {
			opts.Start = p.Start
		}
		if p.End != 0 {
			opts.Ceiling = p.End
		}
		p.Start, p.End = opts.Start, opts.Ceiling
		if opts.Start < 1 || opts.Ceiling < opts.Start {
			return nil, p, fmt.Errorf("%w: [%d,%d]", scan.ErrInvalidRange, opts.Start, opts.Ceiling)
		}
		return func(ctx context.Context) (scan.Summary, error) {
			return s.engine.Discover(ctx, opts)
		}, p, nil

	case scan.KindRefresh:
		if p.Threshold == 0 {
			p.Threshold = s.cfg.LowStockThreshold
		}
		if s.engine.CurrentCatalog().Len() == 0 {
			return nil, p, scan.ErrEmptyCatalog
		}
		return func(ctx context.Context) (scan.Summary, error) {
			return s.engine.RefreshLowStock(ctx, p.Threshold)
		}, p, nil

	case scan.KindDedupe:
		return func(ctx context.Context) (scan.Summary, error) {
			return s.engine.Dedupe(ctx)
		}, p, nil
	}

	return nil, p, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}
