package scan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"catalog-sync/core/probe"
)

var (
	// ErrBusy is returned when another operation already holds the engine.
	ErrBusy = errors.New("sync engine is busy")
	// ErrEmptyCatalog is returned by operations that need an existing catalog.
	ErrEmptyCatalog = errors.New("catalog is empty, run a full rescan or discovery first")
	// ErrInvalidRange is returned for malformed scan bounds or sizes.
	ErrInvalidRange = errors.New("invalid scan range")
)

// Kind names an engine operation.
type Kind string

const (
	KindFull        Kind = "full"
	KindIncremental Kind = "incremental"
	KindDiscover    Kind = "discover"
	KindRefresh     Kind = "refresh"
	KindDedupe      Kind = "dedupe"
)

// State is the phase of the running operation.
type State string

const (
	StateIdle       State = "idle"
	StateScanning   State = "scanning"
	StateMerging    State = "merging"
	StateChecking   State = "checking"
	StatePersisting State = "persisting"
)

// Range is an inclusive identifier interval.
type Range struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Len returns the number of identifiers in the range.
func (r Range) Len() int64 {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Summary holds the counters reported for one operation.
type Summary struct {
	Kind  Kind   `json:"kind"`
	RunID string `json:"run_id"`

	StartID int64 `json:"start_id,omitempty"`
	EndID   int64 `json:"end_id,omitempty"`

	Checked  int `json:"checked"`
	Found    int `json:"found"`
	Inactive int `json:"inactive"`
	Missing  int `json:"missing"`
	Errors   int `json:"errors"`

	Added   int `json:"added"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
	Before  int `json:"before"`
	After   int `json:"after"`

	Batches       int     `json:"batches"`
	StageFailures int     `json:"stage_failures"`
	Ranges        []Range `json:"ranges,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Canceled   bool      `json:"canceled,omitempty"`
}

func (s *Summary) count(res probe.Result) {
	s.Checked++
	switch res.Outcome {
	case probe.OutcomeActive:
		s.Found++
	case probe.OutcomeInactive:
		s.Inactive++
	case probe.OutcomeError:
		s.Errors++
	default:
		s.Missing++
	}
}

// Status is a point-in-time view of the engine.
type Status struct {
	State State  `json:"state"`
	Kind  Kind   `json:"kind,omitempty"`
	RunID string `json:"run_id,omitempty"`
	// Batch is the 1-based index of the batch being scanned or merged.
	Batch int `json:"batch,omitempty"`
	// Item is the 1-based index of the entry being refreshed.
	Item int `json:"item,omitempty"`
	// Total is the number of batches or items planned, when known.
	Total     int       `json:"total,omitempty"`
	StartedAt time.Time `json:"started_at,omitzero"`

	Records int      `json:"records"`
	Cursor  int64    `json:"cursor"`
	Last    *Summary `json:"last,omitempty"`
}

// Prober classifies one identifier.
type Prober interface {
	Probe(ctx context.Context, id int64) probe.Result
}

// Mirror publishes snapshots to remote storage and restores them.
type Mirror interface {
	Publish(ctx context.Context, data []byte) error
	Restore(ctx context.Context) ([]byte, error)
}

// Recorder stores finished operations.
type Recorder interface {
	Record(ctx context.Context, s Summary, runErr error) error
}

// DiscoverOptions tunes a discovery sweep.
type DiscoverOptions struct {
	// Start is the first sampled identifier.
	Start int64
	// Ceiling is the last identifier that may be sampled.
	Ceiling int64
	// Step is the sampling stride.
	Step int64
	// EmptyRunLimit stops sampling after this many consecutive empty samples.
	EmptyRunLimit int
	// Margin widens each discovered range on both sides before refinement.
	Margin int64
	// BatchSize is the refinement batch size.
	BatchSize int
}

func (o DiscoverOptions) validate() error {
	switch {
	case o.Start < 1:
		return fmt.Errorf("%w: start must be at least 1", ErrInvalidRange)
	case o.Ceiling < o.Start:
		return fmt.Errorf("%w: ceiling %d is below start %d", ErrInvalidRange, o.Ceiling, o.Start)
	case o.Step < 1:
		return fmt.Errorf("%w: step must be at least 1", ErrInvalidRange)
	case o.EmptyRunLimit < 1:
		return fmt.Errorf("%w: empty run limit must be at least 1", ErrInvalidRange)
	case o.Margin < 0:
		return fmt.Errorf("%w: margin must not be negative", ErrInvalidRange)
	case o.BatchSize < 1:
		return fmt.Errorf("%w: batch size must be at least 1", ErrInvalidRange)
	}
	return nil
}
