package reconcile

import (
	"time"

	"catalog-sync/core/catalog"

	"k8s.io/utils/clock"
)

// ReconcileResult represents the reconciliation output for a single listing.
type ReconcileResult struct {
	// ID is the listing identifier.
	ID int64 `json:"id"`

	// Name is the display name of the listing.
	Name string `json:"name"`

	// LocalPresent indicates whether the listing exists in the local snapshot.
	LocalPresent bool `json:"local_present"`

	// MirrorPresent indicates whether the listing exists in the mirrored snapshot.
	MirrorPresent bool `json:"mirror_present"`

	// Mismatch describes field differences, e.g. "in_stock: local=3 mirror=1".
	Mismatch []string `json:"mismatch"`
}

// InSync reports whether both sides hold the same listing.
func (r ReconcileResult) InSync() bool {
	return r.LocalPresent && r.MirrorPresent && len(r.Mismatch) == 0
}

// Spec bundles the two sides of a reconciliation.
type Spec struct {
	// Local is the authoritative snapshot on disk.
	Local *catalog.SnapshotStore

	// Mirror holds the published copy.
	Mirror Mirror

	// CacheTTL is the time-to-live for cached indices. Zero disables caching.
	CacheTTL time.Duration

	// Clock defaults to the real clock.
	Clock clock.PassiveClock
}

// CacheKey returns a unique key for caching based on spec parameters.
func (s *Spec) CacheKey() string {
	return s.Local.Path() + "|" + s.Mirror.Name()
}

func (s *Spec) clock() clock.PassiveClock {
	if s.Clock == nil {
		return clock.RealClock{}
	}
	return s.Clock
}

// ActionType represents the type of repair action.
type ActionType string

const (
	// ActionPublish uploads the local snapshot to the mirror.
	ActionPublish ActionType = "publish"
	// ActionRestore replaces the local snapshot with the mirrored one.
	ActionRestore ActionType = "restore"
)

// Action represents a planned repair.
type Action struct {
	// Type specifies the action to perform.
	Type ActionType `json:"type"`

	// Reason explains why this action is needed.
	Reason string `json:"reason"`
}

// ReconcilePlan contains reconciliation results and planned actions.
type ReconcilePlan struct {
	// Results contains the listings that differ between the two sides.
	Results []ReconcileResult `json:"results"`

	// Actions contains planned repairs.
	Actions []Action `json:"actions"`

	// Summary provides aggregate counts.
	Summary PlanSummary `json:"summary"`
}

// PlanSummary provides aggregate statistics for a reconcile plan.
type PlanSummary struct {
	// TotalItems is the number of distinct listings across both sides.
	TotalItems int `json:"total_items"`

	// LocalItems is the size of the local snapshot.
	LocalItems int `json:"local_items"`

	// MirrorItems is the size of the mirrored snapshot.
	MirrorItems int `json:"mirror_items"`

	// MissingLocal counts listings only the mirror holds.
	MissingLocal int `json:"missing_local"`

	// MissingMirror counts listings only the local snapshot holds.
	MissingMirror int `json:"missing_mirror"`

	// Mismatches counts listings with field discrepancies.
	Mismatches int `json:"mismatches"`

	// MirrorEmpty is set when nothing has been published yet.
	MirrorEmpty bool `json:"mirror_empty"`
}

// Drifted reports whether the two sides differ.
func (s PlanSummary) Drifted() bool {
	return s.MirrorEmpty || s.MissingLocal > 0 || s.MissingMirror > 0 || s.Mismatches > 0
}

// ReconcileOptions controls which repair is planned and whether it runs.
type ReconcileOptions struct {
	// DryRun prevents execution of any repair if true.
	DryRun bool

	// Restore plans a restore instead of a publish. The local snapshot is
	// authoritative otherwise.
	Restore bool

	// Confirmed indicates user has confirmed the repair.
	// If false, repairs will not execute regardless of DryRun.
	Confirmed bool
}
