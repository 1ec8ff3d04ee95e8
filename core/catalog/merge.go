package catalog

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// MergeCounts summarises one merge.
type MergeCounts struct {
	// Before is the number of records in the persisted snapshot before the merge.
	Before int `json:"before"`
	// Added counts IDs present after the merge that were not persisted before.
	Added int `json:"added"`
	// Removed counts previously persisted IDs dropped by the merge.
	Removed int `json:"removed"`
	// After is the number of records written.
	After int `json:"after"`
	// Staged is the number of staged entries drained, duplicates included.
	Staged int `json:"staged"`
}

// Merger folds staged records into the persisted snapshot.
type Merger struct {
	store   *SnapshotStore
	staging *StagingStore
	logger  *zap.Logger
}

// NewMerger creates a Merger.
func NewMerger(store *SnapshotStore, staging *StagingStore, logger *zap.Logger) *Merger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Merger{store: store, staging: staging, logger: logger}
}

// Merge loads the persisted snapshot (empty when absent or corrupt), appends
// the staged records, keeps the latest entry per ID, drops inactive records
// and replaces the snapshot. The staging log is cleared only after the new
// snapshot is in place. The merged catalog is returned for reloading.
func (m *Merger) Merge() (MergeCounts, *Catalog, error) {
	existing, err := m.store.Load()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return MergeCounts{}, nil, err
		}
		m.logger.Warn("Persisted catalog is corrupt, merging into an empty catalog", zap.Error(err))
		existing = []Record{}
	}

	staged, err := m.staging.Drain()
	if err != nil {
		return MergeCounts{}, nil, fmt.Errorf("failed to drain staging log: %w", err)
	}

	counts, merged := Combine(existing, staged)

	if err := m.store.Save(merged.Records()); err != nil {
		return counts, nil, err
	}

	if err := m.staging.Clear(); err != nil {
		// The snapshot already holds these records; re-merging them is harmless.
		m.logger.Warn("Failed to clear staging log after merge", zap.Error(err))
	}

	m.logger.Debug("Catalog merged",
		zap.Int("before", counts.Before),
		zap.Int("staged", counts.Staged),
		zap.Int("added", counts.Added),
		zap.Int("removed", counts.Removed),
		zap.Int("after", counts.After),
	)

	return counts, merged, nil
}

// Combine is the pure part of Merge: existing ++ staged, latest entry per ID,
// active records only.
func Combine(existing, staged []Record) (MergeCounts, *Catalog) {
	seen := make(map[int64]struct{}, len(existing))
	for _, r := range existing {
		seen[r.ID] = struct{}{}
	}

	union := make([]Record, 0, len(existing)+len(staged))
	union = append(union, existing...)
	union = append(union, staged...)

	merged := build(Active(Dedupe(union)))

	counts := MergeCounts{
		Before: len(existing),
		After:  merged.Len(),
		Staged: len(staged),
	}
	for _, r := range merged.records {
		if _, ok := seen[r.ID]; !ok {
			counts.Added++
		}
	}
	for id := range seen {
		if _, ok := merged.index[id]; !ok {
			counts.Removed++
		}
	}
	return counts, merged
}
