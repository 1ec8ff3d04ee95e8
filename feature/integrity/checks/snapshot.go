package checks

import (
	"errors"
	"fmt"

	"catalog-sync/core/catalog"
)

// SnapshotReport describes the health of the local catalog snapshot.
type SnapshotReport struct {
	Path          string  `json:"path"`
	Exists        bool    `json:"exists"`
	Corrupt       bool    `json:"corrupt"`
	Error         string  `json:"error,omitempty"`
	Records       int     `json:"records"`
	Cursor        int64   `json:"cursor"`
	Duplicates    []int64 `json:"duplicates"`
	Inactive      []int64 `json:"inactive"`
	Unsorted      bool    `json:"unsorted"`
	StagedEntries int     `json:"staged_entries"`
	Status        string  `json:"status"` // "ok", "issues", "error"
}

// Healthy reports whether the snapshot needs no repair.
func (r *SnapshotReport) Healthy() bool {
	return r.Status == "ok"
}

// CheckSnapshot inspects the persisted snapshot and the staging log. A corrupt
// snapshot is reported, not returned as an error.
func CheckSnapshot(store *catalog.SnapshotStore, staging *catalog.StagingStore) (*SnapshotReport, error) {
	report := &SnapshotReport{
		Path:       store.Path(),
		Exists:     store.Exists(),
		Duplicates: []int64{},
		Inactive:   []int64{},
		Status:     "ok",
	}

	staged, err := staging.Drain()
	if err != nil {
		return nil, fmt.Errorf("failed to read staging log: %w", err)
	}
	report.StagedEntries = len(staged)

	records, err := store.Load()
	if err != nil {
		if !errors.Is(err, catalog.ErrCorrupt) {
			return nil, err
		}
		report.Corrupt = true
		report.Error = err.Error()
		report.Status = "error"
		return report, nil
	}
	report.Records = len(records)

	seen := make(map[int64]struct{}, len(records))
	var prev int64
	for i, r := range records {
		if _, dup := seen[r.ID]; dup {
			report.Duplicates = append(report.Duplicates, r.ID)
		}
		seen[r.ID] = struct{}{}
		if !r.IsActive() {
			report.Inactive = append(report.Inactive, r.ID)
		}
		if i > 0 && r.ID <= prev {
			report.Unsorted = true
		}
		prev = r.ID
		report.Cursor = max(report.Cursor, r.ID)
	}

	if len(report.Duplicates) > 0 || len(report.Inactive) > 0 || report.Unsorted || report.StagedEntries > 0 {
		report.Status = "issues"
	}
	return report, nil
}
