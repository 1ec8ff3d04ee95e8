package history

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"catalog-sync/core/scan"

	"gorm.io/gorm"
)

const (
	StatusOK       = "ok"
	StatusError    = "error"
	StatusCanceled = "canceled"
)

// ScanRun is one finished engine operation.
type ScanRun struct {
	ID     string `gorm:"primaryKey;size:36" json:"id"`
	Kind   string `gorm:"size:16;index" json:"kind"`
	Status string `gorm:"size:16" json:"status"`
	Error  string `gorm:"size:512" json:"error,omitempty"`

	StartID int64 `json:"start_id"`
	EndID   int64 `json:"end_id"`

	Checked  int `json:"checked"`
	Found    int `json:"found"`
	Inactive int `json:"inactive"`
	Missing  int `json:"missing"`
	Added    int `json:"added"`
	Updated  int `json:"updated"`
	Removed  int `json:"removed"`
	Batches  int `json:"batches"`

	RecordsBefore int `json:"records_before"`
	RecordsAfter  int `json:"records_after"`

	StartedAt  time.Time `gorm:"index" json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// TableName pins the table name.
func (ScanRun) TableName() string {
	return "scan_runs"
}

// Columns lists the columns the history table must have.
func Columns() []string {
	return []string{
		"id", "kind", "status", "error", "start_id", "end_id",
		"checked", "found", "inactive", "missing", "added", "updated", "removed", "batches",
		"records_before", "records_after", "started_at", "finished_at",
	}
}

// Recorder writes and reads run history.
type Recorder struct {
	db *gorm.DB
}

// NewRecorder migrates the history table and returns a Recorder.
func NewRecorder(db *gorm.DB) (*Recorder, error) {
	if err := db.AutoMigrate(&ScanRun{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history table: %w", err)
	}
	return &Recorder{db: db}, nil
}

// DB returns the underlying connection.
func (r *Recorder) DB() *gorm.DB {
	return r.db
}

// Record stores the summary of a finished operation.
func (r *Recorder) Record(ctx context.Context, s scan.Summary, runErr error) error {
	run := FromSummary(s, runErr)
	if err := r.db.WithContext(ctx).Create(&run).Error; err != nil {
		return fmt.Errorf("failed to record run %s: %w", s.RunID, err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]ScanRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []ScanRun
	if err := r.db.WithContext(ctx).Order("started_at desc").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to load run history: %w", err)
	}
	return runs, nil
}

// Get returns one run by ID, or nil when it does not exist.
func (r *Recorder) Get(ctx context.Context, id string) (*ScanRun, error) {
	var run ScanRun
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	return &run, nil
}

// FromSummary converts an engine summary into a history row.
func FromSummary(s scan.Summary, runErr error) ScanRun {
	run := ScanRun{
		ID:            s.RunID,
		Kind:          string(s.Kind),
		Status:        StatusOK,
		StartID:       s.StartID,
		EndID:         s.EndID,
		Checked:       s.Checked,
		Found:         s.Found,
		Inactive:      s.Inactive,
		Missing:       s.Missing,
		Added:         s.Added,
		Updated:       s.Updated,
		Removed:       s.Removed,
		Batches:       s.Batches,
		RecordsBefore: s.Before,
		RecordsAfter:  s.After,
		StartedAt:     s.StartedAt,
		FinishedAt:    s.FinishedAt,
	}
	switch {
	case s.Canceled:
		run.Status = StatusCanceled
	case runErr != nil:
		run.Status = StatusError
	}
	if runErr != nil {
		run.Error = truncate(runErr.Error(), maxErrorLen)
	}
	return run
}

const maxErrorLen = 512

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
