package integrity

import (
	"context"
	"errors"

	"catalog-sync/core/catalog"
	"catalog-sync/core/scan"
	"catalog-sync/core/storage"
	"catalog-sync/feature/integrity/checks"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrMirrorDisabled is returned when no snapshot mirror is configured.
	ErrMirrorDisabled = errors.New("snapshot mirror is disabled")
	// ErrHistoryDisabled is returned when no history database is configured.
	ErrHistoryDisabled = errors.New("run history is disabled")
)

// Deduper rewrites the snapshot without duplicates or inactive listings.
type Deduper interface {
	Dedupe(ctx context.Context) (scan.Summary, error)
}

// Service handles integrity checks.
type Service struct {
	store   *catalog.SnapshotStore
	staging *catalog.StagingStore
	engine  Deduper
	client  storage.Client
	mirror  *storage.Mirror
	db      *gorm.DB
	logger  *zap.Logger
}

// NewService creates a new integrity service. client, mirror and db may be
// nil when the matching component is disabled.
func NewService(store *catalog.SnapshotStore, staging *catalog.StagingStore, engine Deduper, client storage.Client, mirror *storage.Mirror, db *gorm.DB, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:   store,
		staging: staging,
		engine:  engine,
		client:  client,
		mirror:  mirror,
		db:      db,
		logger:  logger,
	}
}

// CheckSnapshot inspects the local snapshot and the staging log.
func (s *Service) CheckSnapshot() (*checks.SnapshotReport, error) {
	return checks.CheckSnapshot(s.store, s.staging)
}

// FixSnapshot rewrites the snapshot through the engine.
func (s *Service) FixSnapshot(ctx context.Context) (scan.Summary, error) {
	return s.engine.Dedupe(ctx)
}

// CheckMirror inspects the published copy.
func (s *Service) CheckMirror(ctx context.Context) (*checks.MirrorReport, error) {
	if s.mirror == nil || s.client == nil {
		return nil, ErrMirrorDisabled
	}
	return checks.CheckMirror(ctx, s.client, s.mirror)
}

// FixMirror creates the bucket and publishes the local snapshot.
func (s *Service) FixMirror(ctx context.Context) error {
	if s.mirror == nil {
		return ErrMirrorDisabled
	}
	return checks.FixMirror(ctx, s.mirror, s.store, s.logger)
}

// CheckHistory inspects the history table.
func (s *Service) CheckHistory() (*checks.SchemaReport, error) {
	if s.db == nil {
		return nil, ErrHistoryDisabled
	}
	return checks.CheckHistorySchema(s.db)
}

// FixHistory migrates the history table.
func (s *Service) FixHistory() error {
	if s.db == nil {
		return ErrHistoryDisabled
	}
	return checks.FixHistorySchema(s.db)
}
