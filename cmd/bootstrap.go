package cmd

import (
	"context"
	"fmt"

	"catalog-sync/core/catalog"
	"catalog-sync/core/config"
	"catalog-sync/core/database"
	"catalog-sync/core/history"
	"catalog-sync/core/logger"
	"catalog-sync/core/metrics"
	"catalog-sync/core/probe"
	"catalog-sync/core/ratelimit"
	"catalog-sync/core/scan"
	"catalog-sync/core/storage"
	"catalog-sync/feature/marketplace"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime holds the wired components shared by every command.
type runtime struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *catalog.SnapshotStore
	staging  *catalog.StagingStore
	engine   *scan.Engine
	client   storage.Client
	mirror   *storage.Mirror
	db       *gorm.DB
	recorder *history.Recorder
}

// bootstrap loads the configuration and wires the engine. A mirror whose
// bucket cannot be reached is kept for integrity checks but not used by the
// engine. A history database that fails to connect is logged and left nil.
func bootstrap(ctx context.Context) (*runtime, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logg, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	zap.ReplaceGlobals(logg)

	rt := &runtime{cfg: cfg, logger: logg}
	mirrorReady := false

	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to create storage client: %w", err)
		}
		rt.client = client
		rt.mirror = storage.NewMirror(client, cfg.Storage, nil, logg.Named("mirror"))
		if err := rt.mirror.Ensure(ctx); err != nil {
			logg.Warn("Snapshot mirror unavailable", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
		} else {
			mirrorReady = true
		}
	}

	if cfg.Database.Enabled {
		if conn, err := database.Connect(cfg.Database); err != nil {
			logg.Warn("Optional database connection failed", zap.Error(err))
		} else if rec, err := history.NewRecorder(conn); err != nil {
			logg.Warn("Run history unavailable", zap.Error(err))
		} else {
			rt.db, rt.recorder = conn, rec
			logg.Info("Run history enabled", zap.String("driver", cfg.Database.Driver))
		}
	}

	limiter := ratelimit.New(cfg.Remote.Limiter(), nil)
	limiter.OnWait = metrics.ObserveRateLimitWait
	source := marketplace.NewHTTPSource(cfg.Remote, nil)
	prober := probe.New(source, limiter, cfg.Remote.Policy(), nil, logg.Named("probe"))

	rt.store = catalog.NewSnapshotStore(cfg.Sync.DataDir, cfg.Sync.CatalogFile)
	rt.staging = catalog.NewStagingStore(cfg.Sync.DataDir, cfg.Sync.StagingFile, logg.Named("staging"))

	opts := scan.Options{
		ChunkSize: cfg.Sync.ChunkSize,
		Logger:    logg.Named("engine"),
	}
	if mirrorReady {
		opts.Mirror = rt.mirror
	}
	if rt.recorder != nil {
		opts.Recorder = rt.recorder
	}
	rt.engine = scan.New(rt.store, rt.staging, prober, opts)

	if err := rt.engine.Open(ctx); err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	return rt, nil
}

func (rt *runtime) marketplaceService() *marketplace.Service {
	return marketplace.NewService(rt.engine, rt.recorder, rt.cfg.Sync, rt.cfg.Remote.ItemURLBase, rt.logger.Named("marketplace"))
}

func (rt *runtime) Close() {
	if err := rt.engine.Close(); err != nil {
		rt.logger.Warn("Failed to close staging log", zap.Error(err))
	}
	if rt.db != nil {
		if sqlDB, err := rt.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	_ = rt.logger.Sync()
}
