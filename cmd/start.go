package cmd

import (
	"context"
	"errors"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"catalog-sync/core/loader"
	"catalog-sync/core/logger"
	"catalog-sync/core/metrics"
	"catalog-sync/core/middleware/auth"
	"catalog-sync/core/middleware/rayid"
	"catalog-sync/core/scan"
	"catalog-sync/feature/integrity"
	"catalog-sync/feature/marketplace"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// startCmd represents the start command
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the catalog server",
	Long: `Loads the persisted catalog, starts the HTTP server and initializes all
enabled features. When sync.interval is set, an incremental update followed by
a low stock refresh runs on that interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer rt.Close()
		logg := rt.logger
		cfg := rt.cfg

		app := fiber.New(fiber.Config{
			DisableStartupMessage: true,
		})

		svc := rt.marketplaceService()
		mgr := loader.NewManager()
		mgr.Register(marketplace.NewFeature(svc))
		mgr.Register(integrity.NewFeature(integrity.NewService(rt.store, rt.staging, rt.engine, rt.client, rt.mirror, rt.db, logg.Named("integrity"))))

		// RayID first so every later log line carries it.
		app.Use(rayid.New())

		app.Use(func(c *fiber.Ctx) error {
			l := logger.WithRayID(logg, c)
			l.Info("Request started",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.String("ip", c.IP()),
			)
			err := c.Next()
			if err != nil {
				l.Error("Request error", zap.Error(err))
			}
			return err
		})

		app.Use(auth.New(auth.Config{ApiKey: cfg.Server.ApiKey, Skip: []string{"/metrics"}}))
		app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

		loaded, err := mgr.LoadAll(app)
		if err != nil {
			return err
		}
		logg.Info("Features loaded", zap.Strings("features", loaded))

		if cfg.Sync.Interval > 0 {
			stopPeriodic := startPeriodic(ctx, rt.engine, cfg.Sync, logg)
			// Runs before rt.Close so no chunk writes to a closed staging log.
			defer stopPeriodic()
		}

		errCh := make(chan error, 1)
		go func() {
			logg.Info("Starting server", zap.String("addr", cfg.Server.Addr()), zap.Bool("auth", cfg.Server.RequiresAuth()))
			errCh <- app.Listen(cfg.Server.Addr())
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		logg.Info("Shutting down server...")
		svc.Shutdown()
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logg.Warn("Server shutdown failed", zap.Error(err))
		}
		return nil
	},
}

// periodicEngine is the part of the engine the periodic catch-up drives.
type periodicEngine interface {
	IncrementalUpdate(ctx context.Context, window int64, batchSize int) (scan.Summary, error)
	RefreshLowStock(ctx context.Context, threshold int) (scan.Summary, error)
}

// startPeriodic keeps the catalog current while serving. A step that finds
// another operation running is skipped. The returned function cancels the
// loop and waits for the step in flight to finish.
func startPeriodic(ctx context.Context, engine periodicEngine, cfg scan.Config, l *zap.Logger) func() {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runPeriodic(ctx, engine, cfg, l)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

func runPeriodic(ctx context.Context, engine periodicEngine, cfg scan.Config, l *zap.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if _, err := engine.IncrementalUpdate(ctx, cfg.WindowSize, cfg.BatchSize); err != nil {
			logPeriodic(l, scan.KindIncremental, err)
		}
		if ctx.Err() != nil {
			return
		}
		if _, err := engine.RefreshLowStock(ctx, cfg.LowStockThreshold); err != nil {
			logPeriodic(l, scan.KindRefresh, err)
		}
	}
}

func logPeriodic(l *zap.Logger, kind scan.Kind, err error) {
	switch {
	case errors.Is(err, scan.ErrBusy):
		l.Debug("Periodic sync skipped, engine busy", zap.String("kind", string(kind)))
	case errors.Is(err, scan.ErrEmptyCatalog):
		l.Info("Periodic sync skipped, catalog is empty", zap.String("kind", string(kind)))
	case errors.Is(err, context.Canceled):
	default:
		l.Warn("Periodic sync failed", zap.String("kind", string(kind)), zap.Error(err))
	}
}

func init() {
	RootCmd.AddCommand(startCmd)
}
