package integrity

import (
	"errors"

	"catalog-sync/core/catalog"
	"catalog-sync/core/logger"
	"catalog-sync/core/scan"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for integrity checks.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the integrity routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/integrity")
	group.Get("/", h.HandleIntegrityCheck)
	group.Get("/snapshot", h.HandleSnapshotCheck)
	group.Get("/mirror", h.HandleMirrorCheck)
	group.Get("/history", h.HandleHistoryCheck)
}

// HandleIntegrityCheck runs all checks without fixing anything.
func (h *Handler) HandleIntegrityCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	l.Info("Triggering all integrity checks")

	ctx := c.UserContext()
	report := make(map[string]any)

	if snap, err := h.service.CheckSnapshot(); err != nil {
		report["snapshot"] = fiber.Map{"status": "error", "error": err.Error()}
	} else {
		report["snapshot"] = snap
	}

	if mirror, err := h.service.CheckMirror(ctx); err != nil {
		report["mirror"] = statusFor(err)
	} else {
		report["mirror"] = mirror
	}

	if hist, err := h.service.CheckHistory(); err != nil {
		report["history"] = statusFor(err)
	} else {
		report["history"] = hist
	}

	return c.JSON(report)
}

func statusFor(err error) fiber.Map {
	if errors.Is(err, ErrMirrorDisabled) || errors.Is(err, ErrHistoryDisabled) {
		return fiber.Map{"status": "disabled"}
	}
	return fiber.Map{"status": "error", "error": err.Error()}
}

// HandleSnapshotCheck checks and optionally repairs the local snapshot.
func (h *Handler) HandleSnapshotCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckSnapshot()
	if err != nil {
		l.Error("Snapshot check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if !report.Healthy() {
		l.Warn("Snapshot issues detected",
			zap.Int("duplicates", len(report.Duplicates)),
			zap.Int("inactive", len(report.Inactive)),
			zap.Int("staged", report.StagedEntries),
			zap.Bool("corrupt", report.Corrupt))

		if fix {
			l.Info("Attempting to repair snapshot")
			sum, err := h.service.FixSnapshot(c.UserContext())
			if err != nil {
				status := fiber.StatusInternalServerError
				if errors.Is(err, scan.ErrBusy) || errors.Is(err, catalog.ErrLocked) {
					status = fiber.StatusConflict
				}
				return c.Status(status).JSON(fiber.Map{
					"error":   "Failed to repair snapshot",
					"details": err.Error(),
					"report":  report,
				})
			}
			return c.JSON(fiber.Map{
				"status":  "fixed",
				"summary": sum,
			})
		}
	}

	return c.JSON(fiber.Map{
		"status": "checked",
		"report": report,
	})
}

// HandleMirrorCheck checks and optionally repairs the snapshot mirror.
func (h *Handler) HandleMirrorCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckMirror(c.UserContext())
	if err != nil {
		if errors.Is(err, ErrMirrorDisabled) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Mirror check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if !report.Healthy() {
		l.Warn("Mirror issues detected",
			zap.Bool("bucket_exists", report.BucketExists),
			zap.Bool("latest_present", report.LatestPresent))

		if fix {
			l.Info("Attempting to repair mirror")
			if err := h.service.FixMirror(c.UserContext()); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
					"error":   "Failed to repair mirror",
					"details": err.Error(),
					"report":  report,
				})
			}
			return c.JSON(fiber.Map{"status": "fixed"})
		}
	}

	return c.JSON(fiber.Map{
		"status": "checked",
		"report": report,
	})
}

// HandleHistoryCheck checks and optionally migrates the history table.
func (h *Handler) HandleHistoryCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)
	fix := c.Query("fix") == "true"

	report, err := h.service.CheckHistory()
	if err != nil {
		if errors.Is(err, ErrHistoryDisabled) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("History schema check failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if !report.Healthy() && fix {
		l.Info("Migrating history table", zap.Strings("missing", report.MissingColumns))
		if err := h.service.FixHistory(); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "Failed to migrate history table",
				"details": err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status": "fixed",
			"fixed":  report.MissingColumns,
		})
	}

	return c.JSON(fiber.Map{
		"status": "checked",
		"report": report,
	})
}
