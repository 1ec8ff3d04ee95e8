package marketplace

import (
	"errors"

	"catalog-sync/core/catalog"
	"catalog-sync/core/logger"
	"catalog-sync/core/scan"

	"github.com/gofiber/fiber/v2"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the catalog and sync operations.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// Listing is a record with its derived page URL.
type Listing struct {
	catalog.Record
	URL string `json:"url,omitempty"`
}

// UnmarshalJSON keeps the URL next to the record's own decoding.
func (l *Listing) UnmarshalJSON(data []byte) error {
	if err := l.Record.UnmarshalJSON(data); err != nil {
		return err
	}
	l.URL = gjson.GetBytes(data, "url").String()
	return nil
}

// RegisterRoutes registers the catalog and sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	cat := app.Group("/catalog")
	cat.Get("/", h.HandleList)
	cat.Get("/search", h.HandleSearch)
	cat.Get("/stats", h.HandleStats)
	cat.Get("/:id", h.HandleGet)

	jobs := app.Group("/sync")
	jobs.Get("/status", h.HandleStatus)
	jobs.Get("/history", h.HandleHistory)
	jobs.Post("/:kind", h.HandleStart)
}

// HandleList returns the catalog, one page at a time.
func (h *Handler) HandleList(c *fiber.Ctx) error {
	records := h.service.engine.CurrentCatalog().Records()
	return c.JSON(Paginate(records, c.QueryInt("page", 1), c.QueryInt("size", 50)))
}

// HandleSearch returns purchasable listings matching q, cheapest first.
func (h *Handler) HandleSearch(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query parameter q is required"})
	}
	page := Paginate(h.service.Search(query), c.QueryInt("page", 1), PageSize)
	page.Query = query
	return c.JSON(page)
}

// HandleStats returns catalog totals.
func (h *Handler) HandleStats(c *fiber.Ctx) error {
	return c.JSON(h.service.Stats())
}

// HandleGet returns one listing.
func (h *Handler) HandleGet(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "id must be a positive integer"})
	}
	r, ok := h.service.Get(int64(id))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "listing not found"})
	}
	return c.JSON(Listing{Record: r, URL: h.service.ItemURL(r)})
}

// HandleStatus returns the engine phase and the last summary.
func (h *Handler) HandleStatus(c *fiber.Ctx) error {
	return c.JSON(h.service.Status())
}

// HandleHistory returns recorded runs, newest first.
func (h *Handler) HandleHistory(c *fiber.Ctx) error {
	if !h.service.HistoryEnabled() {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "run history is disabled"})
	}
	runs, err := h.service.History(c.UserContext(), c.QueryInt("limit", 20))
	if err != nil {
		logger.WithRayID(h.logger, c).Error("Failed to read run history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(runs)
}

// HandleStart starts a sync operation in the background.
func (h *Handler) HandleStart(c *fiber.Ctx) error {
	l := logger.WithRayID(h.logger, c)
	kind := scan.Kind(c.Params("kind"))

	var params JobParams
	if err := c.QueryParser(&params); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&params); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	job, err := h.service.StartJob(kind, params)
	if err != nil {
		l.Warn("Sync request rejected", zap.String("kind", string(kind)), zap.Error(err))
		return c.Status(errorStatus(err)).JSON(fiber.Map{"error": err.Error()})
	}

	l.Info("Sync accepted", zap.String("kind", string(kind)))
	return c.Status(fiber.StatusAccepted).JSON(job)
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, scan.ErrBusy), errors.Is(err, catalog.ErrLocked):
		return fiber.StatusConflict
	case errors.Is(err, scan.ErrEmptyCatalog), errors.Is(err, scan.ErrInvalidRange):
		return fiber.StatusBadRequest
	case errors.Is(err, ErrUnknownKind):
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
