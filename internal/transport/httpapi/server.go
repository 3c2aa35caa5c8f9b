// Package httpapi exposes the allocation service as a JSON API on fiber.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"markalloc/internal/bootstrap/logging"
	"markalloc/internal/errs"
	"markalloc/internal/usecase/allocation"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"
	requestTimeout  = 30 * time.Second
)

type Handler struct {
	svc      *allocation.Service
	validate *validator.Validate
}

// NewApp builds the fiber application with every route registered. baseCtx carries the
// logger request contexts derive from.
func NewApp(baseCtx context.Context, svc *allocation.Service) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "markalloc",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(baseCtx),
	})

	app.Use(requestContext(baseCtx))

	h := &Handler{svc: svc, validate: validator.New()}
	h.Register(app)
	return app
}

func (h *Handler) Register(app *fiber.App) {
	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")

	cycles := api.Group("/cycles/:cycleID")
	cycles.Get("/", h.getCycle)
	cycles.Post("/close", h.closeCycle)
	cycles.Post("/archive", h.archive)
	cycles.Post("/notifications", h.notifyApproved)
	cycles.Get("/acceptances", h.listAcceptances)
	cycles.Get("/audit", h.listAudit)

	subjects := cycles.Group("/subjects/:subjectID")
	subjects.Post("/allocations", h.runAllocation)
	subjects.Get("/allocations", h.listAllocations)
	subjects.Get("/allocations/summary", h.lastRunSummary)
	subjects.Post("/waitlist/promotions", h.promoteWaitlist)
	subjects.Get("/pool", h.eligiblePool)
	subjects.Get("/compliance", h.quotaCompliance)
	subjects.Get("/quotas", h.listQuotas)
	subjects.Put("/quotas", h.setQuota)

	api.Post("/allocations/:allocationID/overrides", h.override)
}

// requestContext assigns a request id and a bounded context carrying request log attributes.
func requestContext(baseCtx context.Context) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(headerRequestID, id)

		ctx, cancel := context.WithTimeout(baseCtx, requestTimeout)
		defer cancel()
		ctx = logging.WithAttrs(ctx,
			slog.String("component", "transport.http"),
			slog.String("request_id", id),
		)
		c.SetUserContext(ctx)

		start := time.Now()
		err := c.Next()
		logging.Debug(ctx, "request handled",
			slog.String("method", c.Method()),
			slog.String("path", c.OriginalURL()),
			slog.Int("status", c.Response().StatusCode()),
			slog.Duration("duration", time.Since(start)),
		)
		return err
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func errorHandler(baseCtx context.Context) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorBody{Error: fe.Message, Kind: kindForStatus(fe.Code)})
		}

		status, body := classify(err)
		if status == fiber.StatusInternalServerError {
			ctx := c.UserContext()
			if ctx == nil {
				ctx = baseCtx
			}
			logging.Error(ctx, "request failed", slog.Any("err", errs.Loggable(err)))
		}
		return c.Status(status).JSON(body)
	}
}

func classify(err error) (int, errorBody) {
	var ce *errs.Error
	if !errors.As(err, &ce) {
		return fiber.StatusInternalServerError, errorBody{Error: "internal error", Kind: string(errs.KindInternal)}
	}

	body := errorBody{Error: ce.Message(), Kind: string(ce.Kind())}
	switch ce.Kind() {
	case errs.KindNotFound:
		return fiber.StatusNotFound, body
	case errs.KindInvalidState, errs.KindInvalidInput:
		return fiber.StatusBadRequest, body
	default:
		return fiber.StatusInternalServerError, errorBody{Error: "internal error", Kind: string(errs.KindInternal)}
	}
}

func kindForStatus(status int) string {
	switch status {
	case fiber.StatusNotFound:
		return string(errs.KindNotFound)
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return string(errs.KindInvalidInput)
	default:
		return string(errs.KindInternal)
	}
}
