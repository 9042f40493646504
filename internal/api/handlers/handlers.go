package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/acme/call-connection/internal/repository"
	connsvc "github.com/acme/call-connection/internal/service/connection"
)

// HealthCheck probes a backing dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators of the HTTP handlers.
type Dependencies struct {
	Connections  *connsvc.Service
	Events       repository.ConnectionEventStore
	Stats        repository.DisconnectStatisticsRepository
	HealthChecks map[string]HealthCheck
	Logger       *zap.Logger
}

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	connections *connsvc.Service
	events      repository.ConnectionEventStore
	stats       repository.DisconnectStatisticsRepository
	checks      map[string]HealthCheck
	logger      *zap.Logger
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(deps Dependencies) *HandlerSet {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HandlerSet{
		connections: deps.Connections,
		events:      deps.Events,
		stats:       deps.Stats,
		checks:      deps.HealthChecks,
		logger:      logger,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	api := app.Group("/api")
	v1 := api.Group("/v1")

	connections := v1.Group("/connections")
	connections.Post("/", h.createConnection)
	connections.Get("/", h.listConnections)
	connections.Get("/:id", h.getConnection)
	connections.Get("/:id/events", h.listConnectionEvents)

	connections.Post("/:id/answer", h.answer)
	connections.Post("/:id/reject", h.reject)
	connections.Post("/:id/hold", h.hold)
	connections.Post("/:id/abort", h.abort)
	connections.Post("/:id/disconnect", h.disconnect)
	connections.Post("/:id/show-incoming-ui", h.showIncomingUI)
	connections.Post("/:id/silence", h.silence)
	connections.Post("/:id/call-state", h.pushCallState)

	connections.Get("/:id/audio", h.getAudio)
	connections.Post("/:id/audio/route", h.audioRoute)
	connections.Post("/:id/audio/endpoints", h.audioEndpoints)
	connections.Post("/:id/audio/endpoint", h.audioEndpoint)
	connections.Post("/:id/audio/mute", h.audioMute)
	connections.Post("/:id/audio/output", h.audioOutput)

	connections.Post("/:id/activity/:event", h.activity)

	accounts := v1.Group("/accounts")
	accounts.Get("/:account/disconnect-stats", h.disconnectStats)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err), zap.String("path", ctx.Path()))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)
	for name, check := range h.checks {
		if err := check(healthCtx); err != nil {
			errs[name] = err.Error()
		}
	}

	status := fiber.StatusOK
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
	}

	return ctx.Status(status).JSON(fiber.Map{"status": "ok", "errors": errs})
}
