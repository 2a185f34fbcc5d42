package server

import (
	"errors"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"

	"github.com/dwalsh-mfg/barcode-verifier/internal/common"
	"github.com/dwalsh-mfg/barcode-verifier/internal/export"
	"github.com/dwalsh-mfg/barcode-verifier/internal/hub"
	"github.com/dwalsh-mfg/barcode-verifier/internal/verify"
)

// Server wires the verification engine to the HTTP surface. Everything
// here is glue: decode, call the engine, map the error, encode.
type Server struct {
	engine     *verify.Engine
	exports    *export.Service
	hub        *hub.Hub
	adminToken string
	log        *slog.Logger

	app *fiber.App
}

func New(engine *verify.Engine, exports *export.Service, h *hub.Hub, adminToken string, log *slog.Logger) *Server {
	s := &Server{
		engine:     engine,
		exports:    exports,
		hub:        h,
		adminToken: adminToken,
		log:        log,
	}

	app := fiber.New(fiber.Config{
		AppName:               "barcode-verifier",
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, X-Admin-Token",
	}))
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")
	api.Get("/status", s.getStatus)
	api.Get("/hourly_stats", s.getHourlyStats)
	api.Post("/job/start", s.startJob)
	api.Post("/job/end", s.endJob)
	api.Get("/job/:id", s.getJob)
	api.Post("/verify_pin", s.verifyPin)
	api.Post("/scan", s.processScan)
	api.Get("/events", s.streamEvents)
	api.Get("/export_csv", s.exportCSV)
	api.Get("/export_xlsx", s.exportXLSX)
	api.Get("/backup", s.backup)
	api.Post("/restore", s.restore)

	s.app = app
	return s
}

// Listen serves until the listener fails or Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.log.Info("http server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// respondError maps the core error taxonomy onto HTTP statuses. Nothing
// is retried here; every one of these is caller-correctable.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	var rle *common.RateLimitedError
	switch {
	case errors.As(err, &rle):
		c.Set("Retry-After", strconv.Itoa(int(rle.RetryAfter.Seconds())+1))
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": rle.Error()})
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, common.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, common.ErrNoActiveJob):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, common.ErrLineLocked):
		return c.Status(fiber.StatusLocked).JSON(fiber.Map{"error": "line is locked, supervisor PIN required"})
	case errors.Is(err, common.ErrInvalidPIN):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "invalid supervisor PIN"})
	case errors.Is(err, common.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, common.ErrUnauthorized):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "unauthorized"})
	default:
		s.log.Error("request failed", "path", c.Path(), "err", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
	}
}
