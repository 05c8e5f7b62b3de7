// Package dashboard serves the run history API: run listings, traces, a live
// SSE trace stream, workspace browsing and background run submission.
package dashboard

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/p-blackswan/skillforge/internal/health"
	"github.com/p-blackswan/skillforge/internal/metrics"
	"github.com/p-blackswan/skillforge/internal/requestid"
)

// ServerConfig holds configuration for the dashboard server.
type ServerConfig struct {
	ListenAddr  string
	CORSOrigins string
	RateLimit   RateLimitConfig
	APIKey      string // required as a bearer token on POST routes when set
}

// Server is the dashboard Fiber application.
type Server struct {
	app      *fiber.App
	handlers *Handlers
	logger   zerolog.Logger
	config   ServerConfig
}

// NewServer creates and configures a new dashboard server.
func NewServer(
	cfg ServerConfig,
	handlers *Handlers,
	checker *health.Checker,
	metricsCollector *metrics.Metrics,
	logger zerolog.Logger,
) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler(logger),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ReadBufferSize:        8192,
		WriteBufferSize:       8192,
	})

	s := &Server{
		app:      app,
		handlers: handlers,
		logger:   logger.With().Str("component", "dashboard").Logger(),
		config:   cfg,
	}

	s.setupMiddleware(cfg, metricsCollector)
	s.setupRoutes(cfg, handlers, checker, metricsCollector)

	return s
}

func requestID(c *fiber.Ctx) string {
	return requestid.Get(c)
}

func (s *Server) setupMiddleware(cfg ServerConfig, m *metrics.Metrics) {
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	s.app.Use(requestid.Middleware())

	if cfg.CORSOrigins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
			AllowMethods: "GET, POST, OPTIONS",
		}))
	}

	if cfg.RateLimit.RPS > 0 {
		s.app.Use(NewRateLimitMiddleware(cfg.RateLimit))
	}

	// Access log and request metrics.
	s.app.Use(func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		if isProbe(path) {
			return err
		}
		route := path
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}
		code := c.Response().StatusCode()
		m.RecordHTTPRequest(c.Method(), route, strconv.Itoa(code))

		s.logger.Info().
			Str("method", c.Method()).
			Str("path", path).
			Int("status", code).
			Str("ip", c.IP()).
			Str("request_id", requestID(c)).
			Dur("elapsed", time.Since(start)).
			Msg("dashboard request")
		return err
	})
}

func (s *Server) setupRoutes(cfg ServerConfig, h *Handlers, checker *health.Checker, m *metrics.Metrics) {
	s.app.Get("/healthz", health.Liveness)
	s.app.Get("/readyz", checker.Readiness)

	if m != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	} else {
		s.app.Get("/metrics", func(c *fiber.Ctx) error {
			return c.SendString("# No metrics collector configured\n")
		})
	}

	api := s.app.Group("/api")
	api.Get("/runs", h.ListRuns)
	api.Post("/runs/execute", NewAuthMiddleware(cfg.APIKey, s.logger), h.ExecuteRun)
	api.Get("/runs/:id", h.GetRun)
	api.Get("/runs/:id/trace", h.GetTrace)
	api.Get("/runs/:id/stream", h.StreamTrace)
	api.Get("/runs/:id/files", h.GetFiles)
	api.Get("/runs/:id/file", h.GetFile)
	api.Get("/skills", h.ListSkills)
}

// Start starts the server. Blocks until stopped.
func (s *Server) Start() error {
	addr := s.config.ListenAddr
	if addr == "" {
		addr = ":8000"
	}
	s.logger.Info().Str("addr", addr).Msg("dashboard starting")
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("dashboard shutting down")
	return s.app.ShutdownWithContext(ctx)
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}
