// Package apistub is an in-memory implementation of the technician REST
// API, for local runs of the directory and for end-to-end tests of the
// client.
package apistub

import (
	"context"
	"errors"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server wraps the fiber app and the store behind it.
type Server struct {
	settings Settings
	store    *Store
	logger   *zap.Logger
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	app      *fiber.App
}

// Option customizes server construction.
type Option func(*Server)

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.Named("apistub")
		}
	}
}

// WithStore serves an existing store instead of a fresh one.
func WithStore(store *Store) Option {
	return func(s *Server) {
		if store != nil {
			s.store = store
		}
	}
}

// NewServer prepares the API using the provided settings.
func NewServer(settings Settings, opts ...Option) *Server {
	s := &Server{
		settings: settings,
		store:    NewStore(),
		logger:   zap.NewNop(),
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "techdir_stub_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "techdir_stub_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.registry.MustRegister(s.requests, s.duration)
	if settings.Seed && s.store.Len() == 0 {
		s.store.Seed(SeedData()...)
	}
	s.app = s.buildApp()
	return s
}

// App exposes the fiber app, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

// Store exposes the backing store.
func (s *Server) Store() *Store {
	return s.store
}

// Listen serves on the configured address until Shutdown.
func (s *Server) Listen() error {
	s.logger.Info("listening", zap.String("addr", s.settings.Address()), zap.Int("technicians", s.store.Len()))
	return s.app.Listen(s.settings.Address())
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func (s *Server) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "techdir-stub",
		DisableStartupMessage: true,
		BodyLimit:             s.settings.BodyLimit,
		ReadTimeout:           s.settings.ReadTimeout,
		WriteTimeout:          s.settings.WriteTimeout,
		IdleTimeout:           s.settings.IdleTimeout,
	})
	app.Use(s.requestLogger())
	app.Use(s.errorHandling())

	app.Get("/healthz", s.health)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := app.Group("/api/technicians")
	api.Get("/", s.list)
	api.Post("/", s.create)
	api.Patch("/:id", s.update)
	api.Delete("/:id", s.remove)
	return app
}

func (s *Server) errorHandling() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("panic recovered", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
				err = fiber.ErrInternalServerError
			}
			if err == nil {
				return
			}
			code := fiber.StatusInternalServerError
			message := "internal error"
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
				message = fe.Message
			}
			if code >= fiber.StatusInternalServerError {
				s.logger.Error("request failed", zap.Error(err))
			}
			err = c.Status(code).JSON(fiber.Map{"message": message})
		}()
		return c.Next()
	}
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		started := time.Now()
		err := c.Next()
		elapsed := time.Since(started)

		status := c.Response().StatusCode()
		route := c.Route().Path
		s.requests.WithLabelValues(c.Method(), route, strconv.Itoa(status)).Inc()
		s.duration.WithLabelValues(c.Method(), route).Observe(elapsed.Seconds())
		s.logger.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.String("request_id", c.Get("X-Request-ID")),
			zap.Duration("elapsed", elapsed))
		return err
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "technicians": s.store.Len()})
}

func (s *Server) list(c *fiber.Ctx) error {
	return c.JSON(s.store.List())
}

func (s *Server) create(c *fiber.Ctx) error {
	var in technicianInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	t, err := s.store.Create(in)
	if err != nil {
		return storeError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (s *Server) update(c *fiber.Ctx) error {
	var in technicianInput
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid payload")
	}
	t, err := s.store.Update(c.Params("id"), in)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(t)
}

func (s *Server) remove(c *fiber.Ctx) error {
	if err := s.store.Delete(c.Params("id")); err != nil {
		return storeError(err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func storeError(err error) error {
	switch {
	case errors.Is(err, errNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, errNameRequired), errors.Is(err, errPhoneRequired):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	default:
		return err
	}
}
