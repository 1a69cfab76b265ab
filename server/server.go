// Package server implements the OIB chat proxy: it validates inbound chat
// requests, rate-limits callers, dispatches to a hosted model provider, and
// relays the answer back either as one JSON response or as a stream of
// server-sent-event frames.
package server

import (
	"fmt"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/oibchat/oib/pkg/metrics"
	"github.com/oibchat/oib/pkg/provider"
	"github.com/oibchat/oib/pkg/ratelimit"
)

// Server is the chat proxy. It holds no per-conversation state: thread
// history lives with clients, and the only cross-request resource is the
// rate-limit counter table.
type Server struct {
	config   Config
	logger   *zap.Logger
	resolver provider.Resolver
	limiter  ratelimit.Limiter
	metrics  *metrics.Metrics
	redis    *ratelimit.Redis
	app      *fiber.App
}

// New creates a Server. Missing provider credentials fail here, at startup,
// rather than surfacing per request.
func New(config Config, logger *zap.Logger) (*Server, error) {
	resolver, err := provider.NewRegistry(provider.Credentials{
		XAIAPIKey:  config.XAIAPIKey,
		GroqAPIKey: config.GroqAPIKey,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		config:   config,
		logger:   logger,
		resolver: resolver,
		metrics:  metrics.New(),
	}

	if config.RedisURL != "" {
		rl, err := ratelimit.NewRedis(config.RedisURL, config.RateLimit.Limit, config.RateLimit.Window())
		if err != nil {
			return nil, fmt.Errorf("create redis limiter: %w", err)
		}
		s.redis = rl
		s.limiter = rl
		logger.Info("using redis rate limiting", zap.String("url", config.RedisURL))
	} else {
		s.limiter = ratelimit.NewFixedWindow(config.RateLimit.Limit, config.RateLimit.Window())
		logger.Info("using in-memory rate limiting")
	}

	s.app = s.newApp()
	return s, nil
}

// newApp builds the fiber app and registers routes.
func (s *Server) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	app.Post("/chat", s.handleChat)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	if s.metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(
			promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})))
	}

	return app
}

// Run starts the proxy server on the configured listening address.
func (s *Server) Run() error {
	s.logger.Info("starting chat proxy",
		zap.String("listen", s.config.ListenAddr),
		zap.Int("rate_limit", s.config.RateLimit.Limit),
		zap.Int("rate_window_seconds", s.config.RateLimit.WindowSeconds),
	)

	return s.app.Listen(s.config.ListenAddr)
}

// Close shuts down the server and releases resources.
func (s *Server) Close() error {
	if err := s.app.Shutdown(); err != nil {
		return err
	}
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
