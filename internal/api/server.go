package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"lane-defense/internal/command"
	"lane-defense/internal/game"
	"lane-defense/internal/store"
	"lane-defense/pkg/logger"
)

// ServerConfig configures the full API server
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	RateLimit      RateLimitConfig
	CommandLimit   command.RateLimitConfig
	AdminToken     string
	BroadcastFPS   int
	Results        store.Store
}

// Server is the HTTP API server with WebSocket support.
// It combines the HTTP router with the websocket hub and command queue.
type Server struct {
	cfg         ServerConfig
	engine      *game.Engine
	router      *chi.Mux
	wsHub       *WebSocketHub
	queue       *command.Queue
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// NewServer creates a new API server.
//
// Background workers do NOT start until Start is called, so tests can
// construct the server and drive Router() with httptest.
func NewServer(engine *game.Engine, cfg ServerConfig) *Server {
	if cfg.RateLimit.RequestsPerSecond <= 0 {
		cfg.RateLimit = DefaultRateLimitConfig
	}
	s := &Server{
		cfg:         cfg,
		engine:      engine,
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
	}

	commands := command.NewHandler(engine, cfg.CommandLimit)
	commands.LockRestart(cfg.AdminToken != "")
	s.queue = command.NewQueue(commands, command.DefaultQueueConfig())

	origins := cfg.AllowedOrigins
	if origins == nil {
		origins = DefaultCORSOrigins
	}
	s.wsHub = NewWebSocketHub(NewOriginChecker(origins), s.queue)

	s.router = NewRouter(RouterConfig{
		Engine:      engine,
		Commands:    commands,
		Results:     cfg.Results,
		RateLimiter: s.rateLimiter,
		CORSOrigins: origins,
		AdminToken:  cfg.AdminToken,
		Stats:       s.stats,
	})
	s.router.Get("/ws", s.wsHub.HandleWebSocket)

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) stats() map[string]interface{} {
	return map[string]interface{}{
		"wsClients": s.wsHub.ClientCount(),
		"commands":  s.queue.Stats(),
		"rateLimit": s.rateLimiter.GetStats(),
	}
}

// Start launches background workers and serves until Shutdown.
// It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.queue.Start()
	go s.wsHub.Run()
	s.wsHub.StartBroadcastLoop(s.engine, s.cfg.BroadcastFPS)

	logger.Log.WithFields(logrus.Fields{
		"addr": s.cfg.Addr,
		"fps":  s.cfg.BroadcastFPS,
	}).Info("🌐 API server starting")

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest
func (s *Server) Router() http.Handler {
	return s.router
}

// Shutdown stops the listener, then the websocket hub, command queue and rate limiter
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	s.wsHub.Stop()
	s.queue.Stop()
	s.rateLimiter.Stop()
	return err
}
