package api

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"lane-defense/internal/command"
	"lane-defense/internal/game"
	"lane-defense/internal/render"
	"lane-defense/internal/store"
)

// EngineInterface is the part of game.Engine the HTTP layer uses
type EngineInterface interface {
	command.Controller
	// GetSnapshot returns the latest published snapshot
	GetSnapshot() *game.GameSnapshot
	// Rules returns the constants table in effect
	Rules() game.Rules
	// Summary returns the current run totals
	Summary() game.RunSummary
	// RecentEvents returns up to n of the newest simulation events
	RecentEvents(n int) []game.Event
	// GetEventLogStats returns event log counters
	GetEventLogStats() map[string]interface{}
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
//	router := api.NewRouter(api.RouterConfig{
//	    Engine:          engine,
//	    RateLimitConfig: &api.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Engine is the simulation host (required)
	Engine EngineInterface

	// Commands executes text commands. Built from Engine when nil.
	Commands *command.Handler

	// Results lists finished runs. Defaults to a store that keeps nothing.
	Results store.Store

	// FrameWidth and FrameHeight size /frame.png (default 640x400)
	FrameWidth  int
	FrameHeight int

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimitConfig.
	RateLimiter     *IPRateLimiter
	RateLimitConfig *RateLimitConfig

	// CORSOrigins is the allow list for CORS and websocket origins. Nil allows localhost only.
	CORSOrigins []string

	// AdminToken guards /api/restart and the restart command. When set, Commands
	// only restarts for /api/command requests carrying the token. Empty leaves both open.
	AdminToken string

	// Stats adds host-level counters to /api/stats
	Stats func() map[string]interface{}

	// DisableLogging disables the request logger middleware (useful for benchmarks)
	DisableLogging bool
}

// DefaultCORSOrigins allows local development pages on any port
var DefaultCORSOrigins = []string{
	"http://localhost:*",
	"http://127.0.0.1:*",
}

type routerHandlers struct {
	engine   EngineInterface
	commands *command.Handler
	results  store.Store
	stats    func() map[string]interface{}
	admin    *AdminGuard

	renderMu sync.Mutex
	renderer *render.Renderer
}

// NewRouter constructs the HTTP router with all middleware and routes.
// It starts no goroutines other than the rate limiter's cleanup loop
// (none when RateLimiter is supplied) and opens no listeners.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Rate limiting before CORS to reject early
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rateLimitCfg := DefaultRateLimitConfig
		if cfg.RateLimitConfig != nil {
			rateLimitCfg = *cfg.RateLimitConfig
		}
		rateLimiter = NewIPRateLimiter(rateLimitCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = DefaultCORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Admin-Token"},
		MaxAge:         300,
	}))

	h := newRouterHandlers(cfg)

	r.Route("/api", func(r chi.Router) {
		// Observation
		r.Get("/state", h.handleGetState)
		r.Get("/stats", h.handleGetStats)
		r.Get("/rules", h.handleGetRules)
		r.Get("/events", h.handleGetEvents)
		r.Get("/results", h.handleGetResults)

		// Input
		r.Post("/select", h.handleSelect)
		r.Post("/place", h.handlePlace)
		r.Post("/collect", h.handleCollect)
		r.Post("/pointer", h.handlePointer)
		r.Post("/command", h.handleCommand)

		// Run control
		r.With(h.admin.Middleware).Post("/restart", h.handleRestart)
	})

	r.Get("/frame.png", h.handleFrame)

	r.Get("/", handleIndex)

	return r
}

const indexText = `lane-defense

GET  /api/state     latest snapshot
GET  /api/stats     engine and server counters
GET  /api/rules     rules table
GET  /api/events    recent simulation events (?n=)
GET  /api/results   best finished runs (?limit=)
POST /api/select    {"kind"}
POST /api/place     {"kind","col","lane"}
POST /api/collect   {"id"}
POST /api/pointer   {"x","y"}
POST /api/command   {"line"}
POST /api/restart   admin token when configured
GET  /frame.png     rendered frame
GET  /ws            snapshot push and text commands

`

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(indexText + command.HelpText + "\n"))
}

func newRouterHandlers(cfg RouterConfig) *routerHandlers {
	h := &routerHandlers{
		engine:   cfg.Engine,
		commands: cfg.Commands,
		results:  cfg.Results,
		stats:    cfg.Stats,
		admin:    NewAdminGuard(cfg.AdminToken),
	}
	if h.commands == nil {
		h.commands = command.NewHandler(cfg.Engine, command.DefaultRateLimitConfig)
	}
	if cfg.AdminToken != "" {
		h.commands.LockRestart(true)
	}
	if h.results == nil {
		h.results = store.NopStore{}
	}
	w, ht := cfg.FrameWidth, cfg.FrameHeight
	if w <= 0 || ht <= 0 {
		w, ht = 640, 400
	}
	h.renderer = render.NewRenderer(w, ht)
	return h
}
