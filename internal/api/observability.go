package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"lane-defense/internal/game"
	"lane-defense/pkg/logger"
)

// Metrics with bounded cardinality: labels are entity kinds or fixed reasons only
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sim_tick_duration_seconds",
		Help:    "Time spent stepping the simulation and publishing a snapshot",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_frame_duration_seconds",
		Help:    "Time spent rendering a PNG frame",
		Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.05, 0.1},
	})

	entityCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sim_entities",
		Help: "Live entities by kind",
	}, []string{"kind"}) // defender, hostile, projectile, collectible

	currencyGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_currency",
		Help: "Current spendable currency",
	})

	scoreGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sim_score",
		Help: "Score of the current run",
	})

	killsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_kills_total",
		Help: "Hostiles destroyed across all runs",
	})

	placementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sim_placements_total",
		Help: "Defenders placed by kind",
	}, []string{"kind"})

	runsLost = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sim_runs_lost_total",
		Help: "Runs that ended with the defended edge breached",
	})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "commands_total",
		Help: "Text commands by outcome",
	}, []string{"outcome"}) // ok, rejected, rate_limited

	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // rate_limit, origin, ws_total_limit, ws_ip_limit

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket broadcasts sent",
	})
)

// TickMetrics turns tick observations into gauge and counter updates.
// Counters only move forward, so it remembers the last totals it saw.
type TickMetrics struct {
	lastKills  int
	lastPlaced map[game.DefenderKind]int
}

// NewTickMetrics creates a tick observer for the engine
func NewTickMetrics() *TickMetrics {
	return &TickMetrics{lastPlaced: make(map[game.DefenderKind]int)}
}

// Observe records one tick. Install with Engine.SetTickObserver; calls are serialised by the engine.
func (m *TickMetrics) Observe(elapsed time.Duration, snap *game.GameSnapshot) {
	tickDuration.Observe(elapsed.Seconds())

	entityCount.WithLabelValues("defender").Set(float64(len(snap.Defenders)))
	entityCount.WithLabelValues("hostile").Set(float64(len(snap.Hostiles)))
	entityCount.WithLabelValues("projectile").Set(float64(len(snap.Projectiles)))
	entityCount.WithLabelValues("collectible").Set(float64(len(snap.Collectibles)))
	currencyGauge.Set(float64(snap.Currency))
	scoreGauge.Set(float64(snap.Score))

	// A restart resets the run totals
	if snap.Kills < m.lastKills {
		m.lastKills = 0
	}
	if d := snap.Kills - m.lastKills; d > 0 {
		killsTotal.Add(float64(d))
	}
	m.lastKills = snap.Kills
}

// ObserveEvent counts placements and lost runs. Install with Engine.SetEventObserver.
func ObserveEvent(t game.EventType, payload interface{}) {
	switch t {
	case game.EventTypeDefenderPlaced:
		if p, ok := payload.(game.PlacementPayload); ok {
			placementsTotal.WithLabelValues(p.Kind.String()).Inc()
		}
	case game.EventTypeLost:
		runsLost.Inc()
	}
}

// RecordRender records render timing
func RecordRender(d time.Duration) {
	renderDuration.Observe(d.Seconds())
}

// RecordCommand counts a command by outcome
func RecordCommand(outcome string) {
	commandsTotal.WithLabelValues(outcome).Inc()
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// UpdateWSConnections updates the websocket connection gauge
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments the websocket broadcast counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	ListenAddr    string // Keep on loopback in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// NewDebugHandler serves pprof, /metrics and /health
func NewDebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the observability listener in the background.
// Non-loopback addresses are logged loudly since pprof can be used to stall the process.
func StartDebugServer(cfg ObservabilityConfig) *http.Server {
	if !strings.HasPrefix(cfg.ListenAddr, "127.0.0.1:") && !strings.HasPrefix(cfg.ListenAddr, "localhost:") {
		logger.Log.WithField("addr", cfg.ListenAddr).Warn("⚠️ Debug server is not bound to loopback")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           NewDebugHandler(cfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Log.WithFields(logrus.Fields{
			"pprof":   "http://" + cfg.ListenAddr + "/debug/pprof/",
			"metrics": "http://" + cfg.ListenAddr + "/metrics",
		}).Info("📊 Debug server starting")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.WithError(err).Warn("⚠️ Debug server error")
		}
	}()
	return srv
}

// StopDebugServer shuts the debug listener down
func StopDebugServer(ctx context.Context, srv *http.Server) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.WithError(err).Warn("Debug server shutdown")
	}
}
