package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"lane-defense/internal/api"
	"lane-defense/internal/command"
	"lane-defense/internal/config"
	"lane-defense/internal/game"
	"lane-defense/internal/store"
	"lane-defense/pkg/logger"
)

func main() {
	envErr := godotenv.Load(".env")
	logger.Init()
	if envErr != nil {
		logger.Log.Info("💡 No .env file found, using environment variables only")
	}

	logger.Log.Info("🎮 ================================")
	logger.Log.Info("🎮  LANE DEFENSE - SIM SERVER")
	logger.Log.Info("🎮 ================================")

	appConfig := config.Load()
	simCfg := appConfig.Sim
	serverCfg := appConfig.Server

	rules, err := game.LoadRules(simCfg.RulesPath)
	if err != nil {
		logger.Log.WithError(err).Fatal("❌ Failed to load rules")
	}

	ctx := context.Background()
	results, err := store.Open(ctx, store.Config{
		Driver:      appConfig.Store.Driver,
		DatabaseURL: appConfig.Store.DatabaseURL,
		Path:        appConfig.Store.Path,
	})
	if err != nil {
		logger.Log.WithError(err).Fatal("❌ Failed to open results store")
	}
	logger.Log.WithField("driver", appConfig.Store.Driver).Info("🗄️ Results store ready")

	engine := game.NewEngine(game.EngineConfig{
		TickRate: simCfg.TickRate,
		Seed:     simCfg.Seed,
		MaxDelta: simCfg.MaxDelta,
		Rules:    rules,
		Limits:   game.DefaultLimits,
	})

	engine.OnLost = func(summary game.RunSummary) {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		id, err := results.SaveResult(saveCtx, store.ResultFromSummary(summary, time.Now()))
		if err != nil {
			logger.Log.WithError(err).Error("❌ Failed to save run result")
			return
		}
		logger.Log.WithFields(logrus.Fields{
			"id":    id,
			"score": summary.Score,
		}).Info("🏁 Run result saved")
	}

	metrics := api.NewTickMetrics()
	engine.SetTickObserver(metrics.Observe)
	engine.SetEventObserver(api.ObserveEvent)

	eventLogPath := ""
	if appConfig.EventLog.Enabled {
		eventLogPath = appConfig.EventLog.Path
	}
	if err := engine.StartEventLog(eventLogPath); err != nil {
		logger.Log.WithError(err).Warn("⚠️ Event log file disabled, keeping events in memory")
		engine.StartEventLog("")
	} else if eventLogPath != "" {
		logger.Log.WithField("path", eventLogPath).Info("📝 Event log")
	}

	debugSrv := startDebug(serverCfg)

	server := api.NewServer(engine, api.ServerConfig{
		Addr:           fmt.Sprintf(":%d", serverCfg.Port),
		AllowedOrigins: serverCfg.AllowedOrigins,
		RateLimit: api.RateLimitConfig{
			RequestsPerSecond: serverCfg.APIRate,
			Burst:             serverCfg.APIBurst,
			CleanupInterval:   api.DefaultRateLimitConfig.CleanupInterval,
		},
		CommandLimit: command.DefaultRateLimitConfig,
		AdminToken:   serverCfg.AdminToken,
		BroadcastFPS: serverCfg.BroadcastFPS,
		Results:      results,
	})

	engine.Start()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	if serverCfg.AdminToken == "" {
		logger.Log.Warn("⚠️ ADMIN_TOKEN not set, /api/restart is open")
	}
	logger.Log.WithField("url", fmt.Sprintf("http://localhost:%d", serverCfg.Port)).Info("✅ Server ready! Press Ctrl+C to stop.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
	case err := <-serverErr:
		if err != nil {
			logger.Log.WithError(err).Error("❌ API server failed")
		}
	}

	logger.Log.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Log.WithError(err).Warn("API server shutdown")
	}
	api.StopDebugServer(shutdownCtx, debugSrv)
	engine.Stop()
	engine.StopEventLog()
	if err := results.Close(); err != nil {
		logger.Log.WithError(err).Warn("Results store close")
	}
	logger.Log.Info("👋 Goodbye!")
}

func startDebug(cfg config.ServerConfig) *http.Server {
	if cfg.DebugPort == 0 {
		logger.Log.Info("📊 Debug server disabled")
		return nil
	}
	return api.StartDebugServer(api.ObservabilityConfig{
		ListenAddr:    fmt.Sprintf("127.0.0.1:%d", cfg.DebugPort),
		BasicAuthUser: os.Getenv("DEBUG_USER"),
		BasicAuthPass: os.Getenv("DEBUG_PASS"),
	})
}
