package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"TICK_RATE", "SIM_SEED", "MAX_DELTA_MS", "RULES_PATH", "PORT", "DEBUG_PORT",
		"ALLOWED_ORIGINS", "RESULTS_DRIVER", "DATABASE_URL", "RESULTS_PATH", "EVENT_LOG_PATH", "EVENT_LOG_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Sim.TickRate != 60 || cfg.Sim.MaxDelta != 100*time.Millisecond || cfg.Sim.Seed != 0 {
		t.Errorf("sim defaults = %+v", cfg.Sim)
	}
	if cfg.Server.Port != 3000 || cfg.Server.DebugPort != 6060 {
		t.Errorf("server defaults = %+v", cfg.Server)
	}
	if cfg.Store.Driver != "json" {
		t.Errorf("store driver = %q, want json", cfg.Store.Driver)
	}
	if !cfg.EventLog.Enabled {
		t.Error("event log should be enabled by default")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TICK_RATE", "30")
	t.Setenv("SIM_SEED", "12345")
	t.Setenv("MAX_DELTA_MS", "50")
	t.Setenv("PORT", "8080")
	t.Setenv("DEBUG_PORT", "0")
	t.Setenv("ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("RESULTS_DRIVER", "")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost/lanes?sslmode=disable")
	t.Setenv("EVENT_LOG_ENABLED", "false")

	cfg := Load()
	if cfg.Sim.TickRate != 30 || cfg.Sim.Seed != 12345 || cfg.Sim.MaxDelta != 50*time.Millisecond {
		t.Errorf("sim = %+v", cfg.Sim)
	}
	if cfg.Server.Port != 8080 || cfg.Server.DebugPort != 0 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "http://b.test" {
		t.Errorf("origins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("DATABASE_URL should select postgres, got %q", cfg.Store.Driver)
	}
	if cfg.EventLog.Enabled {
		t.Error("EVENT_LOG_ENABLED=false should disable the event log")
	}
}

func TestInvalidEnvIgnored(t *testing.T) {
	t.Setenv("TICK_RATE", "fast")
	t.Setenv("PORT", "-1")

	cfg := Load()
	if cfg.Sim.TickRate != 60 {
		t.Errorf("invalid TICK_RATE should keep default, got %d", cfg.Sim.TickRate)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("negative PORT should keep default, got %d", cfg.Server.Port)
	}
}
