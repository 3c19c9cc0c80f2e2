// Package config provides centralized configuration management.
// Every tunable outside the simulation rules table lives here.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// SIMULATION CONFIGURATION
// =============================================================================

// SimConfig holds engine host settings
type SimConfig struct {
	TickRate  int           // Ticks per second
	Seed      int64         // Zero picks a time-based seed per run
	MaxDelta  time.Duration // Clamp for one frame step
	RulesPath string        // Optional JSON rules overlay
}

// DefaultSim returns the default simulation configuration.
func DefaultSim() SimConfig {
	return SimConfig{
		TickRate: 60,
		MaxDelta: 100 * time.Millisecond,
	}
}

// SimFromEnv returns simulation configuration with environment variable overrides.
func SimFromEnv() SimConfig {
	cfg := DefaultSim()

	if tr := getEnvInt("TICK_RATE", 0); tr > 0 {
		cfg.TickRate = tr
	}
	if seed := getEnvInt64("SIM_SEED", 0); seed != 0 {
		cfg.Seed = seed
	}
	if ms := getEnvInt("MAX_DELTA_MS", 0); ms > 0 {
		cfg.MaxDelta = time.Duration(ms) * time.Millisecond
	}
	cfg.RulesPath = os.Getenv("RULES_PATH")

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	DebugPort      int      // pprof + metrics listener, 0 disables
	AllowedOrigins []string // CORS
	APIRate        float64  // Requests per second per IP
	APIBurst       int
	BroadcastFPS   int    // Websocket snapshot pushes per second
	AdminToken     string // Guards restart, empty leaves it open
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:           3000,
		DebugPort:      6060,
		AllowedOrigins: []string{"*"},
		APIRate:        20,
		APIBurst:       40,
		BroadcastFPS:   20,
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if v, ok := os.LookupEnv("DEBUG_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil && p >= 0 {
			cfg.DebugPort = p
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if r := getEnvFloat("API_RATE", 0); r > 0 {
		cfg.APIRate = r
	}
	if b := getEnvInt("API_BURST", 0); b > 0 {
		cfg.APIBurst = b
	}
	if fps := getEnvInt("BROADCAST_FPS", 0); fps > 0 {
		cfg.BroadcastFPS = fps
	}
	cfg.AdminToken = os.Getenv("ADMIN_TOKEN")

	return cfg
}

// =============================================================================
// RESULTS STORE CONFIGURATION
// =============================================================================

// StoreConfig selects where finished runs are recorded.
type StoreConfig struct {
	Driver      string // "json", "postgres" or "none"
	DatabaseURL string
	Path        string // JSON store file
}

// DefaultStore returns the default store configuration.
func DefaultStore() StoreConfig {
	return StoreConfig{
		Driver: "json",
		Path:   "data/results.json",
	}
}

// StoreFromEnv returns store configuration with environment variable overrides.
func StoreFromEnv() StoreConfig {
	cfg := DefaultStore()

	if d := os.Getenv("RESULTS_DRIVER"); d != "" {
		cfg.Driver = strings.ToLower(d)
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseURL = url
		if os.Getenv("RESULTS_DRIVER") == "" {
			cfg.Driver = "postgres"
		}
	}
	if p := os.Getenv("RESULTS_PATH"); p != "" {
		cfg.Path = p
	}

	return cfg
}

// =============================================================================
// EVENT LOG CONFIGURATION
// =============================================================================

// EventLogConfig holds the simulation event log settings.
type EventLogConfig struct {
	Path    string
	Enabled bool
}

// DefaultEventLog returns the default event log configuration.
func DefaultEventLog() EventLogConfig {
	return EventLogConfig{
		Path:    "logs/events.jsonl",
		Enabled: true,
	}
}

// EventLogFromEnv returns event log configuration with environment variable overrides.
func EventLogFromEnv() EventLogConfig {
	cfg := DefaultEventLog()

	if p := os.Getenv("EVENT_LOG_PATH"); p != "" {
		cfg.Path = p
	}
	if os.Getenv("EVENT_LOG_ENABLED") == "false" {
		cfg.Enabled = false
	}

	return cfg
}

// =============================================================================
// DESKTOP WINDOW CONFIGURATION
// =============================================================================

// WindowConfig holds desktop host settings.
type WindowConfig struct {
	Width  int
	Height int
	Title  string
}

// DefaultWindow returns the default window configuration.
func DefaultWindow() WindowConfig {
	return WindowConfig{
		Width:  960,
		Height: 600,
		Title:  "Lane Defense",
	}
}

// WindowFromEnv returns window configuration with environment variable overrides.
func WindowFromEnv() WindowConfig {
	cfg := DefaultWindow()

	if w := getEnvInt("WINDOW_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("WINDOW_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Sim      SimConfig
	Server   ServerConfig
	Store    StoreConfig
	EventLog EventLogConfig
	Window   WindowConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Sim:      SimFromEnv(),
		Server:   ServerFromEnv(),
		Store:    StoreFromEnv(),
		EventLog: EventLogFromEnv(),
		Window:   WindowFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
