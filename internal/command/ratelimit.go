package command

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures per-client command throttling
type RateLimitConfig struct {
	PerSecond float64       // Sustained commands per second per client
	Burst     int           // Commands allowed back to back
	IdleAfter time.Duration // Forget clients silent this long
}

// DefaultRateLimitConfig for command clients
var DefaultRateLimitConfig = RateLimitConfig{
	PerSecond: 5,
	Burst:     10,
	IdleAfter: 5 * time.Minute,
}

// RateLimiter implements per-client command rate limiting
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientLimit
	config  RateLimitConfig
	now     func() time.Time
}

type clientLimit struct {
	limiter *rate.Limiter
	lastCmd time.Time
}

// NewRateLimiter creates a new rate limiter. Idle clients are pruned lazily on Allow.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = DefaultRateLimitConfig.PerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultRateLimitConfig.Burst
	}
	if cfg.IdleAfter <= 0 {
		cfg.IdleAfter = DefaultRateLimitConfig.IdleAfter
	}
	return &RateLimiter{
		clients: make(map[string]*clientLimit),
		config:  cfg,
		now:     time.Now,
	}
}

// Allow checks if a client can execute a command now
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, ok := rl.clients[client]
	if !ok {
		if len(rl.clients) > 0 && len(rl.clients)%256 == 0 {
			rl.pruneLocked(now)
		}
		cl = &clientLimit{limiter: rate.NewLimiter(rate.Limit(rl.config.PerSecond), rl.config.Burst)}
		rl.clients[client] = cl
	}
	cl.lastCmd = now
	return cl.limiter.AllowN(now, 1)
}

// Clients returns how many clients are being tracked
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-rl.config.IdleAfter)
	for key, cl := range rl.clients {
		if cl.lastCmd.Before(cutoff) {
			delete(rl.clients, key)
		}
	}
}
