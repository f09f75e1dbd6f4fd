package middleware

import (
	"time"

	"github.com/r3e-network/algoserver/infrastructure/logging"
)

// RateLimiterConfig provides configuration options for creating the
// per-client-IP RateLimiter installed ahead of the algorithm catalog and
// execution routes.
type RateLimiterConfig struct {
	// RequestsPerSecond is the sustained rate limit.
	RequestsPerSecond int

	// Burst is the maximum burst size.
	Burst int

	// MaxLimiters is the maximum number of per-IP limiters to keep in memory.
	MaxLimiters int

	// LimiterTTL is how long to keep idle limiters.
	LimiterTTL time.Duration

	// CleanupInterval is how often to run the idle-limiter sweep.
	CleanupInterval time.Duration

	// Logger for rate limit events (optional).
	Logger *logging.Logger
}

// DefaultRateLimiterConfig returns the fallback used when ALGO_RATE_LIMIT_RPS
// is left unset: a moderate allowance that still stops a single misbehaving
// client from monopolizing the shared worker pool.
func DefaultRateLimiterConfig(logger *logging.Logger) RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 50,
		Burst:             100,
		MaxLimiters:       10000,
		LimiterTTL:        24 * time.Hour,
		CleanupInterval:   5 * time.Minute,
		Logger:            logger,
	}
}

// StrictRateLimiterConfig is tighter than the default, intended for
// deployments that expose the catalog/execution API publicly rather than to
// a trusted internal caller.
func StrictRateLimiterConfig(logger *logging.Logger) RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerSecond: 10,
		Burst:             20,
		MaxLimiters:       10000,
		LimiterTTL:        24 * time.Hour,
		CleanupInterval:   5 * time.Minute,
		Logger:            logger,
	}
}

// NewRateLimiterFromConfig creates a RateLimiter from configuration,
// applying defaults for any zero-valued field.
func NewRateLimiterFromConfig(cfg RateLimiterConfig) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 50
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond * 2
	}

	rl := NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst, cfg.Logger)

	if cfg.MaxLimiters > 0 {
		rl.SetMaxSize(cfg.MaxLimiters)
	}
	if cfg.LimiterTTL > 0 {
		rl.SetLimiterTTL(cfg.LimiterTTL)
	}

	return rl
}

// StartCleanupFromConfig starts the background cleanup goroutine using
// config values and returns a stop function that should be called on
// service shutdown.
func StartCleanupFromConfig(rl *RateLimiter, cfg RateLimiterConfig) func() {
	interval := cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return rl.StartCleanup(interval)
}
