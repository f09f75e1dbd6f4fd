// Package ratelimit provides a per-key token-bucket limiter used to cap how
// much of the shared worker pool's throughput a single (name, version)
// algorithm registration may consume, independent of the per-client-IP
// limiter middleware.RateLimiter applies ahead of it.
package ratelimit

import (
	"sync"

	"golang.org/x/time/rate"
)

// Config configures a KeyedLimiter.
type Config struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultConfig returns a conservative per-algorithm default: enough burst
// to absorb a short spike without starving other registrations sharing the
// same pool.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 20,
		Burst:             40,
	}
}

// KeyedLimiter holds one token bucket per key (an algorithm's
// "name@version" reference), created lazily on first use.
type KeyedLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      Config
}

// New builds a KeyedLimiter from cfg. A non-positive RequestsPerSecond takes
// DefaultConfig's rate; a non-positive Burst becomes twice the rate.
func New(cfg Config) *KeyedLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond * 2)
	}
	return &KeyedLimiter{
		limiters: make(map[string]*rate.Limiter),
		cfg:      cfg,
	}
}

func (k *KeyedLimiter) limiterFor(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(k.cfg.RequestsPerSecond), k.cfg.Burst)
		k.limiters[key] = l
	}
	return l
}

// Allow reports whether one more request against key may proceed right now,
// consuming a token if so.
func (k *KeyedLimiter) Allow(key string) bool {
	return k.limiterFor(key).Allow()
}

// KeyCount returns the number of distinct keys with an active bucket.
func (k *KeyedLimiter) KeyCount() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}

// Forget drops key's bucket, e.g. when its algorithm registration is
// unloaded from the registry.
func (k *KeyedLimiter) Forget(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.limiters, key)
}
