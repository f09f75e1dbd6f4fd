// Package middleware provides HTTP middleware for the execution server.
package middleware

import (
	"encoding/json"
	"log"
	"net/http"
	"runtime"
	"time"
)

// PoolStats is the subset of system/pool.Stats the health checker reads.
// Defined locally so this package does not import system/pool (which would
// otherwise import back into middleware via no real cycle today, but keeps
// the dependency direction the teacher's layering expects: infrastructure
// packages stay leaves).
type PoolStats struct {
	Size    int
	Idle    int
	Pending int
	Started bool
}

// HealthStatus is the /healthz response body.
type HealthStatus struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
	Uptime    string            `json:"uptime,omitempty"`
	Pool      *PoolStats        `json:"pool,omitempty"`
}

// HealthChecker reports whether the worker pool backing algorithm execution
// is actually able to take work, not just whether the HTTP process is alive.
type HealthChecker struct {
	version   string
	startTime time.Time
	poolStats func() PoolStats
}

// NewHealthChecker builds a checker that reports poolStats() on every
// request. poolStats is normally (*pool.Pool).Stats adapted to PoolStats.
func NewHealthChecker(version string, poolStats func() PoolStats) *HealthChecker {
	return &HealthChecker{
		version:   version,
		startTime: time.Now(),
		poolStats: poolStats,
	}
}

// Handler returns the health check HTTP handler. Status is "degraded" when
// the pool hasn't started, and "starved" when no worker is idle and the
// number of pending tasks has reached the pool size.
func (h *HealthChecker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := HealthStatus{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   h.version,
			Uptime:    time.Since(h.startTime).String(),
			Checks:    make(map[string]string),
		}

		if h.poolStats != nil {
			ps := h.poolStats()
			status.Pool = &ps

			if !ps.Started {
				status.Status = "degraded"
				status.Checks["pool"] = "not started"
			} else if ps.Idle == 0 && ps.Pending >= ps.Size {
				status.Status = "starved"
				status.Checks["pool"] = "all workers occupied"
			} else {
				status.Checks["pool"] = "ok"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if status.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(status); err != nil {
			log.Printf("health handler encode failed: %v", err)
		}
	}
}

// LivenessHandler returns a simple liveness probe handler: the process can
// accept connections at all, independent of whether the pool is ready.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status": "alive",
		}); err != nil {
			log.Printf("liveness handler encode failed: %v", err)
		}
	}
}

// ReadinessHandler returns a readiness probe handler backed by the lifecycle
// machine's ready flag: not ready until the dispatcher and pool have
// finished startup, not ready again once draining begins.
func ReadinessHandler(ready *bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if ready != nil && *ready {
			if err := json.NewEncoder(w).Encode(map[string]string{
				"status": "ready",
			}); err != nil {
				log.Printf("readiness handler encode failed: %v", err)
			}
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		if err := json.NewEncoder(w).Encode(map[string]string{
			"status": "not_ready",
		}); err != nil {
			log.Printf("readiness handler encode failed: %v", err)
		}
	}
}

// RuntimeStats returns a snapshot of Go runtime statistics (goroutines,
// memory, GC count, Go version, CPU count).
func RuntimeStats() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return map[string]interface{}{
		"goroutines": runtime.NumGoroutine(),
		"alloc_mb":   m.Alloc / 1024 / 1024,
		"sys_mb":     m.Sys / 1024 / 1024,
		"num_gc":     m.NumGC,
		"go_version": runtime.Version(),
		"num_cpu":    runtime.NumCPU(),
	}
}
