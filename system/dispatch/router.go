package dispatch

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/r3e-network/algoserver/infrastructure/logging"
	"github.com/r3e-network/algoserver/infrastructure/metrics"
	"github.com/r3e-network/algoserver/infrastructure/middleware"
)

// RouterOptions configures the middleware chain and optional endpoints
// NewRouter mounts around a Dispatcher's handlers.
type RouterOptions struct {
	ServiceName string
	Logger      *logging.Logger
	Metrics     *metrics.Metrics

	// MaxBodyBytes caps request bodies; <= 0 applies BodyLimitMiddleware's
	// own conservative default.
	MaxBodyBytes int64

	// RequestTimeout bounds every request at the HTTP layer; <= 0 applies
	// TimeoutMiddleware's own conservative default.
	RequestTimeout time.Duration

	// RateLimiter, if non-nil, is installed ahead of every route.
	RateLimiter *middleware.RateLimiter

	// Ready backs /readyz; nil means never ready (used before the
	// lifecycle state machine reaches the "ready" state).
	Ready *bool

	// Version is reported on /healthz.
	Version string
	// PoolStats, if non-nil, is polled on every /healthz request to report
	// worker pool occupancy alongside liveness.
	PoolStats func() middleware.PoolStats

	// CORSAllowedOrigins, if non-empty, installs CORSMiddleware ahead of the
	// catalog/execution routes. Empty means no CORS headers are added.
	CORSAllowedOrigins []string

	SwaggerEnabled bool
	SwaggerPath    string
}

// NewRouter builds the gorilla/mux router for the execution server: the
// ambient middleware stack (logging, recovery, timeouts, metrics, body
// limits, path validation, rate limiting) plus the algorithm
// catalog/execution/health routes.
func NewRouter(d *Dispatcher, opts RouterOptions) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.LoggingMiddleware(opts.Logger))
	r.Use(middleware.NewRecoveryMiddleware(opts.Logger).Handler)
	r.Use(middleware.NewTimeoutMiddleware(opts.RequestTimeout).Handler)
	r.Use(middleware.NewSecurityHeadersMiddleware(nil).Handler)
	if len(opts.CORSAllowedOrigins) > 0 {
		r.Use(middleware.NewCORSMiddleware(&middleware.CORSConfig{
			AllowedOrigins: opts.CORSAllowedOrigins,
		}).Handler)
	}
	if opts.Metrics != nil {
		r.Use(middleware.MetricsMiddleware(opts.ServiceName, opts.Metrics))
		r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	}
	r.Use(middleware.NewBodyLimitMiddleware(opts.MaxBodyBytes).Handler)
	r.Use(middleware.NewPathParamValidator().Handler)
	if opts.RateLimiter != nil {
		r.Use(opts.RateLimiter.Handler)
	}

	if opts.PoolStats != nil {
		checker := middleware.NewHealthChecker(opts.Version, opts.PoolStats)
		r.HandleFunc("/healthz", checker.Handler()).Methods(http.MethodGet)
	} else {
		r.HandleFunc("/healthz", middleware.LivenessHandler()).Methods(http.MethodGet)
	}
	r.HandleFunc("/readyz", middleware.ReadinessHandler(opts.Ready)).Methods(http.MethodGet)

	r.HandleFunc("/algorithms", d.List).Methods(http.MethodGet)
	r.HandleFunc("/algorithms/{name}/{version}", d.Execute).Methods(http.MethodPost)
	r.HandleFunc("/algorithms/{name}/{version}/schema", d.Schema).Methods(http.MethodGet)

	if opts.SwaggerEnabled {
		r.HandleFunc("/docs", docsHandler(d, opts.SwaggerPath)).Methods(http.MethodGet)
	}

	return r
}
