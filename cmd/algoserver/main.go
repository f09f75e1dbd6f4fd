// Command algoserver is the execution server's single binary. Run without
// flags it is the parent process: it loads the algorithm registry, starts
// the executor backends behind the lifecycle state machine, and serves the
// HTTP API. Re-exec'd with --worker-fd=R:W (system/pool's spawnWorker does
// this against os.Executable()) it instead runs as a supervised worker,
// reading task messages off fd R and writing results to fd W until the pool
// kills it or the pipe closes.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/infrastructure/execution"
	"github.com/r3e-network/algoserver/infrastructure/logging"
	"github.com/r3e-network/algoserver/infrastructure/metrics"
	"github.com/r3e-network/algoserver/infrastructure/middleware"
	"github.com/r3e-network/algoserver/infrastructure/ratelimit"
	"github.com/r3e-network/algoserver/system/dispatch"
	"github.com/r3e-network/algoserver/system/executor"
	"github.com/r3e-network/algoserver/system/lifecycle"
	"github.com/r3e-network/algoserver/system/pool"
)

const workerFDFlagPrefix = "--worker-fd="

func main() {
	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("algoserver: load config: %v", err)
	}

	for _, arg := range os.Args[1:] {
		if strings.HasPrefix(arg, workerFDFlagPrefix) {
			runWorker(cfg, arg)
			return
		}
	}
	runParent(cfg)
}

// buildRegistry loads the build-time staged algorithm index and applies any
// *.algometa.yaml overrides. Both steps warn-and-continue on partial
// failure rather than aborting startup.
func buildRegistry(cfg *config, logger *logging.Logger) *algorithm.Registry {
	reg := algorithm.NewRegistry()

	if err := reg.LoadPackages(cfg.ModuleDir); err != nil && logger != nil {
		logger.WithError(err).Warn("algorithm package load completed with warnings")
	}
	if strings.TrimSpace(cfg.MetadataDir) != "" {
		if err := reg.LoadConfig(cfg.MetadataDir); err != nil && logger != nil {
			logger.WithError(err).Warn("algometa override load completed with warnings")
		}
	}
	return reg
}

// runWorker is the entire worker-process body: decode the inherited pipe
// fds, rebuild the same registry the parent built (env vars are inherited
// across exec.Command's fork/exec, so ALGO_MODULE_DIR/ALGO_METADATA_CONFIG_DIR
// resolve identically here), then block in the task loop until the parent
// kills this process or the pipe closes.
func runWorker(cfg *config, arg string) {
	readFD, writeFD, err := pool.ParseWorkerFDArg(strings.TrimPrefix(arg, workerFDFlagPrefix))
	if err != nil {
		log.Fatalf("algoserver: worker: %v", err)
	}

	reg := buildRegistry(cfg, nil)
	in, out := pool.OpenWorkerPipes(readFD, writeFD)

	if err := pool.RunWorkerBody(reg, in, out); err != nil {
		log.Fatalf("algoserver: worker exited: %v", err)
	}
}

// runParent wires the registry, executor backends, lifecycle gate, and HTTP
// router together, then blocks until SIGINT/SIGTERM drives a graceful drain.
func runParent(cfg *config) {
	logger := logging.New("algoserver", cfg.LogLevel, cfg.LogFormat)
	ctx := context.Background()

	reg := buildRegistry(cfg, logger)
	if mods := cfg.modules(); len(mods) > 0 {
		logger.WithContext(ctx).Info(fmt.Sprintf("ALGO_MODULES configured but not consulted for import resolution (compiled in via blank-import instead): %s", strings.Join(mods, ", ")))
	}
	m := metrics.New("algoserver")

	binaryPath, err := os.Executable()
	if err != nil {
		log.Fatalf("algoserver: resolve own binary path: %v", err)
	}

	killGrace := time.Duration(cfg.KillGraceS * float64(time.Second))

	sharedPool := pool.New(pool.Config{
		Size:          cfg.GlobalMaxWorkers,
		AdmitCapacity: cfg.GlobalQueueSize,
		BinaryPath:    binaryPath,
		KillTree:      cfg.KillTree,
		KillGrace:     killGrace,
		Metrics:       m,
	})
	dispatching := executor.NewDispatching(
		executor.NewInline(),
		executor.NewSharedPool(sharedPool),
		executor.NewIsolatedPool(binaryPath, nil, m),
	)

	var auditSink execution.Sink
	if strings.TrimSpace(cfg.AuditDSN) != "" {
		sink, err := execution.NewPostgresSink(cfg.AuditDSN)
		if err != nil {
			logger.WithError(err).Error("algorithm audit sink unavailable, continuing with in-memory ring only")
		} else {
			auditSink = sink
		}
	}
	auditLog := execution.NewLog(1000, auditSink)

	machine := lifecycle.New(logger)
	machine.OnReady(func(ctx context.Context) error { return dispatching.Start() })
	machine.OnDraining(func(ctx context.Context) error { return dispatching.Shutdown(true) })

	d := &dispatch.Dispatcher{
		Registry:        reg,
		Backend:         dispatching,
		Audit:           auditLog,
		Logger:          logger,
		DefaultTimeoutS: cfg.DefaultTimeoutS,
		PerAlgorithmLimiter: ratelimit.New(ratelimit.Config{
			RequestsPerSecond: float64(cfg.RateLimitRPS),
			Burst:             cfg.RateLimitBurst,
		}),
	}

	// ALGO_RATE_LIMIT_RPS=0 disables per-client-IP limiting entirely; any
	// positive value overrides DefaultRateLimiterConfig's allowance.
	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		rlConfig := middleware.DefaultRateLimiterConfig(logger)
		rlConfig.RequestsPerSecond = cfg.RateLimitRPS
		rlConfig.Burst = cfg.RateLimitBurst
		rateLimiter = middleware.NewRateLimiterFromConfig(rlConfig)
		stopCleanup := middleware.StartCleanupFromConfig(rateLimiter, rlConfig)
		defer stopCleanup()
	}

	router := dispatch.NewRouter(d, dispatch.RouterOptions{
		ServiceName:    "algoserver",
		Logger:         logger,
		Metrics:        m,
		MaxBodyBytes:   10 << 20,
		RequestTimeout: time.Duration(cfg.HTTPTimeoutS * float64(time.Second)),
		RateLimiter:    rateLimiter,
		Ready:          machine.ReadyFlag(),
		Version:        "algoserver",
		PoolStats: func() middleware.PoolStats {
			s := sharedPool.Stats()
			return middleware.PoolStats{Size: s.Size, Idle: s.Idle, Pending: s.Pending, Started: s.Started}
		},
		CORSAllowedOrigins: cfg.corsOrigins(),
		SwaggerEnabled:     cfg.SwaggerEnabled,
		SwaggerPath:        cfg.SwaggerPath,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.BindHost, cfg.Port),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	if err := machine.Provision(ctx); err != nil {
		log.Fatalf("algoserver: provision: %v", err)
	}
	if err := machine.MarkReady(ctx); err != nil {
		log.Fatalf("algoserver: start executor backends: %v", err)
	}
	if err := machine.Run(ctx); err != nil {
		log.Fatalf("algoserver: enter running state: %v", err)
	}

	go func() {
		logger.WithContext(ctx).Info(fmt.Sprintf("algoserver listening on %s (advertised %s)", server.Addr, cfg.baseURL()))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("algoserver: listen: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.WithContext(ctx).Info("algoserver draining")
	if err := machine.Drain(ctx); err != nil {
		logger.WithContext(ctx).WithError(err).Error("drain transition failed")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithContext(ctx).WithError(err).Error("http server shutdown error")
	}

	if err := machine.Stop(ctx); err != nil {
		logger.WithContext(ctx).WithError(err).Error("stop transition failed")
	}
	logger.WithContext(ctx).Info("algoserver stopped")
}
