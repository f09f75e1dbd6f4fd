package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/domain/execution"
	"github.com/r3e-network/algoserver/infrastructure/metrics"
	"github.com/r3e-network/algoserver/system/pool"
)

// IsolatedPool gives every algorithm registered with isolatedPool=true its
// own dedicated supervised worker pool, sized to its own maxWorkers — so a
// crash-looping or resource-hungry algorithm cannot starve any other
// algorithm's capacity (spec.md §3, "isolatedPool: true").
type IsolatedPool struct {
	binaryPath     string
	workerArgsFunc func(key algorithm.Key) []string
	metrics        *metrics.Metrics

	mu    sync.RWMutex
	pools map[algorithm.Key]*pool.Pool
}

// NewIsolatedPool creates an IsolatedPool. workerArgsFunc lets the caller
// hand each spec's worker process whatever flags it needs to resolve its own
// entrypoint (normally just the shared module/config flags every worker
// gets); it may be nil to pass no extra args.
func NewIsolatedPool(binaryPath string, workerArgsFunc func(algorithm.Key) []string, m *metrics.Metrics) *IsolatedPool {
	if workerArgsFunc == nil {
		workerArgsFunc = func(algorithm.Key) []string { return nil }
	}
	return &IsolatedPool{
		binaryPath:     binaryPath,
		workerArgsFunc: workerArgsFunc,
		metrics:        m,
		pools:          make(map[algorithm.Key]*pool.Pool),
	}
}

// EnsureStarted lazily creates and starts the dedicated pool for spec if one
// doesn't already exist. Submit calls this on every request; it is
// idempotent.
func (b *IsolatedPool) EnsureStarted(spec *algorithm.Spec) error {
	key := algorithm.Key{Name: spec.Name, Version: spec.Version}

	b.mu.RLock()
	_, ok := b.pools[key]
	b.mu.RUnlock()
	if ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.pools[key]; ok {
		return nil
	}

	grace := time.Duration(spec.Execution.KillGraceS * float64(time.Second))
	p := pool.New(pool.Config{
		Size:       spec.Execution.MaxWorkers,
		BinaryPath: b.binaryPath,
		WorkerArgs: b.workerArgsFunc(key),
		KillTree:   spec.Execution.KillTree,
		KillGrace:  grace,
		Metrics:    b.metrics,
	})
	if err := p.Start(); err != nil {
		return fmt.Errorf("isolated pool for %s: %w", key, err)
	}
	b.pools[key] = p
	return nil
}

func (b *IsolatedPool) Start() error { return nil } // pools are created lazily per spec, see EnsureStarted

func (b *IsolatedPool) IsStarted() bool { return true }

func (b *IsolatedPool) Shutdown(wait bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for key, p := range b.pools {
		if err := p.Shutdown(wait); err != nil {
			return fmt.Errorf("shutdown isolated pool for %s: %w", key, err)
		}
	}
	return nil
}

func (b *IsolatedPool) Submit(ctx context.Context, req *execution.Request) (execution.Result, error) {
	key := algorithm.Key{Name: req.Spec.Name, Version: req.Spec.Version}

	if err := b.EnsureStarted(req.Spec); err != nil {
		return execution.Result{}, err
	}

	b.mu.RLock()
	p := b.pools[key]
	b.mu.RUnlock()

	return p.Submit(ctx, req)
}
