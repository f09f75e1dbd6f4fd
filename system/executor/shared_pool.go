package executor

import (
	"context"

	"github.com/r3e-network/algoserver/domain/execution"
	"github.com/r3e-network/algoserver/system/pool"
)

// SharedPool routes every request through a single supervised worker pool
// shared across all algorithms registered with ExecutionMode PROCESS_POOL
// and IsolatedPool=false (spec.md §3). The worker body looks up the right
// entrypoint per task, so sharing is safe as long as no algorithm
// monopolizes a worker's state across tasks — stateful specs still get
// worker-local caching keyed by entrypointRef (domain/algorithm's
// NewWorkerInstance), it is simply shared capacity, not a dedicated pool.
type SharedPool struct {
	p *pool.Pool
}

// NewSharedPool wraps an unstarted *pool.Pool.
func NewSharedPool(p *pool.Pool) *SharedPool {
	return &SharedPool{p: p}
}

func (b *SharedPool) Start() error             { return b.p.Start() }
func (b *SharedPool) IsStarted() bool          { return b.p.IsStarted() }
func (b *SharedPool) Shutdown(wait bool) error { return b.p.Shutdown(wait) }

func (b *SharedPool) Submit(ctx context.Context, req *execution.Request) (execution.Result, error) {
	return b.p.Submit(ctx, req)
}
