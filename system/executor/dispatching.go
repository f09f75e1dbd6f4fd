package executor

import (
	"context"
	"fmt"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/domain/execution"
)

// Dispatching is the top-level backend the HTTP dispatcher (C7) submits
// every request to. It routes per spec.Execution (spec.md §3):
//
//   - ExecutionMode IN_PROCESS              -> Inline
//   - ExecutionMode PROCESS_POOL, isolated  -> IsolatedPool (dedicated pool)
//   - ExecutionMode PROCESS_POOL, shared    -> SharedPool (one global pool)
type Dispatching struct {
	inline   *Inline
	shared   *SharedPool
	isolated *IsolatedPool
}

// NewDispatching composes the three concrete backends into one router.
func NewDispatching(inline *Inline, shared *SharedPool, isolated *IsolatedPool) *Dispatching {
	return &Dispatching{inline: inline, shared: shared, isolated: isolated}
}

func (d *Dispatching) Start() error {
	if err := d.inline.Start(); err != nil {
		return fmt.Errorf("start inline backend: %w", err)
	}
	if err := d.shared.Start(); err != nil {
		return fmt.Errorf("start shared pool backend: %w", err)
	}
	if err := d.isolated.Start(); err != nil {
		return fmt.Errorf("start isolated pool backend: %w", err)
	}
	return nil
}

func (d *Dispatching) IsStarted() bool {
	return d.inline.IsStarted() && d.shared.IsStarted() && d.isolated.IsStarted()
}

func (d *Dispatching) Shutdown(wait bool) error {
	if err := d.inline.Shutdown(wait); err != nil {
		return err
	}
	if err := d.shared.Shutdown(wait); err != nil {
		return err
	}
	return d.isolated.Shutdown(wait)
}

func (d *Dispatching) Submit(ctx context.Context, req *execution.Request) (execution.Result, error) {
	backend := d.route(req.Spec)
	return backend.Submit(ctx, req)
}

func (d *Dispatching) route(spec *algorithm.Spec) Backend {
	if spec.Execution.ExecutionMode == algorithm.ModeInProcess {
		return d.inline
	}
	if spec.Execution.IsolatedPool {
		return d.isolated
	}
	return d.shared
}
