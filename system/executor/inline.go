package executor

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/r3e-network/algoserver/domain/execctx"
	"github.com/r3e-network/algoserver/domain/execution"
)

// Inline runs an algorithm's Run function in the server's own process, in a
// goroutine that Submit waits on, with no worker process and no isolation.
// It is the backend for
// specs registered with ExecutionMode IN_PROCESS (spec.md §3): cheap,
// trusted algorithms that don't need OS-process sandboxing and whose own
// runtime (e.g. a tight loop with no external I/O) can honor ctx
// cancellation on its own. A hard timeout here can only be enforced by
// racing a goroutine against time.After — the in-process code itself is not
// killed, unlike a process-pool worker (spec.md §3, "Non-goals: true
// preemption of IN_PROCESS algorithms").
type Inline struct {
	started atomic.Bool
}

// NewInline creates an Inline backend.
func NewInline() *Inline {
	return &Inline{}
}

// Start marks the backend ready; Inline holds no resources to acquire.
func (b *Inline) Start() error {
	b.started.Store(true)
	return nil
}

// IsStarted reports whether Start has run.
func (b *Inline) IsStarted() bool {
	return b.started.Load()
}

// Shutdown is a no-op; there is nothing to release.
func (b *Inline) Shutdown(wait bool) error {
	b.started.Store(false)
	return nil
}

// Submit runs req.Spec.Run in a new goroutine and waits for it, racing it
// against the request's effective timeout and ctx.
func (b *Inline) Submit(ctx context.Context, req *execution.Request) (execution.Result, error) {
	startedAt := time.Now()
	handle := execctx.New(req.RequestID, req.TraceID, req.Context, req.RequestDatetime)

	type outcome struct {
		data json.RawMessage
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := req.Spec.Run(handle, req.Payload, req.Hyperparams)
		done <- outcome{data: data, err: err}
	}()

	timeout := req.EffectiveTimeout()
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case o := <-done:
		return resultFrom(o.data, o.err, handle, startedAt), nil
	case <-timeoutCh:
		return execution.Result{
			Success:   false,
			StartedAt: startedAt,
			EndedAt:   time.Now(),
			Err:       &execution.Error{Kind: execution.ErrorTimeout, Message: "in-process execution exceeded its timeout"},
		}, nil
	case <-ctx.Done():
		return execution.Result{}, ctx.Err()
	}
}
