// Package executor implements the executor backends (C5) that sit between
// the HTTP dispatcher and the supervised worker pool: Inline runs an
// algorithm inside the server process itself, SharedPool and
// IsolatedPool route to one or many supervised process pools, and
// Dispatching picks among them per spec.Execution.
package executor

import (
	"context"

	"github.com/r3e-network/algoserver/domain/execution"
)

// Backend is the uniform contract every execution strategy implements.
type Backend interface {
	// Submit runs req to completion and returns its outcome. It never
	// returns a transport-level error for an algorithm failure — those are
	// reported in the Result; a non-nil error means the backend itself
	// could not process the request (e.g. ctx was cancelled before a
	// worker became available).
	Submit(ctx context.Context, req *execution.Request) (execution.Result, error)
	// Start prepares the backend to accept Submit calls (e.g. spawning
	// worker processes). Submitting before Start is a programmer error.
	Start() error
	// Shutdown releases any resources the backend holds (worker processes,
	// goroutines). wait requests a best-effort drain of in-flight work.
	Shutdown(wait bool) error
	// IsStarted reports whether Start has completed successfully.
	IsStarted() bool
}
