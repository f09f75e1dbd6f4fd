// Package execctx implements the per-request context store (C4): the
// task-local bindings an executor installs before invoking user code and
// clears afterward. A Handle is strictly scoped to one run invocation — it
// is never shared across tasks, satisfying spec.md §4.3's "cross-task
// leakage is forbidden" invariant by construction (one Handle per call).
package execctx

import (
	"time"

	"github.com/r3e-network/algoserver/domain/envelope"
)

// Handle is passed as the hidden first argument to every entrypoint
// invocation (SPEC_FULL.md §4.3, "TaskHandle"). It implements
// algorithm.RunContext.
type Handle struct {
	requestID       string
	traceID         string
	algContext      *envelope.Context
	requestDatetime time.Time

	respCode    *int
	respMessage *string
	respContext map[string]any
}

// New creates a Handle for one task. Response meta starts cleared, per
// spec.md §4.3 "on entry to run, response meta is cleared".
func New(requestID, traceID string, algContext *envelope.Context, requestDatetime time.Time) *Handle {
	return &Handle{
		requestID:       requestID,
		traceID:         traceID,
		algContext:      algContext,
		requestDatetime: requestDatetime,
	}
}

// RequestID returns the current task's requestId.
func (h *Handle) RequestID() string { return h.requestID }

// TraceID returns the current task's traceId, if any.
func (h *Handle) TraceID() string { return h.traceID }

// Context returns the current task's AlgorithmContext, if any.
func (h *Handle) Context() *envelope.Context { return h.algContext }

// RequestDatetime returns the current task's request timestamp.
func (h *Handle) RequestDatetime() time.Time { return h.requestDatetime }

// SetResponseCode stages a response code override. Idempotent within a
// task: the last call before exit wins.
func (h *Handle) SetResponseCode(code int) { h.respCode = &code }

// SetResponseMessage stages a response message override.
func (h *Handle) SetResponseMessage(message string) { h.respMessage = &message }

// SetResponseContext stages a response context override.
func (h *Handle) SetResponseContext(ctx map[string]any) { h.respContext = ctx }

// Meta is the wire shape of whatever was staged, consumed by the executor
// after run returns or throws (and serialized with the result message in
// multi-process backends, per spec.md §4.3).
type Meta struct {
	Code    *int           `json:"code,omitempty"`
	Message *string        `json:"message,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// ResponseMeta returns nil if nothing was staged, or the staged overrides
// otherwise.
func (h *Handle) ResponseMeta() *Meta {
	if h.respCode == nil && h.respMessage == nil && h.respContext == nil {
		return nil
	}
	return &Meta{Code: h.respCode, Message: h.respMessage, Context: h.respContext}
}
