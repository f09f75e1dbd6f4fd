package execution

import (
	"context"
	"sync"
)

// Sink receives audit records as tasks complete. Implementations must not
// block the caller for long — the HTTP dispatcher writes to a Sink
// synchronously, through Log, before it sends the response.
type Sink interface {
	Write(ctx context.Context, rec Record) error
}

// RingBuffer is the always-on, in-memory audit sink: it retains the last N
// records and never fails a Write, evicting the oldest record on overflow.
type RingBuffer struct {
	mu      sync.Mutex
	records []Record
	maxLen  int
}

// NewRingBuffer creates a ring buffer holding up to maxLen records.
func NewRingBuffer(maxLen int) *RingBuffer {
	if maxLen <= 0 {
		maxLen = 1000
	}
	return &RingBuffer{records: make([]Record, 0, maxLen), maxLen: maxLen}
}

// Write appends rec, evicting the oldest record if the buffer is full.
func (r *RingBuffer) Write(_ context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.records) >= r.maxLen {
		r.records = r.records[1:]
	}
	r.records = append(r.records, rec)
	return nil
}

// Recent returns up to limit of the most recently written records, newest
// last. limit <= 0 returns everything retained.
func (r *RingBuffer) Recent(limit int) []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	if limit <= 0 || limit > len(r.records) {
		limit = len(r.records)
	}
	start := len(r.records) - limit
	out := make([]Record, limit)
	copy(out, r.records[start:])
	return out
}

// Log is the composite audit writer the HTTP dispatcher holds: it always writes to an
// in-memory RingBuffer and additionally fans out to an optional persistent
// Sink (e.g. the Postgres-backed one in sink_postgres.go) when ALGO_AUDIT_DSN
// is configured.
type Log struct {
	Ring *RingBuffer
	sink Sink
}

// NewLog creates a Log backed by an in-memory ring of the given size, with
// an optional additional sink (nil disables persistent sinking).
func NewLog(ringSize int, sink Sink) *Log {
	return &Log{Ring: NewRingBuffer(ringSize), sink: sink}
}

// Write records rec in memory and, if configured, forwards it to the
// persistent sink. A sink failure is returned to the caller (who is
// expected to log and count it via metrics) but never drops the in-memory
// copy.
func (l *Log) Write(ctx context.Context, rec Record) error {
	_ = l.Ring.Write(ctx, rec)
	if l.sink == nil {
		return nil
	}
	return l.sink.Write(ctx, rec)
}
