// Package pool implements the supervised worker pool (C6): a fixed-size set
// of OS-process workers, a bounded task queue, a result demultiplexer, and a
// supervisor that kills and replaces workers on timeout or crash.
package pool

import (
	"encoding/json"
	"time"
)

// readyMessage is the single line a freshly spawned worker writes before
// the pool marks it idle (SPEC_FULL.md §4.5, "Readiness handshake").
type readyMessage struct {
	Ready bool `json:"ready"`
}

// taskMessage is written to a worker's input pipe (spec.md §4.5, "Task
// message (into worker)").
type taskMessage struct {
	TaskID          string          `json:"taskId"`
	EntrypointRef   string          `json:"entrypointRef"` // "name@version"
	InputDump       json.RawMessage `json:"inputDump"`
	HyperparamsDump json.RawMessage `json:"hyperparamsDump,omitempty"`
	RequestID       string          `json:"requestId"`
	TraceID         string          `json:"traceId,omitempty"`
	Context         json.RawMessage `json:"context,omitempty"`
	RequestDatetime time.Time       `json:"requestDatetime"`
	Stateful        bool            `json:"stateful"`
}

// stopMessage is the sentinel the pool sends to ask a worker to exit
// cleanly during shutdown (no taskId/entrypointRef set).
func stopMessage() taskMessage {
	return taskMessage{TaskID: "", EntrypointRef: ""}
}

func (m taskMessage) isStop() bool {
	return m.TaskID == "" && m.EntrypointRef == ""
}

// resultMessage is written to a worker's output pipe after each task (and
// once, specially, as a readyMessage before the worker's first task).
type resultMessage struct {
	TaskID       string          `json:"taskId"`
	Success      bool            `json:"success"`
	DataDump     json.RawMessage `json:"dataDump,omitempty"`
	ErrorKind    string          `json:"errorKind,omitempty"`
	ErrorDetail  string          `json:"errorDetail,omitempty"`
	ResponseMeta *metaMessage    `json:"responseMeta,omitempty"`
	StartedAt    time.Time       `json:"startedAt"`
	EndedAt      time.Time       `json:"endedAt"`
	PID          int             `json:"pid"`
}

type metaMessage struct {
	Code    *int           `json:"code,omitempty"`
	Message *string        `json:"message,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}
