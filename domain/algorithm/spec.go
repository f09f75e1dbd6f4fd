// Package algorithm implements the algorithm catalog: the immutable Spec
// describing a registered unit of work, and the Registry that keys specs by
// (name, version).
package algorithm

import (
	"encoding/json"
	"regexp"
	"time"
)

// ExecutionMode selects how a spec's requests are dispatched.
type ExecutionMode string

const (
	ModeInProcess   ExecutionMode = "IN_PROCESS"
	ModeProcessPool ExecutionMode = "PROCESS_POOL"
)

// ExecutionConfig carries the per-algorithm execution hints consumed by the
// Dispatching executor (C5) and the supervised pool (C6).
type ExecutionConfig struct {
	ExecutionMode ExecutionMode `json:"executionMode" yaml:"executionMode"`
	Stateful      bool          `json:"stateful" yaml:"stateful"`
	IsolatedPool  bool          `json:"isolatedPool" yaml:"isolatedPool"`
	MaxWorkers    int           `json:"maxWorkers" yaml:"maxWorkers"`
	TimeoutS      *float64      `json:"timeoutS,omitempty" yaml:"timeoutS,omitempty"`
	GPU           string        `json:"gpu,omitempty" yaml:"gpu,omitempty"`
	KillTree      bool          `json:"killTree" yaml:"killTree"`
	KillGraceS    float64       `json:"killGraceS" yaml:"killGraceS"`
}

// Timeout returns the configured timeout, or zero if unset.
func (c ExecutionConfig) Timeout() time.Duration {
	if c.TimeoutS == nil {
		return 0
	}
	return time.Duration(*c.TimeoutS * float64(time.Second))
}

// DefaultExecutionConfig fills in spec.md §3's documented defaults.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		ExecutionMode: ModeProcessPool,
		Stateful:      false,
		IsolatedPool:  false,
		MaxWorkers:    1,
		KillTree:      false,
		KillGraceS:    5,
	}
}

// LoggingConfig controls whether the C7 dispatcher logs the request/response
// payload for an algorithm (the gjson-based preview, see SPEC_FULL.md §1).
type LoggingConfig struct {
	Enabled   bool `json:"enabled" yaml:"enabled"`
	LogInput  bool `json:"logInput" yaml:"logInput"`
	LogOutput bool `json:"logOutput" yaml:"logOutput"`
}

// Model is a schema handle: something that can describe its own JSON schema
// and validate/construct a Go value from raw JSON. Descriptor.Build derives
// one of these via struct-tag reflection over In/Out — never over an
// arbitrary function signature.
type Model interface {
	// Schema returns a JSON-schema-shaped description of the type.
	Schema() map[string]any
	// Validate decodes raw JSON against the model, rejecting unknown fields,
	// and returns the decode error if any; the decoded value is discarded.
	Validate(raw json.RawMessage) error
}

// Spec is the immutable, registered description of one algorithm version.
// It is built exclusively by Descriptor.Build — authors never construct a
// Spec by hand, keeping input/output schema derivation in one place.
type Spec struct {
	Name        string
	Version     string
	Description string

	AlgorithmType string
	CreatedTime   string // YYYY-MM-DD
	Author        string
	Category      string

	ApplicationScenarios string
	Extra                map[string]string

	InputModel       Model
	OutputModel      Model
	HyperparamsModel Model // nil if the entrypoint takes no hyperparams

	Execution ExecutionConfig
	Logging   LoggingConfig

	// Run is the type-erased entrypoint supplied by the generic Descriptor
	// that produced this Spec: it decodes the input JSON into In, calls the
	// entrypoint, and encodes Out back to JSON. The worker process calls it
	// after decoding the task message (SPEC_FULL.md §3, "Codec pair").
	Run func(ctx RunContext, input json.RawMessage, hyperparams json.RawMessage) (json.RawMessage, error)

	// IsClass mirrors spec.md's AlgorithmSpec.isClass: true for entrypoints
	// that carry worker-local lifecycle (initialize/shutdown), driving the
	// pool's stateful-instance caching (C6).
	IsClass bool

	// NewWorkerInstance is set only when IsClass is true. It constructs a
	// type-erased WorkerInstance the process-pool worker caches per
	// entrypointRef for as long as the worker process lives, so Initialize
	// runs once and subsequent tasks reuse accumulated state (SPEC_FULL.md
	// §4.5). Run is still usable for this Spec (it creates and discards a
	// fresh instance per call) and is what in-process backends (C5) use,
	// since they have no persistent worker identity to cache against.
	NewWorkerInstance func() WorkerInstance
}

// WorkerInstance is the type-erased form of Instance[In, Out] the process
// pool's worker body holds onto across tasks.
type WorkerInstance interface {
	Initialize() error
	Invoke(ctx RunContext, input json.RawMessage, hyperparams json.RawMessage) (json.RawMessage, error)
	Shutdown() error
}

// RunContext is the subset of the per-request context store (C4) visible to
// an entrypoint: request identity plus the response-meta setters. It is
// implemented by *domain/execctx.Handle; declared here to avoid a dependency
// cycle between algorithm and execctx.
type RunContext interface {
	RequestID() string
	TraceID() string
	RequestDatetime() time.Time
	SetResponseCode(int)
	SetResponseMessage(string)
	SetResponseContext(map[string]any)
}

var createdTimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidCreatedTime reports whether s matches YYYY-MM-DD and parses as a real
// date (registration-time validation per spec.md §4.1).
func ValidCreatedTime(s string) bool {
	if !createdTimePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// Key is the registry's primary key, (name, version).
type Key struct {
	Name    string
	Version string
}

func (k Key) String() string {
	return k.Name + "@" + k.Version
}
