package algorithm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// HyperParams is the distinguished marker every hyperparameter type must
// embed, per spec.md §3 ("must derive from a distinguished HyperParams
// marker"). Descriptor.Build does not inspect types for it: hyperparams
// reach the entrypoint as raw JSON, and Descriptor.HasHyperparams alone
// decides whether the Spec gets a HyperparamsModel.
type HyperParams struct{}

// Descriptor is the explicit, typed registration builder that replaces
// runtime reflection over a `run` function's signature (REDESIGN FLAGS,
// SPEC_FULL.md §3). Authors construct one per algorithm version and call
// Build to obtain a Spec.
type Descriptor[In, Out any] struct {
	Name, Version string
	Description   string

	AlgorithmType        string
	CreatedTime          string
	Author               string
	Category             string
	ApplicationScenarios string
	Extra                map[string]string

	Execution ExecutionConfig
	Logging   LoggingConfig

	// Entrypoint is the stateless function body. Exactly one of Entrypoint
	// or NewInstance must be set.
	Entrypoint func(ctx RunContext, in In, hp json.RawMessage) (Out, error)

	// NewInstance, Initialize and Shutdown implement the stateful/class
	// variant (spec.md §4.5 "stateful worker"): NewInstance constructs a
	// fresh instance the first time a worker handles this entrypoint;
	// Initialize runs once per instance before first use; Shutdown runs
	// once when a non-stateful instance is discarded or the worker exits.
	NewInstance func() Instance[In, Out]

	// HasHyperparams documents whether Entrypoint/Instance.Run consult hp;
	// it does not change decoding (hp is always passed through as raw JSON
	// and left to the entrypoint to decode against its own HyperParams type).
	HasHyperparams bool
}

// Instance is the stateful/class entrypoint contract (spec.md's "class
// implementing the lifecycle contract").
type Instance[In, Out any] interface {
	Initialize() error
	Run(ctx RunContext, in In, hp json.RawMessage) (Out, error)
	Shutdown() error
}

// Build derives a Spec from the descriptor. Input/output schemas come from
// static reflection over In/Out's exported fields and json tags — never
// from inspecting the Entrypoint/Instance callable itself.
func (d Descriptor[In, Out]) Build() (*Spec, error) {
	if d.Name == "" || d.Version == "" {
		return nil, fmt.Errorf("algorithm: descriptor requires Name and Version")
	}
	if d.Entrypoint == nil && d.NewInstance == nil {
		return nil, fmt.Errorf("algorithm %s@%s: descriptor requires Entrypoint or NewInstance", d.Name, d.Version)
	}
	if d.Entrypoint != nil && d.NewInstance != nil {
		return nil, fmt.Errorf("algorithm %s@%s: descriptor must set exactly one of Entrypoint or NewInstance", d.Name, d.Version)
	}

	exec := d.Execution
	if exec.ExecutionMode == "" {
		exec.ExecutionMode = ModeProcessPool
	}
	if exec.MaxWorkers <= 0 {
		exec.MaxWorkers = 1
	}

	inModel := reflectModel[In]()
	outModel := reflectModel[Out]()

	spec := &Spec{
		Name:                 d.Name,
		Version:              d.Version,
		Description:          d.Description,
		AlgorithmType:        d.AlgorithmType,
		CreatedTime:          d.CreatedTime,
		Author:               d.Author,
		Category:             d.Category,
		ApplicationScenarios: d.ApplicationScenarios,
		Extra:                d.Extra,
		InputModel:           inModel,
		OutputModel:          outModel,
		Execution:            exec,
		Logging:              d.Logging,
		IsClass:              d.NewInstance != nil,
	}

	if d.HasHyperparams {
		spec.HyperparamsModel = reflectModel[struct{ HyperParams }]()
	}

	entry := d.Entrypoint
	newInstance := d.NewInstance

	spec.Run = func(ctx RunContext, rawIn json.RawMessage, hp json.RawMessage) (json.RawMessage, error) {
		var in In
		if err := inModel.decodeStrict(rawIn, &in); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}

		var out Out
		var err error
		if entry != nil {
			out, err = entry(ctx, in, hp)
		} else {
			inst := newInstance()
			if initErr := inst.Initialize(); initErr != nil {
				return nil, fmt.Errorf("initialize: %w", initErr)
			}
			out, err = inst.Run(ctx, in, hp)
			if shutdownErr := inst.Shutdown(); shutdownErr != nil && err == nil {
				err = fmt.Errorf("shutdown: %w", shutdownErr)
			}
		}
		if err != nil {
			return nil, err
		}

		rawOut, encErr := json.Marshal(out)
		if encErr != nil {
			return nil, fmt.Errorf("encode output: %w", encErr)
		}
		return rawOut, nil
	}

	if newInstance != nil {
		spec.NewWorkerInstance = func() WorkerInstance {
			return &typedWorkerInstance[In, Out]{inst: newInstance(), inModel: inModel}
		}
	}

	// Smoke test: encode/decode round trip of a zero-value instance
	// (spec.md §4.1 "survive cross-process serialization").
	if err := smokeTest[In](); err != nil {
		return nil, fmt.Errorf("algorithm %s@%s: input smoke test failed: %w", d.Name, d.Version, err)
	}
	if err := smokeTest[Out](); err != nil {
		return nil, fmt.Errorf("algorithm %s@%s: output smoke test failed: %w", d.Name, d.Version, err)
	}

	return spec, nil
}

// typedWorkerInstance adapts a generic Instance[In, Out] into the type-erased
// WorkerInstance the process-pool worker body caches per entrypointRef.
type typedWorkerInstance[In, Out any] struct {
	inst    Instance[In, Out]
	inModel *jsonModel
}

func (w *typedWorkerInstance[In, Out]) Initialize() error {
	return w.inst.Initialize()
}

func (w *typedWorkerInstance[In, Out]) Invoke(ctx RunContext, rawIn json.RawMessage, hp json.RawMessage) (json.RawMessage, error) {
	var in In
	if err := w.inModel.decodeStrict(rawIn, &in); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	out, err := w.inst.Run(ctx, in, hp)
	if err != nil {
		return nil, err
	}
	rawOut, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return rawOut, nil
}

func (w *typedWorkerInstance[In, Out]) Shutdown() error {
	return w.inst.Shutdown()
}

func smokeTest[T any]() error {
	var zero T
	raw, err := json.Marshal(zero)
	if err != nil {
		return fmt.Errorf("marshal zero value: %w", err)
	}
	var roundTrip T
	if err := json.Unmarshal(raw, &roundTrip); err != nil {
		return fmt.Errorf("unmarshal zero value: %w", err)
	}
	return nil
}

// jsonModel implements Model for a concrete Go type via reflection over its
// json struct tags.
type jsonModel struct {
	typ    reflect.Type
	schema map[string]any
}

func reflectModel[T any]() *jsonModel {
	var zero T
	typ := reflect.TypeOf(zero)
	return &jsonModel{typ: typ, schema: schemaOf(typ)}
}

func (m *jsonModel) Schema() map[string]any {
	return m.schema
}

func (m *jsonModel) Validate(raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	target := reflect.New(m.typ).Interface()
	return dec.Decode(target)
}

// decodeStrict decodes raw into target (a *In), rejecting unknown fields the
// way the dispatcher does for the envelope itself. encoding/json applies
// DisallowUnknownFields at every struct depth, so unknown keys inside nested
// structs are rejected too; only map-typed fields accept arbitrary keys. An
// empty raw decodes as {}.
func (m *jsonModel) decodeStrict(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(target)
}

func schemaOf(typ reflect.Type) map[string]any {
	if typ == nil {
		return map[string]any{"type": "null"}
	}
	for typ.Kind() == reflect.Ptr {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return map[string]any{"type": jsonKind(typ.Kind())}
	}

	props := make(map[string]any, typ.NumField())
	required := make([]string, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("json")
		name := field.Name
		omitempty := false
		if tag != "" {
			parts := strings.Split(tag, ",")
			if parts[0] == "-" {
				continue
			}
			if parts[0] != "" {
				name = parts[0]
			}
			for _, p := range parts[1:] {
				if p == "omitempty" {
					omitempty = true
				}
			}
		}
		props[name] = map[string]any{"type": jsonKind(field.Type.Kind())}
		if !omitempty {
			required = append(required, name)
		}
	}

	s := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func jsonKind(k reflect.Kind) string {
	switch k {
	case reflect.String:
		return "string"
	case reflect.Bool:
		return "boolean"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Map, reflect.Struct:
		return "object"
	default:
		return "any"
	}
}
