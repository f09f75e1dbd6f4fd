package algorithm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	apperrors "github.com/r3e-network/algoserver/infrastructure/errors"
)

// Registry is the exclusive-ownership catalog keyed by (name, version). It
// is written only at startup (Register / LoadPackages / LoadConfig); during
// steady state it is read-only and safe for concurrent Get/List without
// external locking beyond the internal RWMutex (spec.md §5, "Shared-resource
// policy").
type Registry struct {
	mu    sync.RWMutex
	specs map[Key]*Spec

	overrides []overrideEntry // retained so late registrations still see them
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{specs: make(map[Key]*Spec)}
}

// Register adds spec to the catalog. It is idempotent-checking: registering
// the same (name, version) twice returns an already-registered error and
// leaves the registry unchanged (spec.md §8, universal property 6).
func (r *Registry) Register(spec *Spec) error {
	if err := validateSpec(spec); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := Key{Name: spec.Name, Version: spec.Version}
	if _, exists := r.specs[key]; exists {
		return apperrors.AlreadyExists("algorithm", key.String())
	}

	cloned := *spec
	applyOverridesLocked(&cloned, r.overrides)
	r.specs[key] = &cloned
	return nil
}

// Get returns the spec for (name, version), or a not-found error.
func (r *Registry) Get(name, version string) (*Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[Key{Name: name, Version: version}]
	if !ok {
		return nil, apperrors.NotFound("algorithm", Key{Name: name, Version: version}.String())
	}
	return spec, nil
}

// List returns every registered spec, ordered by (name, version) for stable
// enumeration over the GET /algorithms endpoint (C7).
func (r *Registry) List() []*Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Spec, 0, len(r.specs))
	for _, s := range r.specs {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Version < out[j].Version
	})
	return out
}

func validateSpec(spec *Spec) error {
	if spec.Name == "" || spec.Version == "" {
		return apperrors.InvalidInput("name/version", "required")
	}
	if spec.Author == "" {
		return apperrors.MissingParameter("author")
	}
	if spec.Category == "" {
		return apperrors.MissingParameter("category")
	}
	if spec.CreatedTime != "" && !ValidCreatedTime(spec.CreatedTime) {
		return apperrors.InvalidFormat("createdTime", "YYYY-MM-DD")
	}
	if spec.Run == nil {
		return apperrors.InvalidInput("entrypoint", "descriptor produced no runnable entrypoint")
	}
	return nil
}

// StagedBuilder is what a self-registering algorithm subpackage exposes via
// a package-level slice appended to from its own init(); LoadPackages
// consumes the accumulated slice explicitly at startup rather than at
// import time (SPEC_FULL.md §4.1: "no module-load side effects").
type StagedBuilder func() (*Spec, error)

var (
	stageMu sync.Mutex
	staged  []StagedBuilder
)

// MustStage appends a builder to the process-wide staging slice. Algorithm
// subpackages call this from their own init(), but registration into any
// particular Registry happens only when LoadPackages walks the slice.
func MustStage(b StagedBuilder) {
	stageMu.Lock()
	defer stageMu.Unlock()
	staged = append(staged, b)
}

// Staged returns a snapshot of everything staged via MustStage so far.
func Staged() []StagedBuilder {
	stageMu.Lock()
	defer stageMu.Unlock()
	out := make([]StagedBuilder, len(staged))
	copy(out, staged)
	return out
}

// LoadPackages walks the process-wide staged-builder slice (populated by
// blank-imported algorithm subpackages) and registers every resulting spec.
// A builder that fails or a spec that fails validation is skipped with a
// warning collected into the returned error rather than aborting the whole
// load (spec.md §4.1: "skipped with a warning, not rejected"); dir is
// accepted for parity with spec.md's directory-scan contract but is
// currently unused since Go has no runtime package import — see
// SPEC_FULL.md §4.1.
func (r *Registry) LoadPackages(dir string) error {
	_ = dir
	var warnings *multierror.Error
	for _, build := range Staged() {
		spec, err := build()
		if err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("build staged algorithm: %w", err))
			continue
		}
		if err := r.Register(spec); err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("register %s@%s: %w", spec.Name, spec.Version, err))
		}
	}
	return warnings.ErrorOrNil()
}

// overrideEntry is one YAML entry under a *.algometa.yaml file.
type overrideEntry struct {
	// Match keys — required, never themselves overridden.
	Name          string `yaml:"name"`
	Version       string `yaml:"version"`
	Category      string `yaml:"category"`
	AlgorithmType string `yaml:"algorithmType"`

	// Override keys — all optional.
	Description          *string           `yaml:"description"`
	CreatedTime          *string           `yaml:"createdTime"`
	Author               *string           `yaml:"author"`
	ApplicationScenarios *string           `yaml:"applicationScenarios"`
	Extra                map[string]string `yaml:"extra"`
	Logging              *LoggingConfig    `yaml:"logging"`
	Execution            *ExecutionConfig  `yaml:"execution"`

	source string // file the entry came from, for diagnostics
}

func (e overrideEntry) matches(spec *Spec) bool {
	return e.Name == spec.Name && e.Version == spec.Version &&
		e.Category == spec.Category && e.AlgorithmType == spec.AlgorithmType
}

// LoadConfig reads every *.algometa.yaml file in dir in lexical order, then
// every entry within a file in order, applying overrides to matching specs.
// Later matches win; overrides are retained so specs registered afterward
// also pick them up (spec.md §4.1). A file that cannot be read or parsed is
// skipped with a warning; an entry missing a match key is skipped with a
// warning while the rest of its file still applies. Loading continues with
// the rest, and the warnings are returned together.
func (r *Registry) LoadConfig(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read algometa config dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".algometa.yaml") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var warnings *multierror.Error
	var parsed []overrideEntry

	for _, name := range files {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("read %s: %w", name, err))
			continue
		}

		var fileEntries []overrideEntry
		if err := yaml.Unmarshal(data, &fileEntries); err != nil {
			warnings = multierror.Append(warnings, fmt.Errorf("parse %s: %w", name, err))
			continue
		}

		for i := range fileEntries {
			e := fileEntries[i]
			if e.Name == "" || e.Version == "" || e.Category == "" || e.AlgorithmType == "" {
				warnings = multierror.Append(warnings, fmt.Errorf("%s: entry %d missing a required match key", name, i))
				continue
			}
			e.source = name
			parsed = append(parsed, e)
		}
	}

	r.mu.Lock()
	r.overrides = append(r.overrides, parsed...)
	for _, spec := range r.specs {
		applyOverridesLocked(spec, parsed)
	}
	r.mu.Unlock()

	return warnings.ErrorOrNil()
}

// applyOverridesLocked applies every matching entry to spec in order, so
// later entries win, per spec.md's "Later matches win" precedence. Caller
// holds r.mu.
func applyOverridesLocked(spec *Spec, overrides []overrideEntry) {
	for _, e := range overrides {
		if !e.matches(spec) {
			continue
		}
		if e.Description != nil {
			spec.Description = *e.Description
		}
		if e.CreatedTime != nil {
			spec.CreatedTime = *e.CreatedTime
		}
		if e.Author != nil {
			spec.Author = *e.Author
		}
		if e.ApplicationScenarios != nil {
			spec.ApplicationScenarios = *e.ApplicationScenarios
		}
		if e.Extra != nil {
			spec.Extra = e.Extra
		}
		if e.Logging != nil {
			spec.Logging = *e.Logging
		}
		if e.Execution != nil {
			spec.Execution = *e.Execution
		}
	}
}
