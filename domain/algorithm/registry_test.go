package algorithm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/r3e-network/algoserver/infrastructure/errors"
)

type doubleIn struct {
	Value int `json:"value"`
}

type doubleOut struct {
	Doubled int `json:"doubled"`
}

func doubleDescriptor(timeoutS float64) Descriptor[doubleIn, doubleOut] {
	ts := timeoutS
	return Descriptor[doubleIn, doubleOut]{
		Name:        "double",
		Version:     "v1",
		Author:      "test-author",
		Category:    "math",
		CreatedTime: "2026-01-01",
		Execution: ExecutionConfig{
			ExecutionMode: ModeProcessPool,
			MaxWorkers:    1,
			TimeoutS:      &ts,
		},
		Entrypoint: func(ctx RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error) {
			return doubleOut{Doubled: in.Value * 2}, nil
		},
	}
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	spec, err := doubleDescriptor(5).Build()
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.Register(spec))

	got, err := reg.Get("double", "v1")
	require.NoError(t, err)
	assert.Equal(t, "double", got.Name)

	raw, err := got.Run(nil, json.RawMessage(`{"value":21}`), nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"doubled":42}`, string(raw))
}

func TestRegistry_DuplicateRegistrationIsIdempotentFailure(t *testing.T) {
	spec, err := doubleDescriptor(5).Build()
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.Register(spec))

	err = reg.Register(spec)
	require.Error(t, err)
	svcErr := apperrors.GetServiceError(err)
	require.NotNil(t, svcErr)
	assert.Equal(t, apperrors.ErrCodeAlreadyExists, svcErr.Code)

	assert.Len(t, reg.List(), 1)
}

func TestRegistry_GetNotFound(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("missing", "v1")
	require.Error(t, err)
	svcErr := apperrors.GetServiceError(err)
	require.NotNil(t, svcErr)
	assert.Equal(t, apperrors.ErrCodeNotFound, svcErr.Code)
}

func TestRegistry_List_SortedByNameThenVersion(t *testing.T) {
	reg := NewRegistry()
	for _, nv := range [][2]string{{"b", "v1"}, {"a", "v2"}, {"a", "v1"}} {
		d := doubleDescriptor(1)
		d.Name, d.Version = nv[0], nv[1]
		spec, err := d.Build()
		require.NoError(t, err)
		require.NoError(t, reg.Register(spec))
	}

	list := reg.List()
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "v1", list[0].Version)
	assert.Equal(t, "a", list[1].Name)
	assert.Equal(t, "v2", list[1].Version)
	assert.Equal(t, "b", list[2].Name)
}

func TestRegistry_LoadConfig_OverrideOrdering(t *testing.T) {
	spec, err := doubleDescriptor(5).Build()
	spec.Category = "math"
	spec.AlgorithmType = "prediction"
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, reg.Register(spec))

	dir := t.TempDir()
	writeAlgometa(t, dir, "a.algometa.yaml", `
- name: double
  version: v1
  category: math
  algorithmType: prediction
  execution:
    executionMode: PROCESS_POOL
    maxWorkers: 1
    timeoutS: 5
`)
	writeAlgometa(t, dir, "b.algometa.yaml", `
- name: double
  version: v1
  category: math
  algorithmType: prediction
  execution:
    executionMode: PROCESS_POOL
    maxWorkers: 1
    timeoutS: 1
`)

	require.NoError(t, reg.LoadConfig(dir))

	got, err := reg.Get("double", "v1")
	require.NoError(t, err)
	require.NotNil(t, got.Execution.TimeoutS)
	assert.Equal(t, 1.0, *got.Execution.TimeoutS)
}

func TestRegistry_LoadConfig_AppliesToLaterRegistrations(t *testing.T) {
	reg := NewRegistry()

	dir := t.TempDir()
	writeAlgometa(t, dir, "10.algometa.yaml", `
- name: double
  version: v1
  category: math
  algorithmType: prediction
  execution:
    executionMode: PROCESS_POOL
    maxWorkers: 1
    timeoutS: 1
`)
	require.NoError(t, reg.LoadConfig(dir))

	spec, err := doubleDescriptor(5).Build()
	require.NoError(t, err)
	spec.Category = "math"
	spec.AlgorithmType = "prediction"
	require.NoError(t, reg.Register(spec))

	got, err := reg.Get("double", "v1")
	require.NoError(t, err)
	require.NotNil(t, got.Execution.TimeoutS)
	assert.Equal(t, 1.0, *got.Execution.TimeoutS)
}

func TestRegistry_LoadPackages_ConsumesStagedBuilders(t *testing.T) {
	reg := NewRegistry()
	before := len(Staged())

	MustStage(func() (*Spec, error) {
		return doubleDescriptor(2).Build()
	})

	require.NoError(t, reg.LoadPackages(""))
	assert.GreaterOrEqual(t, len(Staged()), before+1)

	_, err := reg.Get("double", "v1")
	require.NoError(t, err)
}

func writeAlgometa(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestValidCreatedTime(t *testing.T) {
	assert.True(t, ValidCreatedTime("2026-01-01"))
	assert.False(t, ValidCreatedTime("2026-13-01"))
	assert.False(t, ValidCreatedTime("not-a-date"))
}
