package executor

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/domain/execution"
)

type doubleIn struct {
	X int `json:"x"`
}

type doubleOut struct {
	Doubled int `json:"doubled"`
}

func buildSpec(t *testing.T, timeoutS *float64, entrypoint func(ctx algorithm.RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error)) *algorithm.Spec {
	t.Helper()
	spec, err := algorithm.Descriptor[doubleIn, doubleOut]{
		Name:        "double",
		Version:     "v1",
		Author:      "test",
		Category:    "test",
		CreatedTime: "2026-01-01",
		Execution: algorithm.ExecutionConfig{
			ExecutionMode: algorithm.ModeInProcess,
			TimeoutS:      timeoutS,
		},
		Entrypoint: entrypoint,
	}.Build()
	require.NoError(t, err)
	return spec
}

func TestInline_Submit_Success(t *testing.T) {
	spec := buildSpec(t, nil, func(ctx algorithm.RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error) {
		return doubleOut{Doubled: in.X * 2}, nil
	})

	b := NewInline()
	require.NoError(t, b.Start())

	req := &execution.Request{Spec: spec, Payload: json.RawMessage(`{"x":5}`), RequestID: "r1"}
	res, err := b.Submit(context.Background(), req)
	require.NoError(t, err)
	require.True(t, res.Success)

	var out doubleOut
	require.NoError(t, json.Unmarshal(res.Data, &out))
	assert.Equal(t, 10, out.Doubled)
}

func TestInline_Submit_TimesOutWhenEntrypointHangs(t *testing.T) {
	timeoutS := 0.05
	spec := buildSpec(t, &timeoutS, func(ctx algorithm.RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error) {
		time.Sleep(time.Second)
		return doubleOut{}, nil
	})

	b := NewInline()
	require.NoError(t, b.Start())

	req := &execution.Request{Spec: spec, Payload: json.RawMessage(`{"x":5}`), RequestID: "r1"}
	res, err := b.Submit(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, execution.ErrorTimeout, res.Err.Kind)
}

func TestInline_Submit_PropagatesEntrypointError(t *testing.T) {
	spec := buildSpec(t, nil, func(ctx algorithm.RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error) {
		return doubleOut{}, assert.AnError
	})

	b := NewInline()
	require.NoError(t, b.Start())

	req := &execution.Request{Spec: spec, Payload: json.RawMessage(`{"x":5}`), RequestID: "r1"}
	res, err := b.Submit(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, execution.ErrorRuntime, res.Err.Kind)
}

func TestInline_Submit_SetsResponseMetaFromHandle(t *testing.T) {
	spec := buildSpec(t, nil, func(ctx algorithm.RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error) {
		ctx.SetResponseCode(7)
		ctx.SetResponseMessage("custom")
		return doubleOut{Doubled: in.X * 2}, nil
	})

	b := NewInline()
	require.NoError(t, b.Start())

	req := &execution.Request{Spec: spec, Payload: json.RawMessage(`{"x":1}`), RequestID: "r1"}
	res, err := b.Submit(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, res.ResponseMeta)
	assert.Equal(t, 7, *res.ResponseMeta.Code)
	assert.Equal(t, "custom", *res.ResponseMeta.Message)
}
