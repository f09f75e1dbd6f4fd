package pool

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/algoserver/domain/algorithm"
)

type doubleIn struct {
	X int `json:"x"`
}

type doubleOut struct {
	Doubled int `json:"doubled"`
}

func newDoubleRegistry(t *testing.T) *algorithm.Registry {
	t.Helper()
	reg := algorithm.NewRegistry()
	spec, err := algorithm.Descriptor[doubleIn, doubleOut]{
		Name:        "double",
		Version:     "v1",
		Author:      "test",
		Category:    "test",
		CreatedTime: "2026-01-01",
		Entrypoint: func(ctx algorithm.RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error) {
			return doubleOut{Doubled: in.X * 2}, nil
		},
	}.Build()
	require.NoError(t, err)
	require.NoError(t, reg.Register(spec))
	return reg
}

type counterInstance struct {
	total int
}

func (c *counterInstance) Initialize() error { return nil }
func (c *counterInstance) Run(ctx algorithm.RunContext, in doubleIn, hp json.RawMessage) (doubleOut, error) {
	c.total += in.X
	return doubleOut{Doubled: c.total}, nil
}
func (c *counterInstance) Shutdown() error { return nil }

func newStatefulRegistry(t *testing.T) *algorithm.Registry {
	t.Helper()
	reg := algorithm.NewRegistry()
	spec, err := algorithm.Descriptor[doubleIn, doubleOut]{
		Name:        "accumulate",
		Version:     "v1",
		Author:      "test",
		Category:    "test",
		CreatedTime: "2026-01-01",
		NewInstance: func() algorithm.Instance[doubleIn, doubleOut] {
			return &counterInstance{}
		},
	}.Build()
	require.NoError(t, err)
	require.NoError(t, reg.Register(spec))
	return reg
}

func TestSplitEntrypointRef(t *testing.T) {
	name, version, ok := splitEntrypointRef("double@v1")
	require.True(t, ok)
	assert.Equal(t, "double", name)
	assert.Equal(t, "v1", version)

	_, _, ok = splitEntrypointRef("malformed")
	assert.False(t, ok)
}

func TestParseWorkerFDArg(t *testing.T) {
	r, w, err := ParseWorkerFDArg("3:4")
	require.NoError(t, err)
	assert.Equal(t, 3, r)
	assert.Equal(t, 4, w)

	_, _, err = ParseWorkerFDArg("nope")
	assert.Error(t, err)
}

// runWorkerBodyHarness pipes task messages into RunWorkerBody and collects
// its result messages, without spawning a real process.
func runWorkerBodyHarness(t *testing.T, reg *algorithm.Registry, tasks []taskMessage) []resultMessage {
	t.Helper()

	parentW, childR := io.Pipe()
	childW, parentR := io.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- RunWorkerBody(reg, childR, childW)
	}()

	enc := json.NewEncoder(parentW)
	dec := json.NewDecoder(parentR)

	var ready readyMessage
	require.NoError(t, dec.Decode(&ready))
	require.True(t, ready.Ready)

	var results []resultMessage
	for _, task := range tasks {
		require.NoError(t, enc.Encode(task))
		var res resultMessage
		require.NoError(t, dec.Decode(&res))
		results = append(results, res)
	}

	require.NoError(t, enc.Encode(stopMessage()))
	_ = parentW.Close()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker body did not exit after stop sentinel")
	}

	return results
}

func TestRunWorkerBody_StatelessEntrypoint(t *testing.T) {
	reg := newDoubleRegistry(t)

	results := runWorkerBodyHarness(t, reg, []taskMessage{
		{TaskID: "t1", EntrypointRef: "double@v1", InputDump: json.RawMessage(`{"x":3}`), RequestID: "r1"},
	})

	require.Len(t, results, 1)
	assert.True(t, results[0].Success)
	var out doubleOut
	require.NoError(t, json.Unmarshal(results[0].DataDump, &out))
	assert.Equal(t, 6, out.Doubled)
}

func TestRunWorkerBody_UnknownEntrypointIsValidationFailure(t *testing.T) {
	reg := newDoubleRegistry(t)

	results := runWorkerBodyHarness(t, reg, []taskMessage{
		{TaskID: "t1", EntrypointRef: "missing@v1", InputDump: json.RawMessage(`{}`), RequestID: "r1"},
	})

	require.Len(t, results, 1)
	assert.False(t, results[0].Success)
	assert.Equal(t, "validation", results[0].ErrorKind)
}

func TestRunWorkerBody_StatefulInstanceAccumulatesAcrossTasks(t *testing.T) {
	reg := newStatefulRegistry(t)

	results := runWorkerBodyHarness(t, reg, []taskMessage{
		{TaskID: "t1", EntrypointRef: "accumulate@v1", InputDump: json.RawMessage(`{"x":2}`), RequestID: "r1", Stateful: true},
		{TaskID: "t2", EntrypointRef: "accumulate@v1", InputDump: json.RawMessage(`{"x":3}`), RequestID: "r2", Stateful: true},
	})

	require.Len(t, results, 2)
	var out1, out2 doubleOut
	require.NoError(t, json.Unmarshal(results[0].DataDump, &out1))
	require.NoError(t, json.Unmarshal(results[1].DataDump, &out2))
	assert.Equal(t, 2, out1.Doubled)
	assert.Equal(t, 5, out2.Doubled)
}
