package envelope

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_RejectsUnknownFields(t *testing.T) {
	body := []byte(`{"requestId":"r1","datetime":"2026-01-01T00:00:00Z","data":{"value":21},"bogus":true}`)

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	var req Request
	err := dec.Decode(&req)
	require.Error(t, err)
}

func TestRequest_ParsedDatetime(t *testing.T) {
	req := Request{Datetime: "2026-01-01T00:00:00Z"}
	ts, err := req.ParsedDatetime()
	require.NoError(t, err)
	assert.Equal(t, 2026, ts.Year())
}

func TestRequest_ParsedDatetime_Invalid(t *testing.T) {
	req := Request{Datetime: "not-a-date"}
	_, err := req.ParsedDatetime()
	assert.Error(t, err)
}

func TestResponse_ContextOmittedWhenNil(t *testing.T) {
	resp := Response{Code: CodeSuccess, Message: "success", RequestID: "r1", Datetime: "2026-01-01T00:00:00Z"}
	out, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.NotContains(t, string(out), `"context"`)
}
