package executor

import (
	"encoding/json"
	"time"

	"github.com/r3e-network/algoserver/domain/execctx"
	"github.com/r3e-network/algoserver/domain/execution"
)

// resultFrom builds a Result from an in-process Run call's outcome, folding
// in whatever response-meta overrides the entrypoint staged on handle.
func resultFrom(data json.RawMessage, err error, handle *execctx.Handle, startedAt time.Time) execution.Result {
	res := execution.Result{StartedAt: startedAt, EndedAt: time.Now()}

	if err != nil {
		res.Success = false
		res.Err = &execution.Error{Kind: execution.ErrorRuntime, Message: err.Error()}
	} else {
		res.Success = true
		res.Data = data
	}

	if meta := handle.ResponseMeta(); meta != nil {
		res.ResponseMeta = &execution.ResponseMeta{Code: meta.Code, Message: meta.Message, Context: meta.Context}
	}
	return res
}
