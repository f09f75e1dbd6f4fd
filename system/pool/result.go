package pool

import (
	"encoding/json"
	"time"

	"github.com/r3e-network/algoserver/domain/envelope"
	"github.com/r3e-network/algoserver/domain/execution"
)

func marshalContext(ctx *envelope.Context) (json.RawMessage, error) {
	if ctx == nil {
		return nil, nil
	}
	return json.Marshal(ctx)
}

func rejectedResult(req *execution.Request) execution.Result {
	now := time.Now()
	return execution.Result{
		Success:   false,
		StartedAt: now,
		EndedAt:   now,
		Err: &execution.Error{
			Kind:    execution.ErrorRejected,
			Message: "worker pool saturated",
		},
	}
}

func errorResult(kind execution.ErrorKind, message string) execution.Result {
	now := time.Now()
	return execution.Result{
		Success:   false,
		StartedAt: now,
		EndedAt:   now,
		Err:       &execution.Error{Kind: kind, Message: message},
	}
}

func resultFromMessage(msg resultMessage, startedAt time.Time) execution.Result {
	res := execution.Result{
		Success:   msg.Success,
		Data:      msg.DataDump,
		StartedAt: msg.StartedAt,
		EndedAt:   msg.EndedAt,
		WorkerPID: msg.PID,
	}
	if res.StartedAt.IsZero() {
		res.StartedAt = startedAt
	}
	if res.EndedAt.IsZero() {
		res.EndedAt = time.Now()
	}

	if !msg.Success {
		res.Err = &execution.Error{
			Kind:    execution.ErrorKind(msg.ErrorKind),
			Message: msg.ErrorDetail,
		}
	}

	if msg.ResponseMeta != nil {
		res.ResponseMeta = &execution.ResponseMeta{
			Code:    msg.ResponseMeta.Code,
			Message: msg.ResponseMeta.Message,
			Context: msg.ResponseMeta.Context,
		}
	}

	return res
}
