package dispatch

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/r3e-network/algoserver/domain/envelope"
)

// badEnvelopeResponse handles a body that parsed as JSON but didn't match
// the AlgorithmRequest schema (most commonly an unknown top-level field,
// rejected by DisallowUnknownFields per spec.md §3). The struct decode
// aborted before requestId/datetime were necessarily populated, so they are
// recovered independently with gjson — a plain field lookup against the raw
// bytes needs no second schema.
func badEnvelopeResponse(raw []byte, decodeErr error) *envelope.Response {
	return &envelope.Response{
		Code:      envelope.CodeBadEnvelope,
		Message:   decodeErr.Error(),
		RequestID: gjson.GetBytes(raw, "requestId").String(),
		Datetime:  gjson.GetBytes(raw, "datetime").String(),
	}
}

func notFoundResponse(req *envelope.Request, name, version string) *envelope.Response {
	return &envelope.Response{
		Code:      envelope.CodeNotFound,
		Message:   fmt.Sprintf("algorithm %s@%s is not registered", name, version),
		RequestID: req.RequestID,
		Datetime:  req.Datetime,
	}
}

func validationResponse(req *envelope.Request, validateErr error) *envelope.Response {
	return &envelope.Response{
		Code:      envelope.CodeInputValidation,
		Message:   validateErr.Error(),
		RequestID: req.RequestID,
		Datetime:  req.Datetime,
	}
}

func systemErrorResponse(req *envelope.Request, submitErr error) *envelope.Response {
	return &envelope.Response{
		Code:      envelope.CodeSystem,
		Message:   submitErr.Error(),
		RequestID: req.RequestID,
		Datetime:  req.Datetime,
	}
}
