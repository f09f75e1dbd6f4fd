// Package execution defines the internal execution-request/result records
// exchanged between the HTTP dispatcher (C7), the executor backends (C5),
// and the supervised worker pool (C6).
package execution

import (
	"encoding/json"
	"time"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/domain/envelope"
)

// ErrorKind is one of the five taxonomy members from spec.md §3/§7.
type ErrorKind string

const (
	ErrorValidation ErrorKind = "validation"
	ErrorTimeout    ErrorKind = "timeout"
	ErrorRejected   ErrorKind = "rejected"
	ErrorRuntime    ErrorKind = "runtime"
	ErrorSystem     ErrorKind = "system"
)

// Error is the internal execution-error record carried in Result.Error. It
// never crosses the HTTP boundary directly — the dispatcher (C7) is the
// single translation point to an envelope response code.
type Error struct {
	Kind      ErrorKind      `json:"kind"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Traceback string         `json:"traceback,omitempty"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// ResponseMeta carries the overrides user code may stage via the C4 context
// store (setResponseCode/Message/Context), captured on every exit path.
type ResponseMeta struct {
	Code    *int           `json:"code,omitempty"`
	Message *string        `json:"message,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

// Request is the internal submit payload built by the HTTP dispatcher from
// an envelope.Request plus the resolved Spec.
type Request struct {
	Spec            *algorithm.Spec
	Payload         json.RawMessage
	Hyperparams     json.RawMessage
	RequestID       string
	RequestDatetime time.Time
	TraceID         string
	Context         *envelope.Context
	// TimeoutS, if non-nil, is the caller-supplied override; EffectiveTimeout
	// resolves it against Spec.Execution.TimeoutS per spec.md §3.
	TimeoutS *float64
}

// EffectiveTimeout returns min(request.TimeoutS, spec.execution.timeoutS)
// after null elision (spec.md §3, Open Question resolved in DESIGN.md: nil
// means "use spec", not "no timeout"). Zero means no timeout at all, which
// only happens when neither side set one.
func (r *Request) EffectiveTimeout() time.Duration {
	specTimeout := r.Spec.Execution.Timeout()

	if r.TimeoutS == nil {
		return specTimeout
	}
	reqTimeout := time.Duration(*r.TimeoutS * float64(time.Second))
	if specTimeout == 0 {
		return reqTimeout
	}
	if reqTimeout < specTimeout {
		return reqTimeout
	}
	return specTimeout
}

// Result is the internal outcome of one Request, produced by an executor
// backend (C5) and mapped to an envelope.Response by the dispatcher (C7).
type Result struct {
	Success      bool
	Data         json.RawMessage
	Err          *Error
	StartedAt    time.Time
	EndedAt      time.Time
	WorkerPID    int
	ResponseMeta *ResponseMeta
}

// errorCodeMap implements spec.md §4.2's kind→code table.
var errorCodeMap = map[ErrorKind]int{
	ErrorValidation: envelope.CodeInputValidation,
	ErrorTimeout:    envelope.CodeTimeout,
	ErrorRejected:   envelope.CodeRejected,
	ErrorRuntime:    envelope.CodeRuntime,
	ErrorSystem:     envelope.CodeSystem,
}

// ToEnvelope maps a Result back into a response envelope, applying any
// responseMeta override per spec.md §4.2. req supplies the echoed requestId
// and datetime (never server time).
func (res *Result) ToEnvelope(req *Request) *envelope.Response {
	resp := &envelope.Response{
		RequestID: req.RequestID,
		Datetime:  req.RequestDatetime.UTC().Format(time.RFC3339),
	}

	if res.Success {
		resp.Code = envelope.CodeSuccess
		resp.Message = "success"
		resp.Data = res.Data
	} else {
		resp.Code = errorCodeMap[res.Err.Kind]
		resp.Message = res.Err.Message
	}

	if res.ResponseMeta != nil {
		if res.ResponseMeta.Code != nil {
			resp.Code = *res.ResponseMeta.Code
		}
		if res.ResponseMeta.Message != nil {
			resp.Message = *res.ResponseMeta.Message
		}
		if res.ResponseMeta.Context != nil {
			resp.Context = &envelope.Context{Extra: res.ResponseMeta.Context}
		}
	}

	return resp
}
