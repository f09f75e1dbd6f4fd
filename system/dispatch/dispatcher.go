// Package dispatch implements the HTTP dispatcher: it terminates the wire
// envelope, resolves a spec from the registry, validates the payload,
// submits to an executor backend, and maps the outcome back to the wire
// envelope. It is the single translation point between the internal error
// taxonomy (domain/execution) and the response code catalog
// (domain/envelope).
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/domain/envelope"
	"github.com/r3e-network/algoserver/domain/execution"
	svcerrors "github.com/r3e-network/algoserver/infrastructure/errors"
	infraexecution "github.com/r3e-network/algoserver/infrastructure/execution"
	"github.com/r3e-network/algoserver/infrastructure/httputil"
	"github.com/r3e-network/algoserver/infrastructure/logging"
	"github.com/r3e-network/algoserver/infrastructure/ratelimit"
	"github.com/r3e-network/algoserver/system/executor"
)

// Dispatcher holds the dependencies the HTTP handlers need: the registry to
// resolve specs, the executor backend to run them, the audit log to record
// terminal events, and a logger for the optional gjson payload preview.
type Dispatcher struct {
	Registry *algorithm.Registry
	Backend  executor.Backend
	Audit    *infraexecution.Log
	Logger   *logging.Logger

	// DefaultTimeoutS backfills execution.Request.TimeoutS when a spec
	// registers no execution.timeoutS of its own (EXECUTOR_DEFAULT_TIMEOUT_S),
	// so every request still runs under some bound.
	DefaultTimeoutS float64

	// PerAlgorithmLimiter, if non-nil, caps the submission rate of each
	// individual (name, version) registration so one hot algorithm cannot
	// starve the shared pool out from under the others. Nil means
	// unlimited.
	PerAlgorithmLimiter *ratelimit.KeyedLimiter
}

// Execute handles POST /algorithms/{name}/{version}. Once the request body
// parses as JSON, every outcome — found or not, valid or not, success or
// typed failure — is reported HTTP 200 with the authoritative outcome in
// the envelope's code field. Only a body that isn't even valid JSON gets a
// transport-level 400, since no envelope can be constructed at all for it.
func (d *Dispatcher) Execute(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, version := vars["name"], vars["version"]

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_ENVELOPE", "cannot read request body", nil)
		return
	}

	var req envelope.Request
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		if !json.Valid(raw) {
			httputil.WriteErrorResponse(w, r, http.StatusBadRequest, "BAD_ENVELOPE", "request body is not valid JSON", nil)
			return
		}
		d.writeEnvelope(w, badEnvelopeResponse(raw, err))
		return
	}

	spec, err := d.Registry.Get(name, version)
	if err != nil {
		d.writeEnvelope(w, notFoundResponse(&req, name, version))
		return
	}

	if err := spec.InputModel.Validate(req.Data); err != nil {
		d.writeEnvelope(w, validationResponse(&req, err))
		return
	}

	if d.PerAlgorithmLimiter != nil && !d.PerAlgorithmLimiter.Allow(name+"@"+version) {
		d.writeEnvelope(w, systemErrorResponse(&req, svcerrors.RateLimitExceeded(0, "per-algorithm")))
		return
	}

	execReq := &execution.Request{
		Spec:      spec,
		Payload:   req.Data,
		RequestID: req.RequestID,
		Context:   req.Context,
	}
	if ts, parseErr := req.ParsedDatetime(); parseErr == nil {
		execReq.RequestDatetime = ts
	} else {
		execReq.RequestDatetime = time.Now().UTC()
	}
	if req.Context != nil {
		execReq.TraceID = req.Context.TraceID
	}
	if spec.Execution.TimeoutS == nil && d.DefaultTimeoutS > 0 {
		defaultTimeout := d.DefaultTimeoutS
		execReq.TimeoutS = &defaultTimeout
	}

	d.logRequestPreview(spec, &req)

	result, err := d.Backend.Submit(r.Context(), execReq)
	if err != nil {
		d.audit(r.Context(), execReq, execution.Result{}, err)
		d.writeEnvelope(w, systemErrorResponse(&req, err))
		return
	}

	d.logResponsePreview(spec, result)
	d.audit(r.Context(), execReq, result, nil)
	d.writeEnvelope(w, result.ToEnvelope(execReq))
}

func (d *Dispatcher) writeEnvelope(w http.ResponseWriter, resp *envelope.Response) {
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// audit records the terminal event for one request in the execution audit
// log. A nil Audit (no configured sink, e.g. in tests) is a no-op.
func (d *Dispatcher) audit(ctx context.Context, req *execution.Request, res execution.Result, submitErr error) {
	if d.Audit == nil {
		return
	}

	rec := infraexecution.Record{
		RequestID: req.RequestID,
		Algorithm: req.Spec.Name,
		Version:   req.Spec.Version,
		WorkerPID: res.WorkerPID,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}

	switch {
	case submitErr != nil:
		rec.Status = infraexecution.StatusFailed
		rec.ErrorKind = string(execution.ErrorSystem)
		rec.ErrorDetail = submitErr.Error()
	case res.Success:
		rec.Status = infraexecution.StatusSuccess
	case res.Err.Kind == execution.ErrorTimeout:
		rec.Status = infraexecution.StatusTimeout
		rec.ErrorKind = string(res.Err.Kind)
		rec.ErrorDetail = res.Err.Message
	default:
		rec.Status = infraexecution.StatusFailed
		rec.ErrorKind = string(res.Err.Kind)
		rec.ErrorDetail = res.Err.Message
	}

	if err := d.Audit.Write(ctx, rec); err != nil && d.Logger != nil {
		d.Logger.WithContext(ctx).WithError(err).Warn("algorithm audit write failed")
	}
}

func (d *Dispatcher) logRequestPreview(spec *algorithm.Spec, req *envelope.Request) {
	if d.Logger == nil || !spec.Logging.Enabled || !spec.Logging.LogInput {
		return
	}
	d.Logger.WithFields(map[string]interface{}{
		"algorithm":   spec.Name,
		"version":     spec.Version,
		"requestId":   req.RequestID,
		"dataPreview": previewJSON(req.Data),
	}).Info("algorithm request received")
}

func (d *Dispatcher) logResponsePreview(spec *algorithm.Spec, res execution.Result) {
	if d.Logger == nil || !spec.Logging.Enabled || !spec.Logging.LogOutput || !res.Success {
		return
	}
	d.Logger.WithFields(map[string]interface{}{
		"algorithm":   spec.Name,
		"version":     spec.Version,
		"dataPreview": previewJSON(res.Data),
	}).Info("algorithm response produced")
}
