package dispatch

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/r3e-network/algoserver/domain/algorithm"
	"github.com/r3e-network/algoserver/infrastructure/httputil"
)

// algorithmSummary is the GET /algorithms enumeration shape (spec.md §6).
type algorithmSummary struct {
	Name                 string            `json:"name"`
	Version              string            `json:"version"`
	Description          string            `json:"description,omitempty"`
	AlgorithmType        string            `json:"algorithmType,omitempty"`
	CreatedTime          string            `json:"createdTime,omitempty"`
	Author               string            `json:"author"`
	Category             string            `json:"category"`
	ApplicationScenarios string            `json:"applicationScenarios,omitempty"`
	Extra                map[string]string `json:"extra,omitempty"`
}

// List handles GET /algorithms.
func (d *Dispatcher) List(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, summaries(d.Registry.List()))
}

// summaries projects specs (which carry unmarshalable func fields such as
// Run) down to the wire-safe enumeration shape.
func summaries(specs []*algorithm.Spec) []algorithmSummary {
	out := make([]algorithmSummary, 0, len(specs))
	for _, spec := range specs {
		out = append(out, algorithmSummary{
			Name:                 spec.Name,
			Version:              spec.Version,
			Description:          spec.Description,
			AlgorithmType:        spec.AlgorithmType,
			CreatedTime:          spec.CreatedTime,
			Author:               spec.Author,
			Category:             spec.Category,
			ApplicationScenarios: spec.ApplicationScenarios,
			Extra:                spec.Extra,
		})
	}
	return out
}

// schemaResponse is the GET /algorithms/{name}/{version}/schema shape
// (spec.md §6).
type schemaResponse struct {
	Input                map[string]any            `json:"input"`
	Output               map[string]any            `json:"output"`
	Hyperparams          map[string]any            `json:"hyperparams,omitempty"`
	Execution            algorithm.ExecutionConfig `json:"execution"`
	AlgorithmType        string                    `json:"algorithmType,omitempty"`
	CreatedTime          string                    `json:"createdTime,omitempty"`
	Author               string                    `json:"author"`
	Category             string                    `json:"category"`
	ApplicationScenarios string                    `json:"applicationScenarios,omitempty"`
	Extra                map[string]string         `json:"extra,omitempty"`
}

// Schema handles GET /algorithms/{name}/{version}/schema. Unlike Execute,
// this is a plain metadata lookup with no business-outcome envelope, so a
// miss is a transport-level 404.
func (d *Dispatcher) Schema(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	spec, err := d.Registry.Get(vars["name"], vars["version"])
	if err != nil {
		httputil.NotFound(w, err.Error())
		return
	}

	resp := schemaResponse{
		Input:                spec.InputModel.Schema(),
		Output:               spec.OutputModel.Schema(),
		Execution:            spec.Execution,
		AlgorithmType:        spec.AlgorithmType,
		CreatedTime:          spec.CreatedTime,
		Author:               spec.Author,
		Category:             spec.Category,
		ApplicationScenarios: spec.ApplicationScenarios,
		Extra:                spec.Extra,
	}
	if spec.HyperparamsModel != nil {
		resp.Hyperparams = spec.HyperparamsModel.Schema()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}
