package dispatch

import (
	"net/http"

	"github.com/r3e-network/algoserver/infrastructure/httputil"
)

// docRoute describes one mounted endpoint for the minimal docs listing.
type docRoute struct {
	Method      string `json:"method"`
	Path        string `json:"path"`
	Description string `json:"description"`
}

// docsHandler serves a minimal machine-readable route listing; NewRouter
// mounts it at /docs, and mountPath (SERVICE_SWAGGER_PATH) is the path the
// listing reports for itself. A plain JSON index rather than a full
// Swagger/OpenAPI UI, since no route here carries generated schema
// annotations to render one from.
func docsHandler(d *Dispatcher, mountPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routes := []docRoute{
			{Method: http.MethodPost, Path: "/algorithms/{name}/{version}", Description: "Execute a registered algorithm"},
			{Method: http.MethodGet, Path: "/algorithms", Description: "Enumerate registered algorithms"},
			{Method: http.MethodGet, Path: "/algorithms/{name}/{version}/schema", Description: "Fetch an algorithm's input/output/hyperparams schema"},
			{Method: http.MethodGet, Path: "/healthz", Description: "Liveness probe"},
			{Method: http.MethodGet, Path: "/readyz", Description: "Readiness probe"},
			{Method: http.MethodGet, Path: "/metrics", Description: "Prometheus exposition"},
			{Method: http.MethodGet, Path: mountPath, Description: "This listing"},
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]any{
			"algorithms": summaries(d.Registry.List()),
			"routes":     routes,
		})
	}
}
