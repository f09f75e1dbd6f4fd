// Package middleware provides HTTP middleware for the execution server.
package middleware

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/r3e-network/algoserver/infrastructure/httputil"
)

// algorithmNamePattern and algorithmVersionPattern bound the {name}/{version}
// path segments accepted by /algorithms/{name}/{version} and its /schema
// sibling, ahead of the registry lookup. The registry itself would simply
// report these as "not found"; rejecting the obviously malformed ones here
// (path traversal attempts, stray whitespace, empty segments) keeps that
// distinct from a genuine unregistered-algorithm miss.
var (
	algorithmNamePattern    = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,63}$`)
	algorithmVersionPattern = regexp.MustCompile(`^v?[0-9][a-zA-Z0-9._-]{0,15}$`)
)

// PathParamValidator rejects requests whose {name}/{version} route
// variables don't look like a plausible algorithm identifier before they
// ever reach the dispatcher.
type PathParamValidator struct{}

// NewPathParamValidator creates a path parameter validation middleware.
func NewPathParamValidator() *PathParamValidator {
	return &PathParamValidator{}
}

// Handler returns the path parameter validation middleware handler.
func (v *PathParamValidator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		name, hasName := vars["name"]
		version, hasVersion := vars["version"]

		if hasName && !algorithmNamePattern.MatchString(name) {
			httputil.WriteErrorResponse(w, r, http.StatusBadRequest,
				"INVALID_ALGORITHM_NAME", "algorithm name is malformed", nil)
			return
		}
		if hasVersion && !algorithmVersionPattern.MatchString(version) {
			httputil.WriteErrorResponse(w, r, http.StatusBadRequest,
				"INVALID_ALGORITHM_VERSION", "algorithm version is malformed", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// IsValidAlgorithmName reports whether name matches the registry's naming
// convention, usable outside the HTTP path too (e.g. when validating
// ALGO_MODULES entries).
func IsValidAlgorithmName(name string) bool {
	return algorithmNamePattern.MatchString(name)
}

// IsValidAlgorithmVersion reports whether version matches the registry's
// versioning convention.
func IsValidAlgorithmVersion(version string) bool {
	return algorithmVersionPattern.MatchString(version)
}
