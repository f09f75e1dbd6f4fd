// Package middleware provides HTTP middleware for the execution server.
package middleware

import (
	"net/http"
)

// SecurityHeadersMiddleware sets response headers appropriate for a JSON
// API that serves no browser-rendered content: no caching of algorithm
// results, no MIME sniffing, no framing.
type SecurityHeadersMiddleware struct {
	headers map[string]string
}

// DefaultSecurityHeaders returns the headers applied to every response when
// no overrides are given.
func DefaultSecurityHeaders() map[string]string {
	return map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "no-referrer",
		"Cache-Control":          "no-store",
	}
}

// NewSecurityHeadersMiddleware creates security headers middleware. A nil
// headers map applies DefaultSecurityHeaders.
func NewSecurityHeadersMiddleware(headers map[string]string) *SecurityHeadersMiddleware {
	if headers == nil {
		headers = DefaultSecurityHeaders()
	}
	return &SecurityHeadersMiddleware{headers: headers}
}

// Handler returns the security headers middleware handler.
func (m *SecurityHeadersMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for key, value := range m.headers {
			w.Header().Set(key, value)
		}
		next.ServeHTTP(w, r)
	})
}
