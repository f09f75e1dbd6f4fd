package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthChecker_ReportsHealthyWhenPoolIdle(t *testing.T) {
	checker := NewHealthChecker("v1", func() PoolStats {
		return PoolStats{Size: 4, Idle: 4, Pending: 0, Started: true}
	})

	rr := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body HealthStatus
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "healthy" {
		t.Errorf("status = %q, want healthy", body.Status)
	}
}

func TestHealthChecker_ReportsDegradedWhenPoolNotStarted(t *testing.T) {
	checker := NewHealthChecker("v1", func() PoolStats {
		return PoolStats{Size: 4, Idle: 0, Pending: 0, Started: false}
	})

	rr := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	var body HealthStatus
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "degraded" {
		t.Errorf("status = %q, want degraded", body.Status)
	}
}

func TestHealthChecker_ReportsStarvedWhenAllWorkersOccupied(t *testing.T) {
	checker := NewHealthChecker("v1", func() PoolStats {
		return PoolStats{Size: 2, Idle: 0, Pending: 5, Started: true}
	})

	rr := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	var body HealthStatus
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "starved" {
		t.Errorf("status = %q, want starved", body.Status)
	}
}

func TestHealthChecker_NilPoolStatsReportsHealthyWithoutPoolCheck(t *testing.T) {
	checker := NewHealthChecker("v1", nil)

	rr := httptest.NewRecorder()
	checker.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var body HealthStatus
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Pool != nil {
		t.Errorf("Pool = %+v, want nil", body.Pool)
	}
}

func TestLivenessHandler_ReportsAlive(t *testing.T) {
	rr := httptest.NewRecorder()
	LivenessHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestReadinessHandler_NotReadyWhenNilOrFalse(t *testing.T) {
	rr := httptest.NewRecorder()
	ReadinessHandler(nil).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("nil ready: status = %d, want 503", rr.Code)
	}

	ready := false
	rr = httptest.NewRecorder()
	ReadinessHandler(&ready).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("false ready: status = %d, want 503", rr.Code)
	}
}

func TestReadinessHandler_ReadyWhenTrue(t *testing.T) {
	ready := true
	rr := httptest.NewRecorder()
	ReadinessHandler(&ready).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
