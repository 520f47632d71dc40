package health

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
)

func TestHealthzReturnsLivenessPayload(t *testing.T) {
	reg := prometheus.NewRegistry()
	mux := NewMux(logr.Discard(), reg, "override-operator", "test")

	req := httptest.NewRequest("GET", "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var payload livenessPayload
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if payload.Health != "ok" || payload.Name != "override-operator" {
		t.Errorf("unexpected payload: %+v", payload)
	}
}

func TestMetricsEndpointServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_metric_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	mux := NewMux(logr.Discard(), reg, "override-operator", "test")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "test_metric_total 1") {
		t.Errorf("expected metric in body, got: %s", rec.Body.String())
	}
}
