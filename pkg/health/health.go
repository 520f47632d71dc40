// Package health serves the operator's /metrics and /healthz endpoints.
package health

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// livenessPayload is the JSON body returned from /healthz.
type livenessPayload struct {
	Health  string `json:"health"`
	Name    string `json:"name"`
	Version string `json:"version"`
}

// NewMux builds the HTTP handler serving /metrics (Prometheus text
// exposition of reg) and /healthz (liveness JSON), with an access-log
// middleware that skips the /health prefix so liveness polling doesn't
// flood the logs.
func NewMux(log logr.Logger, reg *prometheus.Registry, name, version string) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(livenessPayload{
			Health:  "ok",
			Name:    name,
			Version: version,
		})
	})

	return accessLog(log, mux)
}

func accessLog(log logr.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/health") {
			log.V(1).Info("http request", "method", r.Method, "path", r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
