package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/flightrisk/pkg/metrics"
)

type healthResponse struct {
	Status string `json:"status"`
	Ready  bool   `json:"ready"`
}

// ReadinessProvider reports whether the service accepts work.
type ReadinessProvider interface {
	IsReady() bool
}

// HealthHandler handles health and metrics requests.
type HealthHandler struct {
	ready ReadinessProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready ReadinessProvider) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// HandleHealth handles GET /healthz requests. A service that has not been
// started answers 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", NewKind("api.healthz", ErrMethodNotAllowed))
		return
	}
	if h.ready != nil && !h.ready.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "starting"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Ready: true})
}

// MetricsHandler serves the custom Prometheus registry.
func (h *HealthHandler) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
