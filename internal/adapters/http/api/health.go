package api

import (
	"net/http"

	"github.com/okian/calibrate/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler answers liveness probes with the service's Prometheus
// metrics, so a scrape doubles as a health check.
type HealthHandler struct {
	metrics http.Handler
}

// NewHealthHandler creates a health handler over the custom metrics registry.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{
		metrics: promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}),
	}
}

// HandleHealth handles GET /healthz requests.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.metrics.ServeHTTP(w, r)
}
