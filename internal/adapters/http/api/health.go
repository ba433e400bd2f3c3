package api

import (
	"net/http"

	"github.com/okian/puzzlerating/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthHandler answers liveness probes with the calculator's Prometheus
// registry, so a scrape and a health check are the same request.
type HealthHandler struct {
	opts promhttp.HandlerOpts
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{opts: promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError}}
}

// HandleHealth handles GET /healthz requests. The registry is looked up per
// request because metrics.Configure may replace it after startup.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), h.opts).ServeHTTP(w, r)
}
