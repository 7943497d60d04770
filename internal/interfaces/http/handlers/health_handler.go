package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/prometheus"
)

// HealthChecker verifies one dependency.
type HealthChecker func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checkers map[string]HealthChecker
	logger   logging.Logger
	metrics  *prometheus.AppMetrics
}

// NewHealthHandler creates the health handler.  checkers maps component
// names ("database", "redis", "storage") to their probes.
func NewHealthHandler(checkers map[string]HealthChecker, log logging.Logger) *HealthHandler {
	return &HealthHandler{checkers: checkers, logger: log}
}

// WithMetrics attaches the metrics sink so readiness probes export per
// component up/down gauges.
func (h *HealthHandler) WithMetrics(m *prometheus.AppMetrics) *HealthHandler {
	h.metrics = m
	return h
}

// Liveness handles GET /healthz.  It only confirms the process is serving.
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness handles GET /readyz.  It probes every dependency and reports 503
// when any is down.
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string, len(h.checkers))
	healthy := true
	for name, check := range h.checkers {
		up := 1.0
		if err := check(ctx); err != nil {
			components[name] = "down"
			healthy = false
			up = 0
			h.logger.Warn("Readiness check failed",
				logging.String("component", name),
				logging.Err(err),
			)
		} else {
			components[name] = "up"
		}
		if h.metrics != nil {
			h.metrics.HealthCheckStatus.WithLabelValues(name).Set(up)
		}
	}

	status := http.StatusOK
	overall := "ready"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "components": components})
}
