package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/prometheus"
)

// Metrics records request count and duration per route.  The route template
// (":claimID", not the literal ID) keys the series to keep cardinality down.
func Metrics(metrics *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		metrics.HTTPActiveRequests.WithLabelValues(c.Request.Method).Inc()

		c.Next()

		metrics.HTTPActiveRequests.WithLabelValues(c.Request.Method).Dec()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		prometheus.RecordHTTPRequest(metrics, c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
