// Package http wires the gin route tree and the HTTP server lifecycle.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/logging"
	"github.com/medishield/opdclaims/internal/infrastructure/monitoring/prometheus"
	"github.com/medishield/opdclaims/internal/interfaces/http/handlers"
	"github.com/medishield/opdclaims/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handlers and infrastructure the route tree
// needs.
type RouterConfig struct {
	MemberHandler *handlers.MemberHandler
	ClaimHandler  *handlers.ClaimHandler
	HealthHandler *handlers.HealthHandler

	Logger           logging.Logger
	Metrics          *prometheus.AppMetrics
	MetricsCollector prometheus.MetricsCollector

	Mode        string // gin mode: debug | release | test
	MaxBodySize int64
}

// NewRouter builds the complete route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Mode != "" {
		gin.SetMode(cfg.Mode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	if cfg.MaxBodySize > 0 {
		r.MaxMultipartMemory = cfg.MaxBodySize
	}
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsCollector != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsCollector.Handler()))
	}

	api := r.Group("/api/v1")
	{
		if cfg.MemberHandler != nil {
			members := api.Group("/members")
			members.POST("/register", cfg.MemberHandler.Register)
			members.GET("/:memberID", cfg.MemberHandler.Get)
			members.GET("/:memberID/stats", cfg.MemberHandler.Stats)
		}
		if cfg.ClaimHandler != nil {
			claims := api.Group("/claims")
			claims.POST("/upload", cfg.ClaimHandler.Upload)
			claims.GET("", cfg.ClaimHandler.List)
			claims.GET("/:claimID/result", cfg.ClaimHandler.Result)
		}
	}

	return r
}
