// Package api wires the HTTP surface of the scraping service.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/websift/sift/api/handler"
	"github.com/websift/sift/api/middleware"
	"github.com/websift/sift/config"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → RequestID → CORS
//	Scrape:  Auth (if enabled) → RateLimit (if enabled)
//
// Health endpoint is intentionally outside auth so monitoring probes always work.
func NewRouter(svc handler.Service, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	// Health — no auth required.
	r.GET("/healthz", handler.Health(svc))

	// Protected group — auth + rate limit.
	protected := r.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	if cfg.RateLimit.Enabled {
		protected.Use(middleware.RateLimit(cfg.RateLimit))
	}

	// Scrape
	protected.POST("/scrape", handler.Scrape(svc))

	return r
}
