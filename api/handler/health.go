package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/websift/sift/models"
)

// Health returns the handler for GET /healthz.
//
// Reports pool utilisation and degrades status when > 80% of pages are active.
func Health(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := svc.Stats()

		status := "healthy"
		if stats.MaxPages > 0 && stats.ActivePages > int(float64(stats.MaxPages)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:    status,
			Uptime:    svc.Uptime().Round(time.Second).String(),
			PoolStats: stats,
			Version:   "0.1.0",
		})
	}
}
