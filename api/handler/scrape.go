package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/websift/sift/models"
)

// Scrape returns the handler for POST /scrape.
//
// Boundary contract: 400 only for a body that cannot be parsed or a URL
// whose scheme is structurally wrong. Everything else is 200 — the
// pipeline always produces a result and reports its failures inside it,
// so a robots denial or an unreachable site is not an HTTP error.
func Scrape(svc Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResult("",
				models.Errf(models.PhaseValidation, "Invalid request body: %v", err)))
			return
		}

		u := strings.TrimSpace(req.URL)
		if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
			c.JSON(http.StatusBadRequest, models.ErrorResult(req.URL,
				models.Errf(models.PhaseValidation, "Only http:// and https:// URLs are supported")))
			return
		}

		c.JSON(http.StatusOK, svc.Scrape(c.Request.Context(), &req))
	}
}
