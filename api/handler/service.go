// Package handler contains the HTTP handlers for the scraping API.
package handler

import (
	"context"
	"time"

	"github.com/websift/sift/models"
)

// Service is the scraping capability the handlers depend on.
// *scraper.Scraper implements it; tests substitute a stub.
type Service interface {
	// Scrape runs the full pipeline. It never fails; failures ride inside
	// the result's errors.
	Scrape(ctx context.Context, req *models.ScrapeRequest) *models.ScrapeResult

	// Stats reports browser page pool utilisation.
	Stats() models.PoolStats

	// Uptime is how long the service has been running.
	Uptime() time.Duration
}
