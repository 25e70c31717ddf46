// Package scraper implements the adaptive scraping pipeline: URL
// validation, a fail-open robots gate, a static-first fetch with a
// render-necessity classifier, and a browser-rendered fallback with
// bounded page interactions. The single entry point, Scrape, always
// returns a result object; every failure mode degrades into phase-tagged
// errors on that result instead of propagating.
package scraper

import (
	"context"
	"log/slog"
	"time"

	"github.com/websift/sift/config"
	"github.com/websift/sift/models"
	"github.com/websift/sift/parser"
)

// Scraper owns the pipeline's long-lived pieces: the HTTP client with its
// browser-grade TLS fingerprint, the robots gate, the classifier, the
// content parser, and the pooled headless browser. Safe for concurrent
// use; each request runs independently.
type Scraper struct {
	classifier *Classifier
	robots     *robotsGate
	static     *staticFetcher
	parser     *parser.Parser
	renderer   renderer
	startTime  time.Time
}

// NewScraper launches the headless browser and wires the pipeline.
func NewScraper(cfg *config.Config, p *parser.Parser) (*Scraper, error) {
	r, err := newBrowserRenderer(cfg, p)
	if err != nil {
		return nil, err
	}
	return &Scraper{
		classifier: NewClassifier(cfg.Classify),
		robots:     newRobotsGate(cfg.Fetch),
		static:     newStaticFetcher(cfg.Fetch, cfg.Browser.DefaultProxy),
		parser:     p,
		renderer:   r,
		startTime:  time.Now(),
	}, nil
}

// Stats reports the browser pool state for health checks.
func (s *Scraper) Stats() models.PoolStats {
	return s.renderer.Stats()
}

// Uptime is how long this scraper has been running.
func (s *Scraper) Uptime() time.Duration {
	return time.Since(s.startTime)
}

// Close drains the page pool and kills the browser process. Call on
// graceful shutdown to prevent zombie Chrome processes.
func (s *Scraper) Close() {
	s.renderer.Close()
}

// Scrape runs the full fallback ladder for one request. It never returns
// an error; every failure mode degrades to a result carrying phase-tagged
// errors. The ladder:
//
//  1. Validate          – reject bad URLs before any network use
//  2. Robots gate       – an explicit disallow is terminal
//  3. Interactions path – requested interactions go straight to the browser
//  4. Static fetch      – markup the classifier accepts returns immediately
//  5. Browser fallback  – a late static parse backstops a failed render
func (s *Scraper) Scrape(ctx context.Context, req *models.ScrapeRequest) (result *models.ScrapeResult) {
	req.Defaults()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("scrape panicked", "url", req.URL, "panic", r)
			result = models.ErrorResult(req.URL,
				models.Errf(models.PhaseOrchestration, "Unexpected error during scraping: %v", r))
		}
	}()

	pageURL, err := ValidateURL(req.URL)
	if err != nil {
		return models.ErrorResult(req.URL, models.Errf(models.PhaseValidation, "%s", err))
	}

	allowed, robotsMsg := s.robots.Check(ctx, pageURL)
	slog.Debug("robots gate", "url", pageURL, "allowed", allowed, "reason", robotsMsg)
	if !allowed {
		return models.ErrorResult(pageURL, models.Errf(models.PhaseValidation, "%s", robotsMsg))
	}

	opts := parser.Options{IncludeMarkdown: req.IncludeMarkdown}

	if req.EnableInteractions {
		rendered, renderErr := s.renderer.Render(ctx, renderRequest{
			url:             pageURL,
			interactions:    true,
			strategy:        req.InteractionStrategy,
			includeMarkdown: req.IncludeMarkdown,
		})
		if renderErr != nil {
			return models.ErrorResult(pageURL,
				models.Errf(models.PhaseDynamic, "Dynamic scraping error: %v", renderErr))
		}
		return finalize(rendered, nil)
	}

	var accumulated []models.ScrapeError

	page, forceRender, fetchErrs := s.static.Fetch(ctx, pageURL)
	accumulated = append(accumulated, fetchErrs...)

	needsRender := forceRender
	if page != nil {
		decision := s.classifier.Classify(page.html)
		if !decision.Render {
			slog.Info("static scrape complete", "url", pageURL)
			return finalize(s.assembleStatic(page, opts), accumulated)
		}
		needsRender = true
		slog.Info("static markup insufficient", "url", pageURL, "reason", decision.Reason)
	}

	accumulated = append(accumulated, models.Errf(models.PhaseFallback,
		"Static HTML insufficient - using JavaScript rendering with interactions"))

	rendered, renderErr := s.renderer.Render(ctx, renderRequest{
		url:             pageURL,
		interactions:    needsRender,
		strategy:        req.InteractionStrategy,
		includeMarkdown: req.IncludeMarkdown,
	})
	if renderErr != nil {
		accumulated = append(accumulated, models.Errf(models.PhaseDynamic,
			"Dynamic scraping error: %v", renderErr))
		if page != nil {
			// The render failed outright but the static markup is still
			// usable; a thin result beats none.
			return finalize(s.assembleStatic(page, opts), accumulated)
		}
		return models.ErrorResult(pageURL, accumulated...)
	}
	return finalize(rendered, accumulated)
}

// assembleStatic builds the result for a static fetch the classifier
// accepted, or one that backstops a failed render.
func (s *Scraper) assembleStatic(page *fetchedPage, opts parser.Options) *models.ScrapeResult {
	interactions := models.NewInteractions()
	interactions.Pages = []string{page.finalURL}
	return &models.ScrapeResult{
		URL:          page.finalURL,
		ScrapedAt:    models.Timestamp(time.Now()),
		Meta:         s.parser.ExtractMeta(page.html, page.finalURL, "static"),
		Sections:     s.parser.Parse(page.html, page.finalURL, opts),
		Interactions: interactions,
	}
}

// finalize prepends the ladder's accumulated errors (they predate the
// result's own) and normalises nil slices so the wire format always
// carries arrays.
func finalize(res *models.ScrapeResult, errs []models.ScrapeError) *models.ScrapeResult {
	if len(errs) > 0 {
		res.Errors = append(errs, res.Errors...)
	}
	if res.Errors == nil {
		res.Errors = []models.ScrapeError{}
	}
	if res.Sections == nil {
		res.Sections = []models.Section{}
	}
	return res
}
