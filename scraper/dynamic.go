package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/websift/sift/config"
	"github.com/websift/sift/models"
	"github.com/websift/sift/parser"
)

// bodyWaitTimeout bounds the wait for the document body to exist.
const bodyWaitTimeout = 5 * time.Second

// captureTimeout bounds the final markup and URL extraction.
const captureTimeout = 10 * time.Second

// mainContentSelectors are the containers whose appearance signals the
// page has produced its primary content.
var mainContentSelectors = []string{"main", "article", `[role="main"]`, "#content", ".content"}

// renderRequest describes one dynamic rendering pass.
type renderRequest struct {
	url             string
	interactions    bool
	strategy        models.Strategy
	includeMarkdown bool
}

// renderer abstracts the browser-backed renderer so the orchestrator can
// be exercised without Chrome.
type renderer interface {
	Render(ctx context.Context, req renderRequest) (*models.ScrapeResult, error)
	Stats() models.PoolStats
	Close()
}

// browserRenderer drives a pooled headless Chrome over CDP. It is safe
// for concurrent use; each render borrows its own tab.
type browserRenderer struct {
	browser     *rod.Browser
	pagePool    rod.Pool[rod.Page]
	activePages atomic.Int32
	browserCfg  config.BrowserConfig
	renderCfg   config.RenderConfig
	userAgent   string
	interactor  *interactor
	parser      *parser.Parser
}

// newBrowserRenderer launches a headless browser and initialises the
// reusable page pool.
func newBrowserRenderer(cfg *config.Config, p *parser.Parser) (*browserRenderer, error) {
	l := launcher.New().
		Headless(cfg.Browser.Headless).
		NoSandbox(cfg.Browser.NoSandbox)

	if cfg.Browser.BrowserBin != "" {
		l = l.Bin(cfg.Browser.BrowserBin)
	}
	if cfg.Browser.DefaultProxy != "" {
		l = l.Proxy(cfg.Browser.DefaultProxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-ipc-flooding-protection"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-prompt-on-repost"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to browser: %w", err)
	}

	pool := rod.NewPagePool(cfg.Browser.MaxPages)
	slog.Info("page pool created", "maxPages", cfg.Browser.MaxPages)

	return &browserRenderer{
		browser:    browser,
		pagePool:   pool,
		browserCfg: cfg.Browser,
		renderCfg:  cfg.Render,
		userAgent:  cfg.Fetch.UserAgent,
		interactor: newInteractor(cfg.Interact),
		parser:     p,
	}, nil
}

// Stats returns a snapshot of the pool's current state.
func (r *browserRenderer) Stats() models.PoolStats {
	return models.PoolStats{
		MaxPages:    r.browserCfg.MaxPages,
		ActivePages: int(r.activePages.Load()),
	}
}

// Close drains the page pool and kills the browser process. Call this on
// graceful shutdown to prevent zombie Chrome processes.
func (r *browserRenderer) Close() {
	slog.Info("renderer shutting down: draining page pool")
	r.pagePool.Cleanup(func(p *rod.Page) {
		_ = p.Close()
	})
	slog.Info("renderer shutting down: closing browser")
	r.browser.MustClose()
	slog.Info("renderer shutdown complete")
}

// Render loads the page in a pooled browser tab, waits for it to produce
// content, optionally runs the interaction pass, and parses whatever state
// was reached. Navigation trouble past the initial connection is recorded
// on the result rather than failing the render: a page that timed out
// mid-load often still carries everything needed.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Acquire page      – borrow a tab from the pool (or create one)
//  2. DEFER: cleanup    – about:blank + return to pool (leak prevention)
//  3. Stealth + profile – mask automation, fix viewport and user agent
//  4. Hijack mount      – block configured resource types (before navigation!)
//  5. Navigate          – bounded by the page-load timeout, best-effort
//  6. Readiness waits   – quiescence, body, content containers, settle
//  7. Interactions      – optional bounded reveal pass
//  8. Capture           – final markup + URL
//  9. Parse             – snapshots when pagination produced them, else final markup
func (r *browserRenderer) Render(ctx context.Context, req renderRequest) (*models.ScrapeResult, error) {
	// ── 1. Acquire page from pool ─────────────────────────────────────
	r.activePages.Add(1)
	defer r.activePages.Add(-1)

	page, acquireErr := r.pagePool.Get(func() (*rod.Page, error) {
		return r.browser.Page(proto.TargetCreateTarget{})
	})
	if acquireErr != nil {
		return nil, fmt.Errorf("acquire page from pool: %w", acquireErr)
	}

	// ── 2. CRITICAL DEFER: prevent DOM memory leak + guarantee pool return
	defer func() {
		if navErr := page.Navigate("about:blank"); navErr != nil {
			slog.Warn("cleanup: failed to navigate to about:blank", "error", navErr)
		}
		r.pagePool.Put(page)
	}()

	// ── 3. Stealth injection + session profile ────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		slog.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}
	if vpErr := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             r.renderCfg.ViewportWidth,
		Height:            r.renderCfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); vpErr != nil {
		slog.Warn("viewport override failed", "error", vpErr)
	}
	if uaErr := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent: r.userAgent,
	}); uaErr != nil {
		slog.Warn("user agent override failed", "error", uaErr)
	}

	// ── 4. Mount hijack router (blocks configured resource types + ads) ──
	router := setupHijack(page, r.browserCfg.BlockedResourceTypes, r.browserCfg.BlockAds)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	var recorded []models.ScrapeError

	// ── 5. Navigate, bounded by the page-load timeout ─────────────────
	navCtx, cancelNav := context.WithTimeout(ctx, r.renderCfg.PageLoadTimeout)
	defer cancelNav()
	nav := page.Context(navCtx)

	// The DOM event listener must exist before Navigate fires, or a fast
	// page could complete before we start listening.
	waitDOM := nav.WaitEvent(&proto.PageDomContentEventFired{})
	navErr := nav.Navigate(req.url)
	switch {
	case navErr == nil:
		waitDOM()
		if navCtx.Err() != nil {
			recorded = append(recorded, r.navTimeoutError())
		} else if status := navigationStatus(nav); status >= 400 {
			recorded = append(recorded, models.Errf(models.PhaseDynamic, "HTTP %d: Page load failed", status))
		}
	case errors.Is(navErr, context.DeadlineExceeded):
		recorded = append(recorded, r.navTimeoutError())
	default:
		return nil, fmt.Errorf("navigate: %w", navErr)
	}

	// ── 6. Readiness waits, all best-effort ───────────────────────────
	waitQuiet(ctx, page, r.renderCfg.QuiescenceTimeout)
	if !waitSelector(ctx, page, "body", bodyWaitTimeout) {
		slog.Debug("body never appeared", "url", req.url)
	}
	for _, sel := range mainContentSelectors {
		if waitSelector(ctx, page, sel, r.renderCfg.SelectorTimeout) {
			break
		}
	}
	sleepCtx(ctx, r.renderCfg.SettleDelay)

	// ── 7. Interaction pass ───────────────────────────────────────────
	summary := models.NewInteractions()
	var snapshots []string
	if req.interactions {
		summary, snapshots = r.interactor.Run(newRodDriver(ctx, page), req.strategy)
		slog.Info("interaction pass complete",
			"url", req.url,
			"strategy", req.strategy,
			"clicks", len(summary.Clicks),
			"scrolls", summary.Scrolls,
			"pages", len(summary.Pages),
		)
	}

	// ── 8. Capture final state ────────────────────────────────────────
	capCtx, cancelCap := context.WithTimeout(ctx, captureTimeout)
	defer cancelCap()
	cp := page.Context(capCtx)

	finalHTML, htmlErr := cp.HTML()
	if htmlErr != nil {
		return nil, fmt.Errorf("extract page HTML: %w", htmlErr)
	}
	finalURL := evalStringOrEmpty(cp, `() => window.location.href`)
	if finalURL == "" {
		finalURL = req.url
	}
	if len(summary.Pages) == 0 {
		summary.Pages = []string{finalURL}
	}

	// ── 9. Parse ──────────────────────────────────────────────────────
	opts := parser.Options{IncludeMarkdown: req.includeMarkdown}
	var sections []models.Section
	if req.interactions && len(snapshots) > 0 {
		// Pagination captured each page before leaving it; the final HTML
		// duplicates the last snapshot, so only the snapshots are parsed.
		for i, snap := range snapshots {
			pageURL := finalURL
			if i < len(summary.Pages) {
				pageURL = summary.Pages[i]
			}
			pageSections := r.parser.Parse(snap, pageURL, opts)
			for j := range pageSections {
				pageSections[j].ID = fmt.Sprintf("%s-p%d", pageSections[j].ID, i)
			}
			sections = append(sections, pageSections...)
		}
	} else {
		sections = r.parser.Parse(finalHTML, finalURL, opts)
	}
	if sections == nil {
		sections = []models.Section{}
	}

	return &models.ScrapeResult{
		URL:          finalURL,
		ScrapedAt:    models.Timestamp(time.Now()),
		Meta:         r.parser.ExtractMeta(finalHTML, finalURL, "js"),
		Sections:     sections,
		Interactions: summary,
		Errors:       recorded,
	}, nil
}

func (r *browserRenderer) navTimeoutError() models.ScrapeError {
	return models.Errf(models.PhaseDynamic, "Page load timed out after %gs", r.renderCfg.PageLoadTimeout.Seconds())
}

// navigationStatus pulls the navigation response status via the
// Performance API. Event-listener based capture conflicts with the hijack
// router's use of the Fetch domain on current Chromium.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch (e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// waitQuiet waits for the DOM to stop mutating, standing in for network
// quiescence: request-idle tracking uses the Fetch domain, which the
// hijack router already occupies.
func waitQuiet(ctx context.Context, page *rod.Page, timeout time.Duration) {
	quietCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := page.Context(quietCtx).WaitDOMStable(300*time.Millisecond, 0.1); err != nil {
		slog.Debug("page did not go quiet, proceeding with current DOM", "error", err)
	}
}

// waitSelector waits for one element matching sel to exist.
func waitSelector(ctx context.Context, page *rod.Page, sel string, timeout time.Duration) bool {
	selCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := page.Context(selCtx).Element(sel)
	return err == nil
}

// sleepCtx pauses for d, returning early when ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// evalStringOrEmpty evaluates a JS expression and returns the string
// result, swallowing any errors (useful for optional metadata).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}
