package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/websift/sift/config"
	"github.com/websift/sift/models"
	"github.com/websift/sift/parser"
)

// stubRenderer satisfies renderer without a browser, recording every
// render request it receives.
type stubRenderer struct {
	result *models.ScrapeResult
	err    error
	calls  []renderRequest
}

func (s *stubRenderer) Render(_ context.Context, req renderRequest) (*models.ScrapeResult, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	res := *s.result
	return &res, nil
}

func (s *stubRenderer) Stats() models.PoolStats { return models.PoolStats{MaxPages: 10} }
func (s *stubRenderer) Close()                  {}

// panicRenderer simulates a renderer bug escaping as a panic.
type panicRenderer struct{ stubRenderer }

func (p *panicRenderer) Render(context.Context, renderRequest) (*models.ScrapeResult, error) {
	panic("browser connection lost")
}

func renderedResult(url string) *models.ScrapeResult {
	interactions := models.NewInteractions()
	interactions.Pages = []string{url}
	return &models.ScrapeResult{
		URL:       url,
		ScrapedAt: models.Timestamp(time.Now()),
		Meta:      models.Meta{Title: "Rendered", Language: "en", Strategy: "js"},
		Sections: []models.Section{
			{ID: "hero-0", Type: "hero", Label: "Rendered", SourceURL: url},
		},
		Interactions: interactions,
		Errors:       []models.ScrapeError{},
	}
}

func newTestScraper(r renderer) *Scraper {
	return &Scraper{
		classifier: NewClassifier(defaultClassifyConfig()),
		robots:     newRobotsGate(config.FetchConfig{RobotsTimeout: time.Second}),
		static:     newStaticFetcher(config.FetchConfig{StaticTimeout: time.Second, UserAgent: "sift-test/1.0"}, ""),
		parser:     parser.New(config.ParseConfig{MaxRawHTMLLength: 5000}),
		renderer:   r,
		startTime:  time.Now(),
	}
}

// testSite serves /robots.txt plus a catch-all page handler, counting the
// hits on each.
type testSite struct {
	srv        *httptest.Server
	pageHits   atomic.Int32
	robotsHits atomic.Int32
}

func newTestSite(t *testing.T, robots string, pageStatus int, pageBody string) *testSite {
	t.Helper()
	site := &testSite{}
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		site.robotsHits.Add(1)
		if robots == "" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(robots))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		site.pageHits.Add(1)
		if pageStatus != http.StatusOK {
			w.WriteHeader(pageStatus)
			return
		}
		w.Write([]byte(pageBody))
	})
	site.srv = httptest.NewServer(mux)
	t.Cleanup(site.srv.Close)
	return site
}

func richPage() string {
	return `<html><head><title>Rich</title></head><body><main><h1>Rich</h1><p>` + filler(3000) + `</p></main></body></html>`
}

func thinPage() string {
	return `<html><head><title>Thin</title></head><body><p>almost nothing</p></body></html>`
}

func TestScrape_InvalidURL(t *testing.T) {
	stub := &stubRenderer{}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: "ftp://example.com/x"})

	if res.URL != "ftp://example.com/x" {
		t.Errorf("url = %q, want the request URL echoed", res.URL)
	}
	if res.Meta.Title != "Error" {
		t.Errorf("meta.title = %q, want Error", res.Meta.Title)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	if res.Errors[0].Phase != models.PhaseValidation ||
		res.Errors[0].Message != "Only http:// and https:// URLs are supported" {
		t.Errorf("error = %+v", res.Errors[0])
	}
	if len(stub.calls) != 0 {
		t.Error("renderer must not run for invalid URLs")
	}
	if res.Sections == nil || res.Interactions.Pages == nil {
		t.Error("error results must still carry non-nil slices")
	}
}

func TestScrape_RobotsDisallowed(t *testing.T) {
	site := newTestSite(t, "User-agent: *\nDisallow: /", http.StatusOK, richPage())
	stub := &stubRenderer{}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: site.srv.URL + "/page"})

	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	if res.Errors[0].Phase != models.PhaseValidation ||
		res.Errors[0].Message != "URL disallowed by robots.txt" {
		t.Errorf("error = %+v", res.Errors[0])
	}
	if site.pageHits.Load() != 0 {
		t.Error("disallowed page must never be fetched")
	}
	if len(stub.calls) != 0 {
		t.Error("disallowed page must never be rendered")
	}
}

func TestScrape_StaticSufficient(t *testing.T) {
	site := newTestSite(t, "", http.StatusOK, richPage())
	stub := &stubRenderer{}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: site.srv.URL + "/page"})

	if len(stub.calls) != 0 {
		t.Error("content-rich static page must not reach the renderer")
	}
	if res.Meta.Strategy != "static" {
		t.Errorf("meta.strategy = %q, want static", res.Meta.Strategy)
	}
	if res.Meta.Title != "Rich" {
		t.Errorf("meta.title = %q", res.Meta.Title)
	}
	if len(res.Sections) == 0 {
		t.Error("sections empty, want parsed content")
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors = %v, want none", res.Errors)
	}
	if res.Errors == nil {
		t.Error("errors must be an empty slice, not nil")
	}
	want := site.srv.URL + "/page"
	if len(res.Interactions.Pages) != 1 || res.Interactions.Pages[0] != want {
		t.Errorf("interactions.pages = %v, want [%s]", res.Interactions.Pages, want)
	}
}

func TestScrape_InsufficientStaticFallsBackToRender(t *testing.T) {
	site := newTestSite(t, "", http.StatusOK, thinPage())
	stub := &stubRenderer{result: renderedResult("https://rendered.example/")}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: site.srv.URL + "/page"})

	if len(stub.calls) != 1 {
		t.Fatalf("render calls = %d, want 1", len(stub.calls))
	}
	if !stub.calls[0].interactions {
		t.Error("insufficient static markup should enable the interaction pass")
	}
	if stub.calls[0].strategy != models.StrategyAuto {
		t.Errorf("strategy = %q, want the auto default", stub.calls[0].strategy)
	}
	if res.Meta.Strategy != "js" {
		t.Errorf("meta.strategy = %q, want js", res.Meta.Strategy)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want the fallback marker only", res.Errors)
	}
	if res.Errors[0].Phase != models.PhaseFallback ||
		res.Errors[0].Message != "Static HTML insufficient - using JavaScript rendering with interactions" {
		t.Errorf("error = %+v", res.Errors[0])
	}
}

func TestScrape_RenderFailureFallsBackToStaticParse(t *testing.T) {
	site := newTestSite(t, "", http.StatusOK, thinPage())
	stub := &stubRenderer{err: errors.New("chrome crashed")}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: site.srv.URL + "/page"})

	if res.Meta.Strategy != "static" {
		t.Errorf("meta.strategy = %q, want the static backstop", res.Meta.Strategy)
	}
	if res.Meta.Title != "Thin" {
		t.Errorf("meta.title = %q, want the static page title", res.Meta.Title)
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %v, want fallback marker plus render failure", res.Errors)
	}
	if res.Errors[0].Phase != models.PhaseFallback {
		t.Errorf("errors[0] = %+v, want the fallback marker first", res.Errors[0])
	}
	if res.Errors[1].Phase != models.PhaseDynamic ||
		res.Errors[1].Message != "Dynamic scraping error: chrome crashed" {
		t.Errorf("errors[1] = %+v", res.Errors[1])
	}
}

func TestScrape_InteractionsRequestedSkipsStatic(t *testing.T) {
	site := newTestSite(t, "", http.StatusOK, richPage())
	stub := &stubRenderer{result: renderedResult(site.srv.URL + "/page")}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{
		URL:                 site.srv.URL + "/page",
		EnableInteractions:  true,
		InteractionStrategy: models.StrategyScroll,
	})

	if site.pageHits.Load() != 0 {
		t.Error("interaction requests should go straight to the browser, no static fetch")
	}
	if site.robotsHits.Load() != 1 {
		t.Error("robots gate should still run before rendering")
	}
	if len(stub.calls) != 1 {
		t.Fatalf("render calls = %d, want 1", len(stub.calls))
	}
	if !stub.calls[0].interactions || stub.calls[0].strategy != models.StrategyScroll {
		t.Errorf("render request = %+v, want interactions with the scroll strategy", stub.calls[0])
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors = %v, want none", res.Errors)
	}
}

func TestScrape_InteractionsRenderFailureIsTerminal(t *testing.T) {
	site := newTestSite(t, "", http.StatusOK, richPage())
	stub := &stubRenderer{err: errors.New("page pool exhausted")}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{
		URL:                site.srv.URL + "/page",
		EnableInteractions: true,
	})

	if res.Meta.Title != "Error" {
		t.Errorf("meta.title = %q, want Error", res.Meta.Title)
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	if res.Errors[0].Phase != models.PhaseDynamic ||
		res.Errors[0].Message != "Dynamic scraping error: page pool exhausted" {
		t.Errorf("error = %+v", res.Errors[0])
	}
}

func TestScrape_HTTPErrorEscalatesWithoutInteractions(t *testing.T) {
	site := newTestSite(t, "", http.StatusForbidden, "")
	stub := &stubRenderer{result: renderedResult("https://rendered.example/")}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: site.srv.URL + "/page"})

	if len(stub.calls) != 1 {
		t.Fatalf("render calls = %d, want 1", len(stub.calls))
	}
	if stub.calls[0].interactions {
		t.Error("an HTTP error status should escalate without the interaction pass")
	}
	if len(res.Errors) != 2 {
		t.Fatalf("errors = %v, want status error plus fallback marker", res.Errors)
	}
	if res.Errors[0].Phase != models.PhaseStatic || res.Errors[0].Message != "HTTP 403: Forbidden" {
		t.Errorf("errors[0] = %+v", res.Errors[0])
	}
	if res.Errors[1].Phase != models.PhaseFallback {
		t.Errorf("errors[1] = %+v", res.Errors[1])
	}
}

func TestScrape_TotalFailure(t *testing.T) {
	site := newTestSite(t, "", http.StatusForbidden, "")
	stub := &stubRenderer{err: errors.New("chrome crashed")}
	s := newTestScraper(stub)

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: site.srv.URL + "/page"})

	if res.Meta.Title != "Error" {
		t.Errorf("meta.title = %q, want Error", res.Meta.Title)
	}
	if len(res.Sections) != 0 {
		t.Errorf("sections = %v, want none", res.Sections)
	}
	wantPhases := []string{models.PhaseStatic, models.PhaseFallback, models.PhaseDynamic}
	if len(res.Errors) != len(wantPhases) {
		t.Fatalf("errors = %v, want %d entries", res.Errors, len(wantPhases))
	}
	for i, phase := range wantPhases {
		if res.Errors[i].Phase != phase {
			t.Errorf("errors[%d].phase = %q, want %q", i, res.Errors[i].Phase, phase)
		}
	}
}

func TestScrape_PanicBecomesOrchestrationError(t *testing.T) {
	site := newTestSite(t, "", http.StatusOK, thinPage())
	s := newTestScraper(&panicRenderer{})

	res := s.Scrape(context.Background(), &models.ScrapeRequest{URL: site.srv.URL + "/page"})

	if res == nil {
		t.Fatal("panic must still produce a result")
	}
	if len(res.Errors) != 1 {
		t.Fatalf("errors = %v, want exactly one", res.Errors)
	}
	if res.Errors[0].Phase != models.PhaseOrchestration ||
		res.Errors[0].Message != "Unexpected error during scraping: browser connection lost" {
		t.Errorf("error = %+v", res.Errors[0])
	}
}
