package scraper

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/websift/sift/config"
	"github.com/websift/sift/models"
)

// scrollQuietTimeout bounds the after-scroll wait for lazy content.
const scrollQuietTimeout = 5 * time.Second

// navSettleTimeout bounds the load wait after a pagination click.
const navSettleTimeout = 5 * time.Second

// errNoMatch reports that no element satisfied a locator. It is an
// expected condition, not a failure.
var errNoMatch = errors.New("no element matched")

// locator pairs a CSS selector with an optional case-insensitive text
// fragment the matched element must contain.
type locator struct {
	css  string
	text string
}

// pageElement is one interactable element on a live page.
type pageElement interface {
	Text() (string, error)
	Visible() (bool, error)
	Click() error
}

// pageDriver is the surface the interaction machine needs from a live
// page. The production implementation wraps a rod page; tests script one.
type pageDriver interface {
	// All returns every element matching the CSS selector, without waiting.
	All(css string) ([]pageElement, error)
	// First returns the first element satisfying the locator, or errNoMatch.
	First(loc locator) (pageElement, error)
	// ElementCount is the total number of DOM elements, used to detect
	// whether a click actually produced new content.
	ElementCount() (int, error)
	ScrollHeight() (int, error)
	ScrollToBottom() error
	URL() string
	HTML() (string, error)
	WaitQuiet(timeout time.Duration)
	WaitNavigated(timeout time.Duration)
	Sleep(d time.Duration)
}

// Selector patterns for the four reveal mechanics, in the order they are
// tried. Text locators mirror what a human reads on the control.
var (
	tabSelectors = []string{
		`[role='tab']`,
		`.tab`,
		`[class*='tab']`,
		`button[aria-selected]`,
	}
	loadMoreLocators = []locator{
		{css: "button", text: "load more"},
		{css: "button", text: "show more"},
		{css: "a", text: "load more"},
		{css: "[class*='load-more'], [class*='show-more']"},
	}
	paginationLocators = []locator{
		{css: "a", text: "next"},
		{css: "button", text: "next"},
		{css: "[rel='next']"},
		{css: "[class*='next']"},
		{css: "[class*='pagination'] a"},
	}
)

// interactor drives the bounded reveal pass on a rendered page. All loops
// share the configured depth bound, guaranteeing termination even against
// adversarial pages.
type interactor struct {
	cfg config.InteractConfig
}

func newInteractor(cfg config.InteractConfig) *interactor {
	return &interactor{cfg: cfg}
}

// Run executes the plan for the requested strategy. Every sub-strategy is
// best-effort: a failed click or lookup is logged and skipped, never
// aborting the rest of the pass. The returned snapshots are pre-navigation
// markup captures from pagination, aligned with the Pages list.
func (m *interactor) Run(drv pageDriver, strategy models.Strategy) (models.Interactions, []string) {
	plan := strategy.Plan()
	summary := models.NewInteractions()
	var snapshots []string

	for _, sub := range plan.Primary {
		m.runOne(drv, sub, &summary, &snapshots)
	}
	for _, sub := range plan.Rescue {
		if len(summary.Clicks) > 0 || summary.Scrolls > 0 || len(summary.Pages) > 0 {
			break
		}
		m.runOne(drv, sub, &summary, &snapshots)
	}
	return summary, snapshots
}

func (m *interactor) runOne(drv pageDriver, sub models.Strategy, summary *models.Interactions, snapshots *[]string) {
	switch sub {
	case models.StrategyTabs:
		m.clickTabs(drv, summary)
	case models.StrategyLoadMore:
		m.clickLoadMore(drv, summary)
	case models.StrategyScroll:
		m.scrollToEnd(drv, summary)
	case models.StrategyPagination:
		m.followPagination(drv, summary, snapshots)
	}
}

// clickTabs reveals tabbed content. Each selector pattern gets at most
// MaxTabClicks click attempts; once any pattern produced a click, the
// remaining patterns are skipped as they would mostly re-match the same
// controls.
func (m *interactor) clickTabs(drv pageDriver, summary *models.Interactions) {
	for _, sel := range tabSelectors {
		els, err := drv.All(sel)
		if err != nil {
			slog.Debug("tab lookup failed", "selector", sel, "error", err)
			continue
		}
		limit := m.cfg.MaxTabClicks
		if len(els) < limit {
			limit = len(els)
		}
		clicked := 0
		for _, el := range els[:limit] {
			label := previewText(el)
			if err := el.Click(); err != nil {
				slog.Debug("tab click failed", "selector", sel, "error", err)
				continue
			}
			clicked++
			summary.Clicks = append(summary.Clicks, fmt.Sprintf("Tab clicked: %s - %s", sel, label))
			drv.Sleep(m.cfg.TabClickDelay)
		}
		if clicked > 0 {
			break
		}
	}
}

// clickLoadMore clicks "load more" style controls for up to MaxDepth
// rounds. The DOM element count is compared around each click: a click
// that grew nothing means the control is exhausted, so the whole strategy
// stops immediately.
func (m *interactor) clickLoadMore(drv pageDriver, summary *models.Interactions) {
	for round := 1; round <= m.cfg.MaxDepth; round++ {
		clicked := false
		for _, loc := range loadMoreLocators {
			el, err := drv.First(loc)
			if err != nil {
				continue
			}
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}

			before, beforeErr := drv.ElementCount()
			label := previewText(el)
			if err := el.Click(); err != nil {
				slog.Debug("load-more click failed", "selector", loc.css, "error", err)
				continue
			}
			summary.Clicks = append(summary.Clicks, fmt.Sprintf("Load more clicked (%d): %s", round, label))
			drv.Sleep(m.cfg.LoadMoreWait)

			after, afterErr := drv.ElementCount()
			if beforeErr == nil && afterErr == nil && after <= before {
				return
			}
			clicked = true
			break
		}
		if !clicked {
			return
		}
	}
}

// scrollToEnd scrolls to the bottom repeatedly until the page height stops
// growing or the depth bound is hit. URLs reached along the way are
// recorded; some infinite-scroll pages rewrite the location per segment.
func (m *interactor) scrollToEnd(drv pageDriver, summary *models.Interactions) {
	prev := 0
	for i := 0; i < m.cfg.MaxDepth; i++ {
		current, err := drv.ScrollHeight()
		if err != nil {
			slog.Debug("scroll height lookup failed", "error", err)
			return
		}
		if prev > 0 && current <= prev {
			break
		}
		if err := drv.ScrollToBottom(); err != nil {
			slog.Debug("scroll failed", "error", err)
			return
		}
		summary.Scrolls++
		drv.Sleep(m.cfg.ScrollWait)
		drv.WaitQuiet(scrollQuietTimeout)

		if u := drv.URL(); u != "" && !slices.Contains(summary.Pages, u) {
			summary.Pages = append(summary.Pages, u)
		}
		prev = current
	}
}

// followPagination walks a "next page" chain for up to MaxDepth pages
// total, capturing each page's markup before leaving it. A hop counts only
// when the URL actually changed to one not already visited; anything else
// (same-page anchors, trailing-slash variants, loops back to page one)
// ends the walk.
func (m *interactor) followPagination(drv pageDriver, summary *models.Interactions, snapshots *[]string) {
	if entry := drv.URL(); entry != "" && !visitedPage(summary.Pages, entry) {
		summary.Pages = append(summary.Pages, entry)
	}
	if html, err := drv.HTML(); err == nil {
		*snapshots = append(*snapshots, html)
	}

	for hop := 0; hop < m.cfg.MaxDepth-1; hop++ {
		followed := false
		for _, loc := range paginationLocators {
			el, err := drv.First(loc)
			if err != nil {
				continue
			}
			if visible, err := el.Visible(); err != nil || !visible {
				continue
			}

			before := drv.URL()
			if err := el.Click(); err != nil {
				slog.Debug("pagination click failed", "selector", loc.css, "error", err)
				drv.Sleep(time.Second)
			} else {
				drv.WaitNavigated(navSettleTimeout)
			}

			after := drv.URL()
			if normalizeURL(after) == normalizeURL(before) || visitedPage(summary.Pages, after) {
				continue
			}
			summary.Pages = append(summary.Pages, after)
			drv.Sleep(m.cfg.PaginationWait)
			if html, err := drv.HTML(); err == nil {
				*snapshots = append(*snapshots, html)
			}
			followed = true
			break
		}
		if !followed {
			return
		}
	}
}

// normalizeURL strips trailing slashes so "/page" and "/page/" compare
// equal during pagination revisit checks.
func normalizeURL(u string) string {
	return strings.TrimRight(u, "/")
}

func visitedPage(pages []string, u string) bool {
	n := normalizeURL(u)
	for _, p := range pages {
		if normalizeURL(p) == n {
			return true
		}
	}
	return false
}

// previewText is the logged, length-capped form of an element's text.
func previewText(el pageElement) string {
	t, err := el.Text()
	if err != nil {
		return ""
	}
	t = strings.TrimSpace(t)
	if r := []rune(t); len(r) > 50 {
		return string(r[:50])
	}
	return t
}
