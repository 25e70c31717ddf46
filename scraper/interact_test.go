package scraper

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/websift/sift/config"
	"github.com/websift/sift/models"
)

// fakeElement implements pageElement. onClick runs before clickErr is
// returned, so a failed click can still have page-level side effects the
// way a real detached-element click sometimes does.
type fakeElement struct {
	text     string
	visible  bool
	clickErr error
	onClick  func()
	clicks   int
}

func (e *fakeElement) Text() (string, error)  { return e.text, nil }
func (e *fakeElement) Visible() (bool, error) { return e.visible, nil }
func (e *fakeElement) Click() error {
	if e.onClick != nil {
		e.onClick()
	}
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

// fakeDriver implements pageDriver over static maps. ElementCount and
// ScrollHeight consume their slices sequentially, repeating the last value.
type fakeDriver struct {
	all     map[string][]pageElement
	first   map[string]pageElement // keyed "css|text"
	counts  []int
	heights []int
	url     string
	html    string

	countIdx  int
	heightIdx int
	scrolls   int
}

func (d *fakeDriver) All(css string) ([]pageElement, error) { return d.all[css], nil }

func (d *fakeDriver) First(loc locator) (pageElement, error) {
	if el, ok := d.first[loc.css+"|"+loc.text]; ok {
		return el, nil
	}
	return nil, errNoMatch
}

func (d *fakeDriver) ElementCount() (int, error) {
	return takeSequential(d.counts, &d.countIdx), nil
}

func (d *fakeDriver) ScrollHeight() (int, error) {
	return takeSequential(d.heights, &d.heightIdx), nil
}

func (d *fakeDriver) ScrollToBottom() error       { d.scrolls++; return nil }
func (d *fakeDriver) URL() string                 { return d.url }
func (d *fakeDriver) HTML() (string, error)       { return d.html, nil }
func (d *fakeDriver) WaitQuiet(time.Duration)     {}
func (d *fakeDriver) WaitNavigated(time.Duration) {}
func (d *fakeDriver) Sleep(time.Duration)         {}

func takeSequential(vals []int, idx *int) int {
	if len(vals) == 0 {
		return 0
	}
	i := *idx
	if i >= len(vals) {
		i = len(vals) - 1
	}
	*idx++
	return vals[i]
}

func testInteractor() *interactor {
	return newInteractor(config.InteractConfig{
		MaxDepth:     3,
		MaxTabClicks: 5,
	})
}

func TestClickTabs_StopsAfterFirstSuccessfulPattern(t *testing.T) {
	other := &fakeElement{text: "Later", visible: true}
	drv := &fakeDriver{
		all: map[string][]pageElement{
			"[role='tab']": {
				&fakeElement{text: "Overview", visible: true},
				&fakeElement{text: "Specs", visible: true},
			},
			".tab": {other},
		},
	}

	summary, _ := testInteractor().Run(drv, models.StrategyTabs)

	if len(summary.Clicks) != 2 {
		t.Fatalf("clicks = %v, want 2 entries", summary.Clicks)
	}
	if summary.Clicks[0] != "Tab clicked: [role='tab'] - Overview" {
		t.Errorf("click log = %q", summary.Clicks[0])
	}
	if other.clicks != 0 {
		t.Error("later patterns should be skipped once one pattern clicked")
	}
}

func TestClickTabs_CapsAttemptsPerPattern(t *testing.T) {
	els := make([]pageElement, 5)
	for i := range els {
		els[i] = &fakeElement{text: "Tab", visible: true}
	}
	drv := &fakeDriver{all: map[string][]pageElement{"[role='tab']": els}}

	m := newInteractor(config.InteractConfig{MaxDepth: 3, MaxTabClicks: 2})
	summary, _ := m.Run(drv, models.StrategyTabs)

	if len(summary.Clicks) != 2 {
		t.Errorf("clicks = %d, want the per-pattern cap of 2", len(summary.Clicks))
	}
	if els[2].(*fakeElement).clicks != 0 {
		t.Error("elements past the cap should never be clicked")
	}
}

func TestClickTabs_FailedClicksFallThroughToNextPattern(t *testing.T) {
	broken := &fakeElement{text: "Stuck", visible: true, clickErr: errors.New("not clickable")}
	working := &fakeElement{text: "Menu", visible: true}
	drv := &fakeDriver{
		all: map[string][]pageElement{
			"[role='tab']": {broken},
			".tab":         {working},
		},
	}

	summary, _ := testInteractor().Run(drv, models.StrategyTabs)

	if len(summary.Clicks) != 1 {
		t.Fatalf("clicks = %v, want 1 entry", summary.Clicks)
	}
	if !strings.HasPrefix(summary.Clicks[0], "Tab clicked: .tab - ") {
		t.Errorf("click log = %q, want the fallback pattern", summary.Clicks[0])
	}
}

func TestClickLoadMore_StopsWhenNothingGrows(t *testing.T) {
	btn := &fakeElement{text: "Load more", visible: true}
	drv := &fakeDriver{
		first:  map[string]pageElement{"button|load more": btn},
		counts: []int{100, 100},
	}

	summary, _ := testInteractor().Run(drv, models.StrategyLoadMore)

	if btn.clicks != 1 {
		t.Errorf("clicks = %d, want exactly 1 before the no-growth stop", btn.clicks)
	}
	if len(summary.Clicks) != 1 || summary.Clicks[0] != "Load more clicked (1): Load more" {
		t.Errorf("click log = %v", summary.Clicks)
	}
}

func TestClickLoadMore_GrowthContinuesUntilDepthBound(t *testing.T) {
	btn := &fakeElement{text: "Show more results", visible: true}
	drv := &fakeDriver{
		first:  map[string]pageElement{"button|load more": btn},
		counts: []int{100, 150, 150, 200, 200, 250},
	}

	summary, _ := testInteractor().Run(drv, models.StrategyLoadMore)

	if btn.clicks != 3 {
		t.Errorf("clicks = %d, want the depth bound of 3", btn.clicks)
	}
	if len(summary.Clicks) != 3 {
		t.Fatalf("click log = %v", summary.Clicks)
	}
	if summary.Clicks[2] != "Load more clicked (3): Show more results" {
		t.Errorf("third log entry = %q", summary.Clicks[2])
	}
}

func TestClickLoadMore_InvisibleControlSkipped(t *testing.T) {
	hidden := &fakeElement{text: "Load more", visible: false}
	link := &fakeElement{text: "Load more", visible: true}
	drv := &fakeDriver{
		first: map[string]pageElement{
			"button|load more": hidden,
			"a|load more":      link,
		},
		counts: []int{10, 10},
	}

	summary, _ := testInteractor().Run(drv, models.StrategyLoadMore)

	if hidden.clicks != 0 {
		t.Error("invisible control should never be clicked")
	}
	if link.clicks != 1 || len(summary.Clicks) != 1 {
		t.Errorf("visible fallback control should be clicked once, got %d (%v)", link.clicks, summary.Clicks)
	}
}

func TestScrollToEnd_StopsWhenHeightPlateaus(t *testing.T) {
	drv := &fakeDriver{
		heights: []int{1000, 1500, 1500},
		url:     "https://example.com/feed",
	}

	summary, _ := testInteractor().Run(drv, models.StrategyScroll)

	if summary.Scrolls != 2 {
		t.Errorf("scrolls = %d, want 2 (third height reading shows no growth)", summary.Scrolls)
	}
	if drv.scrolls != summary.Scrolls {
		t.Errorf("driver saw %d scrolls, summary says %d", drv.scrolls, summary.Scrolls)
	}
	if len(summary.Pages) != 1 || summary.Pages[0] != "https://example.com/feed" {
		t.Errorf("pages = %v, want the single deduplicated URL", summary.Pages)
	}
}

func TestScrollToEnd_DepthBound(t *testing.T) {
	drv := &fakeDriver{heights: []int{100, 200, 300, 400}}

	summary, _ := testInteractor().Run(drv, models.StrategyScroll)

	if summary.Scrolls != 3 {
		t.Errorf("scrolls = %d, want the depth bound of 3", summary.Scrolls)
	}
}

func TestFollowPagination_WalksNextChain(t *testing.T) {
	drv := &fakeDriver{url: "https://example.com/p1", html: "<main>one</main>"}
	urls := []string{"https://example.com/p2", "https://example.com/p3"}
	pages := map[string]string{
		"https://example.com/p2": "<main>two</main>",
		"https://example.com/p3": "<main>three</main>",
	}
	step := 0
	next := &fakeElement{text: "Next", visible: true}
	next.onClick = func() {
		drv.url = urls[step]
		drv.html = pages[drv.url]
		step++
	}
	drv.first = map[string]pageElement{"a|next": next}

	summary, snapshots := testInteractor().Run(drv, models.StrategyPagination)

	wantPages := []string{"https://example.com/p1", "https://example.com/p2", "https://example.com/p3"}
	if len(summary.Pages) != 3 {
		t.Fatalf("pages = %v, want %v", summary.Pages, wantPages)
	}
	for i, want := range wantPages {
		if summary.Pages[i] != want {
			t.Errorf("pages[%d] = %q, want %q", i, summary.Pages[i], want)
		}
	}
	if len(snapshots) != 3 {
		t.Fatalf("snapshots = %d, want one per visited page", len(snapshots))
	}
	if snapshots[2] != "<main>three</main>" {
		t.Errorf("snapshots[2] = %q", snapshots[2])
	}
}

func TestFollowPagination_RevisitedURLStops(t *testing.T) {
	drv := &fakeDriver{url: "https://example.com/p1", html: "<main>one</main>"}
	flip := false
	next := &fakeElement{text: "Next", visible: true, onClick: func() {
		if flip {
			drv.url = "https://example.com/p1"
		} else {
			drv.url = "https://example.com/p2"
		}
		flip = !flip
	}}
	drv.first = map[string]pageElement{"a|next": next}

	summary, snapshots := testInteractor().Run(drv, models.StrategyPagination)

	if len(summary.Pages) != 2 {
		t.Errorf("pages = %v, want the walk to stop when the chain loops back", summary.Pages)
	}
	if len(snapshots) != 2 {
		t.Errorf("snapshots = %d, want 2", len(snapshots))
	}
}

func TestFollowPagination_TrailingSlashIsNotANewPage(t *testing.T) {
	drv := &fakeDriver{url: "https://example.com/list", html: "<main>one</main>"}
	next := &fakeElement{text: "Next", visible: true, onClick: func() {
		drv.url = "https://example.com/list/"
	}}
	drv.first = map[string]pageElement{"a|next": next}

	summary, snapshots := testInteractor().Run(drv, models.StrategyPagination)

	if len(summary.Pages) != 1 {
		t.Errorf("pages = %v, want the slash variant treated as the same page", summary.Pages)
	}
	if len(snapshots) != 1 {
		t.Errorf("snapshots = %d, want only the entry capture", len(snapshots))
	}
}

func TestFollowPagination_ClickErrorStillFollowsURLChange(t *testing.T) {
	// Some next-buttons detach mid-click after navigation already started;
	// the hop should count if the URL moved somewhere new.
	drv := &fakeDriver{url: "https://example.com/p1", html: "<main>one</main>"}
	next := &fakeElement{
		text:     "Next",
		visible:  true,
		clickErr: errors.New("element detached"),
		onClick:  func() { drv.url = "https://example.com/p2" },
	}
	drv.first = map[string]pageElement{"a|next": next}

	summary, _ := testInteractor().Run(drv, models.StrategyPagination)

	if len(summary.Pages) != 2 || summary.Pages[1] != "https://example.com/p2" {
		t.Errorf("pages = %v, want the post-click URL recorded despite the click error", summary.Pages)
	}
}

func TestRun_AutoRescueRunsWhenPrimaryIdle(t *testing.T) {
	drv := &fakeDriver{
		heights: []int{500, 500},
		url:     "https://example.com/",
		html:    "<main>page</main>",
	}

	summary, snapshots := testInteractor().Run(drv, models.StrategyAuto)

	if summary.Scrolls != 1 {
		t.Errorf("scrolls = %d, want the rescue scroll to run", summary.Scrolls)
	}
	if len(snapshots) != 0 {
		t.Error("pagination rescue should be skipped once scrolling produced activity")
	}
}

func TestRun_AutoSkipsRescueAfterClicks(t *testing.T) {
	drv := &fakeDriver{
		all: map[string][]pageElement{
			"[role='tab']": {&fakeElement{text: "Tab", visible: true}},
		},
		heights: []int{100, 200, 300},
	}

	summary, _ := testInteractor().Run(drv, models.StrategyAuto)

	if len(summary.Clicks) != 1 {
		t.Fatalf("clicks = %v", summary.Clicks)
	}
	if summary.Scrolls != 0 || drv.scrolls != 0 {
		t.Error("rescue strategies should not run after primary activity")
	}
}

func TestRun_AllRunsEverything(t *testing.T) {
	drv := &fakeDriver{
		all: map[string][]pageElement{
			"[role='tab']": {&fakeElement{text: "Tab", visible: true}},
		},
		first: map[string]pageElement{
			"button|load more": &fakeElement{text: "More", visible: true},
		},
		counts:  []int{10, 10},
		heights: []int{100, 100},
		url:     "https://example.com/",
		html:    "<main>page</main>",
	}

	summary, snapshots := testInteractor().Run(drv, models.StrategyAll)

	if len(summary.Clicks) != 2 {
		t.Errorf("clicks = %v, want one tab click and one load-more click", summary.Clicks)
	}
	if summary.Scrolls != 1 {
		t.Errorf("scrolls = %d, want 1", summary.Scrolls)
	}
	if len(summary.Pages) != 1 {
		t.Errorf("pages = %v", summary.Pages)
	}
	if len(snapshots) != 1 {
		t.Errorf("snapshots = %d, want the pagination entry snapshot", len(snapshots))
	}
}

func TestRun_UnknownStrategyDoesNothing(t *testing.T) {
	drv := &fakeDriver{
		all:     map[string][]pageElement{"[role='tab']": {&fakeElement{text: "Tab", visible: true}}},
		heights: []int{100, 200},
		url:     "https://example.com/",
	}

	summary, snapshots := testInteractor().Run(drv, models.Strategy("bogus"))

	if len(summary.Clicks) != 0 || summary.Scrolls != 0 || len(summary.Pages) != 0 {
		t.Errorf("unknown strategy ran something: %+v", summary)
	}
	if snapshots != nil {
		t.Errorf("snapshots = %v, want none", snapshots)
	}
}
