package models

import (
	"testing"
)

func plansEqual(a, b []Strategy) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestStrategyPlan(t *testing.T) {
	tests := []struct {
		name        string
		strategy    Strategy
		wantPrimary []Strategy
		wantRescue  []Strategy
	}{
		{
			name:        "auto runs tabs then load_more with scroll and pagination as rescue",
			strategy:    StrategyAuto,
			wantPrimary: []Strategy{StrategyTabs, StrategyLoadMore},
			wantRescue:  []Strategy{StrategyScroll, StrategyPagination},
		},
		{
			name:        "all runs every sub-strategy unconditionally in fixed order",
			strategy:    StrategyAll,
			wantPrimary: []Strategy{StrategyTabs, StrategyLoadMore, StrategyScroll, StrategyPagination},
			wantRescue:  nil,
		},
		{name: "tabs", strategy: StrategyTabs, wantPrimary: []Strategy{StrategyTabs}},
		{name: "load_more", strategy: StrategyLoadMore, wantPrimary: []Strategy{StrategyLoadMore}},
		{name: "scroll", strategy: StrategyScroll, wantPrimary: []Strategy{StrategyScroll}},
		{name: "pagination", strategy: StrategyPagination, wantPrimary: []Strategy{StrategyPagination}},
		{name: "unknown strategy expands to empty plan", strategy: Strategy("bogus"), wantPrimary: nil},
		{name: "empty strategy expands to empty plan", strategy: Strategy(""), wantPrimary: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := tt.strategy.Plan()
			if !plansEqual(plan.Primary, tt.wantPrimary) {
				t.Errorf("Plan().Primary = %v, want %v", plan.Primary, tt.wantPrimary)
			}
			if !plansEqual(plan.Rescue, tt.wantRescue) {
				t.Errorf("Plan().Rescue = %v, want %v", plan.Rescue, tt.wantRescue)
			}
		})
	}
}

func TestScrapeRequestDefaults(t *testing.T) {
	req := &ScrapeRequest{URL: "https://example.com"}
	req.Defaults()

	if req.InteractionStrategy != StrategyAuto {
		t.Errorf("default strategy = %q, want %q", req.InteractionStrategy, StrategyAuto)
	}
	if req.EnableInteractions {
		t.Error("interactions should default to disabled")
	}

	req2 := &ScrapeRequest{URL: "https://example.com", InteractionStrategy: StrategyScroll}
	req2.Defaults()
	if req2.InteractionStrategy != StrategyScroll {
		t.Errorf("explicit strategy overwritten: got %q", req2.InteractionStrategy)
	}
}

func TestContentEmpty(t *testing.T) {
	tests := []struct {
		name    string
		content Content
		want    bool
	}{
		{"all empty", Content{}, true},
		{"text only", Content{Text: "hello"}, false},
		{"headings only", Content{Headings: []string{"H"}}, false},
		{"links only", Content{Links: []LinkItem{{Href: "https://a"}}}, false},
		{"images only", Content{Images: []ImageItem{{Src: "https://a.png"}}}, false},
		{"tables only", Content{Tables: []Table{{Rows: [][]string{{"a"}}}}}, false},
		{"lists alone do not keep a section", Content{Lists: [][]string{{"item"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.content.Empty(); got != tt.want {
				t.Errorf("Empty() = %v, want %v", got, tt.want)
			}
		})
	}
}
