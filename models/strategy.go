package models

// Strategy selects which interaction sub-strategies run during dynamic
// rendering. It is a closed set; composite strategies expand to ordered
// sub-strategy lists via Plan rather than being re-compared as strings.
type Strategy string

const (
	StrategyAuto       Strategy = "auto"
	StrategyTabs       Strategy = "tabs"
	StrategyLoadMore   Strategy = "load_more"
	StrategyScroll     Strategy = "scroll"
	StrategyPagination Strategy = "pagination"
	StrategyAll        Strategy = "all"
)

// Plan is an expanded strategy: Primary runs unconditionally in order;
// each Rescue entry runs only while nothing has happened yet (no clicks,
// no scrolls, no page changes). The asymmetry between "auto" and "all" is
// a deliberate policy: tabs and load-more are cheap and checked first,
// scroll and pagination only as a last resort.
type Plan struct {
	Primary []Strategy
	Rescue  []Strategy
}

// Plan expands the strategy into its ordered sub-strategy lists. Unknown
// strategies expand to an empty plan, so nothing runs.
func (s Strategy) Plan() Plan {
	switch s {
	case StrategyAuto:
		return Plan{
			Primary: []Strategy{StrategyTabs, StrategyLoadMore},
			Rescue:  []Strategy{StrategyScroll, StrategyPagination},
		}
	case StrategyAll:
		return Plan{
			Primary: []Strategy{StrategyTabs, StrategyLoadMore, StrategyScroll, StrategyPagination},
		}
	case StrategyTabs, StrategyLoadMore, StrategyScroll, StrategyPagination:
		return Plan{Primary: []Strategy{s}}
	default:
		return Plan{}
	}
}
