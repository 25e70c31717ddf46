package models

// ScrapeRequest is the payload for POST /scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required"`

	// EnableInteractions turns on the interaction pass (tabs, load-more,
	// infinite scroll, pagination). Forces browser rendering.
	// Default: false.
	EnableInteractions bool `json:"enable_interactions"`

	// InteractionStrategy selects which interaction sub-strategies run.
	// One of: auto, tabs, load_more, scroll, pagination, all.
	// Unknown values expand to an empty plan (no interactions performed).
	// Default: auto.
	InteractionStrategy Strategy `json:"interaction_strategy"`

	// IncludeMarkdown adds a Markdown rendition to each section.
	// Default: false.
	IncludeMarkdown bool `json:"include_markdown"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.InteractionStrategy == "" {
		r.InteractionStrategy = StrategyAuto
	}
}
