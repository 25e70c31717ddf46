package models

import "time"

// ScrapeResult is the root output of every scrape. It is always populated
// and returned, even on total failure (degenerate Meta, empty sections,
// non-empty errors). Field names follow the wire format expected by
// existing clients, hence the camelCase JSON tags.
type ScrapeResult struct {
	// URL is the final URL the content came from (after redirects).
	URL string `json:"url"`

	// ScrapedAt is the UTC completion timestamp in ISO-8601 form.
	ScrapedAt string `json:"scrapedAt"`

	// Meta holds page-level metadata.
	Meta Meta `json:"meta"`

	// Sections is the ordered sequence of extracted content sections.
	Sections []Section `json:"sections"`

	// Interactions summarises the interaction pass (clicks, scrolls, pages).
	Interactions Interactions `json:"interactions"`

	// Errors accumulates non-fatal errors from every phase. A populated
	// Errors slice does not imply an empty result.
	Errors []ScrapeError `json:"errors"`
}

// Meta holds page-level metadata extracted from the markup.
type Meta struct {
	// Title is never empty; "Untitled" when nothing could be extracted.
	Title string `json:"title"`

	// Description may be empty.
	Description string `json:"description"`

	// Language is the ISO 639-1 primary subtag, defaulting to "en".
	Language string `json:"language"`

	// Canonical is the canonical URL, when declared.
	Canonical string `json:"canonical,omitempty"`

	// Strategy records which path produced the result: "static" or "js".
	Strategy string `json:"strategy,omitempty"`
}

// Section is one semantically coherent fragment of the page.
type Section struct {
	// ID is unique within a result, e.g. "hero-0", "nav-1",
	// "heading-section-0". Multi-page results carry a "-p<i>" suffix.
	ID string `json:"id"`

	// Type is one of: hero, nav, footer, pricing, faq, list, grid,
	// section, unknown.
	Type string `json:"type"`

	// Label is a short human-readable name derived from headings or text.
	Label string `json:"label"`

	// SourceURL is the page URL this section came from (multi-page results
	// can mix URLs).
	SourceURL string `json:"sourceUrl"`

	Content Content `json:"content"`

	// RawHTML is a length-bounded snippet of the section markup.
	RawHTML string `json:"rawHtml"`

	// Truncated reports whether RawHTML was cut to the length bound.
	Truncated bool `json:"truncated"`

	// Markdown is a Markdown rendition of the section markup, present only
	// when the request asked for it.
	Markdown string `json:"markdown,omitempty"`
}

// Content holds everything extracted from one section.
type Content struct {
	// Headings lists all nested heading texts in document order.
	Headings []string `json:"headings"`

	// Text is the collapsed plain text. Empty when the fragment is
	// link-dominated (anchor text above the density threshold).
	Text string `json:"text"`

	// Links are deduplicated by resolved absolute URL.
	Links []LinkItem `json:"links"`

	// Images are deduplicated by resolved absolute URL.
	Images []ImageItem `json:"images"`

	// Lists holds each top-level ul/ol as one sequence of item texts.
	Lists [][]string `json:"lists"`

	Tables []Table `json:"tables"`
}

// Empty reports whether the content carries none of the fields that keep a
// section alive. Lists alone do not qualify.
func (c Content) Empty() bool {
	return c.Text == "" &&
		len(c.Headings) == 0 &&
		len(c.Links) == 0 &&
		len(c.Images) == 0 &&
		len(c.Tables) == 0
}

// LinkItem is a hyperlink with its resolved absolute target.
type LinkItem struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// ImageItem is an image with its resolved absolute source.
type ImageItem struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Table is a header row plus data rows.
type Table struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Interactions records what the interaction pass did to the page.
type Interactions struct {
	// Clicks holds one human-readable description per successful click.
	Clicks []string `json:"clicks"`

	// Scrolls counts scroll actions performed.
	Scrolls int `json:"scrolls"`

	// Pages lists the distinct URLs visited, in visit order.
	Pages []string `json:"pages"`
}

// NewInteractions returns an empty, non-nil interaction summary so the wire
// format always carries arrays instead of nulls.
func NewInteractions() Interactions {
	return Interactions{Clicks: []string{}, Scrolls: 0, Pages: []string{}}
}

// Timestamp formats t as the wire-format scrapedAt value.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ErrorResult builds the degenerate result returned when scraping cannot
// proceed (validation failure, robots disallow, total fallback exhaustion).
func ErrorResult(url string, errs ...ScrapeError) *ScrapeResult {
	if errs == nil {
		errs = []ScrapeError{}
	}
	return &ScrapeResult{
		URL:          url,
		ScrapedAt:    Timestamp(time.Now()),
		Meta:         Meta{Title: "Error", Description: "", Language: "en"},
		Sections:     []Section{},
		Interactions: NewInteractions(),
		Errors:       errs,
	}
}
