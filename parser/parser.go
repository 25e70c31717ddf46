// Package parser turns raw page markup into an ordered sequence of typed,
// semantically labeled sections. Sectioning runs a three-tier fallback:
// structural landmarks first, heading-delimited spans second, and a single
// main-content section as the last resort.
package parser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/pemistahl/lingua-go"
	"golang.org/x/net/html"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/websift/sift/config"
	"github.com/websift/sift/models"
)

// defaultNoiseSelectors lists markup that never carries content: scripts,
// styles, and the usual cookie/consent/modal/ad overlay patterns.
var defaultNoiseSelectors = []string{
	"script",
	"style",
	"noscript",
	"[role='dialog']",
	"[class*='cookie']",
	"[class*='gdpr']",
	"[id*='cookie']",
	"[class*='popup']",
	"[class*='modal']",
	"[class*='overlay']",
	"[class*='banner']",
	".advertisement",
	".ad-container",
	"[class*='consent']",
}

// typeKeywords pairs a section type with the keywords that select it.
// Evaluated in slice order; the first keyword hit wins, so more specific
// types come before generic ones.
type typeKeywords struct {
	Type     string
	Keywords []string
}

var defaultTypeKeywords = []typeKeywords{
	{"hero", []string{"hero", "banner", "jumbotron", "splash"}},
	{"nav", []string{"nav", "navigation", "menu"}},
	{"footer", []string{"footer", "copyright"}},
	{"pricing", []string{"pricing", "price", "plan"}},
	{"faq", []string{"faq", "question", "answer", "accordion"}},
	{"list", []string{"list", "items"}},
	{"grid", []string{"grid", "gallery", "cards"}},
}

// Precompiled structural matchers. These are static tables, compiled once
// and shared by every Parser instance.
var (
	landmarkMatcher    = cascadia.MustCompile("header, nav, main, section, article, aside, footer")
	topHeadingMatcher  = cascadia.MustCompile("h1, h2, h3")
	anyHeadingMatcher  = cascadia.MustCompile("h1, h2, h3, h4, h5, h6")
	anchorMatcher      = cascadia.MustCompile("a[href]")
	bareAnchorMatcher  = cascadia.MustCompile("a")
	imageMatcher       = cascadia.MustCompile("img")
	listMatcher        = cascadia.MustCompile("ul, ol")
	listItemMatcher    = cascadia.MustCompile("li")
	tableMatcher       = cascadia.MustCompile("table")
	theadMatcher       = cascadia.MustCompile("thead")
	tbodyMatcher       = cascadia.MustCompile("tbody")
	rowMatcher         = cascadia.MustCompile("tr")
	cellMatcher        = cascadia.MustCompile("th, td")
	mainMatcher        = cascadia.MustCompile("main")
	bodyMatcher        = cascadia.MustCompile("body")
	titleMatcher       = cascadia.MustCompile("title")
	htmlMatcher        = cascadia.MustCompile("html")
	scriptStyleMatcher = cascadia.MustCompile("script, style, noscript")
	ogTitleMatcher     = cascadia.MustCompile("meta[property='og:title']")
	descriptionMatcher = cascadia.MustCompile("meta[name='description']")
	ogDescMatcher      = cascadia.MustCompile("meta[property='og:description']")
	canonicalMatcher   = cascadia.MustCompile("link[rel='canonical']")
)

// Parser extracts sections and metadata from markup. The noise and keyword
// tables are fixed at construction and never written afterwards, so a
// single Parser is safe for concurrent use.
type Parser struct {
	maxRawHTML   int
	noise        []cascadia.Selector
	typeKeywords []typeKeywords
	md           *converter.Converter
	langDetector lingua.LanguageDetector
}

// New builds a Parser from the given limits, compiling the noise table and
// initialising the shared Markdown converter and language detector.
func New(cfg config.ParseConfig) *Parser {
	noise := make([]cascadia.Selector, 0, len(defaultNoiseSelectors))
	for _, sel := range defaultNoiseSelectors {
		noise = append(noise, cascadia.MustCompile(sel))
	}

	return &Parser{
		maxRawHTML:   cfg.MaxRawHTMLLength,
		noise:        noise,
		typeKeywords: defaultTypeKeywords,
		md:           newMarkdownConverter(),
		langDetector: lingua.NewLanguageDetectorBuilder().FromAllLanguages().Build(),
	}
}

// Options controls optional per-parse behavior.
type Options struct {
	// IncludeMarkdown attaches a Markdown rendition to every section.
	IncludeMarkdown bool
}

// Parse converts raw markup into sections.
//
//  1. Strip noise elements.
//  2. Landmark grouping; accepted only when it yields >= 2 sections.
//  3. Heading grouping over h1-h3 sibling spans.
//  4. Single main-content section as the last resort.
//
// A section is emitted only when it carries at least one of text, headings,
// links, images, or tables.
func (p *Parser) Parse(rawHTML, pageURL string, opts Options) []models.Section {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return []models.Section{}
	}

	p.stripNoise(doc)

	sections := p.groupByLandmarks(doc, pageURL, opts)
	if len(sections) >= 2 {
		return sections
	}

	sections = p.groupByHeadings(doc, pageURL, opts)
	if len(sections) == 0 {
		sections = p.singleSection(doc, rawHTML, pageURL, opts)
	}
	return sections
}

func (p *Parser) stripNoise(doc *goquery.Document) {
	for _, m := range p.noise {
		doc.FindMatcher(m).Remove()
	}
}

// groupByLandmarks builds one section per top-level structural landmark.
// Landmarks nested inside another landmark are skipped so a <nav> inside
// <header> does not produce a duplicate section.
func (p *Parser) groupByLandmarks(doc *goquery.Document, pageURL string, opts Options) []models.Section {
	sections := []models.Section{}
	counter := 0

	doc.FindMatcher(landmarkMatcher).Each(func(_ int, s *goquery.Selection) {
		if s.ParentsMatcher(landmarkMatcher).Length() > 0 {
			return
		}

		sectionType := p.classifySectionType(s)
		id := fmt.Sprintf("%s-%d", sectionType, counter)
		counter++

		if sec, ok := p.buildSection(s, id, sectionType, p.generateLabel(s, sectionType), pageURL, opts); ok {
			sections = append(sections, sec)
		}
	})

	return sections
}

// groupByHeadings synthesizes a section per top-level heading (h1-h3): the
// heading plus every following sibling up to the next such heading. The
// span is collected as a selection view over the parsed tree — nothing is
// cloned or reparented.
func (p *Parser) groupByHeadings(doc *goquery.Document, pageURL string, opts Options) []models.Section {
	sections := []models.Section{}
	counter := 0

	doc.FindMatcher(topHeadingMatcher).Each(func(_ int, heading *goquery.Selection) {
		span := heading.AddSelection(heading.NextUntilMatcher(topHeadingMatcher))

		label := runeCap(collapseWhitespace(heading.Text()), 50)
		id := fmt.Sprintf("heading-section-%d", counter)
		counter++

		if sec, ok := p.buildSection(span, id, "section", label, pageURL, opts); ok {
			sections = append(sections, sec)
		}
	})

	return sections
}

// singleSection wraps the primary content area as one section. The main
// content is located with readability when it produces enough text,
// otherwise <main>, then <body>, then the whole document.
func (p *Parser) singleSection(doc *goquery.Document, rawHTML, pageURL string, opts Options) []models.Section {
	root := p.locateMainContent(doc, rawHTML, pageURL)

	sec, ok := p.buildSection(root, "main-content-0", "section", p.generateLabel(root, "section"), pageURL, opts)
	if !ok {
		return []models.Section{}
	}
	return []models.Section{sec}
}

// buildSection assembles a Section from a selection view, returning ok=false
// when the extracted content is empty.
func (p *Parser) buildSection(s *goquery.Selection, id, sectionType, label, pageURL string, opts Options) (models.Section, bool) {
	content := extractContent(s, pageURL)
	if content.Empty() {
		return models.Section{}, false
	}

	rendered := renderNodes(s)
	rawHTML, truncated := truncateRunes(rendered, p.maxRawHTML)

	sec := models.Section{
		ID:        id,
		Type:      sectionType,
		Label:     label,
		SourceURL: pageURL,
		Content:   content,
		RawHTML:   rawHTML,
		Truncated: truncated,
	}
	if opts.IncludeMarkdown {
		sec.Markdown = p.sectionMarkdown(rendered, pageURL)
	}
	return sec, true
}

// classifySectionType matches the element's tag, classes, and id against the
// keyword table, then falls back to tag-based defaults.
func (p *Parser) classifySectionType(s *goquery.Selection) string {
	tag := strings.ToLower(goquery.NodeName(s))
	class := strings.ToLower(s.AttrOr("class", ""))
	id := strings.ToLower(s.AttrOr("id", ""))
	haystack := tag + " " + class + " " + id

	for _, tk := range p.typeKeywords {
		for _, kw := range tk.Keywords {
			if strings.Contains(haystack, kw) {
				return tk.Type
			}
		}
	}

	switch {
	case tag == "nav":
		return "nav"
	case tag == "footer":
		return "footer"
	case tag == "header" || strings.Contains(class+" "+id, "hero"):
		return "hero"
	case tag == "article" || tag == "section":
		return "section"
	}
	return "unknown"
}

// generateLabel derives a human-readable label: the first heading text,
// else the first few words of the content, else a generic type label.
func (p *Parser) generateLabel(s *goquery.Selection, sectionType string) string {
	heading := findInclusive(s, anyHeadingMatcher).First()
	if text := collapseWhitespace(heading.Text()); text != "" {
		label, cut := truncateRunes(text, 50)
		if cut {
			return label
		}
		return text
	}

	if text := collapseWhitespace(selectionText(s)); text != "" {
		words := strings.Fields(text)
		if len(words) > 7 {
			words = words[:7]
		}
		label := strings.Join(words, " ")
		if len(text) > len(label) {
			label += "..."
		}
		return runeCap(label, 50)
	}

	return capitalize(sectionType) + " Section"
}

// locateMainContent finds the single-section root. Readability is tried
// first on the original markup; its output is used when it extracted a
// meaningful amount of text.
func (p *Parser) locateMainContent(doc *goquery.Document, rawHTML, pageURL string) *goquery.Selection {
	if frag, ok := readabilityContent(rawHTML, pageURL); ok {
		if fragDoc, err := goquery.NewDocumentFromReader(strings.NewReader(frag)); err == nil {
			if body := fragDoc.FindMatcher(bodyMatcher).First(); body.Length() > 0 {
				return body
			}
		}
	}

	if main := doc.FindMatcher(mainMatcher).First(); main.Length() > 0 {
		return main
	}
	if body := doc.FindMatcher(bodyMatcher).First(); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// findInclusive matches m against the selection's own nodes as well as
// their descendants, in document order. Heading-tier selections hold the
// content elements themselves, which plain Find would skip.
func findInclusive(s *goquery.Selection, m cascadia.Selector) *goquery.Selection {
	var nodes []*html.Node
	for _, n := range s.Nodes {
		nodes = append(nodes, m.MatchAll(n)...)
	}
	return s.Slice(0, 0).AddNodes(nodes...)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
