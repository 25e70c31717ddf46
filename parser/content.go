package parser

import (
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/websift/sift/models"
)

// maxLinkDensity is the fraction of anchor text above which a section's
// plain text is considered navigation chrome and dropped.
const maxLinkDensity = 0.6

// extractContent pulls every content facet out of a section view. All
// slices come back non-nil so the wire format stays stable.
func extractContent(s *goquery.Selection, pageURL string) models.Content {
	return models.Content{
		Headings: extractHeadings(s),
		Text:     extractText(s),
		Links:    extractLinks(s, pageURL),
		Images:   extractImages(s, pageURL),
		Lists:    extractLists(s),
		Tables:   extractTables(s),
	}
}

func extractHeadings(s *goquery.Selection) []string {
	headings := []string{}
	findInclusive(s, anyHeadingMatcher).Each(func(_ int, h *goquery.Selection) {
		if text := collapseWhitespace(h.Text()); text != "" {
			headings = append(headings, text)
		}
	})
	return headings
}

// extractText collects the section's visible text, skipping table subtrees
// (tables are extracted structurally). Link-dominated sections return ""
// so menus and footers do not masquerade as prose.
func extractText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		if hasTableAncestor(n) {
			continue
		}
		collectText(n, true, &parts)
	}
	combined := collapseWhitespace(strings.Join(parts, " "))
	if combined == "" {
		return ""
	}

	linkLen := 0
	findInclusive(s, bareAnchorMatcher).Each(func(_ int, a *goquery.Selection) {
		if a.ParentsMatcher(tableMatcher).Length() > 0 {
			return
		}
		linkLen += utf8.RuneCountInString(collapseWhitespace(a.Text()))
	})
	if float64(linkLen)/float64(utf8.RuneCountInString(combined)) > maxLinkDensity {
		return ""
	}
	return combined
}

func extractLinks(s *goquery.Selection, pageURL string) []models.LinkItem {
	links := []models.LinkItem{}
	base, err := url.Parse(pageURL)
	if err != nil {
		return links
	}

	seen := make(map[string]struct{})
	findInclusive(s, anchorMatcher).Each(func(_ int, a *goquery.Selection) {
		href := strings.TrimSpace(a.AttrOr("href", ""))
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") {
			return
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		abs := resolved.String()
		if !strings.HasPrefix(abs, "http://") && !strings.HasPrefix(abs, "https://") {
			return
		}
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}

		text := collapseWhitespace(a.Text())
		if text == "" {
			// Image-only and icon links still carry a destination.
			text = abs
		}
		links = append(links, models.LinkItem{Text: text, Href: abs})
	})
	return links
}

func extractImages(s *goquery.Selection, pageURL string) []models.ImageItem {
	images := []models.ImageItem{}
	base, err := url.Parse(pageURL)
	if err != nil {
		return images
	}

	seen := make(map[string]struct{})
	findInclusive(s, imageMatcher).Each(func(_ int, img *goquery.Selection) {
		src := strings.TrimSpace(img.AttrOr("src", ""))
		if src == "" {
			// Lazy-loaded images stash the real source in data-src.
			src = strings.TrimSpace(img.AttrOr("data-src", ""))
		}
		if src == "" || strings.HasPrefix(src, "data:") {
			return
		}

		resolved, err := base.Parse(src)
		if err != nil {
			return
		}
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}

		images = append(images, models.ImageItem{
			Src: abs,
			Alt: strings.TrimSpace(img.AttrOr("alt", "")),
		})
	})
	return images
}

// extractLists captures each top-level ul/ol as one item sequence. Nested
// lists are not emitted separately; their text folds into the parent item.
func extractLists(s *goquery.Selection) [][]string {
	lists := [][]string{}
	findInclusive(s, listMatcher).Each(func(_ int, lst *goquery.Selection) {
		if lst.ParentsMatcher(listMatcher).Length() > 0 {
			return
		}

		items := []string{}
		lst.ChildrenMatcher(listItemMatcher).Each(func(_ int, li *goquery.Selection) {
			if text := collapseWhitespace(li.Text()); text != "" {
				items = append(items, text)
			}
		})
		if len(items) > 0 {
			lists = append(lists, items)
		}
	})
	return lists
}

// extractTables reads headers from the first thead row and data rows from
// tbody (or the table itself when there is no tbody).
func extractTables(s *goquery.Selection) []models.Table {
	tables := []models.Table{}
	findInclusive(s, tableMatcher).Each(func(_ int, t *goquery.Selection) {
		headers := []string{}
		if headRow := t.FindMatcher(theadMatcher).First().FindMatcher(rowMatcher).First(); headRow.Length() > 0 {
			headRow.FindMatcher(cellMatcher).Each(func(_ int, c *goquery.Selection) {
				headers = append(headers, collapseWhitespace(c.Text()))
			})
		}

		scope := t.FindMatcher(tbodyMatcher).First()
		if scope.Length() == 0 {
			scope = t
		}
		rows := [][]string{}
		scope.FindMatcher(rowMatcher).Each(func(_ int, tr *goquery.Selection) {
			if tr.ParentsMatcher(theadMatcher).Length() > 0 {
				return
			}
			cells := []string{}
			tr.FindMatcher(cellMatcher).Each(func(_ int, c *goquery.Selection) {
				cells = append(cells, collapseWhitespace(c.Text()))
			})
			if len(cells) > 0 {
				rows = append(rows, cells)
			}
		})

		if len(headers) > 0 || len(rows) > 0 {
			tables = append(tables, models.Table{Headers: headers, Rows: rows})
		}
	})
	return tables
}

// collectText appends each trimmed, non-empty text node under n to out.
// With skipTables set, whole <table> subtrees are passed over.
func collectText(n *html.Node, skipTables bool, out *[]string) {
	if n.Type == html.ElementNode && skipTables && n.Data == "table" {
		return
	}
	if n.Type == html.TextNode {
		if t := strings.TrimSpace(n.Data); t != "" {
			*out = append(*out, t)
		}
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, skipTables, out)
	}
}

func hasTableAncestor(n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.Type == html.ElementNode && p.Data == "table" {
			return true
		}
	}
	return false
}

// selectionText joins all text nodes under the selection with single
// spaces, preserving word boundaries between adjacent elements.
func selectionText(s *goquery.Selection) string {
	var parts []string
	for _, n := range s.Nodes {
		collectText(n, false, &parts)
	}
	return strings.Join(parts, " ")
}

// renderNodes serialises every node in the selection. Selections spanning
// sibling elements render each node in order.
func renderNodes(s *goquery.Selection) string {
	var b strings.Builder
	for _, n := range s.Nodes {
		if err := html.Render(&b, n); err != nil {
			continue
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes cuts s to at most max runes, appending an ellipsis marker
// and reporting whether anything was cut.
func truncateRunes(s string, max int) (string, bool) {
	r := []rune(s)
	if len(r) <= max {
		return s, false
	}
	return string(r[:max]) + "...", true
}

// runeCap cuts s to at most max runes with no marker.
func runeCap(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
