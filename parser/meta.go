package parser

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/websift/sift/models"
)

// minDetectableText is the minimum collapsed text length before statistical
// language detection is attempted.
const minDetectableText = 20

// ExtractMeta reads page-level metadata from raw markup. Title falls back
// from <title> to og:title to "Untitled"; description from the description
// meta to og:description; language from the html lang attribute, then
// detection over the visible text, then "en".
func (p *Parser) ExtractMeta(rawHTML, pageURL, strategy string) models.Meta {
	meta := models.Meta{Title: "Untitled", Language: "en", Strategy: strategy}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return meta
	}

	if title := collapseWhitespace(doc.FindMatcher(titleMatcher).First().Text()); title != "" {
		meta.Title = title
	} else if og := strings.TrimSpace(doc.FindMatcher(ogTitleMatcher).First().AttrOr("content", "")); og != "" {
		meta.Title = og
	}

	if desc := strings.TrimSpace(doc.FindMatcher(descriptionMatcher).First().AttrOr("content", "")); desc != "" {
		meta.Description = desc
	} else if og := strings.TrimSpace(doc.FindMatcher(ogDescMatcher).First().AttrOr("content", "")); og != "" {
		meta.Description = og
	}

	meta.Canonical = strings.TrimSpace(doc.FindMatcher(canonicalMatcher).First().AttrOr("href", ""))
	meta.Language = p.pageLanguage(doc)
	return meta
}

// pageLanguage prefers the declared lang attribute's primary subtag. Pages
// that declare nothing get their visible text run through the language
// detector; short or inconclusive texts default to English.
func (p *Parser) pageLanguage(doc *goquery.Document) string {
	if lang, ok := doc.FindMatcher(htmlMatcher).First().Attr("lang"); ok {
		if primary := strings.ToLower(strings.TrimSpace(strings.SplitN(lang, "-", 2)[0])); primary != "" {
			return primary
		}
	}

	doc.FindMatcher(scriptStyleMatcher).Remove()
	text := collapseWhitespace(doc.Text())
	if utf8.RuneCountInString(text) < minDetectableText {
		return "en"
	}
	// Detection cost grows with input; a prefix is plenty.
	if lang, ok := p.langDetector.DetectLanguageOf(runeCap(text, 1000)); ok {
		return strings.ToLower(lang.IsoCode639_1().String())
	}
	return "en"
}
