package scraper

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/websift/sift/config"
)

// spaMarkerMatcher hits DOM signatures conventionally left by client-side
// rendering frameworks (Next.js, Gatsby, React, Vue). Any hit is a hard
// "render" signal regardless of visible text.
var spaMarkerMatcher = cascadia.MustCompile(
	"#__next, #___gatsby, [data-reactroot], [data-react-helmet], #root, #app, .react-root",
)

var (
	noscriptMatcher    = cascadia.MustCompile("noscript")
	scriptTagMatcher   = cascadia.MustCompile("script")
	strippableMatcher  = cascadia.MustCompile("script, style, noscript")
	contentRoleMatcher = cascadia.MustCompile(`main, article, [role="main"]`)
)

// noscriptWarnings are phrases a <noscript> block uses to tell a human the
// page is blank without JavaScript.
var noscriptWarnings = []string{
	"enable javascript",
	"without javascript",
	"javascript is required",
}

// jsRequiredPhrases are the same warnings when they appear in the page
// text proper rather than inside <noscript>.
var jsRequiredPhrases = []string{
	"javascript is required",
	"enable javascript",
	"javascript disabled",
	"please enable javascript",
	"requires javascript",
	"javascript is not enabled",
}

// bundleKeywords mark script sources produced by JS bundlers. A page whose
// scripts are mostly bundles is usually a client-rendered shell.
var bundleKeywords = []string{
	"bundle", "chunk", "webpack", "main.", "next", "app.", "vendor", "_next", "vite",
}

// Decision is a classification outcome. Reason is a short token for logs,
// not a user-facing message.
type Decision struct {
	Render bool
	Reason string
}

// Classifier decides whether raw markup needs browser rendering. It is a
// pure function of its input: identical markup always yields the identical
// decision. Rule order is load-bearing and must not be reshuffled: cheap
// hard signals short-circuit first, then the threshold heuristics.
type Classifier struct {
	cfg config.ClassifyConfig
}

func NewClassifier(cfg config.ClassifyConfig) *Classifier {
	return &Classifier{cfg: cfg}
}

func (c *Classifier) Classify(rawHTML string) Decision {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		// net/html accepts nearly anything; an error here means the input
		// is not usable at all, so let the browser have a try.
		return Decision{Render: true, Reason: "unparseable-markup"}
	}

	if doc.FindMatcher(spaMarkerMatcher).Length() > 0 {
		return Decision{Render: true, Reason: "spa-marker"}
	}

	var noscript []string
	doc.FindMatcher(noscriptMatcher).Each(func(_ int, s *goquery.Selection) {
		noscript = append(noscript, s.Text())
	})
	noscriptText := strings.ToLower(strings.Join(noscript, " "))
	for _, phrase := range noscriptWarnings {
		if strings.Contains(noscriptText, phrase) {
			return Decision{Render: true, Reason: "noscript-warning"}
		}
	}

	// Full-document text, scripts included: the warning may live in markup
	// a framework emits only for script-less clients.
	fullText := strings.ToLower(doc.Text())
	for _, phrase := range jsRequiredPhrases {
		if strings.Contains(fullText, phrase) {
			return Decision{Render: true, Reason: "js-required-phrase"}
		}
	}

	scripts := doc.FindMatcher(scriptTagMatcher)
	scriptCount := scripts.Length()
	heavyBundles := false
	scripts.Each(func(_ int, s *goquery.Selection) {
		src := strings.ToLower(s.AttrOr("src", ""))
		if src == "" || heavyBundles {
			return
		}
		for _, kw := range bundleKeywords {
			if strings.Contains(src, kw) {
				heavyBundles = true
				return
			}
		}
	})

	doc.FindMatcher(strippableMatcher).Remove()
	contentLength := utf8.RuneCountInString(collapseText(doc.Text()))
	htmlLength := utf8.RuneCountInString(rawHTML)
	if htmlLength < 1 {
		htmlLength = 1
	}
	textRatio := float64(contentLength) / float64(htmlLength)

	switch {
	case contentLength < c.cfg.MinContentLength:
		return Decision{Render: true, Reason: "thin-content"}
	case doc.FindMatcher(contentRoleMatcher).Length() == 0:
		return Decision{Render: true, Reason: "no-content-landmark"}
	case heavyBundles && scriptCount > c.cfg.BundleScriptCount && textRatio < c.cfg.BundleTextRatio:
		return Decision{Render: true, Reason: "bundled-shell"}
	case scriptCount > c.cfg.HighScriptCount && textRatio < c.cfg.HighTextRatio:
		return Decision{Render: true, Reason: "script-heavy"}
	case scriptCount > c.cfg.MaxScriptCount && contentLength < c.cfg.MinSemanticContentLength:
		return Decision{Render: true, Reason: "script-heavy-thin"}
	}

	slog.Debug("static markup judged sufficient",
		"contentLength", contentLength,
		"scriptCount", scriptCount,
		"textRatio", textRatio,
	)
	return Decision{Reason: "static-ok"}
}

func collapseText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
