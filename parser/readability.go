package parser

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minReadableLength is the minimum extracted text length (in characters)
// for readability output to be trusted. Below it we assume the algorithm
// failed to locate the main content and let the caller fall back to the
// <main>/<body> heuristic.
const minReadableLength = 50

// readabilityContent runs the Mozilla Readability algorithm over the
// original markup and returns the article fragment when it found a
// meaningful amount of text.
func readabilityContent(rawHTML, pageURL string) (string, bool) {
	parsedURL, err := nurl.Parse(pageURL)
	if err != nil {
		return "", false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability extraction failed", "url", pageURL, "error", err)
		return "", false
	}

	if len(strings.TrimSpace(article.TextContent)) < minReadableLength {
		return "", false
	}
	return article.Content, true
}
