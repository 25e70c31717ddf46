package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// maxURLLength bounds accepted URLs. Longer values are almost always
// garbage input, and some origin servers mishandle them.
const maxURLLength = 2048

// ValidateURL checks that raw is a usable scrape target and returns it
// trimmed. The error text is user-facing: it is surfaced verbatim as the
// result's validation error.
func ValidateURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", errors.New("URL is required")
	}
	if utf8.RuneCountInString(trimmed) > maxURLLength {
		return "", fmt.Errorf("URL exceeds maximum length of %d characters", maxURLLength)
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		return "", errors.New("Only http:// and https:// URLs are supported")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("Invalid URL: %v", err)
	}
	if u.Host == "" {
		return "", errors.New("Invalid URL format")
	}
	return trimmed, nil
}
