package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/websift/sift/config"
)

// maxRobotsBody caps how much of a robots.txt is read. RFC 9309 requires
// processing at least 500 KiB; anything beyond that is noise.
const maxRobotsBody = 512 << 10

// robotsGate fetches and interprets robots.txt for target URLs. Policy is
// fail-open: only an explicit matching Disallow blocks a scrape; absent,
// unreachable, or malformed robots infrastructure never does.
//
// Parsed rules are cached per origin so repeated scrapes of the same site
// do not refetch robots.txt on every request.
type robotsGate struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
	cache     *robotsCache
}

func newRobotsGate(cfg config.FetchConfig) *robotsGate {
	ua := cfg.RobotsUserAgent
	if ua == "" {
		ua = "*"
	}
	ttl := cfg.RobotsCacheTTL
	if ttl == 0 {
		ttl = 30 * time.Minute
	}
	return &robotsGate{
		client:    &http.Client{},
		timeout:   cfg.RobotsTimeout,
		userAgent: ua,
		cache:     newRobotsCache(ttl, robotsCacheSize),
	}
}

// Check reports whether pageURL may be scraped, with a human-readable
// reason. The reason strings are stable; callers surface them directly.
func (g *robotsGate) Check(ctx context.Context, pageURL string) (bool, string) {
	target, err := url.Parse(pageURL)
	if err != nil {
		return true, fmt.Sprintf("Error parsing robots.txt URL: %v - proceeding anyway", err)
	}
	origin := target.Scheme + "://" + target.Host

	if e, ok := g.cache.get(origin); ok {
		return g.evaluate(e, target)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return true, fmt.Sprintf("Error parsing robots.txt URL: %v - proceeding anyway", err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return true, "Robots.txt fetch timeout - proceeding anyway"
		}
		return true, fmt.Sprintf("Error checking robots.txt: %v - proceeding anyway", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		g.cache.put(origin, nil, false)
		return true, "No robots.txt found - scraping allowed"
	}
	if resp.StatusCode != http.StatusOK {
		return true, fmt.Sprintf("Could not fetch robots.txt (status %d) - proceeding anyway", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBody))
	if err != nil {
		if isTimeout(err) {
			return true, "Robots.txt fetch timeout - proceeding anyway"
		}
		return true, fmt.Sprintf("Error checking robots.txt: %v - proceeding anyway", err)
	}

	rules := parseRobots(string(body))
	g.cache.put(origin, rules, true)
	return g.evaluate(&robotsEntry{rules: rules, found: true}, target)
}

// evaluate turns a cache entry into the allow decision for one target URL.
func (g *robotsGate) evaluate(e *robotsEntry, target *url.URL) (bool, string) {
	if !e.found {
		return true, "No robots.txt found - scraping allowed"
	}
	if e.rules.Allowed(g.userAgent, requestPath(target)) {
		return true, "Robots.txt allows scraping"
	}
	return false, "URL disallowed by robots.txt"
}

// requestPath is the path-plus-query form robots rules match against.
func requestPath(u *url.URL) string {
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout())
}

// robotsRule is one Allow or Disallow line. Path expressions support '*'
// wildcards and a trailing '$' end anchor.
type robotsRule struct {
	allow bool
	path  string
}

// robotsRules holds parsed rule groups keyed by lowercased user-agent
// token. Groups naming several agents are duplicated per token.
type robotsRules struct {
	groups map[string][]robotsRule
}

// parseRobots reads the User-agent / Allow / Disallow grammar. Unknown
// directives are skipped, as are rules preceding any User-agent line.
// The parser never fails; unparseable lines are ignored.
func parseRobots(body string) *robotsRules {
	rules := &robotsRules{groups: make(map[string][]robotsRule)}
	var agents []string
	sawRule := false

	for _, line := range strings.Split(body, "\n") {
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)

		switch name {
		case "user-agent":
			// A User-agent line after rules starts a new group.
			if sawRule {
				agents = agents[:0]
				sawRule = false
			}
			if value != "" {
				agents = append(agents, strings.ToLower(value))
			}
		case "allow", "disallow":
			if len(agents) == 0 {
				continue
			}
			sawRule = true
			if value == "" {
				// An empty path matches nothing ("Disallow:" allows all).
				continue
			}
			rule := robotsRule{allow: name == "allow", path: value}
			for _, agent := range agents {
				rules.groups[agent] = append(rules.groups[agent], rule)
			}
		}
	}
	return rules
}

// Allowed evaluates path against the group for userAgent, falling back to
// the wildcard group. The most specific (longest) matching rule wins; on
// equal lengths Allow wins.
func (r *robotsRules) Allowed(userAgent, path string) bool {
	bestLen := -1
	bestAllow := true
	for _, rule := range r.rulesFor(userAgent) {
		if !matchRobotsPath(rule.path, path) {
			continue
		}
		switch {
		case len(rule.path) > bestLen:
			bestLen = len(rule.path)
			bestAllow = rule.allow
		case len(rule.path) == bestLen && rule.allow:
			bestAllow = true
		}
	}
	return bestAllow
}

func (r *robotsRules) rulesFor(userAgent string) []robotsRule {
	ua := strings.ToLower(strings.TrimSpace(userAgent))
	if ua == "" {
		ua = "*"
	}
	best := ""
	for token := range r.groups {
		if token == "*" || !strings.HasPrefix(ua, token) {
			continue
		}
		if len(token) > len(best) {
			best = token
		}
	}
	if best != "" {
		return r.groups[best]
	}
	return r.groups["*"]
}

// matchRobotsPath reports whether path matches pattern from its start.
// '*' matches any run of characters; a trailing '$' anchors the pattern to
// the end of the path.
func matchRobotsPath(pattern, path string) bool {
	anchored := strings.HasSuffix(pattern, "$")
	if anchored {
		pattern = pattern[:len(pattern)-1]
	}

	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		if anchored {
			return path == pattern
		}
		return strings.HasPrefix(path, pattern)
	}

	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	path = path[len(parts[0]):]

	for _, part := range parts[1 : len(parts)-1] {
		idx := strings.Index(path, part)
		if idx < 0 {
			return false
		}
		path = path[idx+len(part):]
	}

	last := parts[len(parts)-1]
	if anchored {
		return strings.HasSuffix(path, last)
	}
	return strings.Contains(path, last)
}
