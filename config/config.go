package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	Render    RenderConfig
	Fetch     FetchConfig
	Classify  ClassifyConfig
	Parse     ParseConfig
	Interact  InteractConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 10

	// DefaultProxy is the proxy URL for all requests, browser and HTTP.
	DefaultProxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// BlockedResourceTypes lists resource types the renderer refuses to load.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string

	// BlockAds additionally blocks requests to known ad/tracking domains.
	BlockAds bool // default: false
}

// RenderConfig controls per-request dynamic rendering behavior.
type RenderConfig struct {
	// PageLoadTimeout bounds navigation. Exceeding it is recorded as a
	// dynamic-phase error but processing continues with the reached state.
	PageLoadTimeout time.Duration // default: 30s

	// QuiescenceTimeout bounds the best-effort wait for the page to go quiet
	// after load.
	QuiescenceTimeout time.Duration // default: 5s

	// SelectorTimeout bounds each best-effort wait for a primary-content
	// selector.
	SelectorTimeout time.Duration // default: 2s

	// SettleDelay is the fixed pause before capture and interactions.
	SettleDelay time.Duration // default: 1s

	// ViewportWidth / ViewportHeight fix the browser viewport.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080
}

// FetchConfig controls the static fetcher and the robots gate.
type FetchConfig struct {
	// StaticTimeout is the client-side deadline for the single static GET.
	StaticTimeout time.Duration // default: 10s

	// RobotsTimeout is the independent, shorter deadline for robots.txt.
	RobotsTimeout time.Duration // default: 5s

	// RobotsUserAgent is the token matched against robots.txt groups.
	RobotsUserAgent string // default: "*"

	// RobotsCacheTTL bounds how long fetched robots.txt rules are reused
	// before a refetch.
	RobotsCacheTTL time.Duration // default: 30m

	// UserAgent is sent on static fetches and set on rendered pages.
	UserAgent string // default: Chrome desktop UA
}

// ClassifyConfig holds the render-necessity thresholds. The classifier's
// rule ordering is fixed; only the numbers are tunable.
type ClassifyConfig struct {
	// MinContentLength: visible text below this always requires rendering.
	MinContentLength int // default: 500

	// MinSemanticContentLength: required visible text when the script count
	// exceeds MaxScriptCount.
	MinSemanticContentLength int // default: 2000

	// MaxScriptCount: script tags above this demand MinSemanticContentLength.
	MaxScriptCount int // default: 20

	// BundleScriptCount / BundleTextRatio: bundler-named scripts plus more
	// than BundleScriptCount scripts and a text ratio below BundleTextRatio
	// indicate a client-rendered shell.
	BundleScriptCount int     // default: 10
	BundleTextRatio   float64 // default: 0.03

	// HighScriptCount / HighTextRatio: very script-heavy pages with little
	// text relative to markup size.
	HighScriptCount int     // default: 30
	HighTextRatio   float64 // default: 0.05
}

// ParseConfig controls content parsing limits.
type ParseConfig struct {
	// MaxRawHTMLLength bounds the raw markup snippet stored per section.
	MaxRawHTMLLength int // default: 5000
}

// InteractConfig bounds the interaction state machine.
type InteractConfig struct {
	// MaxDepth is the shared iteration bound for load-more rounds, scroll
	// rounds, and pagination hops.
	MaxDepth int // default: 3

	// MaxTabClicks caps clicks per tab selector pattern.
	MaxTabClicks int // default: 5

	// TabClickDelay is the pause between tab clicks.
	TabClickDelay time.Duration // default: 500ms

	// LoadMoreWait is the pause after a load-more click before recounting.
	LoadMoreWait time.Duration // default: 2s

	// ScrollWait is the pause after each scroll to let content load.
	ScrollWait time.Duration // default: 2s

	// PaginationWait is the pause after a successful pagination hop.
	PaginationWait time.Duration // default: 1s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-client rate limiting.
type RateLimitConfig struct {
	// Enabled toggles rate limiting.
	Enabled bool // default: false

	// RequestsPerSecond is the sustained rate per client.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per client.
	Burst int // default: 10
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

const chromeUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("SIFT_HOST", "0.0.0.0"),
			Port: envIntOr("SIFT_PORT", 8080),
			Mode: envOr("SIFT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("SIFT_HEADLESS", true),
			MaxPages:     envIntOr("SIFT_MAX_PAGES", 10),
			DefaultProxy: os.Getenv("SIFT_PROXY"),
			NoSandbox:    envBoolOr("SIFT_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("SIFT_BROWSER_BIN"),
			BlockedResourceTypes: envSliceOr("SIFT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
			BlockAds: envBoolOr("SIFT_BLOCK_ADS", false),
		},
		Render: RenderConfig{
			PageLoadTimeout:   envDurationOr("SIFT_PAGE_LOAD_TIMEOUT", 30*time.Second),
			QuiescenceTimeout: envDurationOr("SIFT_QUIESCENCE_TIMEOUT", 5*time.Second),
			SelectorTimeout:   envDurationOr("SIFT_SELECTOR_TIMEOUT", 2*time.Second),
			SettleDelay:       envDurationOr("SIFT_SETTLE_DELAY", time.Second),
			ViewportWidth:     envIntOr("SIFT_VIEWPORT_WIDTH", 1920),
			ViewportHeight:    envIntOr("SIFT_VIEWPORT_HEIGHT", 1080),
		},
		Fetch: FetchConfig{
			StaticTimeout:   envDurationOr("SIFT_STATIC_TIMEOUT", 10*time.Second),
			RobotsTimeout:   envDurationOr("SIFT_ROBOTS_TIMEOUT", 5*time.Second),
			RobotsUserAgent: envOr("SIFT_ROBOTS_UA", "*"),
			RobotsCacheTTL:  envDurationOr("SIFT_ROBOTS_CACHE_TTL", 30*time.Minute),
			UserAgent:       envOr("SIFT_USER_AGENT", chromeUA),
		},
		Classify: ClassifyConfig{
			MinContentLength:         envIntOr("SIFT_MIN_CONTENT_LENGTH", 500),
			MinSemanticContentLength: envIntOr("SIFT_MIN_SEMANTIC_CONTENT_LENGTH", 2000),
			MaxScriptCount:           envIntOr("SIFT_MAX_SCRIPT_COUNT", 20),
			BundleScriptCount:        envIntOr("SIFT_BUNDLE_SCRIPT_COUNT", 10),
			BundleTextRatio:          envFloatOr("SIFT_BUNDLE_TEXT_RATIO", 0.03),
			HighScriptCount:          envIntOr("SIFT_HIGH_SCRIPT_COUNT", 30),
			HighTextRatio:            envFloatOr("SIFT_HIGH_TEXT_RATIO", 0.05),
		},
		Parse: ParseConfig{
			MaxRawHTMLLength: envIntOr("SIFT_MAX_RAW_HTML", 5000),
		},
		Interact: InteractConfig{
			MaxDepth:       envIntOr("SIFT_MAX_INTERACTION_DEPTH", 3),
			MaxTabClicks:   envIntOr("SIFT_MAX_TAB_CLICKS", 5),
			TabClickDelay:  envDurationOr("SIFT_TAB_CLICK_DELAY", 500*time.Millisecond),
			LoadMoreWait:   envDurationOr("SIFT_LOAD_MORE_WAIT", 2*time.Second),
			ScrollWait:     envDurationOr("SIFT_SCROLL_WAIT", 2*time.Second),
			PaginationWait: envDurationOr("SIFT_PAGINATION_WAIT", time.Second),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("SIFT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("SIFT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			Enabled:           envBoolOr("SIFT_RATE_LIMIT_ENABLED", false),
			RequestsPerSecond: envFloatOr("SIFT_RATE_RPS", 5.0),
			Burst:             envIntOr("SIFT_RATE_BURST", 10),
		},
		Log: LogConfig{
			Level:  envOr("SIFT_LOG_LEVEL", "info"),
			Format: envOr("SIFT_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
