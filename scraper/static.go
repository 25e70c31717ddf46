package scraper

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	tls "github.com/refraction-networking/utls"

	"github.com/websift/sift/config"
	"github.com/websift/sift/models"
)

// maxStaticBody caps the response body read to prevent unbounded memory use.
const maxStaticBody = 10 << 20

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to
// http/1.1 only. Computed once at init time and reused for every
// connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		// Should never happen with a valid utls version; connections then
		// fall back to whatever ApplyPreset does with the zero spec.
		return
	}
	// Replace h2 with http/1.1 only in the ALPN extension so the server
	// never negotiates HTTP/2, which Go's http.Transport cannot handle
	// over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// fetchedPage is a successful static GET: the final markup plus the URL it
// ended up at after redirects.
type fetchedPage struct {
	html     string
	finalURL string
}

// staticFetcher performs the single plain-HTTP fetch that precedes any
// browser work. The TLS fingerprint matters: several CDNs serve degraded
// or blocked markup to a stock Go handshake.
type staticFetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func newStaticFetcher(cfg config.FetchConfig, proxy string) *staticFetcher {
	transport := &http.Transport{
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host, _, _ := net.SplitHostPort(addr)
			tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
			if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
				conn.Close()
				return nil, fmt.Errorf("apply tls spec: %w", err)
			}
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				conn.Close()
				return nil, err
			}
			return tlsConn, nil
		},
		ForceAttemptHTTP2: false,
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil &&
			(proxyURL.Scheme == "http" || proxyURL.Scheme == "https") {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	return &staticFetcher{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout:   cfg.StaticTimeout,
		userAgent: cfg.UserAgent,
	}
}

// Fetch performs the GET. The failure modes matter to the fallback
// ladder: a timeout forces rendering (the browser may still get through);
// an HTTP error status or non-HTML content type is terminal (rendering
// will not fix a 404 or a PDF); any other transport error neither forces
// nor forbids rendering.
func (f *staticFetcher) Fetch(ctx context.Context, pageURL string) (*fetchedPage, bool, []models.ScrapeError) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, false, []models.ScrapeError{
			models.Errf(models.PhaseStatic, "HTTP request error: %v", err),
		}
	}
	// Browser-like headers; without them many sites serve degraded markup.
	// Accept-Encoding is left to the transport so gzip stays transparent.
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, true, []models.ScrapeError{f.timeoutError()}
		}
		return nil, false, []models.ScrapeError{
			models.Errf(models.PhaseStatic, "HTTP request error: %v", err),
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, false, []models.ScrapeError{
			models.Errf(models.PhaseStatic, "HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
		}
	}

	// A PDF or JSON endpoint is a terminal miss; rendering will not turn
	// it into markup.
	if ct := resp.Header.Get("Content-Type"); !isHTMLContentType(ct) {
		if ct == "" {
			ct = "unknown"
		}
		return nil, false, []models.ScrapeError{
			models.Errf(models.PhaseStatic, "Unsupported content type: %s", ct),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStaticBody))
	if err != nil {
		if isTimeout(err) {
			return nil, true, []models.ScrapeError{f.timeoutError()}
		}
		return nil, false, []models.ScrapeError{
			models.Errf(models.PhaseStatic, "HTTP request error: %v", err),
		}
	}

	return &fetchedPage{
		html:     string(body),
		finalURL: resp.Request.URL.String(),
	}, false, nil
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}

func (f *staticFetcher) timeoutError() models.ScrapeError {
	return models.Errf(models.PhaseStatic, "Request timed out after %gs", f.timeout.Seconds())
}
