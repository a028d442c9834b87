// Package fetch retrieves raw bytes for a URL. It offers a direct HTTP tier
// and a rendering-proxy tier for sites that block bot traffic or need JS
// rendering. Both tiers are stateless; retry and fallback policy belongs to
// the caller.
package fetch

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Browser-like UA because a number of sites serve bots an empty shell
// or a 403.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	directTimeout = 15 * time.Second
	proxyTimeout  = 30 * time.Second
	probeTimeout  = 5 * time.Second

	// How much of a body a probe reads to sniff the content format.
	probePrefixSize = 500
)

// ErrProxyNotConfigured is reported lazily, only when the proxy tier is
// actually invoked without an API key. Tiers that do not need the key stay
// usable without it.
var ErrProxyNotConfigured = errors.New("rendering proxy API key is not configured")

// Error is a typed fetch failure carrying the requested URL and, when the
// server answered, the HTTP status.
type Error struct {
	URL    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Client struct {
	httpClient *http.Client
	userAgent  string

	// ProxyBaseUrl points at the rendering proxy endpoint. Exposed so tests
	// can aim the proxy tier at a local server.
	ProxyBaseUrl string
	proxyAPIKey  string
}

func NewClient(userAgent, proxyBaseUrl, proxyAPIKey string) *Client {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		httpClient:   &http.Client{},
		userAgent:    userAgent,
		ProxyBaseUrl: proxyBaseUrl,
		proxyAPIKey:  proxyAPIKey,
	}
}

// Direct issues a plain GET against the target URL.
func (c *Client) Direct(ctx context.Context, rawURL string) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, directTimeout)
	defer cancel()

	return c.get(timeoutCtx, rawURL, rawURL)
}

// ViaProxy fetches the target URL through the rendering proxy. The proxy
// renders JS and retries from residential IPs, so it gets a larger timeout
// budget than the direct tier.
func (c *Client) ViaProxy(ctx context.Context, rawURL string) ([]byte, error) {
	if c.proxyAPIKey == "" {
		return nil, ErrProxyNotConfigured
	}

	proxyURL, err := url.Parse(c.ProxyBaseUrl)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy base URL: %w", err)
	}

	q := proxyURL.Query()
	q.Set("api_key", c.proxyAPIKey)
	q.Set("url", rawURL)
	q.Set("render_js", "true")
	proxyURL.RawQuery = q.Encode()

	timeoutCtx, cancel := context.WithTimeout(ctx, proxyTimeout)
	defer cancel()

	return c.get(timeoutCtx, proxyURL.String(), rawURL)
}

// Probe issues a lightweight existence check: HEAD first, falling back to a
// ranged GET of the first ~500 bytes when HEAD is rejected. Returns the
// response content type and the body prefix (empty for a successful HEAD).
func (c *Client) Probe(ctx context.Context, rawURL string) (contentType string, prefix []byte, err error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodHead, rawURL, nil)
	if err != nil {
		return "", nil, &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err == nil {
		defer resp.Body.Close()
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.Header.Get("Content-Type"), nil, nil
		}
		// Fall through to a ranged GET; some servers reject HEAD outright.
	}

	req, err = http.NewRequestWithContext(timeoutCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", nil, &Error{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Range", fmt.Sprintf("bytes=0-%d", probePrefixSize-1))

	resp, err = c.httpClient.Do(req)
	if err != nil {
		return "", nil, &Error{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", nil, &Error{URL: rawURL, Status: resp.StatusCode}
	}

	buf := make([]byte, probePrefixSize)
	n, _ := io.ReadFull(resp.Body, buf)
	return resp.Header.Get("Content-Type"), buf[:n], nil
}

func (c *Client) get(ctx context.Context, requestURL, targetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, &Error{URL: targetURL, Err: err}
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/html, */*")
	req.Header.Set("Accept-Encoding", "gzip")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{URL: targetURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{URL: targetURL, Status: resp.StatusCode}
	}

	body := resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &Error{URL: targetURL, Err: fmt.Errorf("gzip decode: %w", err)}
		}
		defer gz.Close()
		body = gz
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, &Error{URL: targetURL, Err: err}
	}

	return data, nil
}
