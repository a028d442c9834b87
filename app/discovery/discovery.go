// Package discovery locates the canonical feed URL advertised by an HTML
// page, either through link tags in the document head or by probing a small
// set of well-known feed paths.
package discovery

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/safety"
)

// Paths probed when a page advertises no feed link. Ordered by how common
// they are across blog platforms.
var wellKnownPaths = []string{
	"/feed",
	"/feed/",
	"/rss",
	"/rss/",
	"/rss.xml",
	"/atom.xml",
	"/feed.xml",
	"/index.xml",
	"/blog/feed",
	"/feeds/posts/default",
}

var feedLinkTypes = map[string]struct{}{
	"application/rss+xml":   {},
	"application/atom+xml":  {},
	"application/feed+json": {},
}

type Discoverer struct {
	client *fetch.Client
	policy safety.Policy
}

func NewDiscoverer(client *fetch.Client, policy safety.Policy) *Discoverer {
	return &Discoverer{
		client: client,
		policy: policy,
	}
}

// Discover returns the feed URL advertised by the page, if any. The boolean
// reports whether a feed was found; the error is reserved for fetch failures
// on the page itself, so "no feed" and "page unreachable" stay distinct.
func (d *Discoverer) Discover(ctx context.Context, pageURL string) (string, bool, error) {
	verdict := d.policy.Validate(pageURL)
	if err := verdict.Err(); err != nil {
		return "", false, err
	}

	data, err := d.client.Direct(ctx, pageURL)
	if err != nil {
		return "", false, err
	}

	return d.DiscoverInDocument(ctx, verdict.URL, data)
}

// DiscoverInDocument runs discovery against an already-fetched page body.
// Link tags win over well-known paths; the probe round only runs when the
// document advertises nothing.
func (d *Discoverer) DiscoverInDocument(ctx context.Context, base *url.URL, data []byte) (string, bool, error) {
	for _, candidate := range FeedLinks(data, base) {
		if d.policy.Validate(candidate).Err() != nil {
			slog.Warn("Discovered feed link rejected by URL policy", "candidate", candidate)
			continue
		}
		slog.Debug("Feed link discovered in document", "page_url", base.String(), "feed_url", candidate)
		return candidate, true, nil
	}

	if feedURL, found := d.probeWellKnownPaths(ctx, base); found {
		return feedURL, true, nil
	}

	return "", false, nil
}

// FeedLinks extracts feed candidate URLs from link tags in document order,
// resolved against base. Links with a rel other than "alternate" come first;
// rel="alternate" (or no rel) links keep their relative order after them.
func FeedLinks(data []byte, base *url.URL) []string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil
	}

	var alternates, others []string
	seen := map[string]struct{}{}

	doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
		linkType := strings.ToLower(strings.TrimSpace(sel.AttrOr("type", "")))
		if _, ok := feedLinkTypes[linkType]; !ok {
			return
		}

		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" {
			return
		}

		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		resolved := base.ResolveReference(ref).String()
		if _, dup := seen[resolved]; dup {
			return
		}
		seen[resolved] = struct{}{}

		rel := strings.ToLower(strings.TrimSpace(sel.AttrOr("rel", "alternate")))
		if rel == "alternate" || rel == "" {
			alternates = append(alternates, resolved)
		} else {
			others = append(others, resolved)
		}
	})

	return append(others, alternates...)
}

func (d *Discoverer) probeWellKnownPaths(ctx context.Context, base *url.URL) (string, bool) {
	root := &url.URL{Scheme: base.Scheme, Host: base.Host}

	for _, path := range wellKnownPaths {
		candidate := root.JoinPath(path).String()
		if d.policy.Validate(candidate).Err() != nil {
			continue
		}

		contentType, prefix, err := d.client.Probe(ctx, candidate)
		if err != nil {
			continue
		}
		if looksLikeFeed(contentType, prefix) {
			slog.Debug("Feed found at well-known path", "feed_url", candidate)
			return candidate, true
		}
	}

	return "", false
}

// looksLikeFeed sniffs a probe response for feed-shaped content. Either the
// content type or the first bytes of the body can qualify it.
func looksLikeFeed(contentType string, prefix []byte) bool {
	ct := strings.ToLower(contentType)
	for _, marker := range []string{"application/rss+xml", "application/atom+xml", "application/xml", "text/xml"} {
		if strings.Contains(ct, marker) {
			return true
		}
	}

	body := strings.TrimSpace(string(prefix))
	for _, marker := range []string{"<?xml", "<rss", "<feed"} {
		if strings.HasPrefix(body, marker) {
			return true
		}
	}
	return false
}
