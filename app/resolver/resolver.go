// Package resolver turns an arbitrary page URL into a feed: an existing one
// when the page advertises it, a synthesized one otherwise.
package resolver

import (
	"context"
	"log/slog"
	"net/url"

	"github.com/url2feed/url2feed/app/discovery"
	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/safety"
	"github.com/url2feed/url2feed/app/scrape"
)

const (
	// ModeDiscovered means the page advertises a real feed and Resolution
	// points at it.
	ModeDiscovered = "discovered"
	// ModeGenerated means the feed was synthesized from scraped content.
	ModeGenerated = "generated"
)

// Resolution is the outcome of resolving one page URL.
type Resolution struct {
	Mode    string             `json:"mode"`
	URL     string             `json:"url"`
	FeedURL string             `json:"feed_url,omitempty"`
	Feed    *feed.ResolvedFeed `json:"feed"`
	RSS     string             `json:"rss,omitempty"`
}

type Options struct {
	// BypassCache forces fresh fetches for any feed resolved downstream.
	BypassCache bool
}

type Resolver struct {
	client      *fetch.Client
	policy      safety.Policy
	discoverer  *discovery.Discoverer
	feeds       *feed.Service
	scraper     *scrape.Scraper
	parser      *feed.Parser
	synthesizer *feed.Synthesizer
}

func NewResolver(client *fetch.Client, policy safety.Policy, discoverer *discovery.Discoverer, feeds *feed.Service, scraper *scrape.Scraper) *Resolver {
	return &Resolver{
		client:      client,
		policy:      policy,
		discoverer:  discoverer,
		feeds:       feeds,
		scraper:     scraper,
		parser:      feed.NewParser(),
		synthesizer: feed.NewSynthesizer(),
	}
}

// Resolve runs the full pipeline: validate, fetch the page once, look for an
// advertised feed, and fall back to scraping plus synthesis. A discovered
// feed that fails to fetch or parse is deliberately not fatal; the page is
// still standing, so synthesis gets its turn.
func (r *Resolver) Resolve(ctx context.Context, pageURL string, opts Options) (*Resolution, error) {
	verdict := r.policy.Validate(pageURL)
	if err := verdict.Err(); err != nil {
		return nil, err
	}

	data, err := r.client.Direct(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	// The page itself may already be a feed document.
	if resolved, ok := r.parseAsFeed(data, pageURL); ok {
		return &Resolution{
			Mode:    ModeDiscovered,
			URL:     pageURL,
			FeedURL: pageURL,
			Feed:    resolved,
		}, nil
	}

	if resolution, ok := r.resolveDiscovered(ctx, pageURL, verdict.URL, data, opts); ok {
		return resolution, nil
	}

	return r.resolveGenerated(verdict.URL, pageURL, data)
}

func (r *Resolver) resolveDiscovered(ctx context.Context, pageURL string, base *url.URL, data []byte, opts Options) (*Resolution, bool) {
	feedURL, found, err := r.discoverer.DiscoverInDocument(ctx, base, data)
	if err != nil || !found {
		return nil, false
	}

	resolved, err := r.feeds.FetchAndParse(ctx, feedURL, feed.FetchOptions{BypassCache: opts.BypassCache})
	if err != nil {
		slog.Warn("Discovered feed could not be resolved, falling back to synthesis",
			"page_url", pageURL, "feed_url", feedURL, "error", err)
		return nil, false
	}

	return &Resolution{
		Mode:    ModeDiscovered,
		URL:     pageURL,
		FeedURL: feedURL,
		Feed:    resolved,
	}, true
}

func (r *Resolver) resolveGenerated(base *url.URL, pageURL string, data []byte) (*Resolution, error) {
	page, err := r.scraper.ScrapeDocument(base, data)
	if err != nil {
		return nil, err
	}

	resolved, rss := r.synthesizer.Run(pageURL, page)
	slog.Info("Feed synthesized from page content", "page_url", pageURL, "items", len(resolved.Items))

	return &Resolution{
		Mode: ModeGenerated,
		URL:  pageURL,
		Feed: resolved,
		RSS:  rss,
	}, nil
}

func (r *Resolver) parseAsFeed(data []byte, sourceURL string) (*feed.ResolvedFeed, bool) {
	resolved, err := r.parser.Run(data, sourceURL)
	if err != nil {
		return nil, false
	}
	return resolved, true
}
