package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/url2feed/url2feed/app/discovery"
	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/fetch"
)

// SmartFetch resolves a source URL into feed items through escalating fetch
// tiers: direct as feed, direct as HTML with embedded feed links, then the
// same two steps through the rendering proxy. The first tier that yields
// items wins; later tiers only run when the cheaper ones come up empty.
func (r *Resolver) SmartFetch(ctx context.Context, sourceURL string) (*feed.ResolvedFeed, error) {
	if err := r.policy.Validate(sourceURL).Err(); err != nil {
		return nil, err
	}

	data, directErr := r.client.Direct(ctx, sourceURL)
	if directErr == nil {
		if resolved, ok := r.parseAsFeed(data, sourceURL); ok && len(resolved.Items) > 0 {
			slog.Debug("Source resolved directly as feed", "source_url", sourceURL, "items", len(resolved.Items))
			return resolved, nil
		}

		if resolved, ok := r.fetchEmbeddedFeeds(ctx, sourceURL, data); ok {
			return resolved, nil
		}
	} else {
		slog.Debug("Direct fetch failed, escalating to proxy", "source_url", sourceURL, "error", directErr)
	}

	data, proxyErr := r.client.ViaProxy(ctx, sourceURL)
	if proxyErr != nil {
		if errors.Is(proxyErr, fetch.ErrProxyNotConfigured) {
			if directErr != nil {
				return nil, directErr
			}
			return nil, fmt.Errorf("no feed items found for %s", sourceURL)
		}
		return nil, proxyErr
	}

	if resolved, ok := r.fetchEmbeddedFeeds(ctx, sourceURL, data); ok {
		return resolved, nil
	}

	if resolved, ok := r.parseAsFeed(data, sourceURL); ok && len(resolved.Items) > 0 {
		slog.Debug("Source resolved as feed through proxy", "source_url", sourceURL, "items", len(resolved.Items))
		return resolved, nil
	}

	return nil, fmt.Errorf("no feed items found for %s", sourceURL)
}

// fetchEmbeddedFeeds parses the body as HTML, collects advertised feed
// links, and resolves them in document order until one yields items.
func (r *Resolver) fetchEmbeddedFeeds(ctx context.Context, sourceURL string, data []byte) (*feed.ResolvedFeed, bool) {
	verdict := r.policy.Validate(sourceURL)
	if verdict.Err() != nil {
		return nil, false
	}

	for _, candidate := range discovery.FeedLinks(data, verdict.URL) {
		resolved, err := r.feeds.FetchAndParse(ctx, candidate, feed.FetchOptions{})
		if err != nil {
			slog.Debug("Embedded feed link failed", "source_url", sourceURL, "feed_url", candidate, "error", err)
			continue
		}
		if len(resolved.Items) > 0 {
			slog.Debug("Source resolved via embedded feed link", "source_url", sourceURL, "feed_url", candidate, "items", len(resolved.Items))
			return resolved, true
		}
	}

	return nil, false
}
