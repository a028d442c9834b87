package feed

import (
	"context"
	"log/slog"

	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/safety"
)

type FetchOptions struct {
	// BypassCache forces a fresh fetch even when a live cache entry exists.
	BypassCache bool
}

// Service ties together fetching, parsing and caching of syndication feeds.
type Service struct {
	client *fetch.Client
	parser *Parser
	cache  *Cache
	policy safety.Policy
}

func NewService(client *fetch.Client, parser *Parser, cache *Cache, policy safety.Policy) *Service {
	return &Service{
		client: client,
		parser: parser,
		cache:  cache,
		policy: policy,
	}
}

func (s *Service) Cache() *Cache {
	return s.cache
}

// FetchAndParse resolves a feed URL into a ResolvedFeed, serving from cache
// when possible. Nothing is cached on failure.
func (s *Service) FetchAndParse(ctx context.Context, feedURL string, opts FetchOptions) (*ResolvedFeed, error) {
	if !opts.BypassCache {
		if cached, found := s.cache.Get(feedURL); found {
			slog.Debug("Feed served from cache", "feed_url", feedURL, "items", len(cached.Items))
			return cached, nil
		}
	}

	if err := s.policy.Validate(feedURL).Err(); err != nil {
		return nil, err
	}

	data, err := s.client.Direct(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	resolved, err := s.parser.Run(data, feedURL)
	if err != nil {
		return nil, err
	}

	s.cache.Set(feedURL, resolved)
	slog.Debug("Feed fetched and cached", "feed_url", feedURL, "items", len(resolved.Items))

	return resolved, nil
}
