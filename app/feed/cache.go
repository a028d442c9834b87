package feed

import (
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

const (
	DefaultCacheTTL      = time.Hour
	DefaultSweepInterval = 10 * time.Minute
)

type CacheStats struct {
	Keys    int     `json:"keys"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hitRate"`
}

// Cache stores parsed feeds keyed by feed URL (verbatim, case-sensitive).
// Entries expire after the configured TTL; a background sweep evicts expired
// entries on a fixed interval, and an expired read counts as a miss either
// way. Callers always receive deep copies, so cached entries are never
// mutated from outside.
type Cache struct {
	store  *gocache.Cache
	hits   atomic.Uint64
	misses atomic.Uint64
}

func NewCache(ttl, sweepInterval time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if sweepInterval <= 0 {
		sweepInterval = DefaultSweepInterval
	}
	return &Cache{
		store: gocache.New(ttl, sweepInterval),
	}
}

// Get returns a copy of the cached feed annotated with hit metadata.
func (c *Cache) Get(feedURL string) (*ResolvedFeed, bool) {
	value, found := c.store.Get(feedURL)
	if !found {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)

	cached := value.(*ResolvedFeed)
	copied := copyFeed(cached)
	copied.FromCache = true
	return copied, true
}

// Set stores a snapshot of the feed. The cache owns its copy exclusively;
// later mutations of the argument do not leak in.
func (c *Cache) Set(feedURL string, feed *ResolvedFeed) {
	c.store.SetDefault(feedURL, copyFeed(feed))
}

// Contains reports cache membership without touching hit/miss counters.
func (c *Cache) Contains(feedURL string) bool {
	_, found := c.store.Get(feedURL)
	return found
}

// RemainingTTL reports how long the entry for feedURL stays valid.
func (c *Cache) RemainingTTL(feedURL string) (time.Duration, bool) {
	_, expiration, found := c.store.GetWithExpiration(feedURL)
	if !found {
		return 0, false
	}
	if expiration.IsZero() {
		return 0, true
	}
	remaining := time.Until(expiration)
	if remaining < 0 {
		return 0, false
	}
	return remaining, true
}

func (c *Cache) Invalidate(feedURL string) {
	c.store.Delete(feedURL)
}

func (c *Cache) Flush() {
	c.store.Flush()
}

func (c *Cache) Stats() CacheStats {
	hits := c.hits.Load()
	misses := c.misses.Load()

	stats := CacheStats{
		Keys:   c.store.ItemCount(),
		Hits:   hits,
		Misses: misses,
	}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

func copyFeed(feed *ResolvedFeed) *ResolvedFeed {
	copied := *feed

	copied.Items = make([]Item, len(feed.Items))
	for i, item := range feed.Items {
		copied.Items[i] = copyItem(item)
	}

	return &copied
}

func copyItem(item Item) Item {
	copied := item

	if item.PublishedAt != nil {
		published := *item.PublishedAt
		copied.PublishedAt = &published
	}
	if item.Categories != nil {
		copied.Categories = append([]string(nil), item.Categories...)
	}

	return copied
}
