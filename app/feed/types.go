package feed

import (
	"time"
)

// Item is a normalized content unit, produced by the parser or the scraper.
// Immutable once created; the cache hands out copies, never its own slices.
type Item struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Link        string     `json:"link"`
	Summary     string     `json:"summary"` // plain text, bounded to 500 chars
	Content     string     `json:"content,omitempty"`
	PublishedAt *time.Time `json:"published,omitempty"`
	Author      string     `json:"author,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Thumbnail   string     `json:"thumbnail,omitempty"`
}

// ResolvedFeed is the normalized shape of a syndication feed, whether parsed
// from a real RSS/Atom document or synthesized from scraped page content.
// Item ordering is source order.
type ResolvedFeed struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	SiteLink    string    `json:"siteLink"`
	FeedURL     string    `json:"feedUrl,omitempty"`
	Language    string    `json:"language,omitempty"`
	Favicon     string    `json:"favicon,omitempty"`
	Items       []Item    `json:"items"`
	GeneratedAt time.Time `json:"generatedAt"`

	// FromCache is set on copies served out of the cache.
	FromCache bool `json:"fromCache,omitempty"`
}

// PageContent is scraped page data a feed can be synthesized from.
type PageContent struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SiteName    string `json:"siteName"`
	Favicon     string `json:"favicon"`
	Items       []Item `json:"items"`
}
