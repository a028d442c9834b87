package feed

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
	"golang.org/x/text/language"
)

// Summaries are bounded so cached feeds stay small and downstream consumers
// (summarizer, UI) get predictable payloads.
const maxSummaryLength = 500

// ParseError indicates a malformed feed document.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse feed %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS 2.0 or Atom document into a ResolvedFeed.
func (p *Parser) Run(data []byte, feedURL string) (*ResolvedFeed, error) {
	parsed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{URL: feedURL, Err: err}
	}

	resolved := &ResolvedFeed{
		Title:       parsed.Title,
		Description: parsed.Description,
		SiteLink:    parsed.Link,
		FeedURL:     feedURL,
		Language:    normalizeLanguage(parsed.Language),
		GeneratedAt: time.Now().UTC(),
	}

	if parsed.Image != nil {
		resolved.Favicon = parsed.Image.URL
	}

	resolved.Items = make([]Item, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		resolved.Items = append(resolved.Items, p.normalizeItem(item))
	}

	return resolved, nil
}

func (p *Parser) normalizeItem(item *gofeed.Item) Item {
	// Prefer the richer encoded content when both are present.
	content := item.Content
	if content == "" {
		content = item.Description
	}

	summary := item.Description
	if summary == "" {
		summary = content
	}
	summary = truncate(StripHTML(summary), maxSummaryLength)

	normalized := Item{
		Title:     item.Title,
		Link:      item.Link,
		Summary:   summary,
		Content:   content,
		Author:    extractAuthor(item),
		Thumbnail: extractThumbnail(item),
	}

	if item.PublishedParsed != nil {
		published := item.PublishedParsed.UTC()
		normalized.PublishedAt = &published
	} else if item.UpdatedParsed != nil {
		updated := item.UpdatedParsed.UTC()
		normalized.PublishedAt = &updated
	}

	if item.Categories != nil {
		normalized.Categories = item.Categories
	}

	normalized.ID = ItemID(normalized.Link, normalized.PublishedAt)

	return normalized
}

// ItemID derives a stable identifier from the item link plus its publication
// time, so the same entry ingested through different tiers dedupes cleanly.
func ItemID(link string, publishedAt *time.Time) string {
	key := link
	if publishedAt != nil {
		key += "|" + publishedAt.UTC().Format(time.RFC3339)
	}

	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func extractAuthor(item *gofeed.Item) string {
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return strings.TrimSpace(item.Authors[0].Name)
	}
	if item.Author != nil {
		return strings.TrimSpace(item.Author.Name)
	}
	return ""
}

// extractThumbnail resolves an item image in a fixed preference order:
// media:content, then media:thumbnail, then the first image enclosure.
func extractThumbnail(item *gofeed.Item) string {
	if media, ok := item.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, ext := range media[name] {
				if url := ext.Attrs["url"]; url != "" {
					return url
				}
			}
		}
	}

	for _, enclosure := range item.Enclosures {
		if enclosure == nil {
			continue
		}
		if enclosure.URL != "" && strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}

	return ""
}

func normalizeLanguage(lang string) string {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	return tag.String()
}

// StripHTML reduces an HTML fragment to its text content.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}

	var text strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return strings.Join(strings.Fields(text.String()), " ")
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
