// Package scrape extracts article-like entries from HTML pages that expose
// no syndication feed. It is heuristic by nature: repeated page structures
// are tried in order of specificity and the first one that yields entries
// wins.
package scrape

import (
	"bytes"
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/araddon/dateparse"
	readability "github.com/go-shiori/go-readability"

	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/safety"
)

const (
	maxItems         = 20
	maxSummaryLength = 500
	minTitleLength   = 3

	// Bounds for titles harvested in the anchor fallback, where short
	// navigation labels and very long paragraph links are both noise.
	minFallbackTitleLength = 6
	maxFallbackTitleLength = 200
)

// Container selectors tried in order. Semantic markup first, then the class
// names blog themes conventionally use.
var itemSelectors = []string{
	"article",
	"[role=article]",
	".post",
	".entry",
	".blog-post",
	".article",
	".card",
	".item",
	".story",
	"li.post-item",
}

type Scraper struct {
	client *fetch.Client
	policy safety.Policy
}

func NewScraper(client *fetch.Client, policy safety.Policy) *Scraper {
	return &Scraper{
		client: client,
		policy: policy,
	}
}

// Scrape fetches a page and extracts its content. Fetch failures are fatal;
// a page that yields no items is not an error, the caller decides what an
// empty result means.
func (s *Scraper) Scrape(ctx context.Context, pageURL string) (*feed.PageContent, error) {
	verdict := s.policy.Validate(pageURL)
	if err := verdict.Err(); err != nil {
		return nil, err
	}

	data, err := s.client.Direct(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	return s.ScrapeDocument(verdict.URL, data)
}

// ScrapeDocument extracts content from an already-fetched page body.
func (s *Scraper) ScrapeDocument(base *url.URL, data []byte) (*feed.PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	page := &feed.PageContent{
		Title:       pageTitle(doc),
		Description: pageDescription(doc, base, data),
		SiteName:    metaProperty(doc, "og:site_name"),
		Favicon:     pageFavicon(doc, base),
	}

	for _, selector := range itemSelectors {
		items := s.extractItems(doc.Find(selector), base)
		if len(items) > 0 {
			slog.Debug("Scraped items from page", "page_url", base.String(), "selector", selector, "items", len(items))
			page.Items = items
			return page, nil
		}
	}

	page.Items = s.extractAnchorFallback(doc, base)
	if len(page.Items) > 0 {
		slog.Debug("Scraped items via anchor fallback", "page_url", base.String(), "items", len(page.Items))
	}
	return page, nil
}

func (s *Scraper) extractItems(selection *goquery.Selection, base *url.URL) []feed.Item {
	var items []feed.Item
	seen := map[string]struct{}{}

	selection.EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		item, ok := extractItem(sel, base)
		if !ok {
			return true
		}
		if _, dup := seen[item.Link]; dup {
			return true
		}
		seen[item.Link] = struct{}{}

		items = append(items, item)
		return len(items) < maxItems
	})

	return items
}

// extractItem pulls one entry out of a container element. An entry needs at
// least a usable link and title to count.
func extractItem(sel *goquery.Selection, base *url.URL) (feed.Item, bool) {
	link := ""
	sel.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if resolved, ok := resolveLink(a.AttrOr("href", ""), base); ok {
			link = resolved
			return false
		}
		return true
	})
	if link == "" {
		return feed.Item{}, false
	}

	title := firstText(sel, "h1, h2, h3, h4")
	if len([]rune(title)) < minTitleLength {
		title = strings.TrimSpace(sel.Find("a[href]").First().Text())
	}
	if len([]rune(title)) < minTitleLength {
		return feed.Item{}, false
	}

	item := feed.Item{
		Title:   title,
		Link:    link,
		Summary: truncate(strings.TrimSpace(sel.Find("p").First().Text()), maxSummaryLength),
	}

	if published, ok := extractDate(sel); ok {
		item.PublishedAt = &published
	}

	if src := firstImageSource(sel); src != "" {
		if resolved, ok := resolveLink(src, base); ok {
			item.Thumbnail = resolved
		}
	}

	item.ID = feed.ItemID(item.Link, item.PublishedAt)

	return item, true
}

// extractAnchorFallback harvests prominent links when no container selector
// matched. Only anchors tied to a heading and whose text looks like a
// headline survive, which keeps navigation and footer links out.
func (s *Scraper) extractAnchorFallback(doc *goquery.Document, base *url.URL) []feed.Item {
	var items []feed.Item
	seen := map[string]struct{}{}

	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !headingAssociated(a) {
			return true
		}

		title := strings.TrimSpace(a.Text())
		length := len([]rune(title))
		if length < minFallbackTitleLength || length >= maxFallbackTitleLength {
			return true
		}

		link, ok := resolveLink(a.AttrOr("href", ""), base)
		if !ok {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}

		items = append(items, feed.Item{
			ID:    feed.ItemID(link, nil),
			Title: title,
			Link:  link,
		})
		return len(items) < maxItems
	})

	return items
}

// headingAssociated reports whether the anchor wraps a heading or sits
// inside one.
func headingAssociated(a *goquery.Selection) bool {
	if a.Find("h1, h2, h3, h4, h5, h6").Length() > 0 {
		return true
	}
	return a.ParentsFiltered("h1, h2, h3, h4, h5, h6").Length() > 0
}

func pageTitle(doc *goquery.Document) string {
	if title := metaProperty(doc, "og:title"); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// pageDescription prefers explicit metadata and falls back to a readability
// excerpt of the page body.
func pageDescription(doc *goquery.Document, base *url.URL, data []byte) string {
	if desc := metaProperty(doc, "og:description"); desc != "" {
		return desc
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		if trimmed := strings.TrimSpace(desc); trimmed != "" {
			return trimmed
		}
	}

	article, err := readability.FromReader(bytes.NewReader(data), base)
	if err != nil {
		return ""
	}
	return truncate(strings.TrimSpace(article.Excerpt), maxSummaryLength)
}

func pageFavicon(doc *goquery.Document, base *url.URL) string {
	href := ""
	doc.Find(`link[rel="icon"], link[rel="shortcut icon"], link[rel="apple-touch-icon"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if h := strings.TrimSpace(sel.AttrOr("href", "")); h != "" {
			href = h
			return false
		}
		return true
	})

	if href == "" {
		href = "/favicon.ico"
	}
	if resolved, ok := resolveLink(href, base); ok {
		return resolved
	}
	return ""
}

func metaProperty(doc *goquery.Document, property string) string {
	content, _ := doc.Find(`meta[property="` + property + `"]`).First().Attr("content")
	return strings.TrimSpace(content)
}

func firstText(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

func firstImageSource(sel *goquery.Selection) string {
	img := sel.Find("img").First()
	if src := strings.TrimSpace(img.AttrOr("src", "")); src != "" {
		return src
	}
	return strings.TrimSpace(img.AttrOr("data-src", ""))
}

func extractDate(sel *goquery.Selection) (published time.Time, ok bool) {
	if datetime, exists := sel.Find("time[datetime]").First().Attr("datetime"); exists {
		if parsed, err := dateparse.ParseAny(strings.TrimSpace(datetime)); err == nil {
			return parsed.UTC(), true
		}
	}

	raw := firstText(sel, "time, .date, .published, .post-date, .timestamp")
	if raw == "" {
		return time.Time{}, false
	}
	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

// resolveLink absolutizes href against base and filters out fragments and
// script pseudo-links.
func resolveLink(href string, base *url.URL) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	return resolved.String(), true
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
