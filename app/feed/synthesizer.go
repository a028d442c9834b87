package feed

import (
	"cmp"
	"time"
)

// Synthesizer converts scraped page content into a feed-shaped structure
// plus its serialized RSS 2.0 wire form. Pure transformation; no I/O.
type Synthesizer struct {
	generator *Generator
}

func NewSynthesizer() *Synthesizer {
	return &Synthesizer{
		generator: NewGenerator(),
	}
}

// Run builds a ResolvedFeed from scraped data. Missing publish dates default
// to the synthesis time; missing content falls back to the item title.
func (s *Synthesizer) Run(pageURL string, page *PageContent) (*ResolvedFeed, string) {
	now := time.Now().UTC()

	resolved := &ResolvedFeed{
		Title:       cmp.Or(page.Title, "Untitled"),
		Description: page.Description,
		SiteLink:    pageURL,
		Language:    "en",
		Favicon:     page.Favicon,
		GeneratedAt: now,
	}

	resolved.Items = make([]Item, 0, len(page.Items))
	for _, item := range page.Items {
		if item.Summary == "" {
			item.Summary = item.Title
		}
		if item.PublishedAt == nil {
			published := now
			item.PublishedAt = &published
		}
		if item.ID == "" {
			item.ID = ItemID(item.Link, nil)
		}
		resolved.Items = append(resolved.Items, item)
	}

	return resolved, s.generator.Run(resolved, pageURL)
}
