package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"time"
)

// Generator serializes a ResolvedFeed as an RSS 2.0 document. Used as the
// wire form for synthesized feeds.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Run renders the feed. pageURL is the page the feed was resolved from; the
// feed self-link advertised in the channel is "{pageURL}/feed".
func (g *Generator) Run(feed *ResolvedFeed, pageURL string) string {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:media="http://search.yahoo.com/mrss/">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", cmp.Or(feed.Title, "Untitled"), 4)
	g.writeElement(&buf, "link", cmp.Or(feed.SiteLink, pageURL), 4)
	description := feed.Description
	if description == "" {
		description = fmt.Sprintf("Feed generated from %s", pageURL)
	}
	g.writeElement(&buf, "description", description, 4)

	buf.WriteString(fmt.Sprintf("    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(pageURL+"/feed")))

	if feed.Language != "" {
		g.writeElement(&buf, "language", feed.Language, 4)
	}

	siteName := cmp.Or(feed.Title, pageURL)
	g.writeElement(&buf, "copyright", fmt.Sprintf("All rights belong to %s", siteName), 4)

	lastBuildDate := feed.GeneratedAt
	if lastBuildDate.IsZero() {
		lastBuildDate = time.Now().UTC()
	}
	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)

	if feed.Favicon != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", feed.Favicon, 6)
		g.writeElement(&buf, "title", cmp.Or(feed.Title, "Untitled"), 6)
		g.writeElement(&buf, "link", cmp.Or(feed.SiteLink, pageURL), 6)
		buf.WriteString("    </image>\n")
	}

	for _, item := range feed.Items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String()
}

func (g *Generator) writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	if item.ID != "" {
		buf.WriteString("      <guid isPermaLink=\"false\">")
		xml.EscapeText(buf, []byte(item.ID))
		buf.WriteString("</guid>\n")
	}

	if item.Title != "" {
		g.writeElement(buf, "title", item.Title, 6)
	}

	if item.Link != "" {
		g.writeElement(buf, "link", item.Link, 6)
	}

	g.writeElement(buf, "description", cmp.Or(item.Summary, item.Title), 6)

	if item.Content != "" && item.Content != item.Summary {
		buf.WriteString("      <content:encoded><![CDATA[")
		buf.WriteString(item.Content)
		buf.WriteString("]]></content:encoded>\n")
	}

	if item.PublishedAt != nil {
		g.writeElement(buf, "pubDate", item.PublishedAt.Format(time.RFC1123Z), 6)
	}

	if item.Author != "" {
		g.writeElement(buf, "author", item.Author, 6)
	}

	for _, category := range item.Categories {
		if category != "" {
			g.writeElement(buf, "category", category, 6)
		}
	}

	if item.Thumbnail != "" {
		buf.WriteString(fmt.Sprintf("      <media:thumbnail url=\"%s\" />\n",
			html.EscapeString(item.Thumbnail)))
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
