package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/safety"
)

func newTestDiscoverer() *Discoverer {
	client := fetch.NewClient("", "", "")
	return NewDiscoverer(client, safety.Policy{AllowPrivateNetworks: true})
}

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", raw, err)
	}
	return u
}

func TestFeedLinksExtraction(t *testing.T) {
	page := `<!DOCTYPE html>
<html><head>
  <link rel="stylesheet" href="/style.css">
  <link rel="alternate" type="application/rss+xml" title="RSS" href="/feed.xml">
  <link rel="alternate" type="application/atom+xml" href="https://other.example.com/atom.xml">
  <link rel="alternate" type="application/rss+xml" href="/feed.xml">
</head><body></body></html>`

	links := FeedLinks([]byte(page), mustParse(t, "https://example.com/blog/"))

	if len(links) != 2 {
		t.Fatalf("Expected 2 deduplicated links, got %d: %v", len(links), links)
	}
	if links[0] != "https://example.com/feed.xml" {
		t.Errorf("Expected relative href resolved against base, got %s", links[0])
	}
	if links[1] != "https://other.example.com/atom.xml" {
		t.Errorf("Expected absolute href preserved, got %s", links[1])
	}
}

func TestFeedLinksNonAlternateComesFirst(t *testing.T) {
	page := `<html><head>
  <link rel="alternate" type="application/rss+xml" href="/main.xml">
  <link rel="service.feed" type="application/rss+xml" href="/service.xml">
</head></html>`

	links := FeedLinks([]byte(page), mustParse(t, "https://example.com"))

	if len(links) != 2 {
		t.Fatalf("Expected 2 links, got %d", len(links))
	}
	if links[0] != "https://example.com/service.xml" {
		t.Errorf("Expected non-alternate link preferred, got %s", links[0])
	}
	if links[1] != "https://example.com/main.xml" {
		t.Errorf("Expected rel=alternate link second, got %s", links[1])
	}
}

func TestFeedLinksIgnoresNonFeedTypes(t *testing.T) {
	page := `<html><head>
  <link rel="alternate" type="text/html" href="/mobile">
  <link rel="icon" href="/favicon.ico">
</head></html>`

	if links := FeedLinks([]byte(page), mustParse(t, "https://example.com")); len(links) != 0 {
		t.Errorf("Expected no feed links, got %v", links)
	}
}

func TestDiscoverPrefersLinkTagOverProbing(t *testing.T) {
	var probes atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><head><link rel="alternate" type="application/rss+xml" href="/custom-feed"></head></html>`))
		default:
			probes.Add(1)
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	feedURL, found, err := newTestDiscoverer().Discover(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !found {
		t.Fatal("Expected feed to be found")
	}
	if feedURL != ts.URL+"/custom-feed" {
		t.Errorf("Expected %s/custom-feed, got %s", ts.URL, feedURL)
	}
	if probes.Load() != 0 {
		t.Errorf("Expected no well-known path probes when a link tag matched, got %d", probes.Load())
	}
}

func TestDiscoverFallsBackToWellKnownPaths(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><head><title>No feed links here</title></head></html>`))
		case "/rss.xml":
			w.Header().Set("Content-Type", "application/rss+xml")
			w.Write([]byte(`<?xml version="1.0"?><rss version="2.0"></rss>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	feedURL, found, err := newTestDiscoverer().Discover(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !found {
		t.Fatal("Expected feed to be found at a well-known path")
	}
	if feedURL != ts.URL+"/rss.xml" {
		t.Errorf("Expected %s/rss.xml, got %s", ts.URL, feedURL)
	}
}

func TestDiscoverProbeSniffsBodyWithoutContentType(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			w.Write([]byte(`<html><head></head></html>`))
		case "/feed":
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write([]byte(`<rss version="2.0"><channel></channel></rss>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	feedURL, found, err := newTestDiscoverer().Discover(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !found {
		t.Fatal("Expected feed found via body prefix sniffing")
	}
	if !strings.HasSuffix(feedURL, "/feed") {
		t.Errorf("Expected /feed, got %s", feedURL)
	}
}

func TestDiscoverNoFeedAnywhere(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			w.Write([]byte(`<html><head></head><body>plain page</body></html>`))
			return
		}
		http.NotFound(w, r)
	}))
	defer ts.Close()

	feedURL, found, err := newTestDiscoverer().Discover(context.Background(), ts.URL+"/")
	if err != nil {
		t.Fatalf("Expected no error when no feed exists, got: %v", err)
	}
	if found {
		t.Errorf("Expected no feed, got %s", feedURL)
	}
}

func TestDiscoverPageFetchFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, found, err := newTestDiscoverer().Discover(context.Background(), ts.URL+"/")
	if err == nil {
		t.Fatal("Expected error when the page itself is unreachable")
	}
	if found {
		t.Error("Expected found=false on fetch failure")
	}
}

func TestDiscoverRejectsUnsafePageURL(t *testing.T) {
	discoverer := NewDiscoverer(fetch.NewClient("", "", ""), safety.Policy{})

	_, _, err := discoverer.Discover(context.Background(), "http://169.254.169.254/")
	if err == nil {
		t.Fatal("Expected validation error for metadata endpoint")
	}
}
