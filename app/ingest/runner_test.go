package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/url2feed/url2feed/app/discovery"
	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/resolver"
	"github.com/url2feed/url2feed/app/safety"
	"github.com/url2feed/url2feed/app/scrape"
)

const runnerTestFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Runner Feed</title>
    <link>https://example.com</link>
    <description>D</description>
    <item>
      <title>Item One</title>
      <link>https://example.com/one</link>
      <description>Body one</description>
    </item>
    <item>
      <title>Item Two</title>
      <link>https://example.com/two</link>
      <description>Body two</description>
    </item>
  </channel>
</rss>`

func newTestRunner(forwarder *Forwarder) *Runner {
	client := fetch.NewClient("", "", "")
	policy := safety.Policy{AllowPrivateNetworks: true}
	feeds := feed.NewService(client, feed.NewParser(), feed.NewCache(time.Hour, time.Minute), policy)
	res := resolver.NewResolver(client, policy,
		discovery.NewDiscoverer(client, policy),
		feeds,
		scrape.NewScraper(client, policy))
	return NewRunner(res, forwarder)
}

func TestIngestSourceForwardsItems(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(runnerTestFeed))
	}))
	defer source.Close()

	var mu sync.Mutex
	var received webhookPayload
	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		json.NewDecoder(r.Body).Decode(&received)
	}))
	defer webhook.Close()

	runner := newTestRunner(NewForwarder(webhook.URL))

	count, err := runner.IngestSource(context.Background(), Source{Name: "runner-test", URL: source.URL, Enabled: true})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 items delivered, got %d", count)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Source != "runner-test" {
		t.Errorf("Expected payload source runner-test, got %s", received.Source)
	}
	if len(received.Items) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(received.Items))
	}
	if received.Items[0].Title != "Item One" {
		t.Errorf("Expected first record Item One, got %s", received.Items[0].Title)
	}
	if received.Items[0].Content != "Body one" {
		t.Errorf("Expected summary used as content fallback, got %q", received.Items[0].Content)
	}
}

func TestIngestSourceWebhookFailure(t *testing.T) {
	source := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(runnerTestFeed))
	}))
	defer source.Close()

	webhook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer webhook.Close()

	runner := newTestRunner(NewForwarder(webhook.URL))

	if _, err := runner.IngestSource(context.Background(), Source{Name: "s", URL: source.URL}); err == nil {
		t.Error("Expected error when the webhook rejects the batch")
	}
}

func TestIngestAllOutcomesAlignWithInput(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(runnerTestFeed))
	}))
	defer good.Close()

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	runner := newTestRunner(nil)

	sources := []Source{
		{Name: "first", URL: good.URL},
		{Name: "second", URL: good.URL},
		{Name: "broken", URL: bad.URL},
		{Name: "fourth", URL: good.URL},
		{Name: "fifth", URL: good.URL},
	}

	outcomes := runner.IngestAll(context.Background(), sources)

	if len(outcomes) != 5 {
		t.Fatalf("Expected 5 outcomes, got %d", len(outcomes))
	}

	succeeded := 0
	for i, source := range sources {
		if outcomes[i].Source != source.Name {
			t.Errorf("Outcome %d: expected source %s, got %s", i, source.Name, outcomes[i].Source)
		}
		if outcomes[i].Error == "" {
			succeeded++
			if outcomes[i].Items != 2 {
				t.Errorf("Outcome %d: expected 2 items, got %d", i, outcomes[i].Items)
			}
		}
	}

	if succeeded != 4 {
		t.Errorf("Expected 4 successful outcomes, got %d", succeeded)
	}
	if outcomes[2].Error == "" {
		t.Error("Expected error recorded for the broken source")
	}
}

func TestIngestAllRunsConcurrently(t *testing.T) {
	const delay = 100 * time.Millisecond

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delay)
		w.Write([]byte(runnerTestFeed))
	}))
	defer slow.Close()

	runner := newTestRunner(nil)

	var sources []Source
	for i := 0; i < 5; i++ {
		sources = append(sources, Source{Name: fmt.Sprintf("s%d", i), URL: slow.URL + fmt.Sprintf("/?n=%d", i)})
	}

	start := time.Now()
	outcomes := runner.IngestAll(context.Background(), sources)
	elapsed := time.Since(start)

	for i, outcome := range outcomes {
		if outcome.Error != "" {
			t.Errorf("Outcome %d: unexpected error %s", i, outcome.Error)
		}
	}
	// Sequential execution would take at least 5x the delay.
	if elapsed > 3*delay {
		t.Errorf("Expected concurrent ingestion, took %v", elapsed)
	}
}
