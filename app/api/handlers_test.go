package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/url2feed/url2feed/app/discovery"
	"github.com/url2feed/url2feed/app/feed"
	"github.com/url2feed/url2feed/app/fetch"
	"github.com/url2feed/url2feed/app/ingest"
	"github.com/url2feed/url2feed/app/resolver"
	"github.com/url2feed/url2feed/app/safety"
	"github.com/url2feed/url2feed/app/scrape"
)

func newTestServer(policy safety.Policy, runner *ingest.Runner, sources []ingest.Source) http.Handler {
	client := fetch.NewClient("", "", "")
	feeds := feed.NewService(client, feed.NewParser(), feed.NewCache(time.Hour, time.Minute), policy)
	discoverer := discovery.NewDiscoverer(client, policy)
	res := resolver.NewResolver(client, policy, discoverer, feeds, scrape.NewScraper(client, policy))
	return NewServer(NewHandler(policy, res, feeds, discoverer, runner, sources))
}

func doRequest(t *testing.T, server http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	server.ServeHTTP(w, req)
	return w
}

func TestValidateEndpoint(t *testing.T) {
	server := newTestServer(safety.Policy{}, nil, nil)

	w := doRequest(t, server, "POST", "/validate",
		`{"urls": ["https://example.com", "http://192.168.1.1", "ftp://example.com"]}`)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Results  []validationResult `json:"results"`
		Accepted int                `json:"accepted"`
		Rejected int                `json:"rejected"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Accepted != 1 || resp.Rejected != 2 {
		t.Errorf("Expected 1 accepted and 2 rejected, got %d and %d", resp.Accepted, resp.Rejected)
	}
	if resp.Results[1].Reason != "private-ip" {
		t.Errorf("Expected private-ip reason, got %s", resp.Results[1].Reason)
	}
	if resp.Results[2].Reason != "disallowed-protocol" {
		t.Errorf("Expected disallowed-protocol reason, got %s", resp.Results[2].Reason)
	}
}

func TestResolveRejectsPrivateURL(t *testing.T) {
	server := newTestServer(safety.Policy{}, nil, nil)

	w := doRequest(t, server, "POST", "/resolve", `{"url": "http://169.254.169.254/latest/"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400 for private target, got %d", w.Code)
	}

	var resp map[string]string
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["reason"] != "private-ip" {
		t.Errorf("Expected private-ip reason in response, got %s", resp["reason"])
	}
}

func TestResolveRequiresURL(t *testing.T) {
	server := newTestServer(safety.Policy{}, nil, nil)

	if w := doRequest(t, server, "POST", "/resolve", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for missing url, got %d", w.Code)
	}
}

func TestIngestWithoutConfiguration(t *testing.T) {
	server := newTestServer(safety.Policy{}, nil, nil)

	if w := doRequest(t, server, "POST", "/ingest", ""); w.Code != http.StatusConflict {
		t.Errorf("Expected 409 when ingestion is not configured, got %d", w.Code)
	}
}

func TestStatsEndpoint(t *testing.T) {
	sources := []ingest.Source{
		{Name: "a", URL: "https://a.example.com", Enabled: true},
		{Name: "b", URL: "https://b.example.com"},
	}
	server := newTestServer(safety.Policy{}, nil, sources)

	w := doRequest(t, server, "GET", "/stats", "")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Sources struct {
			Total   int `json:"total"`
			Enabled int `json:"enabled"`
		} `json:"sources"`
		Cache struct {
			Keys int `json:"keys"`
		} `json:"cache"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if resp.Sources.Total != 2 || resp.Sources.Enabled != 1 {
		t.Errorf("Expected 2 sources with 1 enabled, got %d and %d", resp.Sources.Total, resp.Sources.Enabled)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(safety.Policy{}, nil, nil)

	if w := doRequest(t, server, "GET", "/health", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}

func TestCacheFlushEndpoint(t *testing.T) {
	server := newTestServer(safety.Policy{}, nil, nil)

	if w := doRequest(t, server, "POST", "/cache/flush", ""); w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
