package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeSourcesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write sources file: %v", err)
	}
	return path
}

func TestLoadSources(t *testing.T) {
	path := writeSourcesFile(t, `sources:
  - name: Example Blog
    url: https://example.com/blog
    enabled: true
  - url: https://other.example.com/feed.xml
    enabled: false
`)

	sources, err := LoadSources(path)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(sources) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != "Example Blog" {
		t.Errorf("Expected name Example Blog, got %s", sources[0].Name)
	}
	if sources[1].Name != "https://other.example.com/feed.xml" {
		t.Errorf("Expected missing name to default to the URL, got %s", sources[1].Name)
	}
	if sources[1].Enabled {
		t.Error("Expected second source to be disabled")
	}
}

func TestLoadSourcesRequiresURL(t *testing.T) {
	path := writeSourcesFile(t, `sources:
  - name: No URL Here
    enabled: true
`)

	if _, err := LoadSources(path); err == nil {
		t.Error("Expected error for source without URL")
	}
}

func TestLoadSourcesRejectsUnsafeURL(t *testing.T) {
	path := writeSourcesFile(t, `sources:
  - name: Metadata
    url: http://169.254.169.254/latest/
    enabled: true
`)

	if _, err := LoadSources(path); err == nil {
		t.Error("Expected error for private-network source URL")
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	if _, err := LoadSources(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestEnabledSources(t *testing.T) {
	sources := []Source{
		{Name: "a", URL: "https://a.example.com", Enabled: true},
		{Name: "b", URL: "https://b.example.com"},
		{Name: "c", URL: "https://c.example.com", Enabled: true},
	}

	enabled := EnabledSources(sources)
	if len(enabled) != 2 {
		t.Fatalf("Expected 2 enabled sources, got %d", len(enabled))
	}
	if enabled[0].Name != "a" || enabled[1].Name != "c" {
		t.Errorf("Expected order preserved, got %s then %s", enabled[0].Name, enabled[1].Name)
	}
}
