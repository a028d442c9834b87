// Package ingest handles bulk source ingestion: loading the configured
// source list, resolving each source into feed items, and forwarding new
// items to a webhook.
package ingest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/url2feed/url2feed/app/safety"
)

// Source is one entry in the sources file. URL may point at a feed or at a
// plain page; resolution figures out which.
type Source struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Enabled bool   `yaml:"enabled"`
}

type sourcesFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadSources reads and validates the YAML sources file. Disabled sources
// are kept so callers can report on them; URL validation failures are hard
// errors to keep bad entries from silently dropping out of rotation.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	var parsed sourcesFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse sources file: %w", err)
	}

	for i := range parsed.Sources {
		source := &parsed.Sources[i]
		if source.URL == "" {
			return nil, fmt.Errorf("source %d: url is required", i)
		}
		if err := safety.Validate(source.URL).Err(); err != nil {
			return nil, fmt.Errorf("source %d (%s): %w", i, source.Name, err)
		}
		if source.Name == "" {
			source.Name = source.URL
		}
	}

	return parsed.Sources, nil
}

// EnabledSources filters the list down to sources eligible for ingestion.
func EnabledSources(sources []Source) []Source {
	var enabled []Source
	for _, source := range sources {
		if source.Enabled {
			enabled = append(enabled, source)
		}
	}
	return enabled
}
