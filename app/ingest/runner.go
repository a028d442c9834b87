package ingest

import (
	"context"
	"log/slog"
	"sync"

	"github.com/url2feed/url2feed/app/resolver"
)

// Outcome reports what happened to one source during a bulk ingestion run.
// Outcomes are index-aligned with the input sources.
type Outcome struct {
	Source string `json:"source"`
	URL    string `json:"url"`
	Items  int    `json:"items"`
	Error  string `json:"error,omitempty"`
}

// Runner resolves sources into feed items and forwards them to the webhook.
type Runner struct {
	resolver  *resolver.Resolver
	forwarder *Forwarder
}

func NewRunner(res *resolver.Resolver, forwarder *Forwarder) *Runner {
	return &Runner{
		resolver:  res,
		forwarder: forwarder,
	}
}

// IngestSource resolves one source and forwards its items. Returns the
// number of items delivered.
func (r *Runner) IngestSource(ctx context.Context, source Source) (int, error) {
	resolved, err := r.resolver.SmartFetch(ctx, source.URL)
	if err != nil {
		return 0, err
	}

	if r.forwarder != nil {
		if err := r.forwarder.SendItems(ctx, source.Name, resolved.Items); err != nil {
			return 0, err
		}
	}

	slog.Info("Source ingested", "source", source.Name, "items", len(resolved.Items))
	return len(resolved.Items), nil
}

// IngestAll processes every source concurrently. One failing source never
// blocks the others; its outcome carries the error instead.
func (r *Runner) IngestAll(ctx context.Context, sources []Source) []Outcome {
	outcomes := make([]Outcome, len(sources))

	var wg sync.WaitGroup
	for i, source := range sources {
		wg.Add(1)
		go func(i int, source Source) {
			defer wg.Done()

			outcomes[i] = Outcome{Source: source.Name, URL: source.URL}
			count, err := r.IngestSource(ctx, source)
			if err != nil {
				slog.Warn("Source ingestion failed", "source", source.Name, "error", err)
				outcomes[i].Error = err.Error()
				return
			}
			outcomes[i].Items = count
		}(i, source)
	}
	wg.Wait()

	return outcomes
}
