package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/url2feed/url2feed/app/ingest"
)

type IngestSourceTask struct {
	Task
	source ingest.Source
	runner *ingest.Runner
}

func NewIngestSourceTask(source ingest.Source, runner *ingest.Runner) *IngestSourceTask {
	return &IngestSourceTask{
		Task:   NewTask(TaskTypeIngestSource, source.Name),
		source: source,
		runner: runner,
	}
}

func (t *IngestSourceTask) Execute(ctx context.Context) error {

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.source.Enabled {
		slog.Debug("Source disabled, skipping", "source", t.Source)
		return nil
	}

	count, err := t.runner.IngestSource(ctx, t.source)
	if err != nil {
		return fmt.Errorf("failed to ingest source: %w", err)
	}

	slog.Info("Task completed",
		"type", "IngestSource",
		"source", t.Source,
		"duration", t.GetDuration(),
		"items", count)

	return nil
}
