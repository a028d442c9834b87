package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/url2feed/url2feed/app/feed"
)

const webhookTimeout = 15 * time.Second

// Record is the shape of one item as delivered to the webhook.
type Record struct {
	Source    string     `json:"source"`
	Title     string     `json:"title"`
	Link      string     `json:"link"`
	Content   string     `json:"content"`
	Published *time.Time `json:"published,omitempty"`
}

type webhookPayload struct {
	Source string   `json:"source"`
	Items  []Record `json:"items"`
}

// Forwarder delivers ingested feed items to a configured webhook endpoint.
type Forwarder struct {
	webhookURL string
	httpClient *http.Client
}

func NewForwarder(webhookURL string) *Forwarder {
	return &Forwarder{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: webhookTimeout},
	}
}

// SendItems posts one batch of items for a source. An empty batch is a
// no-op; the webhook only ever sees sources with content.
func (f *Forwarder) SendItems(ctx context.Context, sourceName string, items []feed.Item) error {
	if len(items) == 0 {
		return nil
	}

	payload := webhookPayload{
		Source: sourceName,
		Items:  make([]Record, 0, len(items)),
	}
	for _, item := range items {
		content := item.Content
		if content == "" {
			content = item.Summary
		}
		payload.Items = append(payload.Items, Record{
			Source:    sourceName,
			Title:     item.Title,
			Link:      item.Link,
			Content:   content,
			Published: item.PublishedAt,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	return nil
}
