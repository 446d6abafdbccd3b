package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fleetspan/internal/store"
)

// Publisher queues signed webhook deliveries for run events. A Publisher
// without a URL drops every event.
type Publisher struct {
	Store  store.Store
	URL    string
	Secret string
}

func NewPublisher(s store.Store, url, secret string) *Publisher {
	return &Publisher{Store: s, URL: url, Secret: secret}
}

// Emit wraps data in an event envelope and enqueues it for delivery.
func (p *Publisher) Emit(ctx context.Context, eventType string, data any) (string, error) {
	if p == nil || p.URL == "" {
		return "", nil
	}
	payload := map[string]any{
		"id":   fmt.Sprintf("evt_%d", time.Now().UnixNano()),
		"type": eventType,
		"ts":   time.Now().UTC().Format(time.RFC3339),
		"data": data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("webhooks: encode %s: %w", eventType, err)
	}
	return p.Store.EnqueueWebhook(ctx, eventType, p.URL, p.Secret, body)
}
