package store

import (
	"context"
	"errors"
	"time"

	"fleetspan/internal/model"
)

// Store is the persistence interface used by the API server.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (model.Run, error)
	UpdateRun(ctx context.Context, run model.Run) error
	GetRun(ctx context.Context, id string) (model.Run, error)
	ListRuns(ctx context.Context, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error)

	// Metrics
	SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error
	ListPlanMetrics(ctx context.Context, runID, algo string) ([]model.PlanMetrics, error)

	// Webhook deliveries
	EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error)
	FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error)
	MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error
	FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error
	ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

// page clamps a requested page size.
func page(limit int) int {
	if limit <= 0 || limit > 500 {
		return 100
	}
	return limit
}
