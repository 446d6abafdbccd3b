package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fleetspan/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu         sync.Mutex
	runs       map[string]model.Run                    // id -> run
	order      []string                                // run ids, oldest first
	planMx     map[string]map[string]model.PlanMetrics // runId -> algo -> metrics
	deliveries map[string]*WebhookDelivery             // id -> delivery state
	delOrder   []string
}

func NewMemory() *Memory {
	return &Memory{
		runs:       map[string]model.Run{},
		planMx:     map[string]map[string]model.PlanMetrics{},
		deliveries: map[string]*WebhookDelivery{},
	}
}

func (m *Memory) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	if run.Status == "" {
		run.Status = model.RunQueued
	}
	m.runs[run.ID] = run
	m.order = append(m.order, run.ID)
	return run, nil
}

func (m *Memory) UpdateRun(ctx context.Context, run model.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[run.ID]; !ok {
		return ErrNotFound
	}
	run.UpdatedAt = time.Now().UTC()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetRun(ctx context.Context, id string) (model.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return model.Run{}, ErrNotFound
	}
	return r, nil
}

// ListRuns pages through runs oldest first; the cursor is the last id seen.
func (m *Memory) ListRuns(ctx context.Context, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := 0
	if cursor != "" {
		for i, id := range m.order {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	limit = page(limit)
	out := []model.Run{}
	next := ""
	for _, id := range m.order[start:] {
		r := m.runs[id]
		if status != "" && r.Status != status {
			continue
		}
		if len(out) == limit {
			next = out[len(out)-1].ID
			break
		}
		out = append(out, r)
	}
	return out, next, nil
}

func (m *Memory) SavePlanMetrics(ctx context.Context, pm model.PlanMetrics) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.planMx[pm.RunID] == nil {
		m.planMx[pm.RunID] = map[string]model.PlanMetrics{}
	}
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = time.Now().UTC()
	}
	m.planMx[pm.RunID][pm.Algo] = pm
	return nil
}

func (m *Memory) ListPlanMetrics(ctx context.Context, runID, algo string) ([]model.PlanMetrics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.PlanMetrics{}
	for a, pm := range m.planMx[runID] {
		if algo == "" || a == algo {
			out = append(out, pm)
		}
	}
	slices.SortFunc(out, func(a, b model.PlanMetrics) int { return strings.Compare(a.Algo, b.Algo) })
	return out, nil
}

// Webhook deliveries
func (m *Memory) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New().String()
	m.deliveries[id] = &WebhookDelivery{ID: id, EventType: eventType, URL: url, Secret: secret, Payload: payload, Status: "pending", NextAttemptAt: time.Now()}
	m.delOrder = append(m.delOrder, id)
	return id, nil
}

func (m *Memory) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	out := []WebhookDelivery{}
	for _, id := range m.delOrder {
		d := m.deliveries[id]
		if (d.Status == "pending" || d.Status == "retry") && !d.NextAttemptAt.After(now) {
			out = append(out, *d)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	if success {
		d.Status = "delivered"
		now := time.Now()
		d.DeliveredAt = &now
	} else {
		d.Status = "retry"
		d.LastError = lastError
		if nextAttemptAt != nil {
			d.NextAttemptAt = *nextAttemptAt
		} else {
			d.NextAttemptAt = time.Now().Add(1 * time.Minute)
		}
	}
	return nil
}

func (m *Memory) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.deliveries[id]
	if d == nil {
		return ErrNotFound
	}
	d.Attempts++
	d.Status = "failed"
	d.LastError = lastError
	d.ResponseCode = responseCode
	d.LatencyMs = latencyMs
	return nil
}

func (m *Memory) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = page(limit)
	out := []WebhookDelivery{}
	for _, id := range m.delOrder {
		d := m.deliveries[id]
		if status == "" || d.Status == status {
			out = append(out, *d)
			if len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) Ping(ctx context.Context) error { return nil }
