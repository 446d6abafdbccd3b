package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fleetspan/internal/model"
	"fleetspan/internal/opt"
)

//go:embed schema.sql
var schema string

type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: ping: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Migrate creates the tables if they do not exist yet.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

func (p *Postgres) Close() error { return p.db.Close() }

const runColumns = `id, COALESCE(name,''), status, jobs, vehicles, iterations, fitness, summary, COALESCE(error,''), created_at, updated_at, started_at, finished_at`

func (p *Postgres) CreateRun(ctx context.Context, run model.Run) (model.Run, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = model.RunQueued
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	sum, err := jsonOrNil(run.Summary)
	if err != nil {
		return model.Run{}, err
	}
	_, err = p.db.ExecContext(ctx, `INSERT INTO runs (id, name, status, jobs, vehicles, iterations, fitness, summary, error, created_at, updated_at, started_at, finished_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		run.ID, nullIfEmpty(run.Name), string(run.Status), run.Jobs, run.Vehicles, run.Iterations, run.Fitness, sum, nullIfEmpty(run.Error), run.CreatedAt, run.UpdatedAt, run.StartedAt, run.FinishedAt)
	if err != nil {
		return model.Run{}, fmt.Errorf("store: create run: %w", err)
	}
	return run, nil
}

func (p *Postgres) UpdateRun(ctx context.Context, run model.Run) error {
	sum, err := jsonOrNil(run.Summary)
	if err != nil {
		return err
	}
	res, err := p.db.ExecContext(ctx, `UPDATE runs SET name=$2, status=$3, jobs=$4, vehicles=$5, iterations=$6, fitness=$7, summary=$8, error=$9, updated_at=now(), started_at=$10, finished_at=$11 WHERE id=$1`,
		run.ID, nullIfEmpty(run.Name), string(run.Status), run.Jobs, run.Vehicles, run.Iterations, run.Fitness, sum, nullIfEmpty(run.Error), run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("store: update run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) GetRun(ctx context.Context, id string) (model.Run, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=$1`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Run{}, ErrNotFound
	}
	return r, err
}

// ListRuns pages by creation time; the cursor is the last id seen.
func (p *Postgres) ListRuns(ctx context.Context, status model.RunStatus, cursor string, limit int) ([]model.Run, string, error) {
	limit = page(limit)
	q := `SELECT ` + runColumns + ` FROM runs WHERE ($1 = '' OR status = $1)`
	args := []any{string(status)}
	if cursor != "" {
		q += ` AND (created_at, id) > (SELECT created_at, id FROM runs WHERE id = $2)`
		args = append(args, cursor)
	}
	q += fmt.Sprintf(` ORDER BY created_at, id LIMIT %d`, limit+1)
	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, "", fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()
	out := []model.Run{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	next := ""
	if len(out) > limit {
		out = out[:limit]
		next = out[limit-1].ID
	}
	return out, next, nil
}

type scanner interface{ Scan(dest ...any) error }

func scanRun(s scanner) (model.Run, error) {
	var r model.Run
	var status string
	var sum []byte
	var started, finished sql.NullTime
	if err := s.Scan(&r.ID, &r.Name, &status, &r.Jobs, &r.Vehicles, &r.Iterations, &r.Fitness, &sum, &r.Error, &r.CreatedAt, &r.UpdatedAt, &started, &finished); err != nil {
		return model.Run{}, err
	}
	r.Status = model.RunStatus(status)
	if len(sum) > 0 {
		r.Summary = &opt.Summary{}
		if err := json.Unmarshal(sum, r.Summary); err != nil {
			return model.Run{}, fmt.Errorf("store: decode summary: %w", err)
		}
	}
	if started.Valid {
		t := started.Time
		r.StartedAt = &t
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return r, nil
}

func (p *Postgres) SavePlanMetrics(ctx context.Context, m model.PlanMetrics) error {
	enc := func(v any) string { b, _ := json.Marshal(v); return string(b) }
	_, err := p.db.ExecContext(ctx, `INSERT INTO plan_metrics (run_id, algo, seed, iterations, improvements, accepted_worse, terminated_early, best_cost, final_cost, removal_selects, insert_selects, final_removal_weights, final_insertion_weights, snapshots, duration_ms)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
        ON CONFLICT (run_id, algo) DO UPDATE SET
          seed=$3, iterations=$4, improvements=$5, accepted_worse=$6, terminated_early=$7, best_cost=$8, final_cost=$9, removal_selects=$10, insert_selects=$11, final_removal_weights=$12, final_insertion_weights=$13, snapshots=$14, duration_ms=$15, created_at=now()`,
		m.RunID, m.Algo, m.Seed, m.Iterations, m.Improvements, m.AcceptedWorse, m.TerminatedEarly, m.BestCost, m.FinalCost,
		enc(m.RemovalSelects), enc(m.InsertSelects), enc(m.FinalRemovalWeights), enc(m.FinalInsertionWeights), enc(m.Snapshots), m.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("store: save plan metrics: %w", err)
	}
	return nil
}

func (p *Postgres) ListPlanMetrics(ctx context.Context, runID, algo string) ([]model.PlanMetrics, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT run_id, algo, seed, iterations, improvements, accepted_worse, terminated_early, COALESCE(best_cost,0), COALESCE(final_cost,0), removal_selects, insert_selects, final_removal_weights, final_insertion_weights, snapshots, duration_ms, created_at
        FROM plan_metrics WHERE run_id=$1 AND ($2 = '' OR algo = $2) ORDER BY algo`, runID, algo)
	if err != nil {
		return nil, fmt.Errorf("store: list plan metrics: %w", err)
	}
	defer rows.Close()
	out := []model.PlanMetrics{}
	for rows.Next() {
		var m model.PlanMetrics
		var rem, ins, finRem, finIns, snaps []byte
		if err := rows.Scan(&m.RunID, &m.Algo, &m.Seed, &m.Iterations, &m.Improvements, &m.AcceptedWorse, &m.TerminatedEarly, &m.BestCost, &m.FinalCost, &rem, &ins, &finRem, &finIns, &snaps, &m.DurationMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		fields := []struct {
			raw []byte
			dst any
		}{{rem, &m.RemovalSelects}, {ins, &m.InsertSelects}, {finRem, &m.FinalRemovalWeights}, {finIns, &m.FinalInsertionWeights}, {snaps, &m.Snapshots}}
		for _, f := range fields {
			if len(f.raw) == 0 {
				continue
			}
			if err := json.Unmarshal(f.raw, f.dst); err != nil {
				return nil, fmt.Errorf("store: decode plan metrics: %w", err)
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// EnqueueWebhook inserts a pending delivery. Payloads with the same "id"
// field (or hash) are only queued once per event type and URL.
func (p *Postgres) EnqueueWebhook(ctx context.Context, eventType, url, secret string, payload []byte) (string, error) {
	id := uuid.New().String()
	_, err := p.db.ExecContext(ctx, `INSERT INTO webhook_deliveries (id, event_type, url, secret, payload, status, attempts, next_attempt_at, dedup_key)
        VALUES ($1,$2,$3,$4,$5,'pending',0,now(),$6)
        ON CONFLICT (event_type, url, dedup_key) DO NOTHING`, id, eventType, url, nullIfEmpty(secret), payload, computeDedupKey(payload))
	if err != nil {
		return "", fmt.Errorf("store: enqueue webhook: %w", err)
	}
	return id, nil
}

const deliveryColumns = `id, event_type, url, COALESCE(secret,''), payload, status, attempts, next_attempt_at, COALESCE(last_error,''), COALESCE(response_code,0), COALESCE(latency_ms,0), delivered_at`

func scanDeliveries(rows *sql.Rows) ([]WebhookDelivery, error) {
	defer rows.Close()
	out := []WebhookDelivery{}
	for rows.Next() {
		var d WebhookDelivery
		var delivered sql.NullTime
		if err := rows.Scan(&d.ID, &d.EventType, &d.URL, &d.Secret, &d.Payload, &d.Status, &d.Attempts, &d.NextAttemptAt, &d.LastError, &d.ResponseCode, &d.LatencyMs, &delivered); err != nil {
			return nil, err
		}
		if delivered.Valid {
			t := delivered.Time
			d.DeliveredAt = &t
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) FetchDueWebhookDeliveries(ctx context.Context, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+deliveryColumns+`
        FROM webhook_deliveries WHERE status IN ('pending','retry') AND next_attempt_at <= now() ORDER BY next_attempt_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: fetch deliveries: %w", err)
	}
	return scanDeliveries(rows)
}

func (p *Postgres) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	var err error
	if success {
		_, err = p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='delivered', attempts=attempts+1, response_code=$2, latency_ms=$3, delivered_at=now() WHERE id=$1`, id, responseCode, latencyMs)
	} else {
		next := time.Now().Add(time.Minute)
		if nextAttemptAt != nil {
			next = *nextAttemptAt
		}
		_, err = p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='retry', attempts=attempts+1, next_attempt_at=$2, last_error=$3, response_code=$4, latency_ms=$5 WHERE id=$1`, id, next, nullIfEmpty(lastError), responseCode, latencyMs)
	}
	return err
}

func (p *Postgres) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	_, err := p.db.ExecContext(ctx, `UPDATE webhook_deliveries SET status='failed', attempts=attempts+1, last_error=$2, response_code=$3, latency_ms=$4 WHERE id=$1`, id, nullIfEmpty(lastError), responseCode, latencyMs)
	return err
}

func (p *Postgres) ListWebhookDeliveries(ctx context.Context, status string, limit int) ([]WebhookDelivery, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+deliveryColumns+` FROM webhook_deliveries WHERE ($1 = '' OR status = $1) ORDER BY next_attempt_at LIMIT $2`, status, page(limit))
	if err != nil {
		return nil, fmt.Errorf("store: list deliveries: %w", err)
	}
	return scanDeliveries(rows)
}

func computeDedupKey(payload []byte) string {
	// try to parse JSON and use id
	var m map[string]any
	if json.Unmarshal(payload, &m) == nil {
		if v, ok := m["id"].(string); ok && v != "" {
			return v
		}
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:8])
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// jsonOrNil encodes v for a jsonb column, nil pointers become NULL.
func jsonOrNil(v *opt.Summary) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("store: encode summary: %w", err)
	}
	return string(b), nil
}
