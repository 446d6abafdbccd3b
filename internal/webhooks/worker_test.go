package webhooks

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"fleetspan/internal/store"
)

type recordStore struct {
	*store.Memory
	mu    sync.Mutex
	marks []MarkRec
	fails []FailRec
}
type MarkRec struct {
	ID            string
	Success       bool
	Code, Latency int
	LastErr       string
}
type FailRec struct {
	ID            string
	Code, Latency int
	LastErr       string
}

func (r *recordStore) MarkWebhookDelivery(ctx context.Context, id string, success bool, nextAttemptAt *time.Time, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.marks = append(r.marks, MarkRec{ID: id, Success: success, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.MarkWebhookDelivery(ctx, id, success, nextAttemptAt, lastError, responseCode, latencyMs)
}
func (r *recordStore) FailWebhookDelivery(ctx context.Context, id string, lastError string, responseCode int, latencyMs int) error {
	r.mu.Lock()
	r.fails = append(r.fails, FailRec{ID: id, Code: responseCode, Latency: latencyMs, LastErr: lastError})
	r.mu.Unlock()
	return r.Memory.FailWebhookDelivery(ctx, id, lastError, responseCode, latencyMs)
}

func TestWorkerProcessOnce_SuccessAndSignature(t *testing.T) {
	var gotSig, gotType string
	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(SignatureHeader)
		gotType = r.Header.Get("X-Event-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(200)
	}))
	defer srv.Close()

	rs := &recordStore{Memory: store.NewMemory()}
	w := &Worker{Store: rs, HTTP: srv.Client(), Stop: make(chan struct{}), MaxAttempts: 3, Logger: zaptest.NewLogger(t)}
	pub := NewPublisher(rs, srv.URL, "secret")
	id, err := pub.Emit(context.Background(), "run.completed", map[string]any{"runId": "r1"})
	if err != nil || id == "" {
		t.Fatalf("emit failed: %v", err)
	}

	w.processOnce()

	if gotType != "run.completed" {
		t.Fatalf("missing type header: %q", gotType)
	}
	if !VerifyHMAC("secret", body, gotSig, time.Minute) {
		t.Fatalf("signature %q does not verify", gotSig)
	}
	if len(rs.marks) == 0 || !rs.marks[0].Success {
		t.Fatalf("expected mark success, got: %+v", rs.marks)
	}
}

func TestWorkerProcessOnce_RetryThenFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(500) }))
	defer srv.Close()
	rs := &recordStore{Memory: store.NewMemory()}
	w := NewWorker(rs, 2, 100, zaptest.NewLogger(t))
	w.HTTP = srv.Client()
	id, _ := rs.Memory.EnqueueWebhook(context.Background(), "run.failed", srv.URL, "", []byte(`{}`))

	w.processOnce()
	if len(rs.marks) != 1 || rs.marks[0].Success || rs.marks[0].LastErr != "status 500" {
		t.Fatalf("expected one retry mark, got %+v", rs.marks)
	}

	// make the retry due right away
	now := time.Now().Add(-time.Second)
	_ = rs.Memory.MarkWebhookDelivery(context.Background(), id, false, &now, "status 500", 500, 0)
	w.processOnce()
	if len(rs.fails) != 1 || rs.fails[0].Code != 500 {
		t.Fatalf("expected fail recorded, got %+v", rs.fails)
	}
}

func TestPublisherWithoutURLDropsEvents(t *testing.T) {
	rs := store.NewMemory()
	id, err := NewPublisher(rs, "", "").Emit(context.Background(), "run.completed", nil)
	if err != nil || id != "" {
		t.Fatalf("expected no-op, got %q %v", id, err)
	}
	due, _ := rs.FetchDueWebhookDeliveries(context.Background(), 10)
	if len(due) != 0 {
		t.Fatalf("nothing should be queued")
	}
}

func TestNextBackoff(t *testing.T) {
	if nextBackoff(0) != time.Second || nextBackoff(3) != 8*time.Second {
		t.Fatalf("unexpected backoff progression")
	}
	if nextBackoff(50) != 1024*time.Second || nextBackoff(-1) != time.Second {
		t.Fatalf("attempts must be clamped, got %v", nextBackoff(50))
	}
}

func TestNewWorkerDefaults(t *testing.T) {
	w := NewWorker(store.NewMemory(), 0, 0, nil)
	if w.MaxAttempts != 10 || w.Limiter != nil || w.Logger == nil {
		t.Fatalf("unexpected defaults: %+v", w)
	}
	w = NewWorker(store.NewMemory(), 3, 5, nil)
	if w.Limiter.Limit() != rate.Limit(5) {
		t.Fatalf("limiter not configured")
	}
}

func TestSignAndVerify(t *testing.T) {
	now := time.Now()
	sig := SignHMAC("k", []byte("body"), now)
	if !VerifyHMAC("k", []byte("body"), sig, time.Minute) || VerifyHMAC("k", []byte("other"), sig, time.Minute) || VerifyHMAC("k", []byte("body"), "t=1,v1=zz", 0) {
		t.Fatalf("hmac round trip broken")
	}
	old := SignHMAC("k", []byte("body"), now.Add(-time.Hour))
	if VerifyHMAC("k", []byte("body"), old, time.Minute) || !VerifyHMAC("k", []byte("body"), old, 0) {
		t.Fatalf("tolerance not applied to %q", old)
	}
}
