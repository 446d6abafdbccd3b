package webhooks

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fleetspan/internal/metrics"
	"fleetspan/internal/store"
)

type Worker struct {
	Store       store.Store
	HTTP        *http.Client
	Stop        chan struct{}
	MaxAttempts int
	Limiter     *rate.Limiter // paces requests; nil means unlimited
	Logger      *zap.Logger
}

func NewWorker(s store.Store, maxAttempts int, rps float64, logger *zap.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	var lim *rate.Limiter
	if rps > 0 {
		lim = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{Store: s, HTTP: &http.Client{Timeout: 5 * time.Second}, Stop: make(chan struct{}), MaxAttempts: maxAttempts, Limiter: lim, Logger: logger}
}

func (w *Worker) Start() {
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-w.Stop:
				return
			case <-ticker.C:
				w.processOnce()
			}
		}
	}()
}

func (w *Worker) processOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log := w.Logger
	if log == nil {
		log = zap.NewNop()
	}
	items, err := w.Store.FetchDueWebhookDeliveries(ctx, 50)
	if err != nil {
		log.Warn("fetch webhook deliveries", zap.Error(err))
		return
	}
	for _, it := range items {
		if w.Limiter != nil {
			if err := w.Limiter.Wait(ctx); err != nil {
				return
			}
		}
		success := false
		next := time.Now().Add(nextBackoff(it.Attempts))
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, it.URL, bytes.NewReader(it.Payload))
		if err != nil {
			_ = w.Store.FailWebhookDelivery(ctx, it.ID, err.Error(), 0, 0)
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Event-Type", it.EventType)
		if it.Secret != "" {
			req.Header.Set(SignatureHeader, SignHMAC(it.Secret, it.Payload, time.Now()))
		}
		start := time.Now()
		resp, err := w.HTTP.Do(req)
		latency := int(time.Since(start).Milliseconds())
		code := 0
		if err == nil && resp != nil {
			code = resp.StatusCode
			if resp.Body != nil {
				_ = resp.Body.Close()
			}
			if code >= 200 && code < 300 {
				success = true
			}
		}
		lastErr := ""
		if !success {
			if err != nil {
				lastErr = err.Error()
			} else {
				lastErr = "status " + strconv.Itoa(code)
			}
		}
		status := "delivered"
		switch {
		case !success && it.Attempts+1 >= w.MaxAttempts:
			status = "failed"
			_ = w.Store.FailWebhookDelivery(ctx, it.ID, lastErr, code, latency)
			log.Warn("webhook delivery failed", zap.String("id", it.ID), zap.String("event", it.EventType), zap.Int("attempts", it.Attempts+1), zap.String("error", lastErr))
		case !success:
			status = "retry"
			_ = w.Store.MarkWebhookDelivery(ctx, it.ID, false, &next, lastErr, code, latency)
		default:
			_ = w.Store.MarkWebhookDelivery(ctx, it.ID, true, nil, "", code, latency)
		}
		metrics.WebhookDeliveries.WithLabelValues(it.EventType, status).Inc()
		metrics.WebhookLatency.WithLabelValues(it.EventType, status).Observe(float64(latency))
	}
}

func nextBackoff(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	if attempts > 10 {
		attempts = 10
	}
	base := time.Second * time.Duration(1<<attempts)
	if base > time.Hour {
		base = time.Hour
	}
	return base
}
