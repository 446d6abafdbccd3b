package metrics

import (
    "sync"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the service
    Registry = prometheus.NewRegistry()
    // HTTPRequests counts requests by method, path, and status
    HTTPRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
        []string{"method", "path", "status"},
    )
    // HTTPDuration records request durations in seconds
    HTTPDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
        []string{"method", "path", "status"},
    )

    // InsertionEvaluations counts candidate insertions scored by the span penalty
    InsertionEvaluations = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "fleetspan_insertion_evaluations_total", Help: "Candidate insertions scored by the span penalty."},
    )
    // SpanPenalties records how far penalized candidates overshoot the max span
    SpanPenalties = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "fleetspan_span_overshoot", Help: "Span overshoot of penalized candidates (time units).", Buckets: prometheus.ExponentialBuckets(1, 2, 12)},
    )
    // SpanUpdates counts route span recomputations by outcome (raised, kept)
    SpanUpdates = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "fleetspan_span_updates_total", Help: "Route span recomputations by outcome."},
        []string{"outcome"},
    )
    // MaxSpan is the most recently stored maximum route span
    MaxSpan = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "fleetspan_max_span", Help: "Most recently stored maximum route span."},
    )

    // SolveIterations counts ruin-and-recreate iterations
    SolveIterations = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "fleetspan_solve_iterations_total", Help: "Ruin-and-recreate iterations executed."},
    )
    // SolveDuration tracks wall time per solve by outcome
    SolveDuration = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "fleetspan_solve_duration_seconds", Help: "Solve wall time in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}},
        []string{"outcome"},
    )
    // BestFitness is the fitness of the last finished solve
    BestFitness = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "fleetspan_best_fitness", Help: "Fitness of the last finished solve."},
    )

    // WebhookDeliveries counts webhook delivery outcomes by event type and status
    WebhookDeliveries = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
        []string{"event_type", "status"},
    )
    // WebhookLatency tracks webhook delivery latencies in milliseconds
    WebhookLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
        []string{"event_type", "status"},
    )
)

// RegisterDefault registers collectors to Registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(HTTPRequests, HTTPDuration)
        Registry.MustRegister(InsertionEvaluations, SpanPenalties, SpanUpdates, MaxSpan)
        Registry.MustRegister(SolveIterations, SolveDuration, BestFitness)
        Registry.MustRegister(WebhookDeliveries, WebhookLatency)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
