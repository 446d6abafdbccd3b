package main

import (
    "net/http"
    "net/http/httptest"
    "testing"

    "github.com/prometheus/client_golang/prometheus/testutil"
    "go.uber.org/zap/zaptest"

    "fleetspan/internal/metrics"
)

func TestRouteLabel(t *testing.T) {
    cases := map[string]string{
        "/v1/runs":        "/v1/runs",
        "/v1/runs/abc":    "/v1/runs/{id}",
        "/v1/runs/abc/ws": "/v1/runs/{id}/ws",
        "/v1/solve":       "/v1/solve",
    }
    for in, want := range cases {
        if got := routeLabel(in); got != want { t.Fatalf("routeLabel(%q) = %q, want %q", in, got, want) }
    }
}

func TestLogMiddlewareRecordsMetrics(t *testing.T) {
    h := logMiddleware(zaptest.NewLogger(t), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        w.WriteHeader(http.StatusTeapot)
    }))
    before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/v1/runs/{id}", "418"))
    h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/runs/r1", nil))
    after := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues("GET", "/v1/runs/{id}", "418"))
    if after-before != 1 { t.Fatalf("want one request counted, got %v", after-before) }
}
