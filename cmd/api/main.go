package main

import (
    "bufio"
    "context"
    "errors"
    "net"
    "net/http"
    "os"
    "os/signal"
    "strconv"
    "syscall"
    "time"

    "github.com/prometheus/client_golang/prometheus/promhttp"
    "go.uber.org/zap"

    "fleetspan/internal/api"
    "fleetspan/internal/buildinfo"
    "fleetspan/internal/config"
    "fleetspan/internal/logging"
    "fleetspan/internal/metrics"
)

func main() {
    cfg, err := config.Load(".env")
    if err != nil {
        panic(err)
    }
    logger, err := logging.New(cfg.LogLevel)
    if err != nil {
        panic(err)
    }
    defer func() { _ = logger.Sync() }()
    metrics.RegisterDefault()

    srvDeps, err := api.NewServer(cfg, logger)
    if err != nil {
        logger.Fatal("failed to init server", zap.Error(err))
    }

    mux := http.NewServeMux()

    // Solving
    mux.HandleFunc("/v1/solve", srvDeps.SolveHandler)
    mux.HandleFunc("/v1/solver/config", srvDeps.SolverConfigHandler)

    // Runs
    mux.HandleFunc("/v1/runs", srvDeps.RunsHandler)
    mux.HandleFunc("/v1/runs/", srvDeps.RunByIDHandler) // includes /ws

    // Health
    mux.HandleFunc("/healthz", srvDeps.HealthHandler)
    mux.HandleFunc("/readyz", srvDeps.ReadyHandler)
    mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

    // Admin
    mux.HandleFunc("/v1/admin/plan-metrics", srvDeps.PlanMetricsHandler)
    mux.HandleFunc("/v1/admin/webhook-deliveries", srvDeps.WebhookDeliveriesHandler)

    addr := ":" + cfg.Port
    srv := &http.Server{
        Addr:              addr,
        Handler:           logMiddleware(logger, mux),
        ReadHeaderTimeout: 5 * time.Second,
    }

    // Start webhook worker
    worker := srvDeps.NewWebhookWorker()
    if cfg.WebhookURL != "" {
        worker.Start()
        defer close(worker.Stop)
    }

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()
    go func() {
        <-ctx.Done()
        shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
        defer cancel()
        _ = srv.Shutdown(shutdownCtx)
    }()

    logger.Info("API listening", zap.String("addr", addr), zap.String("version", buildinfo.Version))
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
        logger.Fatal("server error", zap.Error(err))
    }
    srvDeps.Close()
    logger.Info("API stopped")
}

type statusRecorder struct {
    http.ResponseWriter
    status int
}

func (r *statusRecorder) WriteHeader(code int) {
    r.status = code
    r.ResponseWriter.WriteHeader(code)
}

// Hijack passes websocket upgrades through to the underlying writer.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
    h, ok := r.ResponseWriter.(http.Hijacker)
    if !ok {
        return nil, nil, errors.New("hijack not supported")
    }
    r.status = http.StatusSwitchingProtocols
    return h.Hijack()
}

func logMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        start := time.Now()
        rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
        next.ServeHTTP(rec, r)
        dur := time.Since(start)
        status := strconv.Itoa(rec.status)
        path := routeLabel(r.URL.Path)
        metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
        metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(dur.Seconds())
        logger.Info("request",
            zap.String("remote", r.RemoteAddr),
            zap.String("method", r.Method),
            zap.String("path", r.URL.Path),
            zap.Int("status", rec.status),
            zap.Duration("took", dur))
    })
}

// routeLabel collapses run ids so metric label cardinality stays bounded.
func routeLabel(path string) string {
    const runs = "/v1/runs/"
    if len(path) > len(runs) && path[:len(runs)] == runs {
        if len(path) > 3 && path[len(path)-3:] == "/ws" {
            return runs + "{id}/ws"
        }
        return runs + "{id}"
    }
    return path
}
