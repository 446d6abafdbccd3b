package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"fleetspan/internal/buildinfo"
	"fleetspan/internal/model"
	"fleetspan/internal/opt"
	"fleetspan/internal/store"
)

// maxRequestBytes bounds POST /v1/solve bodies
const maxRequestBytes = 8 << 20

// SolveHandler handles POST /v1/solve. Synchronous requests answer with the
// finished run; async ones answer 202 with the queued run.
func (s *Server) SolveHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solve" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req model.SolveRequest
	if err := decodeJSON(w, r, maxRequestBytes, &req); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid JSON", err.Error(), r.URL.Path)
		return
	}
	p, cfg, err := s.prepare(&req)
	if err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid solve request", err.Error(), r.URL.Path)
		return
	}
	run, err := s.Store.CreateRun(r.Context(), model.Run{
		Name:     req.Problem.Name,
		Status:   model.RunQueued,
		Jobs:     len(p.Jobs),
		Vehicles: len(p.Vehicles),
	})
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "Create run failed", err.Error(), r.URL.Path)
		return
	}
	if req.Async {
		s.startAsync(run, p, cfg)
		w.Header().Set("Location", "/v1/runs/"+run.ID)
		writeJSON(w, http.StatusAccepted, run)
		return
	}
	run = s.execute(r.Context(), run, p, cfg)
	code := http.StatusOK
	if run.Status == model.RunFailed {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, run)
}

// RunsHandler handles GET /v1/runs
func (s *Server) RunsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	status := model.RunStatus(r.URL.Query().Get("status"))
	cursor := r.URL.Query().Get("cursor")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := s.Store.ListRuns(r.Context(), status, cursor, limit)
	if err != nil {
		writeProblem(w, http.StatusInternalServerError, "List runs failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RunByIDHandler handles /v1/runs/{id} (GET, DELETE) and /v1/runs/{id}/ws
func (s *Server) RunByIDHandler(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" || len(parts) > 2 {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	id := parts[0]
	if len(parts) == 2 {
		if parts[1] != "ws" {
			writeProblem(w, 404, "Not Found", "", r.URL.Path)
			return
		}
		s.RunStreamHandler(w, r, id)
		return
	}
	switch r.Method {
	case http.MethodGet:
		run, err := s.Store.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Run not found", id, r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, 500, "Get run failed", err.Error(), r.URL.Path)
			return
		}
		writeJSON(w, 200, run)
	case http.MethodDelete:
		if !s.requireAdmin(w, r) {
			return
		}
		if s.cancelRun(id) {
			writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "cancelling"})
			return
		}
		run, err := s.Store.GetRun(r.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			writeProblem(w, 404, "Run not found", id, r.URL.Path)
			return
		}
		if err != nil {
			writeProblem(w, 500, "Get run failed", err.Error(), r.URL.Path)
			return
		}
		writeProblem(w, http.StatusConflict, "Run not cancellable", "run is "+string(run.Status), r.URL.Path)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// SolverConfigHandler returns the solver defaults runs start from
func (s *Server) SolverConfigHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/solver/config" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{
		"algorithm": algoALNS,
		"objective": "min-max span",
		"defaults":  s.Solver,
	})
}

// PlanMetricsHandler handles GET /v1/admin/plan-metrics?runId=&algo=
func (s *Server) PlanMetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/plan-metrics" || r.Method != http.MethodGet {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	runID := r.URL.Query().Get("runId")
	if runID == "" {
		writeProblem(w, 400, "Missing runId", "", r.URL.Path)
		return
	}
	algo := r.URL.Query().Get("algo")
	includeWeights := false
	if v := r.URL.Query().Get("includeWeights"); strings.EqualFold(v, "true") || v == "1" {
		includeWeights = true
	}
	// Prefer stored metrics; fallback to in-memory
	items, err := s.Store.ListPlanMetrics(r.Context(), runID, algo)
	if err != nil || len(items) == 0 {
		items = []model.PlanMetrics{}
		for a, m := range opt.GetMetrics(runID) {
			if algo != "" && a != algo {
				continue
			}
			items = append(items, model.NewPlanMetrics(runID, a, m))
		}
	}
	if !includeWeights {
		for i := range items {
			items[i].Snapshots = nil
		}
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

// Admin: webhook delivery log
func (s *Server) WebhookDeliveriesHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/v1/admin/webhook-deliveries" {
		writeProblem(w, 404, "Not Found", "", r.URL.Path)
		return
	}
	if !s.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(405)
		return
	}
	status := r.URL.Query().Get("status")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, err := s.Store.ListWebhookDeliveries(r.Context(), status, limit)
	if err != nil {
		writeProblem(w, 500, "List deliveries failed", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, 200, map[string]any{"items": items})
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}
	for k, v := range buildinfo.Info() {
		body[k] = v
	}
	writeJSON(w, 200, body)
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	// Redis broker too, when configured
	type pinger interface{ Ping(ctx context.Context) error }
	if pb, ok := s.Broker.(pinger); ok {
		if err := pb.Ping(ctx); err != nil {
			writeProblem(w, 503, "Not Ready", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, 200, map[string]string{"status": "ready"})
}
