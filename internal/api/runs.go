package api

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"fleetspan/internal/model"
	"fleetspan/internal/opt"
	"fleetspan/internal/problem"
)

const algoALNS = "alns"

// progressEvery throttles run.progress events per run
var progressEvery = 250 * time.Millisecond

// prepare turns a solve request into solver input and a queued run.
func (s *Server) prepare(req *model.SolveRequest) (opt.Problem, opt.Config, error) {
	if err := validateSolverOptions(req.Solver); err != nil {
		return opt.Problem{}, opt.Config{}, err
	}
	p, err := s.build(req)
	if err != nil {
		return opt.Problem{}, opt.Config{}, err
	}
	return p, req.Solver.Apply(s.Solver), nil
}

func (s *Server) build(req *model.SolveRequest) (opt.Problem, error) {
	if strings.TrimSpace(req.Matrix) == "" {
		return req.Problem.Build(nil)
	}
	m, err := problem.ReadMatrix(strings.NewReader(req.Matrix), req.Problem.Costs.Symmetric)
	if err != nil {
		return opt.Problem{}, err
	}
	return req.Problem.Build(m)
}

// startAsync runs the solve in the background; DELETE /v1/runs/{id} or
// Close cancel it.
func (s *Server) startAsync(run model.Run, p opt.Problem, cfg opt.Config) {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancels.Store(run.ID, cancel)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		s.execute(ctx, run, p, cfg)
	}()
}

// execute solves p and records the outcome on run. The store keeps the
// final state; subscribers and webhooks are told about it.
func (s *Server) execute(ctx context.Context, run model.Run, p opt.Problem, cfg opt.Config) model.Run {
	log := s.Logger.With(zap.String("runId", run.ID))
	started := time.Now().UTC()
	run.Status = model.RunRunning
	run.StartedAt = &started
	// the run must outlive a cancelled request when persisting its result
	bg := context.WithoutCancel(ctx)
	if err := s.Store.UpdateRun(bg, run); err != nil {
		log.Warn("mark run running", zap.Error(err))
	}
	s.publish(run, "run.started", nil)

	eng := opt.NewMinMaxEngine(p, cfg, log)
	lim := rate.NewLimiter(rate.Every(progressEvery), 1)
	eng.OnProgress = func(pr opt.Progress) {
		if lim.Allow() {
			s.publish(run, "run.progress", &pr)
		}
	}
	res, err := eng.Solve(ctx)

	finished := time.Now().UTC()
	run.FinishedAt = &finished
	run.Iterations = res.Metrics.Iterations
	if res.Best != nil {
		sum := opt.Summarize(res.Best, p.Transport)
		run.Summary = &sum
		run.Fitness = res.Cost
	}
	switch {
	case err == nil:
		run.Status = model.RunSucceeded
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		run.Status = model.RunCancelled
		run.Error = err.Error()
	default:
		run.Status = model.RunFailed
		run.Error = err.Error()
	}
	if res.Best != nil {
		opt.RecordMetrics(run.ID, algoALNS, res.Metrics)
		if err := s.Store.SavePlanMetrics(bg, model.NewPlanMetrics(run.ID, algoALNS, res.Metrics)); err != nil {
			log.Warn("save plan metrics", zap.Error(err))
		} else {
			// persisted; the in-memory copy only covers store failures
			opt.ForgetMetrics(run.ID)
		}
	}
	// no longer cancellable once the final state is visible
	s.cancels.Delete(run.ID)
	if err := s.Store.UpdateRun(bg, run); err != nil {
		log.Error("save run", zap.Error(err))
	}

	evt := "run.completed"
	if run.Status != model.RunSucceeded {
		evt = "run.failed"
	}
	s.publish(run, evt, nil)
	if _, err := s.Pub.Emit(bg, evt, run); err != nil {
		log.Warn("enqueue webhook", zap.String("event", evt), zap.Error(err))
	}
	log.Info("run finished", zap.String("status", string(run.Status)), zap.Float64("fitness", run.Fitness))
	return run
}

func (s *Server) publish(run model.Run, typ string, pr *opt.Progress) {
	s.Broker.Publish(run.ID, model.RunEvent{
		Type:     typ,
		RunID:    run.ID,
		Status:   run.Status,
		Progress: pr,
		Fitness:  run.Fitness,
		Error:    run.Error,
		TS:       time.Now().UTC().Format(time.RFC3339Nano),
	})
}

// cancelRun stops an in-flight async run. It reports false when no such
// run is executing here.
func (s *Server) cancelRun(id string) bool {
	v, ok := s.cancels.Load(id)
	if !ok {
		return false
	}
	v.(context.CancelFunc)()
	return true
}
