package opt

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"

	"go.uber.org/zap"

	"fleetspan/internal/metrics"
	"fleetspan/internal/minmax"
	"fleetspan/internal/state"
	"fleetspan/internal/vrp"
)

type Metrics struct {
	Seed                  int64
	RemovalSelects        [2]int // random, shaw
	InsertSelects         [2]int // greedy, regret2
	Iterations            int
	Improvements          int
	AcceptedWorse         int
	TerminatedEarly       bool
	BestCost              float64
	FinalCost             float64
	FinalRemovalWeights   [2]float64
	FinalInsertionWeights [2]float64
	Snapshots             []WeightSnapshot
	Duration              time.Duration
}

type WeightSnapshot struct {
	Iteration int
	Removal   [2]float64
	Insertion [2]float64
}

// Progress is reported whenever the best solution improves.
type Progress struct {
	Iteration   int     `json:"iteration"`
	BestCost    float64 `json:"bestCost"`
	CurrentCost float64 `json:"currentCost"`
	MaxSpan     float64 `json:"maxSpan"`
	Unassigned  int     `json:"unassigned"`
}

// Result is the outcome of Solve.
type Result struct {
	Best    *vrp.Solution
	Cost    float64
	Metrics Metrics
}

// Engine runs ruin-and-recreate over vrp routes. Candidate insertions are
// priced by the local transport delta plus every soft constraint; listeners
// are told about each route after it is built or changed.
type Engine struct {
	Problem     Problem
	Config      Config
	Registry    *state.Registry
	Constraints []vrp.SoftActivityConstraint
	Listeners   []vrp.RouteListener
	Objective   vrp.SolutionCostCalculator
	Logger      *zap.Logger
	OnProgress  func(Progress)

	jobs map[string]vrp.Job
}

// NewMinMaxEngine wires a fresh registry, the span updater and the span
// penalty into an engine that optimizes the min-max objective.
func NewMinMaxEngine(p Problem, cfg Config, logger *zap.Logger) *Engine {
	reg := state.NewRegistry()
	updater := minmax.NewSpanUpdater(reg, p.Transport, p.Activity)
	_ = updater.Reset() // a fresh registry accepts any float64
	return &Engine{
		Problem:     p,
		Config:      cfg,
		Registry:    reg,
		Constraints: []vrp.SoftActivityConstraint{minmax.NewSpanPenalty(reg, p.Transport, p.Activity)},
		Listeners:   []vrp.RouteListener{updater},
		Objective:   minmax.Objective{},
		Logger:      logger,
	}
}

// Solve runs the search until the iteration limit, the time budget, the
// termination criterion or ctx stops it. On cancellation the best solution
// found so far is returned together with ctx.Err().
func (e *Engine) Solve(ctx context.Context) (Result, error) {
	if err := e.Problem.validate(); err != nil {
		return Result{}, err
	}
	if e.Logger == nil {
		e.Logger = zap.NewNop()
	}
	if e.Objective == nil {
		e.Objective = minmax.Objective{}
	}
	if e.Registry != nil {
		// the span maximum is per run
		if err := e.Registry.PutFloat64(minmax.MaxSpanID, 0); err != nil {
			return Result{}, fmt.Errorf("reset span max: %w", err)
		}
	}
	e.jobs = make(map[string]vrp.Job, len(e.Problem.Jobs))
	for _, j := range e.Problem.Jobs {
		e.jobs[j.ID] = j
	}
	cfg := e.Config.withDefaults(len(e.Problem.Jobs))
	started := time.Now()
	seed := cfg.Seed
	if seed == 0 {
		seed = started.UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	log := e.Logger.With(zap.Int64("seed", seed), zap.Int("jobs", len(e.Problem.Jobs)), zap.Int("vehicles", len(e.Problem.Vehicles)))
	log.Info("solve started", zap.Int("iterations", cfg.Iterations), zap.Duration("timeBudget", cfg.TimeBudget))

	curr, err := e.seedSolution(ctx, cfg)
	if err != nil {
		return Result{}, err
	}
	currCost := e.cost(curr)
	best, bestCost := curr.Clone(), currCost
	e.progress(0, bestCost, currCost, best)

	// operator weights (removal + insertion)
	remW := []float64{1, 1} // random, shaw
	insW := []float64{1, 1} // greedy, regret2
	if len(cfg.InitialRemovalWeights) == 2 {
		remW = []float64{cfg.InitialRemovalWeights[0], cfg.InitialRemovalWeights[1]}
	}
	if len(cfg.InitialInsertionWeights) == 2 {
		insW = []float64{cfg.InitialInsertionWeights[0], cfg.InitialInsertionWeights[1]}
	}
	temp := cfg.InitialTemp
	m := Metrics{Seed: seed, BestCost: bestCost}
	var deadline time.Time
	if cfg.TimeBudget > 0 {
		deadline = started.Add(cfg.TimeBudget)
	}
	term := newVariationTermination(cfg.Termination)
	snapshotEvery := 50
	var runErr error
	for m.Iterations < cfg.Iterations && len(e.jobs) > 0 {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		m.Iterations++
		metrics.SolveIterations.Inc()
		k := 1 + rng.Intn(cfg.MaxRemoved)
		// select operators by roulette wheel
		op := selectOp(remW, rng)
		m.RemovalSelects[op]++
		ip := selectOp(insW, rng)
		m.InsertSelects[ip]++

		cand := curr.Clone()
		var removed []string
		switch op {
		case 0:
			removed = pickRandomJobs(cand, k, rng)
		case 1:
			removed = e.shawRemoval(cand, k, rng)
		}
		touched := e.removeJobs(cand, removed)
		pending := append(cand.Unassigned, removed...)
		cand.Unassigned = nil
		var inserted []int
		switch ip {
		case 0:
			inserted, err = e.greedyInsert(ctx, cand, pending, cfg.Workers)
		case 1:
			inserted, err = e.regretInsert(ctx, cand, pending, cfg.Workers)
		}
		if err != nil {
			runErr = err
			break
		}
		touched = append(touched, inserted...)
		// local improvement on the routes this iteration changed
		e.improveRoutes(cand, touched)
		candCost := e.cost(cand)

		// acceptance criterion (simulated annealing-like)
		delta := candCost - currCost
		if delta < 0 || rng.Float64() < math.Exp(-delta/(temp+1e-9)) {
			curr, currCost = cand, candCost
			if candCost < bestCost {
				best, bestCost = cand.Clone(), candCost
				remW[op] += 0.1
				insW[ip] += 0.1
				m.Improvements++
				m.BestCost = bestCost
				log.Debug("improved", zap.Int("iteration", m.Iterations), zap.Float64("cost", bestCost))
				e.progress(m.Iterations, bestCost, currCost, best)
			} else {
				remW[op] += 0.01
				insW[ip] += 0.01
				m.AcceptedWorse++
			}
		} else {
			// slight penalty for non-acceptance
			remW[op] = math.Max(0.01, remW[op]*0.999)
			insW[ip] = math.Max(0.01, insW[ip]*0.999)
		}
		temp *= cfg.Cooling
		// snapshot weights
		if m.Iterations%snapshotEvery == 0 {
			m.Snapshots = append(m.Snapshots, WeightSnapshot{Iteration: m.Iterations, Removal: [2]float64{remW[0], remW[1]}, Insertion: [2]float64{insW[0], insW[1]}})
		}
		if term.done(currCost) {
			m.TerminatedEarly = true
			break
		}
	}
	m.FinalCost = bestCost
	m.FinalRemovalWeights = [2]float64{remW[0], remW[1]}
	m.FinalInsertionWeights = [2]float64{insW[0], insW[1]}
	m.Duration = time.Since(started)

	outcome := "done"
	if runErr != nil {
		outcome = "cancelled"
	}
	metrics.SolveDuration.WithLabelValues(outcome).Observe(m.Duration.Seconds())
	metrics.BestFitness.Set(bestCost)
	log.Info("solve finished",
		zap.String("outcome", outcome),
		zap.Int("iterations", m.Iterations),
		zap.Int("improvements", m.Improvements),
		zap.Bool("terminatedEarly", m.TerminatedEarly),
		zap.Float64("bestCost", bestCost),
		zap.Int("unassigned", len(best.Unassigned)),
		zap.Duration("took", m.Duration))
	return Result{Best: best, Cost: bestCost, Metrics: m}, runErr
}

// cost is the objective plus the unassigned penalty.
func (e *Engine) cost(s *vrp.Solution) float64 {
	pen := e.Problem.UnassignedPenalty
	if pen <= 0 {
		pen = 10000
	}
	return e.Objective.Score(s) + pen*float64(len(s.Unassigned))
}

func (e *Engine) progress(iteration int, bestCost, currCost float64, best *vrp.Solution) {
	if e.OnProgress == nil {
		return
	}
	e.OnProgress(Progress{
		Iteration:   iteration,
		BestCost:    bestCost,
		CurrentCost: currCost,
		MaxSpan:     minmax.Breakdown(best).MaxSpan,
		Unassigned:  len(best.Unassigned),
	})
}

// seedSolution opens one empty route per vehicle, announces them to the
// listeners and inserts every job greedily.
func (e *Engine) seedSolution(ctx context.Context, cfg Config) (*vrp.Solution, error) {
	sol := &vrp.Solution{Routes: make([]*vrp.Route, len(e.Problem.Vehicles))}
	all := make([]int, len(sol.Routes))
	for i, v := range e.Problem.Vehicles {
		sol.Routes[i] = vrp.NewRoute(v, vrp.NoDriver)
		vrp.Schedule(sol.Routes[i], e.Problem.Transport, e.Problem.Activity)
		all[i] = i
	}
	e.notify(sol, all)
	ids := make([]string, 0, len(e.Problem.Jobs))
	for _, j := range e.Problem.Jobs {
		ids = append(ids, j.ID)
	}
	if _, err := e.greedyInsert(ctx, sol, ids, cfg.Workers); err != nil {
		return nil, err
	}
	return sol, nil
}

func pickRandomJobs(sol *vrp.Solution, k int, rng *rand.Rand) []string {
	all := []string{}
	for _, r := range sol.Routes {
		all = append(all, r.JobIDs()...)
	}
	if len(all) == 0 {
		return nil
	}
	removed := []string{}
	for i := 0; i < k && len(all) > 0; i++ {
		j := rng.Intn(len(all))
		removed = append(removed, all[j])
		all = append(all[:j], all[j+1:]...)
	}
	return removed
}

// removeJobs drops ids from their routes, reschedules the changed routes and
// notifies the listeners. It returns the changed route indexes.
func (e *Engine) removeJobs(sol *vrp.Solution, ids []string) []int {
	if len(ids) == 0 {
		return nil
	}
	rm := map[string]bool{}
	for _, id := range ids {
		rm[id] = true
	}
	var touched []int
	for ri, r := range sol.Routes {
		changed := false
		for _, id := range r.JobIDs() {
			if rm[id] && r.Remove(id) {
				changed = true
			}
		}
		if changed {
			vrp.Schedule(r, e.Problem.Transport, e.Problem.Activity)
			touched = append(touched, ri)
		}
	}
	e.notify(sol, touched)
	return touched
}

// shawRemoval selects k jobs related by travel time and time windows.
func (e *Engine) shawRemoval(sol *vrp.Solution, k int, rng *rand.Rand) []string {
	assigned := []*vrp.Activity{}
	for _, r := range sol.Routes {
		assigned = append(assigned, r.Activities...)
	}
	if len(assigned) == 0 {
		return nil
	}
	seed := assigned[rng.Intn(len(assigned))]
	type pair struct {
		id    string
		score float64
	}
	rel := []pair{}
	for _, a := range assigned {
		if a.JobID == seed.JobID {
			continue
		}
		travel := e.Problem.Transport.Time(seed.Location, a.Location, 0, vrp.NoDriver, e.Problem.Vehicles[0])
		score := travel + math.Abs(seed.EarliestStart-a.EarliestStart)
		rel = append(rel, pair{id: a.JobID, score: score})
	}
	sort.Slice(rel, func(i, j int) bool { return rel[i].score < rel[j].score })
	removed := []string{seed.JobID}
	for i := 0; i < len(rel) && len(removed) < k; i++ {
		removed = append(removed, rel[i].id)
	}
	return removed
}

func selectOp(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return 0
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}
