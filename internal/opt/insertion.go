package opt

import (
	"context"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"fleetspan/internal/vrp"
)

// option is the cheapest feasible position for one job on one route.
type option struct {
	route int
	pos   int
	cost  float64
}

// rankedOption carries the best and second best insertion cost of a job
// across all routes.
type rankedOption struct {
	best   option
	second float64
	ok     bool
}

// rankJob scores every position of every route for job. Routes are scored
// concurrently; the solution is only read while scoring.
func (e *Engine) rankJob(ctx context.Context, sol *vrp.Solution, job vrp.Job, workers int) (rankedOption, error) {
	perRoute := make([][2]option, len(sol.Routes))
	g, gctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for ri := range sol.Routes {
		ri := ri
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perRoute[ri] = e.bestOnRoute(sol.Routes[ri], ri, job)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rankedOption{}, err
	}
	out := rankedOption{best: option{cost: math.MaxFloat64}, second: math.MaxFloat64}
	for _, pr := range perRoute {
		for _, o := range pr {
			if o.pos < 0 {
				continue
			}
			if o.cost < out.best.cost {
				out.second = out.best.cost
				out.best = o
				out.ok = true
			} else if o.cost < out.second {
				out.second = o.cost
			}
		}
	}
	return out, nil
}

// bestOnRoute returns the two cheapest feasible positions of job on r.
// Missing options have pos -1.
func (e *Engine) bestOnRoute(r *vrp.Route, ri int, job vrp.Job) [2]option {
	res := [2]option{{route: ri, pos: -1, cost: math.MaxFloat64}, {route: ri, pos: -1, cost: math.MaxFloat64}}
	v := r.Vehicle
	if v.Capacity > 0 && r.Load()+job.Demand > v.Capacity {
		return res
	}
	for pos := 0; pos <= len(r.Activities); pos++ {
		c, ok := e.insertionCost(r, job, pos)
		if !ok {
			continue
		}
		if c < res[0].cost {
			res[1] = res[0]
			res[0] = option{route: ri, pos: pos, cost: c}
		} else if c < res[1].cost {
			res[1] = option{route: ri, pos: pos, cost: c}
		}
	}
	return res
}

// insertionCost prices job at pos: local transport delta plus every soft
// constraint. Hard time windows and the latest arrival are checked by
// rescheduling a copy of the route.
func (e *Engine) insertionCost(r *vrp.Route, job vrp.Job, pos int) (float64, bool) {
	tc, ac := e.Problem.Transport, e.Problem.Activity
	tmp := r.Clone()
	tmp.Insert(pos, job.NewActivity())
	if !vrp.Schedule(tmp, tc, ac) {
		return 0, false
	}

	act := job.NewActivity()
	prev, next := r.Prev(pos), r.Next(pos)
	dep := prev.EndTime
	v, d := r.Vehicle, r.Driver

	local := tc.Cost(prev.Location, act.Location, dep, d, v)
	if !(next.IsEnd() && !v.ReturnToDepot) {
		arr := dep + tc.Time(prev.Location, act.Location, dep, d, v)
		end := math.Max(arr, act.EarliestStart) + ac.Duration(act, arr, d, v)
		local += tc.Cost(act.Location, next.Location, end, d, v) - tc.Cost(prev.Location, next.Location, dep, d, v)
	}

	cand := &vrp.Insertion{
		Route: r, Vehicle: v, Driver: d, DepartureTime: r.DepartureTime(),
		Prev: prev, New: act, Next: next, DepTimeAtPrev: dep,
	}
	total := local
	for _, c := range e.Constraints {
		s, err := c.Score(cand)
		if err != nil {
			e.Logger.Debug("candidate skipped", zap.String("job", job.ID), zap.String("vehicle", v.ID), zap.Int("pos", pos), zap.Error(err))
			return 0, false
		}
		total += s
	}
	if math.IsNaN(total) {
		return 0, false
	}
	return total, true
}

// commit inserts job into route ri at pos, reschedules and notifies listeners.
func (e *Engine) commit(sol *vrp.Solution, o option, job vrp.Job) {
	r := sol.Routes[o.route]
	r.Insert(o.pos, job.NewActivity())
	vrp.Schedule(r, e.Problem.Transport, e.Problem.Activity)
	e.notify(sol, []int{o.route})
}

// greedyInsert repeatedly commits the cheapest insertion over all pending
// jobs. Jobs with no feasible position end up in sol.Unassigned. It returns
// the indexes of the routes it changed.
func (e *Engine) greedyInsert(ctx context.Context, sol *vrp.Solution, pending []string, workers int) ([]int, error) {
	var touched []int
	for len(pending) > 0 {
		bestIdx := -1
		var best option
		for i, id := range pending {
			ro, err := e.rankJob(ctx, sol, e.jobs[id], workers)
			if err != nil {
				return touched, err
			}
			if ro.ok && (bestIdx == -1 || ro.best.cost < best.cost) {
				bestIdx, best = i, ro.best
			}
		}
		if bestIdx == -1 {
			sol.Unassigned = append(sol.Unassigned, pending...)
			break
		}
		e.commit(sol, best, e.jobs[pending[bestIdx]])
		touched = append(touched, best.route)
		pending = append(pending[:bestIdx], pending[bestIdx+1:]...)
	}
	return touched, nil
}

// regretInsert commits, in each round, the job whose best and second best
// options differ most (regret-2). Jobs with a single option go first.
func (e *Engine) regretInsert(ctx context.Context, sol *vrp.Solution, pending []string, workers int) ([]int, error) {
	var touched []int
	for len(pending) > 0 {
		bestIdx := -1
		var best option
		bestRegret := -1.0
		for i, id := range pending {
			ro, err := e.rankJob(ctx, sol, e.jobs[id], workers)
			if err != nil {
				return touched, err
			}
			if !ro.ok {
				continue
			}
			regret := math.MaxFloat64
			if ro.second < math.MaxFloat64 {
				regret = ro.second - ro.best.cost
			}
			if regret > bestRegret || (regret == bestRegret && ro.best.cost < best.cost) {
				bestIdx, best, bestRegret = i, ro.best, regret
			}
		}
		if bestIdx == -1 {
			sol.Unassigned = append(sol.Unassigned, pending...)
			break
		}
		e.commit(sol, best, e.jobs[pending[bestIdx]])
		touched = append(touched, best.route)
		pending = append(pending[:bestIdx], pending[bestIdx+1:]...)
	}
	return touched, nil
}

// notify tells every listener about the given routes. Routes are handled
// concurrently; listener errors are logged and the route is left as is.
func (e *Engine) notify(sol *vrp.Solution, routes []int) {
	if len(e.Listeners) == 0 || len(routes) == 0 {
		return
	}
	var g errgroup.Group
	for _, ri := range dedupe(routes) {
		r := sol.Routes[ri]
		g.Go(func() error {
			for _, l := range e.Listeners {
				if err := l.OnRouteBuilt(r); err != nil {
					e.Logger.Warn("route listener failed", zap.String("vehicle", r.Vehicle.ID), zap.Error(err))
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

func dedupe(idx []int) []int {
	seen := map[int]bool{}
	out := idx[:0:0]
	for _, i := range idx {
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}
	return out
}
