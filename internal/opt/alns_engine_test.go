package opt

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"fleetspan/internal/minmax"
	"fleetspan/internal/vrp"
)

func loc(id string, x, y float64) vrp.Location { return vrp.Location{ID: id, X: x, Y: y} }

// crossProblem places four services on the axes around a depot served by two
// closed-route vehicles. Pairing neighbouring services balances the spans at
// 20+10*sqrt(2) each.
func crossProblem() Problem {
	depot := loc("depot", 0, 0)
	return Problem{
		Jobs: []vrp.Job{
			{ID: "east", Location: loc("east", 10, 0)},
			{ID: "west", Location: loc("west", -10, 0)},
			{ID: "north", Location: loc("north", 0, 10)},
			{ID: "south", Location: loc("south", 0, -10)},
		},
		Vehicles: []*vrp.Vehicle{
			{ID: "v1", StartLocation: depot, ReturnToDepot: true},
			{ID: "v2", StartLocation: depot, ReturnToDepot: true},
		},
		Transport: vrp.EuclideanCosts{},
		Activity:  vrp.ServiceDuration{},
	}
}

func TestSolveBalancesSpans(t *testing.T) {
	e := NewMinMaxEngine(crossProblem(), Config{Iterations: 100, Seed: 7}, zaptest.NewLogger(t))
	res, err := e.Solve(testContext(t))
	require.NoError(t, err)
	require.NotNil(t, res.Best)
	assert.Empty(t, res.Best.Unassigned)

	want := 20 + 10*math.Sqrt2
	b := minmax.Breakdown(res.Best)
	assert.InDelta(t, want, b.MaxSpan, 1e-6)
	assert.InDelta(t, want*(1+2*minmax.ScalingFactor), res.Cost, 1e-6)
	for _, r := range res.Best.Routes {
		assert.Len(t, r.Activities, 2, "vehicle %s", r.Vehicle.ID)
	}
	// the stored max never drops below what the routes actually span
	assert.GreaterOrEqual(t, e.Registry.Float64(minmax.MaxSpanID), b.MaxSpan-1e-9)
	assert.Equal(t, int64(7), res.Metrics.Seed)
	assert.Equal(t, 100, res.Metrics.Iterations)
}

func TestSolveResetsSpanMaxPerRun(t *testing.T) {
	e := NewMinMaxEngine(crossProblem(), Config{Iterations: 20, Seed: 7}, zaptest.NewLogger(t))
	require.NoError(t, e.Registry.PutFloat64(minmax.MaxSpanID, 1e9))

	res, err := e.Solve(testContext(t))
	require.NoError(t, err)
	first := e.Registry.Float64(minmax.MaxSpanID)
	assert.Less(t, first, 1e9)
	assert.GreaterOrEqual(t, first, minmax.Breakdown(res.Best).MaxSpan-1e-9)

	_, err = e.Solve(testContext(t))
	require.NoError(t, err)
	assert.InDelta(t, first, e.Registry.Float64(minmax.MaxSpanID), 1e-9)
}

func TestSolveSameSeedSameResult(t *testing.T) {
	cfg := Config{Iterations: 60, Seed: 42}
	a, err := NewMinMaxEngine(crossProblem(), cfg, zaptest.NewLogger(t)).Solve(testContext(t))
	require.NoError(t, err)
	b, err := NewMinMaxEngine(crossProblem(), cfg, zaptest.NewLogger(t)).Solve(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, a.Cost, b.Cost)
	assert.Equal(t, a.Metrics.RemovalSelects, b.Metrics.RemovalSelects)
}

func TestSolveReportsProgress(t *testing.T) {
	e := NewMinMaxEngine(crossProblem(), Config{Iterations: 30, Seed: 1}, zaptest.NewLogger(t))
	var got []Progress
	e.OnProgress = func(p Progress) { got = append(got, p) }
	res, err := e.Solve(testContext(t))
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, 0, got[0].Iteration)
	last := got[len(got)-1]
	assert.Equal(t, res.Cost, last.BestCost)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i].BestCost, got[i-1].BestCost)
	}
}

func TestSolveCancelledReturnsBestSoFar(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()
	e := NewMinMaxEngine(crossProblem(), Config{Iterations: 1000, Seed: 3}, zaptest.NewLogger(t))
	e.OnProgress = func(Progress) { cancel() }
	res, err := e.Solve(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, res.Best)
	assert.Empty(t, res.Best.Unassigned)
	assert.Equal(t, 0, res.Metrics.Iterations)
}

func TestSolveCancelledBeforeSeeding(t *testing.T) {
	ctx, cancel := context.WithCancel(testContext(t))
	cancel()
	_, err := NewMinMaxEngine(crossProblem(), Config{Iterations: 10}, zaptest.NewLogger(t)).Solve(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSolveLeavesInfeasibleJobsUnassigned(t *testing.T) {
	p := crossProblem()
	p.Jobs = append(p.Jobs, vrp.Job{ID: "late", Location: loc("late", 50, 0), LatestStart: 5})
	p.UnassignedPenalty = 500
	res, err := NewMinMaxEngine(p, Config{Iterations: 20, Seed: 5}, zaptest.NewLogger(t)).Solve(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"late"}, res.Best.Unassigned)
	assert.InDelta(t, minmax.Objective{}.Score(res.Best)+500, res.Cost, 1e-9)
}

func TestSolveRespectsCapacity(t *testing.T) {
	p := crossProblem()
	p.Vehicles = p.Vehicles[:1]
	p.Vehicles[0].Capacity = 3
	for i := range p.Jobs {
		p.Jobs[i].Demand = 1
	}
	res, err := NewMinMaxEngine(p, Config{Iterations: 20, Seed: 9}, zaptest.NewLogger(t)).Solve(testContext(t))
	require.NoError(t, err)
	assert.Len(t, res.Best.Unassigned, 1)
	assert.Len(t, res.Best.Routes[0].Activities, 3)
}

func TestSolveTerminatesOnFlatCosts(t *testing.T) {
	cfg := Config{Iterations: 5000, Seed: 11, Termination: Termination{Window: 20, Threshold: 0.5}}
	res, err := NewMinMaxEngine(crossProblem(), cfg, zaptest.NewLogger(t)).Solve(testContext(t))
	require.NoError(t, err)
	assert.True(t, res.Metrics.TerminatedEarly)
	assert.Less(t, res.Metrics.Iterations, 5000)
}

func TestSolveWithoutJobs(t *testing.T) {
	p := crossProblem()
	p.Jobs = nil
	res, err := NewMinMaxEngine(p, Config{}, zaptest.NewLogger(t)).Solve(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Cost)
	assert.Equal(t, 0, res.Metrics.Iterations)
}

func TestSolveValidatesProblem(t *testing.T) {
	p := crossProblem()
	p.Vehicles = nil
	_, err := NewMinMaxEngine(p, Config{}, nil).Solve(testContext(t))
	assert.ErrorIs(t, err, ErrNoVehicles)

	p = crossProblem()
	p.Transport = nil
	_, err = NewMinMaxEngine(p, Config{}, nil).Solve(testContext(t))
	assert.ErrorIs(t, err, ErrNoCosts)

	p = crossProblem()
	p.Jobs = append(p.Jobs, p.Jobs[0])
	_, err = NewMinMaxEngine(p, Config{}, nil).Solve(testContext(t))
	assert.ErrorContains(t, err, "duplicate job id")
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults(20)
	assert.Equal(t, 2000, c.Iterations)
	assert.Equal(t, 6, c.MaxRemoved)
	assert.Equal(t, 0.995, c.Cooling)
	assert.Equal(t, Termination{Window: 150, Threshold: 0.001}, c.Termination)
	assert.Equal(t, -1, Config{Termination: Termination{Window: -1}}.withDefaults(20).Termination.Window)

	assert.Equal(t, 3, Config{}.withDefaults(5).MaxRemoved)
	assert.Equal(t, 2, Config{}.withDefaults(2).MaxRemoved)

	d := DefaultConfig()
	assert.Equal(t, Termination{Window: 150, Threshold: 0.001}, d.Termination)
}

func TestVariationTermination(t *testing.T) {
	off := newVariationTermination(Termination{})
	for i := 0; i < 10; i++ {
		assert.False(t, off.done(1))
	}

	flat := newVariationTermination(Termination{Window: 3, Threshold: 0.01})
	assert.False(t, flat.done(5))
	assert.False(t, flat.done(5))
	assert.True(t, flat.done(5))

	spread := newVariationTermination(Termination{Window: 3, Threshold: 0.01})
	for _, c := range []float64{1, 2, 3} {
		assert.False(t, spread.done(c))
	}
	// window slides: 2, 3, 3 still varies
	assert.False(t, spread.done(3))

	zeros := newVariationTermination(Termination{Window: 2, Threshold: 0.01})
	zeros.done(0)
	assert.True(t, zeros.done(0))
}

func TestImproveRoute2Opt(t *testing.T) {
	v := &vrp.Vehicle{ID: "v", StartLocation: loc("depot", 0, 0), ReturnToDepot: true}
	r := vrp.NewRoute(v, vrp.NoDriver)
	for i, x := range []float64{5, 1, 3} {
		r.Insert(i, vrp.Job{ID: "j", Location: loc("j", x, 0)}.NewActivity())
	}
	costs := vrp.EuclideanCosts{}
	vrp.Schedule(r, costs, vrp.ServiceDuration{})
	require.Equal(t, 14.0, r.Span())

	assert.True(t, ImproveRoute2Opt(r, costs, vrp.ServiceDuration{}, 3))
	assert.Equal(t, 10.0, r.Span())
	assert.False(t, ImproveRoute2Opt(r, costs, vrp.ServiceDuration{}, 3))
}

func TestImproveRoute2OptKeepsTimeWindows(t *testing.T) {
	v := &vrp.Vehicle{ID: "v", StartLocation: loc("depot", 0, 0), ReturnToDepot: true}
	r := vrp.NewRoute(v, vrp.NoDriver)
	// the far stop must be served first
	r.Insert(0, vrp.Job{ID: "far", Location: loc("far", 5, 0), LatestStart: 5}.NewActivity())
	r.Insert(1, vrp.Job{ID: "near", Location: loc("near", 0, 1)}.NewActivity())
	costs := vrp.EuclideanCosts{}
	require.True(t, vrp.Schedule(r, costs, vrp.ServiceDuration{}))

	assert.False(t, ImproveRoute2Opt(r, costs, vrp.ServiceDuration{}, 3))
	assert.Equal(t, []string{"far", "near"}, r.JobIDs())
}

func TestSummarize(t *testing.T) {
	v := &vrp.Vehicle{ID: "v1", StartLocation: loc("depot", 0, 0), ReturnToDepot: true, CostPerDistance: 2}
	r := vrp.NewRoute(v, vrp.NoDriver)
	r.Insert(0, vrp.Job{ID: "a", Location: loc("a", 3, 4), ServiceTime: 1, Demand: 2}.NewActivity())
	costs := vrp.EuclideanCosts{}
	vrp.Schedule(r, costs, vrp.ServiceDuration{})
	idle := vrp.NewRoute(&vrp.Vehicle{ID: "v2", StartLocation: loc("depot", 0, 0)}, vrp.NoDriver)
	sol := &vrp.Solution{Routes: []*vrp.Route{r, idle}, Unassigned: []string{"x"}}

	s := Summarize(sol, costs)
	require.Len(t, s.Routes, 1)
	assert.Equal(t, 11.0, s.MaxSpan)
	assert.Equal(t, 11.0, s.TotalTime)
	assert.Equal(t, 10.0, s.TotalDistance)
	assert.Equal(t, 20.0, s.TotalCost)
	assert.Equal(t, 2.0, s.Routes[0].Load)
	assert.Equal(t, []Stop{{JobID: "a", LocationID: "a", Arrival: 5, End: 6}}, s.Routes[0].Stops)
	assert.Equal(t, []string{"x"}, s.Unassigned)
}

func TestMetricsStore(t *testing.T) {
	RecordMetrics("run-1", "alns", Metrics{Iterations: 10})
	RecordMetrics("run-1", "seed", Metrics{Iterations: 0})
	RecordMetrics("run-2", "alns", Metrics{Iterations: 3})

	got := GetMetrics("run-1")
	assert.Len(t, got, 2)
	assert.Equal(t, 10, got["alns"].Iterations)

	ForgetMetrics("run-1")
	assert.Empty(t, GetMetrics("run-1"))
	assert.Len(t, GetMetrics("run-2"), 1)
	ForgetMetrics("run-2")
}

func TestMetricsStoreEvictsOldestRun(t *testing.T) {
	for i := 0; i <= maxRecordedRuns; i++ {
		RecordMetrics(fmt.Sprintf("bulk-%d", i), "alns", Metrics{Iterations: i})
	}
	assert.Empty(t, GetMetrics("bulk-0"))
	assert.Len(t, GetMetrics("bulk-1"), 1)
	assert.Len(t, GetMetrics(fmt.Sprintf("bulk-%d", maxRecordedRuns)), 1)
	for i := 0; i <= maxRecordedRuns; i++ {
		ForgetMetrics(fmt.Sprintf("bulk-%d", i))
	}
}
