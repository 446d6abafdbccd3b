package vrp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(id string, x, y float64) Location { return Location{ID: id, X: x, Y: y} }

func TestScheduleClosedRoute(t *testing.T) {
	v := &Vehicle{ID: "v1", StartLocation: loc("depot", 0, 0), ReturnToDepot: true}
	r := NewRoute(v, NoDriver)
	r.Insert(0, Job{ID: "a", Location: loc("a", 3, 4), ServiceTime: 1}.NewActivity())
	r.Insert(1, Job{ID: "b", Location: loc("b", 3, 0), ServiceTime: 2, EarliestStart: 20}.NewActivity())

	ok := Schedule(r, EuclideanCosts{}, ServiceDuration{})
	require.True(t, ok)

	assert.Equal(t, 5.0, r.Activities[0].ArrTime)
	assert.Equal(t, 6.0, r.Activities[0].EndTime)
	assert.Equal(t, 10.0, r.Activities[1].ArrTime)
	// waits for its earliest start
	assert.Equal(t, 22.0, r.Activities[1].EndTime)
	assert.Equal(t, 25.0, r.End.ArrTime)
	assert.Equal(t, 25.0, r.Span())
	assert.Equal(t, 5.0+4+3, TransportCost(r, EuclideanCosts{}))
}

func TestScheduleOpenRouteEndsAtLastStop(t *testing.T) {
	v := &Vehicle{ID: "v1", StartLocation: loc("depot", 0, 0), EarliestStart: 2}
	r := NewRoute(v, NoDriver)
	r.Insert(0, Job{ID: "a", Location: loc("a", 3, 4)}.NewActivity())

	require.True(t, Schedule(r, EuclideanCosts{}, ServiceDuration{}))
	assert.Equal(t, "a", r.End.Location.ID)
	assert.Equal(t, 7.0, r.End.ArrTime)
	assert.Equal(t, 5.0, r.Span())
}

func TestScheduleInfeasibleWindow(t *testing.T) {
	v := &Vehicle{ID: "v1", StartLocation: loc("depot", 0, 0), ReturnToDepot: true, LatestArrival: 9}
	r := NewRoute(v, NoDriver)
	r.Insert(0, Job{ID: "a", Location: loc("a", 3, 4), LatestStart: 4}.NewActivity())
	assert.False(t, Schedule(r, EuclideanCosts{}, ServiceDuration{}))
}

func TestRouteInsertRemoveClone(t *testing.T) {
	v := &Vehicle{ID: "v1", StartLocation: loc("depot", 0, 0)}
	r := NewRoute(v, NoDriver)
	assert.True(t, r.IsEmpty())
	r.Insert(0, Job{ID: "b"}.NewActivity())
	r.Insert(0, Job{ID: "a"}.NewActivity())
	r.Insert(5, Job{ID: "c"}.NewActivity())
	assert.Equal(t, []string{"a", "b", "c"}, r.JobIDs())
	assert.Same(t, r.Start, r.Prev(0))
	assert.Same(t, r.End, r.Next(3))

	c := r.Clone()
	require.True(t, r.Remove("b"))
	assert.False(t, r.Remove("zzz"))
	assert.Equal(t, []string{"a", "c"}, r.JobIDs())
	assert.Equal(t, []string{"a", "b", "c"}, c.JobIDs())
	assert.NotSame(t, r.Start, c.Start)
}

func TestMatrixCosts(t *testing.T) {
	m := NewMatrixCosts(true)
	m.AddDistance("0", "1", 10)
	m.AddTime("0", "1", 4)
	from, to := Location{ID: "0"}, Location{ID: "1"}

	assert.Equal(t, 10.0, m.Distance(to, from))
	assert.Equal(t, 4.0, m.Time(to, from, 0, NoDriver, nil))
	assert.Equal(t, 10.0, m.Cost(from, to, 0, NoDriver, nil))
	assert.Equal(t, 10.0+2*4, m.Cost(from, to, 0, NoDriver, &Vehicle{CostPerDistance: 1, CostPerTime: 2}))
	assert.Equal(t, 0.0, m.Time(from, from, 0, NoDriver, nil))
	assert.True(t, math.IsNaN(m.Distance(from, Location{ID: "2"})))

	require.NoError(t, m.Validate([]string{"0", "1"}))
	assert.Error(t, m.Validate([]string{"0", "1", "2"}))
}

func TestHaversineCosts(t *testing.T) {
	c := HaversineCosts{SpeedKph: 36}
	// one degree of latitude is roughly 111km
	a, b := Location{X: 0, Y: 0}, Location{X: 0, Y: 1}
	d := c.Distance(a, b)
	assert.InDelta(t, 111195, d, 50)
	assert.InDelta(t, d/10, c.Time(a, b, 0, NoDriver, nil), 1e-9)
}

type countingVisitor struct {
	begun, visited, finished int
}

func (c *countingVisitor) Begin(*Route)    { c.begun++ }
func (c *countingVisitor) Visit(*Activity) { c.visited++ }
func (c *countingVisitor) Finish()         { c.finished++ }

func TestWalk(t *testing.T) {
	r := NewRoute(&Vehicle{ID: "v"}, NoDriver)
	r.Insert(0, Job{ID: "a"}.NewActivity())
	r.Insert(1, Job{ID: "b"}.NewActivity())
	cv := &countingVisitor{}
	Walk(r, cv)
	assert.Equal(t, countingVisitor{1, 2, 1}, *cv)
}
