package minmax

import "fleetspan/internal/vrp"

// Tracker simulates arrival and departure times along one route to derive
// its span: the simulated arrival time at the End marker, counted on the
// absolute clock so a late vehicle start is part of it. It mirrors the way vrp.Schedule and the insertion engine compute
// times, but never writes to the route. A Tracker is single-use per pass:
// Begin resets it.
type Tracker struct {
	transport vrp.TransportCosts
	activity  vrp.ActivityCosts

	route       *vrp.Route
	prev        *vrp.Activity
	startAtPrev float64
	endArrival  float64
}

var _ vrp.ActivityVisitor = (*Tracker)(nil)

func NewTracker(tc vrp.TransportCosts, ac vrp.ActivityCosts) *Tracker {
	return &Tracker{transport: tc, activity: ac}
}

func (t *Tracker) Begin(r *vrp.Route) {
	t.route = r
	t.prev = r.Start
	t.startAtPrev = r.Start.EndTime
	t.endArrival = r.Start.EndTime
}

func (t *Tracker) Visit(a *vrp.Activity) {
	r := t.route
	arr := t.startAtPrev + t.transport.Time(t.prev.Location, a.Location, t.startAtPrev, r.Driver, r.Vehicle)
	start := arr
	if a.EarliestStart > start {
		start = a.EarliestStart
	}
	t.startAtPrev = start + t.activity.Duration(a, arr, r.Driver, r.Vehicle)
	t.prev = a
}

// Finish travels to the End marker. Open routes end at the last visited point.
func (t *Tracker) Finish() {
	r := t.route
	if !r.Vehicle.ReturnToDepot {
		t.endArrival = t.startAtPrev
		return
	}
	t.endArrival = t.startAtPrev + t.transport.Time(t.prev.Location, r.End.Location, t.startAtPrev, r.Driver, r.Vehicle)
}

// Span is the simulated arrival time at the End marker. It differs from
// vrp.Route.Span by the start departure time.
func (t *Tracker) Span() float64 { return t.endArrival }
