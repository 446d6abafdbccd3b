// Package vrp holds the routing domain model shared by the min-max core and
// the insertion engine: locations, activities, vehicles, routes, solutions,
// and the cost functions the core consumes.
package vrp

import "math"

// Location is a point the fleet can visit. X/Y are planar coordinates for
// EuclideanCosts and longitude/latitude for HaversineCosts; MatrixCosts looks
// pairs up by ID.
type Location struct {
	ID    string  `json:"id" yaml:"id"`
	Index int     `json:"index,omitempty" yaml:"index,omitempty"`
	X     float64 `json:"x" yaml:"x"`
	Y     float64 `json:"y" yaml:"y"`
}

type ActivityKind int

const (
	KindStart ActivityKind = iota
	KindService
	KindEnd
)

func (k ActivityKind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindService:
		return "service"
	case KindEnd:
		return "end"
	}
	return "unknown"
}

// Activity is a stop on a route. ArrTime and EndTime are the recorded
// schedule written by Schedule; everything else is problem data.
type Activity struct {
	Kind          ActivityKind
	JobID         string
	Location      Location
	EarliestStart float64
	LatestStart   float64
	ServiceTime   float64
	Demand        float64

	ArrTime float64
	EndTime float64
}

func (a *Activity) IsStart() bool { return a != nil && a.Kind == KindStart }
func (a *Activity) IsEnd() bool   { return a != nil && a.Kind == KindEnd }

// Job is a service request the engine assigns to a route.
type Job struct {
	ID            string
	Location      Location
	ServiceTime   float64
	EarliestStart float64
	LatestStart   float64
	Demand        float64
}

// NewActivity builds the service activity for a job.
func (j Job) NewActivity() *Activity {
	latest := j.LatestStart
	if latest == 0 {
		latest = math.MaxFloat64
	}
	return &Activity{
		Kind:          KindService,
		JobID:         j.ID,
		Location:      j.Location,
		EarliestStart: j.EarliestStart,
		LatestStart:   latest,
		ServiceTime:   j.ServiceTime,
		Demand:        j.Demand,
	}
}

// Vehicle describes one fleet member. Zero cost rates mean one cost unit per
// distance unit and nothing per time unit.
type Vehicle struct {
	ID              string
	StartLocation   Location
	EndLocation     Location
	EarliestStart   float64
	LatestArrival   float64
	Capacity        float64
	ReturnToDepot   bool
	CostPerDistance float64
	CostPerTime     float64
}

// Rates returns the effective per-distance and per-time cost rates.
func (v *Vehicle) Rates() (perDistance, perTime float64) {
	if v == nil || (v.CostPerDistance == 0 && v.CostPerTime == 0) {
		return 1, 0
	}
	return v.CostPerDistance, v.CostPerTime
}

// Driver operates a vehicle on a route.
type Driver struct {
	ID string
}

// NoDriver is the driver used when a problem does not model drivers.
var NoDriver = Driver{ID: "noDriver"}

// Route is an ordered sequence of activities bounded by Start and End
// markers. Span is derived from the recorded schedule.
type Route struct {
	Vehicle    *Vehicle
	Driver     Driver
	Start      *Activity
	End        *Activity
	Activities []*Activity
}

// NewRoute returns an empty, scheduled route for v.
func NewRoute(v *Vehicle, d Driver) *Route {
	latest := v.LatestArrival
	if latest == 0 {
		latest = math.MaxFloat64
	}
	end := v.EndLocation
	if !v.ReturnToDepot || end.ID == "" {
		end = v.StartLocation
	}
	return &Route{
		Vehicle: v,
		Driver:  d,
		Start: &Activity{
			Kind:          KindStart,
			Location:      v.StartLocation,
			EarliestStart: v.EarliestStart,
			LatestStart:   math.MaxFloat64,
			ArrTime:       v.EarliestStart,
			EndTime:       v.EarliestStart,
		},
		End: &Activity{
			Kind:        KindEnd,
			Location:    end,
			LatestStart: latest,
			ArrTime:     v.EarliestStart,
			EndTime:     v.EarliestStart,
		},
	}
}

func (r *Route) IsEmpty() bool { return len(r.Activities) == 0 }

// DepartureTime is the time the vehicle leaves its start location.
func (r *Route) DepartureTime() float64 { return r.Start.EndTime }

// Span is the elapsed time from start departure to end arrival.
func (r *Route) Span() float64 { return r.End.ArrTime - r.Start.EndTime }

// Load sums the demand of all activities.
func (r *Route) Load() float64 {
	total := 0.0
	for _, a := range r.Activities {
		total += a.Demand
	}
	return total
}

// Insert places act at position pos (0 = right after Start).
func (r *Route) Insert(pos int, act *Activity) {
	if pos >= len(r.Activities) {
		r.Activities = append(r.Activities, act)
		return
	}
	r.Activities = append(r.Activities[:pos+1], r.Activities[pos:]...)
	r.Activities[pos] = act
}

// Remove drops the activity for jobID and reports whether it was present.
func (r *Route) Remove(jobID string) bool {
	for i, a := range r.Activities {
		if a.JobID == jobID {
			r.Activities = append(r.Activities[:i], r.Activities[i+1:]...)
			return true
		}
	}
	return false
}

// Prev returns the activity before position pos, Start for pos 0.
func (r *Route) Prev(pos int) *Activity {
	if pos == 0 {
		return r.Start
	}
	return r.Activities[pos-1]
}

// Next returns the activity at position pos, End past the last activity.
func (r *Route) Next(pos int) *Activity {
	if pos >= len(r.Activities) {
		return r.End
	}
	return r.Activities[pos]
}

// JobIDs lists the served jobs in route order.
func (r *Route) JobIDs() []string {
	out := make([]string, 0, len(r.Activities))
	for _, a := range r.Activities {
		out = append(out, a.JobID)
	}
	return out
}

// Clone deep-copies the activities; the vehicle is shared.
func (r *Route) Clone() *Route {
	start, end := *r.Start, *r.End
	out := &Route{Vehicle: r.Vehicle, Driver: r.Driver, Start: &start, End: &end, Activities: make([]*Activity, len(r.Activities))}
	for i, a := range r.Activities {
		c := *a
		out.Activities[i] = &c
	}
	return out
}

// Solution is a set of routes plus the jobs no route could take.
type Solution struct {
	Routes     []*Route
	Unassigned []string
}

func (s *Solution) Clone() *Solution {
	out := &Solution{Routes: make([]*Route, len(s.Routes)), Unassigned: append([]string(nil), s.Unassigned...)}
	for i, r := range s.Routes {
		out.Routes[i] = r.Clone()
	}
	return out
}
