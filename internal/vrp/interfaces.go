package vrp

// TransportCosts prices and times travel between two locations for a
// departure time, driver and vehicle.
type TransportCosts interface {
	Cost(from, to Location, departure float64, d Driver, v *Vehicle) float64
	Time(from, to Location, departure float64, d Driver, v *Vehicle) float64
}

// ActivityCosts returns how long an activity occupies the vehicle.
type ActivityCosts interface {
	Duration(a *Activity, arrival float64, d Driver, v *Vehicle) float64
}

// Distancer is implemented by transport costs that can report raw distance.
type Distancer interface {
	Distance(from, to Location) float64
}

// ActivityVisitor traverses one route in order: Begin, Visit per activity,
// Finish. Implementations hold no state across routes.
type ActivityVisitor interface {
	Begin(r *Route)
	Visit(a *Activity)
	Finish()
}

// Walk drives v over r's activities in route order.
func Walk(r *Route, v ActivityVisitor) {
	v.Begin(r)
	for _, a := range r.Activities {
		v.Visit(a)
	}
	v.Finish()
}

// RouteListener is notified after a route was built or structurally changed
// and its schedule recorded.
type RouteListener interface {
	OnRouteBuilt(r *Route) error
}

// Insertion describes a hypothetical placement of New between Prev and Next
// on Route, served by Vehicle and Driver leaving the depot at DepartureTime.
// It is input to scoring only and never mutates the route.
type Insertion struct {
	Route         *Route
	Vehicle       *Vehicle
	Driver        Driver
	DepartureTime float64

	Prev, New, Next *Activity
	DepTimeAtPrev   float64
}

// SoftActivityConstraint scores a candidate insertion; lower is better.
// The engine sums the scores of all registered constraints.
type SoftActivityConstraint interface {
	Score(c *Insertion) (float64, error)
}

// SolutionCostCalculator ranks complete solutions; lower is better.
type SolutionCostCalculator interface {
	Score(s *Solution) float64
}
