package vrp

// Schedule recomputes the recorded arrival and end times along r and reports
// whether every activity starts within its latest start and the vehicle
// arrives at End before its latest arrival. For open routes End moves to the
// last visited location, so the route ends where the last service ends.
func Schedule(r *Route, tc TransportCosts, ac ActivityCosts) bool {
	feasible := true
	v := r.Vehicle
	r.Start.ArrTime = v.EarliestStart
	r.Start.EndTime = v.EarliestStart
	prev := r.Start
	t := r.Start.EndTime
	for _, a := range r.Activities {
		arr := t + tc.Time(prev.Location, a.Location, t, r.Driver, v)
		a.ArrTime = arr
		start := arr
		if a.EarliestStart > start {
			start = a.EarliestStart
		}
		if start > a.LatestStart {
			feasible = false
		}
		a.EndTime = start + ac.Duration(a, arr, r.Driver, v)
		t = a.EndTime
		prev = a
	}
	if !v.ReturnToDepot {
		r.End.Location = prev.Location
		r.End.ArrTime = t
	} else {
		r.End.Location = v.EndLocation
		if r.End.Location.ID == "" {
			r.End.Location = v.StartLocation
		}
		r.End.ArrTime = t + tc.Time(prev.Location, r.End.Location, t, r.Driver, v)
	}
	r.End.EndTime = r.End.ArrTime
	if r.End.ArrTime > r.End.LatestStart {
		feasible = false
	}
	return feasible
}

// TransportCost sums the travel cost along the recorded schedule.
func TransportCost(r *Route, tc TransportCosts) float64 {
	total := 0.0
	prev := r.Start
	for _, a := range append(append([]*Activity(nil), r.Activities...), r.End) {
		total += tc.Cost(prev.Location, a.Location, prev.EndTime, r.Driver, r.Vehicle)
		prev = a
	}
	return total
}
