package opt

import (
	"fleetspan/internal/minmax"
	"fleetspan/internal/vrp"
)

// RouteSummary describes one route of a solution.
type RouteSummary struct {
	VehicleID string   `json:"vehicleId"`
	Stops     []Stop   `json:"stops"`
	Departure float64  `json:"departure"`
	Arrival   float64  `json:"arrival"`
	Span      float64  `json:"span"`
	Distance  float64  `json:"distance"`
	Cost      float64  `json:"cost"`
	Load      float64  `json:"load"`
	JobIDs    []string `json:"-"`
}

// Stop is one served job with its recorded schedule.
type Stop struct {
	JobID      string  `json:"jobId"`
	LocationID string  `json:"locationId"`
	Arrival    float64 `json:"arrival"`
	End        float64 `json:"end"`
}

// Summary is the reporting view of a solution.
type Summary struct {
	minmax.SpanBreakdown
	TotalTime     float64        `json:"totalTime"`
	TotalDistance float64        `json:"totalDistance"`
	TotalCost     float64        `json:"totalCost"`
	Routes        []RouteSummary `json:"routes"`
	Unassigned    []string       `json:"unassigned"`
}

// Summarize reports spans, times and costs of sol. Distances are only
// filled in when tc implements vrp.Distancer. Empty routes are skipped.
func Summarize(sol *vrp.Solution, tc vrp.TransportCosts) Summary {
	s := Summary{SpanBreakdown: minmax.Breakdown(sol), Unassigned: append([]string{}, sol.Unassigned...)}
	dist, _ := tc.(vrp.Distancer)
	for _, r := range sol.Routes {
		if r == nil || r.IsEmpty() {
			continue
		}
		rs := RouteSummary{
			VehicleID: r.Vehicle.ID,
			Departure: r.DepartureTime(),
			Arrival:   r.End.ArrTime,
			Span:      r.Span(),
			Cost:      vrp.TransportCost(r, tc),
			Load:      r.Load(),
			JobIDs:    r.JobIDs(),
		}
		prev := r.Start
		for _, a := range r.Activities {
			rs.Stops = append(rs.Stops, Stop{JobID: a.JobID, LocationID: a.Location.ID, Arrival: a.ArrTime, End: a.EndTime})
			if dist != nil {
				rs.Distance += dist.Distance(prev.Location, a.Location)
			}
			prev = a
		}
		if dist != nil {
			rs.Distance += dist.Distance(prev.Location, r.End.Location)
		}
		s.TotalTime += r.End.ArrTime
		s.TotalDistance += rs.Distance
		s.TotalCost += rs.Cost
		s.Routes = append(s.Routes, rs)
	}
	return s
}
