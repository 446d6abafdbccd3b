package vrp

import (
	"fmt"
	"math"
)

// ServiceDuration charges each activity its service time.
type ServiceDuration struct{}

func (ServiceDuration) Duration(a *Activity, _ float64, _ Driver, _ *Vehicle) float64 {
	return a.ServiceTime
}

// EuclideanCosts measures crow-fly distance on X/Y; time is distance / Speed.
type EuclideanCosts struct {
	Speed float64
}

func (c EuclideanCosts) Distance(from, to Location) float64 {
	return math.Hypot(from.X-to.X, from.Y-to.Y)
}

func (c EuclideanCosts) Time(from, to Location, _ float64, _ Driver, _ *Vehicle) float64 {
	return c.Distance(from, to) / speedOr(c.Speed, 1)
}

func (c EuclideanCosts) Cost(from, to Location, departure float64, d Driver, v *Vehicle) float64 {
	pd, pt := v.Rates()
	return pd*c.Distance(from, to) + pt*c.Time(from, to, departure, d, v)
}

// HaversineCosts treats X/Y as longitude/latitude. Distance is in meters and
// time in seconds at SpeedKph.
type HaversineCosts struct {
	SpeedKph float64
}

func (c HaversineCosts) Distance(from, to Location) float64 {
	return haversine(from.Y, from.X, to.Y, to.X)
}

func (c HaversineCosts) Time(from, to Location, _ float64, _ Driver, _ *Vehicle) float64 {
	return c.Distance(from, to) / (speedOr(c.SpeedKph, 50) / 3.6)
}

func (c HaversineCosts) Cost(from, to Location, departure float64, d Driver, v *Vehicle) float64 {
	pd, pt := v.Rates()
	return pd*c.Distance(from, to) + pt*c.Time(from, to, departure, d, v)
}

func speedOr(v, fallback float64) float64 {
	if v <= 0 {
		return fallback
	}
	return v
}

func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const R = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return R * c
}

type pair struct{ from, to string }

// MatrixCosts looks distance and time up by location ID. Unknown pairs
// yield NaN; call Validate before solving.
type MatrixCosts struct {
	symmetric bool
	distance  map[pair]float64
	time      map[pair]float64
}

func NewMatrixCosts(symmetric bool) *MatrixCosts {
	return &MatrixCosts{symmetric: symmetric, distance: map[pair]float64{}, time: map[pair]float64{}}
}

func (m *MatrixCosts) AddDistance(from, to string, d float64) {
	m.distance[pair{from, to}] = d
	if m.symmetric {
		m.distance[pair{to, from}] = d
	}
}

func (m *MatrixCosts) AddTime(from, to string, t float64) {
	m.time[pair{from, to}] = t
	if m.symmetric {
		m.time[pair{to, from}] = t
	}
}

func (m *MatrixCosts) lookup(tbl map[pair]float64, from, to string) float64 {
	if from == to {
		return 0
	}
	if v, ok := tbl[pair{from, to}]; ok {
		return v
	}
	return math.NaN()
}

func (m *MatrixCosts) Distance(from, to Location) float64 {
	return m.lookup(m.distance, from.ID, to.ID)
}

func (m *MatrixCosts) Time(from, to Location, _ float64, _ Driver, _ *Vehicle) float64 {
	return m.lookup(m.time, from.ID, to.ID)
}

func (m *MatrixCosts) Cost(from, to Location, departure float64, d Driver, v *Vehicle) float64 {
	pd, pt := v.Rates()
	return pd*m.Distance(from, to) + pt*m.Time(from, to, departure, d, v)
}

// Validate reports the first ordered pair of ids with no distance or time entry.
func (m *MatrixCosts) Validate(ids []string) error {
	for _, a := range ids {
		for _, b := range ids {
			if a == b {
				continue
			}
			if _, ok := m.distance[pair{a, b}]; !ok {
				return fmt.Errorf("matrix: no distance from %q to %q", a, b)
			}
			if _, ok := m.time[pair{a, b}]; !ok {
				return fmt.Errorf("matrix: no time from %q to %q", a, b)
			}
		}
	}
	return nil
}
