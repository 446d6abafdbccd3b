// Package problem reads fleet problem definitions and distance/time matrices
// and turns them into solver input.
package problem

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"fleetspan/internal/opt"
	"fleetspan/internal/vrp"
)

// Cost kinds understood by Build.
const (
	CostsEuclidean = "euclidean"
	CostsHaversine = "haversine"
	CostsMatrix    = "matrix"
)

// Spec is the on-disk and over-the-wire problem definition. YAML and JSON
// share the same field names.
type Spec struct {
	Name              string        `yaml:"name,omitempty" json:"name,omitempty"`
	Costs             CostsSpec     `yaml:"costs" json:"costs"`
	UnassignedPenalty float64       `yaml:"unassignedPenalty,omitempty" json:"unassignedPenalty,omitempty"`
	Vehicles          []VehicleSpec `yaml:"vehicles" json:"vehicles"`
	Jobs              []JobSpec     `yaml:"jobs" json:"jobs"`
}

// CostsSpec picks the transport cost model. Speed is distance units per time
// unit for euclidean and km/h for haversine. Matrix entries are only read for
// the matrix kind.
type CostsSpec struct {
	Kind      string        `yaml:"kind" json:"kind"`
	Speed     float64       `yaml:"speed,omitempty" json:"speed,omitempty"`
	Symmetric bool          `yaml:"symmetric,omitempty" json:"symmetric,omitempty"`
	Matrix    []MatrixEntry `yaml:"matrix,omitempty" json:"matrix,omitempty"`
}

type MatrixEntry struct {
	From     string  `yaml:"from" json:"from"`
	To       string  `yaml:"to" json:"to"`
	Distance float64 `yaml:"distance" json:"distance"`
	Time     float64 `yaml:"time" json:"time"`
}

// VehicleSpec describes one vehicle. ReturnToDepot defaults to true.
type VehicleSpec struct {
	ID              string        `yaml:"id" json:"id"`
	Start           vrp.Location  `yaml:"start" json:"start"`
	End             *vrp.Location `yaml:"end,omitempty" json:"end,omitempty"`
	EarliestStart   float64       `yaml:"earliestStart,omitempty" json:"earliestStart,omitempty"`
	LatestArrival   float64       `yaml:"latestArrival,omitempty" json:"latestArrival,omitempty"`
	Capacity        float64       `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	ReturnToDepot   *bool         `yaml:"returnToDepot,omitempty" json:"returnToDepot,omitempty"`
	CostPerDistance float64       `yaml:"costPerDistance,omitempty" json:"costPerDistance,omitempty"`
	CostPerTime     float64       `yaml:"costPerTime,omitempty" json:"costPerTime,omitempty"`
}

type JobSpec struct {
	ID            string       `yaml:"id" json:"id"`
	Location      vrp.Location `yaml:"location" json:"location"`
	ServiceTime   float64      `yaml:"serviceTime,omitempty" json:"serviceTime,omitempty"`
	EarliestStart float64      `yaml:"earliestStart,omitempty" json:"earliestStart,omitempty"`
	LatestStart   float64      `yaml:"latestStart,omitempty" json:"latestStart,omitempty"`
	Demand        float64      `yaml:"demand,omitempty" json:"demand,omitempty"`
}

// Parse decodes a YAML or JSON problem definition.
func Parse(data []byte) (*Spec, error) {
	var s Spec
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("problem: decode: %w", err)
	}
	return &s, nil
}

// Load reads and parses the problem file at path.
func Load(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("problem: read %q: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%q: %w", path, err)
	}
	return s, nil
}

// Validate reports every structural problem at once.
func (s *Spec) Validate() error {
	var errs []error
	switch s.Costs.Kind {
	case "", CostsEuclidean, CostsHaversine, CostsMatrix:
	default:
		errs = append(errs, fmt.Errorf("unknown costs kind %q", s.Costs.Kind))
	}
	if s.Costs.Speed < 0 {
		errs = append(errs, errors.New("costs speed must not be negative"))
	}
	if len(s.Vehicles) == 0 {
		errs = append(errs, errors.New("no vehicles"))
	}
	seen := map[string]bool{}
	for i, v := range s.Vehicles {
		if v.ID == "" {
			errs = append(errs, fmt.Errorf("vehicle %d: missing id", i))
		} else if seen["v:"+v.ID] {
			errs = append(errs, fmt.Errorf("vehicle %q: duplicate id", v.ID))
		}
		seen["v:"+v.ID] = true
		if v.Start.ID == "" {
			errs = append(errs, fmt.Errorf("vehicle %q: start location needs an id", v.ID))
		}
		if v.LatestArrival != 0 && v.LatestArrival < v.EarliestStart {
			errs = append(errs, fmt.Errorf("vehicle %q: latest arrival before earliest start", v.ID))
		}
		if v.Capacity < 0 {
			errs = append(errs, fmt.Errorf("vehicle %q: negative capacity", v.ID))
		}
	}
	for i, j := range s.Jobs {
		if j.ID == "" {
			errs = append(errs, fmt.Errorf("job %d: missing id", i))
		} else if seen["j:"+j.ID] {
			errs = append(errs, fmt.Errorf("job %q: duplicate id", j.ID))
		}
		seen["j:"+j.ID] = true
		if j.Location.ID == "" {
			errs = append(errs, fmt.Errorf("job %q: location needs an id", j.ID))
		}
		if j.ServiceTime < 0 || j.Demand < 0 {
			errs = append(errs, fmt.Errorf("job %q: negative service time or demand", j.ID))
		}
		if j.LatestStart != 0 && j.LatestStart < j.EarliestStart {
			errs = append(errs, fmt.Errorf("job %q: time window closes before it opens", j.ID))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("problem: invalid: %w", err)
	}
	return nil
}

// LocationIDs lists every distinct location id the problem refers to.
func (s *Spec) LocationIDs() []string {
	ids := []string{}
	add := func(id string) {
		if id != "" && !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	for _, v := range s.Vehicles {
		add(v.Start.ID)
		if v.End != nil {
			add(v.End.ID)
		}
	}
	for _, j := range s.Jobs {
		add(j.Location.ID)
	}
	return ids
}

// Build validates s and returns solver input. For the matrix kind, matrix
// is used when non-nil; otherwise the inline entries are loaded.
func (s *Spec) Build(matrix *vrp.MatrixCosts) (opt.Problem, error) {
	if err := s.Validate(); err != nil {
		return opt.Problem{}, err
	}
	p := opt.Problem{Activity: vrp.ServiceDuration{}, UnassignedPenalty: s.UnassignedPenalty}
	switch s.Costs.Kind {
	case "", CostsEuclidean:
		p.Transport = vrp.EuclideanCosts{Speed: s.Costs.Speed}
	case CostsHaversine:
		p.Transport = vrp.HaversineCosts{SpeedKph: s.Costs.Speed}
	case CostsMatrix:
		if matrix == nil {
			matrix = vrp.NewMatrixCosts(s.Costs.Symmetric)
			for _, e := range s.Costs.Matrix {
				matrix.AddDistance(e.From, e.To, e.Distance)
				matrix.AddTime(e.From, e.To, e.Time)
			}
		}
		if err := matrix.Validate(s.LocationIDs()); err != nil {
			return opt.Problem{}, fmt.Errorf("problem: %w", err)
		}
		p.Transport = matrix
	}
	for _, v := range s.Vehicles {
		veh := &vrp.Vehicle{
			ID:              v.ID,
			StartLocation:   v.Start,
			EarliestStart:   v.EarliestStart,
			LatestArrival:   v.LatestArrival,
			Capacity:        v.Capacity,
			ReturnToDepot:   v.ReturnToDepot == nil || *v.ReturnToDepot,
			CostPerDistance: v.CostPerDistance,
			CostPerTime:     v.CostPerTime,
		}
		if v.End != nil {
			veh.EndLocation = *v.End
		}
		p.Vehicles = append(p.Vehicles, veh)
	}
	for _, j := range s.Jobs {
		p.Jobs = append(p.Jobs, vrp.Job{
			ID:            j.ID,
			Location:      j.Location,
			ServiceTime:   j.ServiceTime,
			EarliestStart: j.EarliestStart,
			LatestStart:   j.LatestStart,
			Demand:        j.Demand,
		})
	}
	return p, nil
}
