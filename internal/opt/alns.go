package opt

import (
	"errors"
	"fmt"
	"time"

	"fleetspan/internal/vrp"
)

// Problem is the input to one solve.
type Problem struct {
	Jobs      []vrp.Job
	Vehicles  []*vrp.Vehicle
	Transport vrp.TransportCosts
	Activity  vrp.ActivityCosts
	// UnassignedPenalty is added per job left out of the solution (default 10000).
	UnassignedPenalty float64
}

// Termination stops the search once the variation coefficient of the last
// Window iteration costs drops below Threshold. A zero Window takes the
// default 150/0.001; a negative Window disables it.
type Termination struct {
	Window    int     `yaml:"window" json:"window,omitempty"`
	Threshold float64 `yaml:"threshold" json:"threshold,omitempty"`
}

// Config tunes the search. Zero values pick the defaults noted per field.
type Config struct {
	Iterations              int           `yaml:"iterations" json:"iterations,omitempty"`             // 2000
	TimeBudget              time.Duration `yaml:"timeBudget" json:"timeBudget,omitempty"`             // unlimited
	Seed                    int64         `yaml:"seed" json:"seed,omitempty"`                         // time based
	InitialTemp             float64       `yaml:"initialTemp" json:"initialTemp,omitempty"`           // 1
	Cooling                 float64       `yaml:"cooling" json:"cooling,omitempty"`                   // 0.995
	InitialRemovalWeights   []float64     `yaml:"removalWeights" json:"removalWeights,omitempty"`     // [random, shaw]
	InitialInsertionWeights []float64     `yaml:"insertionWeights" json:"insertionWeights,omitempty"` // [greedy, regret2]
	MaxRemoved              int           `yaml:"maxRemoved" json:"maxRemoved,omitempty"`             // max(3, 30% of jobs)
	Workers                 int           `yaml:"workers" json:"workers,omitempty"`                   // one per route
	Termination             Termination   `yaml:"termination" json:"termination,omitempty"`
}

// DefaultConfig mirrors the settings the min-max objective was tuned with.
func DefaultConfig() Config {
	return Config{
		Iterations:  2000,
		InitialTemp: 1,
		Cooling:     0.995,
		Termination: Termination{Window: 150, Threshold: 0.001},
	}
}

var (
	ErrNoVehicles = errors.New("opt: problem has no vehicles")
	ErrNoCosts    = errors.New("opt: problem has no transport or activity costs")
)

func (p Problem) validate() error {
	if len(p.Vehicles) == 0 {
		return ErrNoVehicles
	}
	if p.Transport == nil || p.Activity == nil {
		return ErrNoCosts
	}
	seen := map[string]bool{}
	for _, j := range p.Jobs {
		if j.ID == "" {
			return errors.New("opt: job without id")
		}
		if seen[j.ID] {
			return fmt.Errorf("opt: duplicate job id %q", j.ID)
		}
		seen[j.ID] = true
	}
	for i, v := range p.Vehicles {
		if v == nil {
			return fmt.Errorf("opt: vehicle %d is nil", i)
		}
	}
	return nil
}

func (c Config) withDefaults(jobs int) Config {
	if c.Iterations <= 0 {
		c.Iterations = 2000
	}
	if c.InitialTemp <= 0 {
		c.InitialTemp = 1
	}
	if c.Cooling <= 0 || c.Cooling >= 1 {
		c.Cooling = 0.995
	}
	if c.Termination.Window == 0 {
		c.Termination = Termination{Window: 150, Threshold: 0.001}
	}
	if c.MaxRemoved <= 0 {
		c.MaxRemoved = jobs * 3 / 10
		if c.MaxRemoved < 3 {
			c.MaxRemoved = 3
		}
	}
	if c.MaxRemoved > jobs {
		c.MaxRemoved = jobs
	}
	return c
}
