package api

import (
	"fmt"

	"fleetspan/internal/model"
)

func validateSolverOptions(o *model.SolverOptions) error {
	if o == nil {
		return nil
	}
	if o.TimeBudgetMs < 0 {
		return fmt.Errorf("timeBudgetMs must be >= 0")
	}
	if o.MaxIterations < 0 {
		return fmt.Errorf("maxIterations must be >= 0")
	}
	if o.Cooling != 0 && (o.Cooling <= 0 || o.Cooling >= 1) {
		return fmt.Errorf("cooling must be in (0,1)")
	}
	if len(o.RemovalWeights) > 0 && len(o.RemovalWeights) != 2 {
		return fmt.Errorf("removalWeights must have length 2")
	}
	if len(o.InsertionWeights) > 0 && len(o.InsertionWeights) != 2 {
		return fmt.Errorf("insertionWeights must have length 2")
	}
	for _, w := range append(append([]float64{}, o.RemovalWeights...), o.InsertionWeights...) {
		if w < 0 {
			return fmt.Errorf("operator weights must be >= 0")
		}
	}
	if o.Workers < 0 || o.TermWindow < 0 || o.TermThreshold < 0 {
		return fmt.Errorf("workers, termWindow and termThreshold must be >= 0")
	}
	return nil
}
