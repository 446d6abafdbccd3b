package opt

import "math"

// variationTermination tracks the last Window costs and reports done once
// their coefficient of variation (stddev/mean) falls below Threshold.
type variationTermination struct {
	window    int
	threshold float64
	costs     []float64
	next      int
	full      bool
}

func newVariationTermination(t Termination) *variationTermination {
	if t.Window <= 0 {
		return &variationTermination{}
	}
	return &variationTermination{window: t.Window, threshold: t.Threshold, costs: make([]float64, t.Window)}
}

func (v *variationTermination) done(cost float64) bool {
	if v.window == 0 {
		return false
	}
	v.costs[v.next] = cost
	v.next = (v.next + 1) % v.window
	if v.next == 0 {
		v.full = true
	}
	if !v.full {
		return false
	}
	return v.coefficient() < v.threshold
}

func (v *variationTermination) coefficient() float64 {
	n := float64(len(v.costs))
	mean := 0.0
	for _, c := range v.costs {
		mean += c
	}
	mean /= n
	variance := 0.0
	for _, c := range v.costs {
		variance += (c - mean) * (c - mean)
	}
	std := math.Sqrt(variance / n)
	if mean == 0 {
		if std == 0 {
			return 0
		}
		return math.Inf(1)
	}
	return std / math.Abs(mean)
}
