package minmax

import "fleetspan/internal/vrp"

// ScalingFactor weighs the sum of spans against the maximum span.
const ScalingFactor = 0.2

// SpanBreakdown is the decomposition of a min-max fitness value.
type SpanBreakdown struct {
	MaxSpan float64 `json:"maxSpan"`
	SumSpan float64 `json:"sumSpan"`
	Fitness float64 `json:"fitness"`
}

// Objective ranks solutions by maxSpan + ScalingFactor*sumSpans, computed
// from the routes themselves. Lower is better.
type Objective struct{}

var _ vrp.SolutionCostCalculator = Objective{}

func (Objective) Score(s *vrp.Solution) float64 {
	return Breakdown(s).Fitness
}

// Breakdown computes the span statistics of s.
func Breakdown(s *vrp.Solution) SpanBreakdown {
	var b SpanBreakdown
	for _, r := range s.Routes {
		if r == nil {
			continue
		}
		span := r.Span()
		b.SumSpan += span
		if span > b.MaxSpan {
			b.MaxSpan = span
		}
	}
	b.Fitness = b.MaxSpan + ScalingFactor*b.SumSpan
	return b
}
