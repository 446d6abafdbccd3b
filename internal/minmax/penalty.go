package minmax

import (
	"fmt"
	"math"

	"fleetspan/internal/metrics"
	"fleetspan/internal/state"
	"fleetspan/internal/vrp"
)

// PenaltyRate is charged per time unit a candidate pushes a route span past
// the registry maximum.
const PenaltyRate = 3.0

// SpanPenalty scores candidate insertions by their marginal transport cost
// plus a penalty for growing a route beyond the current maximum span.
// It only reads the registry and is safe for concurrent use.
type SpanPenalty struct {
	registry  *state.Registry
	transport vrp.TransportCosts
	activity  vrp.ActivityCosts
}

var _ vrp.SoftActivityConstraint = (*SpanPenalty)(nil)

func NewSpanPenalty(reg *state.Registry, tc vrp.TransportCosts, ac vrp.ActivityCosts) *SpanPenalty {
	return &SpanPenalty{registry: reg, transport: tc, activity: ac}
}

func checkInsertion(c *vrp.Insertion) error {
	if c == nil {
		return fmt.Errorf("%w: nil candidate", ErrInconsistentRoute)
	}
	if err := checkRoute(c.Route); err != nil {
		return err
	}
	if c.Vehicle == nil {
		return fmt.Errorf("%w: candidate without vehicle", ErrInconsistentRoute)
	}
	if c.Prev == nil || c.New == nil || c.Next == nil {
		return fmt.Errorf("%w: candidate without prev/new/next activity", ErrInconsistentRoute)
	}
	return nil
}

// Score returns the cost delta of c; lower is better.
func (p *SpanPenalty) Score(c *vrp.Insertion) (float64, error) {
	if err := checkInsertion(c); err != nil {
		return 0, fmt.Errorf("span penalty: %w", err)
	}
	metrics.InsertionEvaluations.Inc()
	currentMax := p.registry.Float64(MaxSpanID)
	route := c.Route

	costPrevNew := p.transport.Cost(c.Prev.Location, c.New.Location, c.DepTimeAtPrev, c.Driver, c.Vehicle)
	timePrevNew := p.transport.Time(c.Prev.Location, c.New.Location, c.DepTimeAtPrev, c.Driver, c.Vehicle)
	newArr := c.DepTimeAtPrev + timePrevNew
	newEnd := math.Max(newArr, c.New.EarliestStart) + p.activity.Duration(c.New, newArr, c.Driver, c.Vehicle)

	existingSpan := route.End.ArrTime - route.Start.EndTime

	// open route: nothing follows the new activity
	if c.Next.IsEnd() && !c.Vehicle.ReturnToDepot {
		span := existingSpan + timePrevNew
		return costPrevNew + p.penalty(span, currentMax), nil
	}

	costNewNext := p.transport.Cost(c.New.Location, c.Next.Location, newEnd, c.Driver, c.Vehicle)
	timeNewNext := p.transport.Time(c.New.Location, c.Next.Location, newEnd, c.Driver, c.Vehicle)
	totalCost := costPrevNew + costNewNext

	var oldCost, oldTime float64
	if route.IsEmpty() {
		oldCost = p.transport.Cost(c.Prev.Location, c.Next.Location, c.DepTimeAtPrev, c.Driver, c.Vehicle)
		oldTime = c.Next.ArrTime - c.DepTimeAtPrev
	} else {
		oldCost = p.transport.Cost(c.Prev.Location, c.Next.Location, c.Prev.EndTime, route.Driver, route.Vehicle)
		oldTime = c.Next.ArrTime - route.DepartureTime()
	}

	nextArr := newEnd + timeNewNext
	additional := (nextArr - c.DepartureTime) - oldTime
	span := existingSpan + additional
	return totalCost - oldCost + p.penalty(span, currentMax), nil
}

func (p *SpanPenalty) penalty(span, currentMax float64) float64 {
	over := math.Max(0, span-currentMax)
	if over > 0 {
		metrics.SpanPenalties.Observe(over)
	}
	return PenaltyRate * over
}
