package minmax

import (
	"errors"
	"fmt"

	"fleetspan/internal/metrics"
	"fleetspan/internal/state"
	"fleetspan/internal/vrp"
)

// MaxSpanID is the registry entry holding the largest route span seen in the run.
const MaxSpanID state.StateID = "max-transport-time"

// ErrInconsistentRoute flags a route or candidate that cannot be scored
// (missing markers, vehicle or neighbours). Callers should skip it.
var ErrInconsistentRoute = errors.New("inconsistent route state")

func checkRoute(r *vrp.Route) error {
	switch {
	case r == nil:
		return fmt.Errorf("%w: nil route", ErrInconsistentRoute)
	case r.Start == nil || r.End == nil:
		return fmt.Errorf("%w: route without start/end marker", ErrInconsistentRoute)
	case r.Vehicle == nil:
		return fmt.Errorf("%w: route without vehicle", ErrInconsistentRoute)
	}
	for i, a := range r.Activities {
		if a == nil {
			return fmt.Errorf("%w: nil activity at position %d", ErrInconsistentRoute, i)
		}
	}
	return nil
}

// SpanUpdater folds each rebuilt route's span into the registry's running
// maximum.
//
// The stored maximum never decreases during a run, even when a route later
// shrinks or disappears. It is a conservative upper bound that keeps the
// insertion penalty anchored to the worst span the search has produced so far.
type SpanUpdater struct {
	registry  *state.Registry
	transport vrp.TransportCosts
	activity  vrp.ActivityCosts
}

var _ vrp.RouteListener = (*SpanUpdater)(nil)

func NewSpanUpdater(reg *state.Registry, tc vrp.TransportCosts, ac vrp.ActivityCosts) *SpanUpdater {
	return &SpanUpdater{registry: reg, transport: tc, activity: ac}
}

// OnRouteBuilt recomputes r's span and raises the registry maximum if needed.
// Safe for concurrent use on different routes.
func (u *SpanUpdater) OnRouteBuilt(r *vrp.Route) error {
	if err := checkRoute(r); err != nil {
		return fmt.Errorf("span updater: %w", err)
	}
	tr := NewTracker(u.transport, u.activity)
	vrp.Walk(r, tr)
	stored, raised, err := u.registry.MaxFloat64(MaxSpanID, tr.Span())
	if err != nil {
		return fmt.Errorf("span updater: %w", err)
	}
	if raised {
		metrics.SpanUpdates.WithLabelValues("raised").Inc()
	} else {
		metrics.SpanUpdates.WithLabelValues("kept").Inc()
	}
	metrics.MaxSpan.Set(stored)
	return nil
}

// Reset seeds the maximum with 0. Only call it before a run starts.
func (u *SpanUpdater) Reset() error {
	return u.registry.PutFloat64(MaxSpanID, 0)
}

// CurrentMax returns the registry maximum (0 when unset).
func (u *SpanUpdater) CurrentMax() float64 {
	return u.registry.Float64(MaxSpanID)
}
