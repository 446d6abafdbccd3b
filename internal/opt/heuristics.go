package opt

import "fleetspan/internal/vrp"

// ImproveRoute2Opt reverses activity segments of r while that shortens the
// route span, or keeps the span and lowers the transport cost. Infeasible
// orders are never kept. It reports whether r changed.
func ImproveRoute2Opt(r *vrp.Route, tc vrp.TransportCosts, ac vrp.ActivityCosts, iterations int) bool {
	if iterations <= 0 {
		iterations = 1
	}
	n := len(r.Activities)
	if n < 2 {
		return false
	}
	bestSpan, bestCost := r.Span(), vrp.TransportCost(r, tc)
	changed := false
	for it := 0; it < iterations; it++ {
		improved := false
		for i := 0; i < n-1; i++ {
			for k := i + 1; k < n; k++ {
				cand := r.Clone()
				twoOptSwap(cand.Activities, i, k)
				if !vrp.Schedule(cand, tc, ac) {
					continue
				}
				span, cost := cand.Span(), vrp.TransportCost(cand, tc)
				if span+1e-9 < bestSpan || (span <= bestSpan+1e-9 && cost+1e-3 < bestCost) {
					*r = *cand
					bestSpan, bestCost = span, cost
					improved, changed = true, true
				}
			}
		}
		if !improved {
			break
		}
	}
	return changed
}

// twoOptSwap reverses acts[i..k] in place.
func twoOptSwap(acts []*vrp.Activity, i, k int) {
	for i < k {
		acts[i], acts[k] = acts[k], acts[i]
		i++
		k--
	}
}

// improveRoutes runs 2-opt on each touched route and notifies the listeners
// about the ones that changed.
func (e *Engine) improveRoutes(sol *vrp.Solution, touched []int) {
	var changed []int
	for _, ri := range dedupe(touched) {
		if ImproveRoute2Opt(sol.Routes[ri], e.Problem.Transport, e.Problem.Activity, 2) {
			changed = append(changed, ri)
		}
	}
	e.notify(sol, changed)
}
