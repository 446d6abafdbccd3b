// Package minmax biases insertion-based route construction toward
// minimizing the largest route span in a fleet.
//
// SpanUpdater keeps the run's maximum span in a state.Registry as routes are
// rebuilt, SpanPenalty charges candidate insertions that would push a route
// past that maximum, and Objective scores finished solutions by
// maxSpan + 0.2*sumSpans.
package minmax
