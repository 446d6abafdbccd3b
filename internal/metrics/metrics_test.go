package metrics

import (
    "strings"
    "testing"

    "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterDefaultIsIdempotent(t *testing.T) {
    RegisterDefault()
    RegisterDefault()
    MaxSpan.Set(34.5)
    SpanUpdates.WithLabelValues("raised").Inc()
    expected := `
# HELP fleetspan_max_span Most recently stored maximum route span.
# TYPE fleetspan_max_span gauge
fleetspan_max_span 34.5
`
    if err := testutil.GatherAndCompare(Registry, strings.NewReader(expected), "fleetspan_max_span"); err != nil {
        t.Fatal(err)
    }
    if n := testutil.CollectAndCount(SpanUpdates); n < 1 { t.Fatalf("want span update series, got %d", n) }
}
