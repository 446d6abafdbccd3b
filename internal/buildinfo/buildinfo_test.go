package buildinfo

import "testing"

func TestString(t *testing.T) {
    if got := String(); got != "fleetspan dev" { t.Fatalf("got %q", got) }
    Commit, BuiltAt = "abc123", "2026-10-01"
    defer func() { Commit, BuiltAt = "", "" }()
    if got := String(); got != "fleetspan dev (commit abc123, built 2026-10-01)" { t.Fatalf("got %q", got) }
    if Info()["commit"] != "abc123" { t.Fatalf("info: %v", Info()) }
}
