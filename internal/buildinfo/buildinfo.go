// Package buildinfo carries version data stamped at link time, e.g.
// -ldflags "-X fleetspan/internal/buildinfo.Version=v1.2.0".
package buildinfo

import "fmt"

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func Info() map[string]string {
    return map[string]string{
        "version": Version,
        "commit":  Commit,
        "builtAt": BuiltAt,
    }
}

// String is the one-line form printed by `fleetspan version`.
func String() string {
    s := "fleetspan " + Version
    if Commit != "" {
        s += fmt.Sprintf(" (commit %s", Commit)
        if BuiltAt != "" {
            s += ", built " + BuiltAt
        }
        s += ")"
    }
    return s
}
