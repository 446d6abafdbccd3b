package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"fleetspan/internal/opt"
	"fleetspan/internal/problem"
)

// printReport writes the problem header, the cost lines and one table row
// per activity, start and end included.
func printReport(w io.Writer, spec *problem.Spec, sum opt.Summary, res opt.Result) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	name := spec.Name
	if name == "" {
		name = "-"
	}
	fmt.Fprintf(tw, "problem\t%s\n", name)
	fmt.Fprintf(tw, "vehicles\t%d\n", len(spec.Vehicles))
	fmt.Fprintf(tw, "jobs\t%d\n", len(spec.Jobs))
	fmt.Fprintf(tw, "iterations\t%d\n", res.Metrics.Iterations)
	fmt.Fprintf(tw, "cost\t%.2f\n", res.Cost)
	fmt.Fprintf(tw, "fitness\t%.2f\n", sum.Fitness)
	fmt.Fprintf(tw, "max-span\t%.2f\n", sum.MaxSpan)
	fmt.Fprintf(tw, "routes\t%d\n", len(sum.Routes))
	fmt.Fprintf(tw, "unassigned\t%d\n", len(sum.Unassigned))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "route\tvehicle\tactivity\tjob\tarrTime\tendTime\tcosts")
	for i, r := range sum.Routes {
		fmt.Fprintf(tw, "%d\t%s\tstart\t-\t-\t%.2f\t0\n", i+1, r.VehicleID, r.Departure)
		for _, s := range r.Stops {
			fmt.Fprintf(tw, "%d\t%s\tservice\t%s\t%.2f\t%.2f\t-\n", i+1, r.VehicleID, s.JobID, s.Arrival, s.End)
		}
		fmt.Fprintf(tw, "%d\t%s\tend\t-\t%.2f\t-\t%.2f\n", i+1, r.VehicleID, r.Arrival, r.Cost)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	for _, id := range sum.Unassigned {
		fmt.Fprintf(w, "unassigned job %s\n", id)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "total-time %.2f\n", sum.TotalTime)
	_, err := fmt.Fprintf(w, "total-distance %.2f\n", sum.TotalDistance)
	return err
}
