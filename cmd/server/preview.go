package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/coppermind/milestone-engine/milestone"
)

// printPreview writes the plan summary and day table for one milestone.
// Today's row is marked with "*".
func printPreview(ctx context.Context, out io.Writer, svc *milestone.Service, id string, tzOffset int) error {
	m, err := svc.Get(ctx, id)
	if err != nil {
		return err
	}
	plan, err := svc.Plan(ctx, id, tzOffset)
	if err != nil {
		return err
	}
	days, err := svc.Preview(ctx, id, tzOffset)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s %s over %s (%s)\n", m.TargetValue, m.Unit, m.TargetMetric, m.Period, m.Strategy)
	fmt.Fprintf(out, "progress %s / %s (%s%%), %s, %s per day for %d days\n",
		m.CurrentValue, m.TargetValue, m.ProgressPercent(), plan.Status, plan.DailyTarget, plan.RemainingDays)
	if plan.EstimatedDone != nil {
		fmt.Fprintf(out, "estimated completion %s\n", plan.EstimatedDone)
	}
	fmt.Fprintln(out)

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "\tdate\ttarget\tactual\t")
	for _, d := range days {
		mark := ""
		if d.Date.Equal(plan.Today) {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", mark, d.Date, d.Target, d.Actual)
	}
	return tw.Flush()
}
