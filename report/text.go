// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ikmak/agingpool/options"
)

// WriteText writes r as a human readable table. Allocation traces are listed after the table when withTraces is
// true.
func WriteText(w io.Writer, r Report, withTraces bool) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	st := r.Pool
	fmt.Fprintf(tw, "Pool:\t%s\n", st.Name)
	fmt.Fprintf(tw, "Created:\t%s (%s ago)\n", st.CreateTime.Format(time.RFC3339), formatDuration(r.Uptime))
	fmt.Fprintf(tw, "Closed:\t%t\n", st.Closed)
	fmt.Fprintf(tw, "Reap Interval:\t%s\n", formatDuration(st.ReapInterval))
	fmt.Fprintf(tw, "Max Idle Time:\t%s\n", formatDuration(st.MaxIdleTime))
	fmt.Fprintf(tw, "Max Connection Age:\t%s\n", options.FormatConnectionAge(st.MaxConnectionAge))
	fmt.Fprintf(tw, "Pool Size:\t%d / %d\n", st.PoolSize, st.Size)
	fmt.Fprintf(tw, "Connections:\t%d open, %d in use, %d max in use\n", st.ConnectionCount, st.Concurrency, st.MaxConcurrency)
	if r.Waits.Samples > 0 {
		fmt.Fprintf(tw, "Wait Time:\tmean %s, median %s, p90 %s, p99 %s, max %s over %d checkouts\n",
			formatDuration(r.Waits.Mean), formatDuration(r.Waits.Median), formatDuration(r.Waits.P90),
			formatDuration(r.Waits.P99), formatDuration(r.Waits.Max), r.Waits.Samples)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "#\tAge\tConnects\tUses\tTotal Time\t% of Time\tState\tState Time\tAvg Use Time\tOwner")
	for _, row := range r.Rows {
		age := ""
		if row.Age > 0 {
			age = formatDuration(row.Age)
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%.2f%%\t%s\t%s\t%s\t%s\n",
			row.Number, age, row.ConnectCount, row.UseCount, formatDuration(row.TotalTime), row.PercentBusy,
			row.State, formatDuration(row.StateTime), formatDuration(row.AverageUseTime), row.OwnerID)
	}
	t := r.Totals
	fmt.Fprintf(tw, "Total\t\t%d\t%d\t%s\t%.2f%%\t\t%s\t%s\t\n",
		t.ConnectCount, t.UseCount, formatDuration(t.TotalTime), t.PercentBusy, formatDuration(r.Uptime),
		formatDuration(t.AverageUseTime))
	if err := tw.Flush(); err != nil {
		return err
	}

	if !withTraces {
		return nil
	}
	for _, row := range r.Rows {
		if len(row.AllocationTrace) == 0 {
			continue
		}
		if _, err := fmt.Fprintf(w, "\nConnection #%d allocated at:\n    %s\n", row.Number,
			strings.Join(row.AllocationTrace, "\n    ")); err != nil {
			return err
		}
	}
	return nil
}

// formatDuration rounds d to a precision that suits its magnitude.
func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0s"
	case d < time.Millisecond:
		return d.Round(time.Microsecond).String()
	case d < time.Second:
		return d.Round(10 * time.Microsecond).String()
	default:
		return d.Round(time.Millisecond).String()
	}
}
