// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package report renders the statistics of a connection pool as a text table, JSON or a debug dump, and serves them
// over HTTP.
package report // import "github.com/ikmak/agingpool/report"

import (
	"time"

	"github.com/montanaflynn/stats"

	"github.com/ikmak/agingpool/pool"
)

// States of a connection slot.
const (
	StateInUse  = "In Use"
	StateIdle   = "Idle"
	StateClosed = "Closed"
)

// Source is the part of a pool a report reads. *pool.Pool satisfies it for any connection type.
type Source interface {
	Stats() pool.Statistics
	Snapshot() []pool.ConnectionSnapshot
	WaitTimes() []time.Duration
}

// Row is the report line of one connection slot.
type Row struct {
	Number       int    `json:"number"`
	ID           uint64 `json:"id"`
	State        string `json:"state"`
	OwnerID      string `json:"ownerId,omitempty"`
	ConnectCount uint64 `json:"connectCount"`
	UseCount     uint64 `json:"useCount"`

	// Age is the age of the open connection, zero when the slot is closed.
	Age time.Duration `json:"age"`
	// TotalTime includes the current checkout of a slot in use.
	TotalTime time.Duration `json:"totalTime"`
	// PercentBusy is TotalTime relative to the pool's uptime.
	PercentBusy float64 `json:"percentBusy"`
	// StateTime is the time since the last checkout or release.
	StateTime      time.Duration `json:"stateTime"`
	AverageUseTime time.Duration `json:"averageUseTime"`

	AllocationTrace []string `json:"allocationTrace,omitempty"`
}

// Totals sums the rows of a report.
type Totals struct {
	ConnectCount   uint64        `json:"connectCount"`
	UseCount       uint64        `json:"useCount"`
	TotalTime      time.Duration `json:"totalTime"`
	PercentBusy    float64       `json:"percentBusy"`
	AverageUseTime time.Duration `json:"averageUseTime"`
}

// WaitSummary describes the recent time spent waiting for a connection slot.
type WaitSummary struct {
	Samples int           `json:"samples"`
	Mean    time.Duration `json:"mean"`
	Median  time.Duration `json:"median"`
	P90     time.Duration `json:"p90"`
	P99     time.Duration `json:"p99"`
	Max     time.Duration `json:"max"`
}

// Report is a point in time view of a pool.
type Report struct {
	GeneratedAt time.Time       `json:"generatedAt"`
	Uptime      time.Duration   `json:"uptime"`
	Pool        pool.Statistics `json:"pool"`
	Rows        []Row           `json:"connections"`
	Totals      Totals          `json:"totals"`
	Waits       WaitSummary     `json:"waits"`
}

// Build collects a report from src as of now.
func Build(src Source, now time.Time) Report {
	st := src.Stats()
	r := Report{
		GeneratedAt: now,
		Uptime:      now.Sub(st.CreateTime),
		Pool:        st,
		Waits:       summarizeWaits(src.WaitTimes()),
	}

	for _, snap := range src.Snapshot() {
		row := Row{
			Number:          snap.Number,
			ID:              snap.ID,
			OwnerID:         snap.OwnerID,
			ConnectCount:    snap.ConnectCount,
			UseCount:        snap.UseCount,
			TotalTime:       snap.TotalTime,
			AllocationTrace: snap.AllocationTrace,
		}
		if snap.Connected {
			row.Age = now.Sub(snap.CreateTime)
		}
		switch {
		case snap.Busy:
			row.State = StateInUse
			row.StateTime = now.Sub(snap.CheckoutTime)
			row.TotalTime += row.StateTime
		case snap.Connected:
			row.State = StateIdle
			row.StateTime = now.Sub(snap.ReleaseTime)
		default:
			row.State = StateClosed
			if !snap.ReleaseTime.IsZero() {
				row.StateTime = now.Sub(snap.ReleaseTime)
			}
		}
		row.PercentBusy = percent(row.TotalTime, r.Uptime)
		if row.UseCount > 0 {
			row.AverageUseTime = row.TotalTime / time.Duration(row.UseCount)
		}

		r.Totals.ConnectCount += row.ConnectCount
		r.Totals.UseCount += row.UseCount
		r.Totals.TotalTime += row.TotalTime
		r.Rows = append(r.Rows, row)
	}
	r.Totals.PercentBusy = percent(r.Totals.TotalTime, r.Uptime)
	if r.Totals.UseCount > 0 {
		r.Totals.AverageUseTime = r.Totals.TotalTime / time.Duration(r.Totals.UseCount)
	}
	return r
}

func percent(part, whole time.Duration) float64 {
	if whole <= 0 {
		return 0
	}
	return float64(part) * 100 / float64(whole)
}

func summarizeWaits(waits []time.Duration) WaitSummary {
	ws := WaitSummary{Samples: len(waits)}
	if len(waits) == 0 {
		return ws
	}
	data := make(stats.Float64Data, len(waits))
	for i, w := range waits {
		data[i] = float64(w)
	}
	// The inputs are non-empty, so the stats functions cannot fail.
	mean, _ := stats.Mean(data)
	median, _ := stats.Median(data)
	p90, _ := stats.Percentile(data, 90)
	p99, _ := stats.Percentile(data, 99)
	longest, _ := stats.Max(data)

	ws.Mean = time.Duration(mean)
	ws.Median = time.Duration(median)
	ws.P90 = time.Duration(p90)
	ws.P99 = time.Duration(p99)
	ws.Max = time.Duration(longest)
	return ws
}
