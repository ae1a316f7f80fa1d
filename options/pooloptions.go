// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package options defines the optional configurations for a connection pool.
package options

import (
	"time"

	"github.com/ikmak/agingpool/event"
)

// UnlimitedConnectionAge disables the maximum connection age: connections are only closed when idle, broken or
// when the pool closes.
const UnlimitedConnectionAge time.Duration = -1

// Defaults for the pool options.
var (
	DefaultPoolName                = "pool"
	DefaultPoolSize                = 10
	DefaultReapInterval            = time.Minute
	DefaultMaxIdleTime             = 10 * time.Minute
	DefaultMaxConnectionAge        = 30 * time.Minute
	DefaultWaitLogInterval         = time.Minute
	DefaultCaptureAllocationTraces = false
)

// PoolOptions represents all possible options for creating a connection pool.
type PoolOptions struct {
	// Name identifies the pool in logs, events and reports. Defaults to "pool".
	Name *string

	// Size is the maximum number of connection slots the pool creates. Defaults to 10.
	Size *int

	// ReapInterval is the time between two passes of the background reaper. Defaults to one minute.
	ReapInterval *time.Duration

	// MaxIdleTime is how long an available connection may stay unused before the reaper closes it. Defaults to ten
	// minutes.
	MaxIdleTime *time.Duration

	// MaxConnectionAge is the age after which a connection is closed on release or by the reaper.
	// UnlimitedConnectionAge disables it. Defaults to thirty minutes.
	MaxConnectionAge *time.Duration

	// CaptureAllocationTraces enables capturing a stack trace on every checkout, used to diagnose leaked
	// connections. Defaults to false.
	CaptureAllocationTraces *bool

	// WaitLogInterval is the minimum time between two "pool is full" warnings. Defaults to one minute.
	WaitLogInterval *time.Duration

	// NowFunc replaces time.Now as the pool's clock when non-nil.
	NowFunc func() time.Time

	PoolMonitor   *event.PoolMonitor
	LoggerOptions *LoggerOptions
}

// Pool creates a new *PoolOptions
func Pool() *PoolOptions {
	return &PoolOptions{}
}

// SetName specifies the name of the pool.
func (p *PoolOptions) SetName(name string) *PoolOptions {
	p.Name = &name
	return p
}

// SetSize specifies the capacity of the pool.
func (p *PoolOptions) SetSize(size int) *PoolOptions {
	p.Size = &size
	return p
}

// SetReapInterval specifies the time between passes of the idle connection reaper.
func (p *PoolOptions) SetReapInterval(d time.Duration) *PoolOptions {
	p.ReapInterval = &d
	return p
}

// SetMaxIdleTime specifies how long an available connection may be idle before it is closed.
func (p *PoolOptions) SetMaxIdleTime(d time.Duration) *PoolOptions {
	p.MaxIdleTime = &d
	return p
}

// SetMaxConnectionAge specifies the maximum age of a connection. Use UnlimitedConnectionAge to disable it.
func (p *PoolOptions) SetMaxConnectionAge(d time.Duration) *PoolOptions {
	p.MaxConnectionAge = &d
	return p
}

// SetCaptureAllocationTraces specifies whether a stack trace is captured on every checkout.
func (p *PoolOptions) SetCaptureAllocationTraces(b bool) *PoolOptions {
	p.CaptureAllocationTraces = &b
	return p
}

// SetWaitLogInterval specifies the minimum time between two "pool is full" warnings.
func (p *PoolOptions) SetWaitLogInterval(d time.Duration) *PoolOptions {
	p.WaitLogInterval = &d
	return p
}

// SetNowFunc specifies the clock used by the pool.
func (p *PoolOptions) SetNowFunc(now func() time.Time) *PoolOptions {
	p.NowFunc = now
	return p
}

// SetPoolMonitor specifies a monitor receiving the pool's events.
func (p *PoolOptions) SetPoolMonitor(m *event.PoolMonitor) *PoolOptions {
	p.PoolMonitor = m
	return p
}

// SetLoggerOptions specifies the logger configuration of the pool.
func (p *PoolOptions) SetLoggerOptions(lo *LoggerOptions) *PoolOptions {
	p.LoggerOptions = lo
	return p
}

// MergePoolOptions combines the given *PoolOptions into a single *PoolOptions in a last one wins fashion.
func MergePoolOptions(opts ...*PoolOptions) *PoolOptions {
	p := Pool()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if opt.Name != nil {
			p.Name = opt.Name
		}
		if opt.Size != nil {
			p.Size = opt.Size
		}
		if opt.ReapInterval != nil {
			p.ReapInterval = opt.ReapInterval
		}
		if opt.MaxIdleTime != nil {
			p.MaxIdleTime = opt.MaxIdleTime
		}
		if opt.MaxConnectionAge != nil {
			p.MaxConnectionAge = opt.MaxConnectionAge
		}
		if opt.CaptureAllocationTraces != nil {
			p.CaptureAllocationTraces = opt.CaptureAllocationTraces
		}
		if opt.WaitLogInterval != nil {
			p.WaitLogInterval = opt.WaitLogInterval
		}
		if opt.NowFunc != nil {
			p.NowFunc = opt.NowFunc
		}
		if opt.PoolMonitor != nil {
			p.PoolMonitor = opt.PoolMonitor
		}
		if opt.LoggerOptions != nil {
			p.LoggerOptions = MergeLoggerOptions(p.LoggerOptions, opt.LoggerOptions)
		}
	}

	return p
}
