// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package pool implements a generic connection pool that ages out idle and old connections, accounts for the time
// connections spend in use, and keeps a single task from starving the pool.
package pool // import "github.com/ikmak/agingpool/pool"

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/btree"
	"github.com/pkg/errors"

	"github.com/ikmak/agingpool/event"
	"github.com/ikmak/agingpool/internal/logger"
	"github.com/ikmak/agingpool/options"
)

// Connector creates, probes, resets and closes the connections managed by a Pool.
//
// A Connector may also implement ErrorFactory to control the errors returned by the pool, and Inspector to examine a
// connection each time it is released.
type Connector[C comparable] interface {
	// Connect opens a new connection.
	Connect(ctx context.Context) (C, error)

	// IsClosed reports whether conn can no longer be used. An error is treated as closed.
	IsClosed(conn C) (bool, error)

	// Reset restores conn to a clean state before it is handed to another owner.
	Reset(ctx context.Context, conn C) error

	// Close releases the resources held by conn.
	Close(conn C) error
}

// Inspector may be implemented by a Connector to examine a live connection on release, before it is reset. An error
// causes the connection to be closed instead of reused.
type Inspector[C comparable] interface {
	Inspect(conn C) error
}

// btreeDegree is the degree of the available set. The set rarely holds more than a few dozen records.
const btreeDegree = 8

// Pool is a fixed capacity pool of connections of type C.
type Pool[C comparable] struct {
	nextID atomic.Uint64

	name             string
	size             int
	reapInterval     time.Duration
	maxIdleTime      time.Duration
	maxConnectionAge time.Duration
	waitLogInterval  time.Duration
	captureTraces    bool
	now              func() time.Time
	createTime       time.Time

	connector    Connector[C]
	inspector    Inspector[C]
	errorFactory ErrorFactory
	monitor      *event.PoolMonitor
	logger       *logger.Logger

	mu             sync.Mutex
	cond           *sync.Cond
	all            []*pooledConnection[C]
	available      *btree.BTreeG[*pooledConnection[C]]
	busy           map[*pooledConnection[C]]struct{}
	closed         bool
	maxConcurrency int
	lastFullLog    time.Time

	waits *waitSamples

	reaperCtx    context.Context
	reaperCancel context.CancelFunc
	reaperWg     sync.WaitGroup
}

// New creates a pool of connections opened by connector and starts its reaper. The options are merged in a last one
// wins fashion.
func New[C comparable](connector Connector[C], opts ...*options.PoolOptions) (*Pool[C], error) {
	if connector == nil {
		return nil, errors.New("connector is required")
	}
	po := options.MergePoolOptions(opts...)

	p := &Pool[C]{
		name:             options.DefaultPoolName,
		size:             options.DefaultPoolSize,
		reapInterval:     options.DefaultReapInterval,
		maxIdleTime:      options.DefaultMaxIdleTime,
		maxConnectionAge: options.DefaultMaxConnectionAge,
		waitLogInterval:  options.DefaultWaitLogInterval,
		captureTraces:    options.DefaultCaptureAllocationTraces,
		now:              time.Now,
		connector:        connector,
		errorFactory:     defaultErrorFactory{},
		monitor:          po.PoolMonitor,
		busy:             make(map[*pooledConnection[C]]struct{}),
		available:        btree.NewG[*pooledConnection[C]](btreeDegree, lessByID[C]),
		waits:            newWaitSamples(),
	}
	if po.Name != nil {
		p.name = *po.Name
	}
	if po.Size != nil {
		p.size = *po.Size
	}
	if po.ReapInterval != nil {
		p.reapInterval = *po.ReapInterval
	}
	if po.MaxIdleTime != nil {
		p.maxIdleTime = *po.MaxIdleTime
	}
	if po.MaxConnectionAge != nil {
		p.maxConnectionAge = *po.MaxConnectionAge
	}
	if po.WaitLogInterval != nil {
		p.waitLogInterval = *po.WaitLogInterval
	}
	if po.CaptureAllocationTraces != nil {
		p.captureTraces = *po.CaptureAllocationTraces
	}
	if po.NowFunc != nil {
		p.now = po.NowFunc
	}

	switch {
	case p.size < 1:
		return nil, errors.Errorf("pool size must be at least 1, got %d", p.size)
	case p.reapInterval <= 0:
		return nil, errors.Errorf("reap interval must be positive, got %v", p.reapInterval)
	case p.maxIdleTime <= 0:
		return nil, errors.Errorf("max idle time must be positive, got %v", p.maxIdleTime)
	case p.maxConnectionAge <= 0 && p.maxConnectionAge != options.UnlimitedConnectionAge:
		return nil, errors.Errorf("max connection age must be positive or unlimited, got %v", p.maxConnectionAge)
	case p.waitLogInterval < 0:
		return nil, errors.Errorf("wait log interval must not be negative, got %v", p.waitLogInterval)
	}

	if ef, ok := connector.(ErrorFactory); ok {
		p.errorFactory = ef
	}
	if in, ok := connector.(Inspector[C]); ok {
		p.inspector = in
	}
	p.logger = po.LoggerOptions.NewLogger()
	p.cond = sync.NewCond(&p.mu)
	p.createTime = p.now()

	p.startReaper()

	p.logger.Print(logger.LevelInfo, logger.ComponentPool, "connection pool created",
		logger.KeyPoolName, p.name,
		"size", p.size,
		"reapInterval", p.reapInterval.String(),
		"maxIdleTime", p.maxIdleTime.String(),
		"maxConnectionAge", options.FormatConnectionAge(p.maxConnectionAge),
	)
	p.emit(&event.PoolEvent{
		Type: event.PoolCreated,
		PoolOptions: &event.MonitorPoolOptions{
			Size:             p.size,
			ReapInterval:     p.reapInterval,
			MaxIdleTime:      p.maxIdleTime,
			MaxConnectionAge: p.maxConnectionAge,
		},
	})

	return p, nil
}

// Close closes the pool. Available connections are closed immediately and goroutines waiting for a connection fail
// with ErrPoolClosed. Connections checked out at the time are closed when they are released. Close is idempotent.
func (p *Pool[C]) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	var detached []detachedConnection[C]
	p.available.Ascend(func(pc *pooledConnection[C]) bool {
		if conn, ok := pc.detach(); ok {
			detached = append(detached, detachedConnection[C]{id: pc.id, conn: conn, reason: event.ReasonPoolClosed})
		}
		return true
	})
	p.cond.Broadcast()
	p.mu.Unlock()

	p.reaperCancel()
	p.reaperWg.Wait()

	for _, d := range detached {
		p.closeConnection(d.id, d.conn, d.reason)
	}

	p.logger.Print(logger.LevelInfo, logger.ComponentPool, "connection pool closed",
		logger.KeyPoolName, p.name,
		logger.KeyCount, len(detached),
	)
	p.emit(&event.PoolEvent{Type: event.PoolClosedEvent})
}

type detachedConnection[C comparable] struct {
	id     uint64
	conn   C
	reason string
}

// checkInvariant panics if the slot bookkeeping is inconsistent. The caller must hold p.mu.
func (p *Pool[C]) checkInvariant() {
	if len(p.all) > p.size {
		panic(errors.Errorf("pool %q holds %d connection slots, size is %d", p.name, len(p.all), p.size))
	}
	if avail, busy := p.available.Len(), len(p.busy); len(p.all) != avail+busy {
		panic(errors.Errorf("pool %q is inconsistent: %d slots, %d available, %d busy", p.name, len(p.all), avail, busy))
	}
}

// Name returns the name of the pool.
func (p *Pool[C]) Name() string { return p.name }

// Size returns the maximum number of connections of the pool.
func (p *Pool[C]) Size() int { return p.size }

// ReapInterval returns the time between passes of the reaper.
func (p *Pool[C]) ReapInterval() time.Duration { return p.reapInterval }

// MaxIdleTime returns how long an available connection may stay unused.
func (p *Pool[C]) MaxIdleTime() time.Duration { return p.maxIdleTime }

// MaxConnectionAge returns the maximum age of a connection, or options.UnlimitedConnectionAge.
func (p *Pool[C]) MaxConnectionAge() time.Duration { return p.maxConnectionAge }

// CreateTime returns the time the pool was created.
func (p *Pool[C]) CreateTime() time.Time { return p.createTime }

// Logger returns the sink the pool logs to.
func (p *Pool[C]) Logger() options.LogSink { return p.logger.Sink }

// Closed reports whether Close has been called.
func (p *Pool[C]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.closed
}
