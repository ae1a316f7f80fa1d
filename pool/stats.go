// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// maxWaitSamples is the number of checkout wait times kept for WaitTimes.
const maxWaitSamples = 500

// Statistics is a point in time summary of a pool.
type Statistics struct {
	Name             string        `json:"name"`
	Size             int           `json:"size"`
	CreateTime       time.Time     `json:"createTime"`
	Closed           bool          `json:"closed"`
	ReapInterval     time.Duration `json:"reapInterval"`
	MaxIdleTime      time.Duration `json:"maxIdleTime"`
	MaxConnectionAge time.Duration `json:"maxConnectionAge"`

	// Concurrency is the number of connections checked out.
	Concurrency int `json:"concurrency"`
	// MaxConcurrency is the highest Concurrency observed.
	MaxConcurrency int `json:"maxConcurrency"`
	// PoolSize is the number of connection slots created so far.
	PoolSize int `json:"poolSize"`
	// ConnectionCount is the number of slots holding an open connection.
	ConnectionCount int `json:"connectionCount"`
	// Connects is the number of connections opened.
	Connects uint64 `json:"connects"`
	// TransactionCount is the number of checkouts.
	TransactionCount uint64 `json:"transactionCount"`
	// TotalTime is the time connections spent checked out, excluding checkouts in progress.
	TotalTime time.Duration `json:"totalTime"`
}

// Stats returns a summary of the pool.
func (p *Pool[C]) Stats() Statistics {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := Statistics{
		Name:             p.name,
		Size:             p.size,
		CreateTime:       p.createTime,
		Closed:           p.closed,
		ReapInterval:     p.reapInterval,
		MaxIdleTime:      p.maxIdleTime,
		MaxConnectionAge: p.maxConnectionAge,
		Concurrency:      len(p.busy),
		MaxConcurrency:   p.maxConcurrency,
		PoolSize:         len(p.all),
	}
	for _, pc := range p.all {
		pc.mu.Lock()
		if pc.connected {
			s.ConnectionCount++
		}
		pc.mu.Unlock()
		s.Connects += pc.connectCount.Load()
		s.TransactionCount += pc.useCount.Load()
		s.TotalTime += time.Duration(pc.totalTime.Load())
	}
	return s
}

// Concurrency returns the number of connections currently checked out.
func (p *Pool[C]) Concurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.busy)
}

// MaxConcurrency returns the highest number of connections checked out at once.
func (p *Pool[C]) MaxConcurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.maxConcurrency
}

// PoolSize returns the number of connection slots created so far. It never exceeds Size.
func (p *Pool[C]) PoolSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.all)
}

// ConnectionCount returns the number of open connections, checked out or not.
func (p *Pool[C]) ConnectionCount() int { return p.Stats().ConnectionCount }

// Connects returns the number of connections opened over the life of the pool.
func (p *Pool[C]) Connects() uint64 { return p.Stats().Connects }

// TransactionCount returns the number of checkouts over the life of the pool.
func (p *Pool[C]) TransactionCount() uint64 { return p.Stats().TransactionCount }

// TotalTime returns the total time connections have spent checked out.
func (p *Pool[C]) TotalTime() time.Duration { return p.Stats().TotalTime }

// Snapshot returns the state of every connection slot, in creation order.
func (p *Pool[C]) Snapshot() []ConnectionSnapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	snaps := make([]ConnectionSnapshot, len(p.all))
	for i, pc := range p.all {
		_, busy := p.busy[pc]
		snaps[i] = pc.snapshot(i+1, busy)
	}
	return snaps
}

// WaitTimes returns the time the most recent checkouts spent waiting for a connection slot, oldest first.
func (p *Pool[C]) WaitTimes() []time.Duration {
	return p.waits.list()
}

// waitSamples is a bounded queue of checkout wait times.
type waitSamples struct {
	mu sync.Mutex
	q  *queue.Queue
}

func newWaitSamples() *waitSamples {
	return &waitSamples{q: queue.New()}
}

func (w *waitSamples) add(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.q.Add(d)
	for w.q.Length() > maxWaitSamples {
		w.q.Remove()
	}
}

func (w *waitSamples) list() []time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]time.Duration, w.q.Length())
	for i := range out {
		out[i] = w.q.Get(i).(time.Duration)
	}
	return out
}
