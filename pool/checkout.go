// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"context"
	"errors"
	"time"

	"github.com/ikmak/agingpool/event"
	"github.com/ikmak/agingpool/internal/logger"
)

// Acquire checks out a connection for owner, allowing the owner a single connection before it is warned about
// nested checkouts. It is equivalent to AcquireN(ctx, owner, 1).
func (p *Pool[C]) Acquire(ctx context.Context, owner *Owner[C]) (C, error) {
	return p.acquire(ctx, owner, 1)
}

// AcquireN checks out a connection for owner, blocking until one is available, ctx is done or the pool is closed.
//
// maxPerOwner is the number of connections the owner is expected to hold at once. Going over it logs a warning;
// going over it while already holding half of the pool fails with an error wrapping *OwnerLimitError, since the
// owner could otherwise wait forever for a connection only it can release. Values below 1 are treated as 1.
//
// A connection that is new or was found closed is opened with the Connector and reset before it is returned. Errors
// returned by Connect are returned unchanged.
func (p *Pool[C]) AcquireN(ctx context.Context, owner *Owner[C], maxPerOwner int) (C, error) {
	return p.acquire(ctx, owner, maxPerOwner)
}

// acquireTraceSkip is the number of frames from activate up to the caller of Acquire or AcquireN.
const acquireTraceSkip = 3

func (p *Pool[C]) acquire(ctx context.Context, owner *Owner[C], maxPerOwner int) (C, error) {
	var zero C
	if ctx == nil {
		ctx = context.Background()
	}
	if maxPerOwner < 1 {
		maxPerOwner = 1
	}
	if err := ctx.Err(); err != nil {
		return zero, p.errorFactory.NewInterruptedError("interrupted before checking out a connection", err)
	}
	if owner == nil {
		return zero, ErrNilOwner
	}
	if owner.pool != p {
		return zero, ErrWrongPool
	}

	start := time.Now()
	p.emit(&event.PoolEvent{
		Type:    event.GetStarted,
		OwnerID: owner.id,
	})

	if err := p.checkOwnerLimit(owner, maxPerOwner); err != nil {
		p.checkoutFailed(owner, event.ReasonOwnerLimit, start, err)
		return zero, err
	}

	pc, err := p.reserve(ctx)
	if err != nil {
		reason := event.ReasonPoolClosed
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			reason = event.ReasonCanceled
		}
		p.checkoutFailed(owner, reason, start, err)
		return zero, err
	}
	waited := time.Since(start)
	p.waits.add(waited)
	owner.add(pc)

	conn, err := p.activate(ctx, pc, owner)
	if err != nil {
		p.unwind(pc, owner)
		reason := event.ReasonConnectionErrored
		if errors.Is(err, ErrPoolClosed) {
			reason = event.ReasonPoolClosed
		}
		p.checkoutFailed(owner, reason, start, err)
		return zero, err
	}

	p.emit(&event.PoolEvent{
		Type:         event.GetSucceeded,
		ConnectionID: pc.id,
		OwnerID:      owner.id,
		Duration:     waited,
	})
	return conn, nil
}

func (p *Pool[C]) checkoutFailed(owner *Owner[C], reason string, start time.Time, err error) {
	p.logger.Print(logger.LevelDebug, logger.ComponentCheckout, "connection checkout failed",
		logger.KeyPoolName, p.name,
		logger.KeyOwnerID, owner.id,
		logger.KeyReason, reason,
		logger.KeyError, err.Error(),
	)
	p.emit(&event.PoolEvent{
		Type:     event.GetFailed,
		OwnerID:  owner.id,
		Reason:   reason,
		Duration: time.Since(start),
		Error:    err,
	})
}

// checkOwnerLimit refuses a checkout that would let owner hold half of the pool or more, and warns about an owner
// holding more than maxPerOwner connections.
func (p *Pool[C]) checkOwnerLimit(owner *Owner[C], maxPerOwner int) error {
	held, traces := owner.traces()
	if held < maxPerOwner {
		return nil
	}
	limit := p.size / 2
	if limit < 1 {
		limit = 1
	}
	if held >= limit {
		return p.errorFactory.NewBusyError("refusing to check out a connection", &OwnerLimitError{
			Owner:  owner.String(),
			Held:   held,
			Limit:  limit,
			Traces: traces,
		})
	}

	if p.logger.LevelComponentEnabled(logger.LevelWarn, logger.ComponentCheckout) {
		p.logger.Print(logger.LevelWarn, logger.ComponentCheckout, "owner is checking out more connections than expected",
			logger.KeyPoolName, p.name,
			logger.KeyOwnerID, owner.id,
			logger.KeyOwnerName, owner.name,
			logger.KeyHeld, held,
			logger.KeyLimit, maxPerOwner,
			logger.KeyTraces, formatTraces(traces),
		)
	}
	return nil
}

// reserve moves a connection slot to the busy set, creating one if the pool is not full and waiting otherwise.
func (p *Pool[C]) reserve(ctx context.Context) (*pooledConnection[C], error) {
	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.cond.Broadcast()
	})
	defer stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if err := ctx.Err(); err != nil {
			// A slot may have been signaled to this waiter; hand the wakeup on.
			p.cond.Signal()
			return nil, p.errorFactory.NewInterruptedError("interrupted while waiting for a connection", err)
		}
		p.checkInvariant()
		if p.closed {
			return nil, p.errorFactory.NewBusyError("unable to check out a connection", ErrPoolClosed)
		}
		if pc, ok := p.available.DeleteMin(); ok {
			p.markBusy(pc)
			return pc, nil
		}
		if len(p.all) < p.size {
			pc := &pooledConnection[C]{id: p.nextID.Add(1)}
			p.all = append(p.all, pc)
			p.markBusy(pc)
			return pc, nil
		}
		p.logFullPool()
		p.cond.Wait()
	}
}

// markBusy must be called with p.mu held.
func (p *Pool[C]) markBusy(pc *pooledConnection[C]) {
	p.busy[pc] = struct{}{}
	if len(p.busy) > p.maxConcurrency {
		p.maxConcurrency = len(p.busy)
	}
}

// logFullPool warns that every slot is busy, listing the allocation trace of each, at most once per wait log
// interval. The caller must hold p.mu.
func (p *Pool[C]) logFullPool() {
	if !p.logger.LevelComponentEnabled(logger.LevelWarn, logger.ComponentCheckout) {
		return
	}
	now := p.now()
	if !p.lastFullLog.IsZero() && now.Sub(p.lastFullLog) < p.waitLogInterval {
		return
	}
	p.lastFullLog = now

	traces := make([][]string, len(p.all))
	for i, pc := range p.all {
		traces[i] = pc.allocationTrace()
	}
	p.logger.Print(logger.LevelWarn, logger.ComponentCheckout, "connection pool is full, waiting for a connection",
		logger.KeyPoolName, p.name,
		logger.KeyCount, len(p.all),
		logger.KeyTraces, formatTraces(traces),
	)
}

// activate makes sure the reserved slot holds a usable connection and records the checkout.
func (p *Pool[C]) activate(ctx context.Context, pc *pooledConnection[C], owner *Owner[C]) (C, error) {
	var zero C

	pc.mu.Lock()
	conn, connected := pc.conn, pc.connected
	pc.mu.Unlock()

	if connected {
		closed, err := p.probe(conn)
		switch {
		case err != nil:
			p.logger.Error(logger.ComponentCheckout, err, "unable to check connection, replacing it",
				logger.KeyPoolName, p.name,
				logger.KeyConnectionID, pc.id,
			)
			pc.detachIf(conn)
			p.closeConnection(pc.id, conn, event.ReasonConnectionErrored)
			connected = false
		case closed:
			pc.detachIf(conn)
			p.connectionClosed(pc.id, event.ReasonConnectionErrored, nil)
			connected = false
		}
	}

	if !connected {
		var err error
		conn, err = p.connect(ctx)
		if err != nil {
			return zero, err
		}
		if p.Closed() {
			p.closeConnection(pc.id, conn, event.ReasonPoolClosed)
			return zero, p.errorFactory.NewBusyError("pool closed while connecting", ErrPoolClosed)
		}

		pc.mu.Lock()
		pc.conn = conn
		pc.connected = true
		pc.createTime = p.now()
		pc.mu.Unlock()
		pc.connectCount.Add(1)

		p.logger.Print(logger.LevelDebug, logger.ComponentPool, "connection created",
			logger.KeyPoolName, p.name,
			logger.KeyConnectionID, pc.id,
		)
		p.emit(&event.PoolEvent{
			Type:         event.ConnectionCreated,
			ConnectionID: pc.id,
		})

		if err := p.reset(ctx, conn); err != nil {
			return zero, err
		}
	}

	pc.mu.Lock()
	pc.checkoutTime = p.now()
	pc.releaseTime = time.Time{}
	pc.ownerID = owner.id
	if p.captureTraces {
		pc.allocation = captureTrace(acquireTraceSkip)
	}
	pc.mu.Unlock()
	pc.useCount.Add(1)

	return conn, nil
}

// unwind returns a slot whose activation failed: its connection is closed and the slot made available again.
func (p *Pool[C]) unwind(pc *pooledConnection[C], owner *Owner[C]) {
	if conn, ok := pc.detach(); ok {
		p.closeConnection(pc.id, conn, event.ReasonConnectionErrored)
	}
	owner.remove(pc)
	p.checkIn(pc)
}
