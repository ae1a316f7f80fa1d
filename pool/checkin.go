// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"context"
	"time"

	"github.com/ikmak/agingpool/event"
	"github.com/ikmak/agingpool/internal/logger"
	"github.com/ikmak/agingpool/options"
)

// Release returns conn, checked out by owner, to the pool. A connection that is closed, too old, fails inspection or
// fails to reset is closed and its slot reopened on the next checkout. Releasing a connection the owner does not hold
// only logs a warning, so a connection may safely be released twice.
func (p *Pool[C]) Release(owner *Owner[C], conn C) {
	if owner == nil || owner.pool != p {
		p.logger.Print(logger.LevelWarn, logger.ComponentPool, "connection released with an invalid owner",
			logger.KeyPoolName, p.name,
		)
		return
	}
	pc := owner.take(conn)
	if pc == nil {
		p.logger.Print(logger.LevelWarn, logger.ComponentPool, "released connection is not checked out by the owner",
			logger.KeyPoolName, p.name,
			logger.KeyOwnerID, owner.id,
			logger.KeyOwnerName, owner.name,
		)
		return
	}
	defer func() {
		p.checkIn(pc)
		p.emit(&event.PoolEvent{
			Type:         event.ConnectionReturned,
			ConnectionID: pc.id,
			OwnerID:      owner.id,
		})
	}()

	closed, err := p.probe(conn)
	switch {
	case err != nil:
		p.logger.Error(logger.ComponentPool, err, "unable to check released connection, closing it",
			logger.KeyPoolName, p.name,
			logger.KeyConnectionID, pc.id,
		)
		p.discard(pc, conn, event.ReasonConnectionErrored)
	case closed:
		pc.detachIf(conn)
		p.connectionClosed(pc.id, event.ReasonConnectionErrored, nil)
	case p.Closed():
		p.discard(pc, conn, event.ReasonPoolClosed)
	case p.expired(pc, p.now()):
		p.discard(pc, conn, event.ReasonStale)
	default:
		if err := p.inspect(conn); err != nil {
			p.logger.Error(logger.ComponentPool, err, "released connection failed inspection, closing it",
				logger.KeyPoolName, p.name,
				logger.KeyConnectionID, pc.id,
			)
			p.discard(pc, conn, event.ReasonConnectionErrored)
			break
		}
		if err := p.reset(context.Background(), conn); err != nil {
			p.logger.Error(logger.ComponentPool, err, "unable to reset released connection, closing it",
				logger.KeyPoolName, p.name,
				logger.KeyConnectionID, pc.id,
			)
			p.discard(pc, conn, event.ReasonConnectionErrored)
		}
	}
}

func (p *Pool[C]) discard(pc *pooledConnection[C], conn C, reason string) {
	pc.detachIf(conn)
	p.closeConnection(pc.id, conn, reason)
}

// expired reports whether the connection of pc is older than the maximum connection age, or was created in the
// future because the clock moved backwards.
func (p *Pool[C]) expired(pc *pooledConnection[C], now time.Time) bool {
	if p.maxConnectionAge == options.UnlimitedConnectionAge {
		return false
	}
	pc.mu.Lock()
	created := pc.createTime
	pc.mu.Unlock()

	age := now.Sub(created)
	return age < 0 || age >= p.maxConnectionAge
}

// checkIn moves pc from the busy set back to the available set and wakes one waiter.
func (p *Pool[C]) checkIn(pc *pooledConnection[C]) {
	now := p.now()

	pc.mu.Lock()
	if pc.releaseTime.IsZero() && !pc.checkoutTime.IsZero() {
		if used := now.Sub(pc.checkoutTime); used > 0 {
			pc.totalTime.Add(int64(used))
		}
	}
	pc.releaseTime = now
	pc.allocation = nil
	pc.ownerID = ""
	pc.mu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.busy, pc)
	p.available.ReplaceOrInsert(pc)
	p.cond.Signal()
}
