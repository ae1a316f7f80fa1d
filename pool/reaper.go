// Copyright (C) MongoDB, Inc. 2017-present.
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
	"github.com/pkg/errors"
)

func (p *Pool[C]) startReaper() {
	p.reaperCtx, p.reaperCancel = context.WithCancel(context.Background())
	p.reaperWg.Add(1)
	go p.reap()
}

// reap closes idle and aged connections every reap interval until the pool is closed.
func (p *Pool[C]) reap() {
	defer p.reaperWg.Done()
	ticker := time.NewTicker(p.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
		case <-p.reaperCtx.Done():
			return
		}

		if !p.reapOnce() {
			return
		}
	}
}

// reapOnce runs a single reaper pass and reports whether the pool is still open. A panic during the pass is logged
// and does not stop the reaper.
func (p *Pool[C]) reapOnce() (open bool) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(logger.ComponentReaper, errors.Errorf("reaper panic: %v", r), "reaper pass panicked",
				logger.KeyPoolName, p.name,
			)
			open = true
		}
	}()

	detached, open := p.collectExpired(p.now())
	for _, d := range detached {
		p.closeConnection(d.id, d.conn, d.reason)
	}
	if len(detached) > 0 {
		p.logger.Print(logger.LevelDebug, logger.ComponentReaper, "reaped connections",
			logger.KeyPoolName, p.name,
			logger.KeyCount, len(detached),
		)
	}
	return open
}

// collectExpired detaches the connections of available slots that have been idle longer than the maximum idle time
// or have outlived the maximum connection age. Busy slots are left alone.
func (p *Pool[C]) collectExpired(now time.Time) ([]detachedConnection[C], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false
	}

	var detached []detachedConnection[C]
	p.available.Ascend(func(pc *pooledConnection[C]) bool {
		pc.mu.Lock()
		defer pc.mu.Unlock()

		if !pc.connected {
			return true
		}
		var reason string
		switch {
		case now.Sub(pc.releaseTime) > p.maxIdleTime:
			reason = event.ReasonIdle
		case p.maxConnectionAge != options.UnlimitedConnectionAge &&
			(pc.createTime.After(now) || now.Sub(pc.createTime) >= p.maxConnectionAge):
			reason = event.ReasonStale
		default:
			return true
		}
		conn, _ := pc.detachLocked()
		detached = append(detached, detachedConnection[C]{id: pc.id, conn: conn, reason: reason})
		return true
	})
	if len(detached) > 0 {
		p.cond.Signal()
	}
	return detached, true
}
