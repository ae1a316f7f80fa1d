// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"context"

	"github.com/markbates/safe"
	"github.com/pkg/errors"

	"github.com/ikmak/agingpool/event"
	"github.com/ikmak/agingpool/internal/logger"
)

// The connector callbacks below turn a panic into an error so that the pool's bookkeeping always completes.

func (p *Pool[C]) connect(ctx context.Context) (conn C, err error) {
	err = safe.RunE(func() error {
		var cerr error
		conn, cerr = p.connector.Connect(ctx)
		return cerr
	})
	return conn, err
}

func (p *Pool[C]) probe(conn C) (closed bool, err error) {
	err = safe.RunE(func() error {
		var perr error
		closed, perr = p.connector.IsClosed(conn)
		return perr
	})
	return closed, err
}

func (p *Pool[C]) reset(ctx context.Context, conn C) error {
	return safe.RunE(func() error {
		return p.connector.Reset(ctx, conn)
	})
}

func (p *Pool[C]) inspect(conn C) error {
	if p.inspector == nil {
		return nil
	}
	return safe.RunE(func() error {
		return p.inspector.Inspect(conn)
	})
}

// closeConnection closes conn, logging a failure, and publishes a ConnectionClosed event.
func (p *Pool[C]) closeConnection(id uint64, conn C, reason string) {
	err := safe.RunE(func() error {
		return p.connector.Close(conn)
	})
	if err != nil {
		p.logger.Error(logger.ComponentPool, errors.Wrapf(err, "unable to close connection %d", id), "error closing connection",
			logger.KeyPoolName, p.name,
			logger.KeyConnectionID, id,
			logger.KeyReason, reason,
		)
	}
	p.connectionClosed(id, reason, err)
}

func (p *Pool[C]) connectionClosed(id uint64, reason string, err error) {
	p.logger.Print(logger.LevelDebug, logger.ComponentPool, "connection closed",
		logger.KeyPoolName, p.name,
		logger.KeyConnectionID, id,
		logger.KeyReason, reason,
	)
	p.emit(&event.PoolEvent{
		Type:         event.ConnectionClosed,
		ConnectionID: id,
		Reason:       reason,
		Error:        err,
	})
}

func (p *Pool[C]) emit(evt *event.PoolEvent) {
	if p.monitor == nil || p.monitor.Event == nil {
		return
	}
	evt.PoolName = p.name
	p.monitor.Event(evt)
}
