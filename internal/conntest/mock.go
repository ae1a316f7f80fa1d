// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package conntest provides an in-memory connector for exercising a pool without any real resource behind it.
package conntest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrInjected is the default error returned by the failure hooks.
var ErrInjected = errors.New("injected failure")

// MockConnection is an in-memory connection. Its fields are safe for concurrent use.
type MockConnection struct {
	ID uint64

	dead   atomic.Bool
	resets atomic.Int64
	closes atomic.Int64
}

// Alive reports whether the connection has not been closed or killed.
func (c *MockConnection) Alive() bool {
	return !c.dead.Load()
}

// Kill marks the connection as dead without going through the connector, as a dropped peer would.
func (c *MockConnection) Kill() {
	c.dead.Store(true)
}

// Resets returns the number of times the connection was reset.
func (c *MockConnection) Resets() int {
	return int(c.resets.Load())
}

// Closes returns the number of times the connection was closed.
func (c *MockConnection) Closes() int {
	return int(c.closes.Load())
}

// MockConnector creates MockConnections. The optional hook functions replace the default behavior of the matching
// operation; they are read without locking and must be set before the connector is handed to a pool.
type MockConnector struct {
	ConnectFn  func(ctx context.Context) (*MockConnection, error)
	IsClosedFn func(c *MockConnection) (bool, error)
	ResetFn    func(ctx context.Context, c *MockConnection) error
	CloseFn    func(c *MockConnection) error
	InspectFn  func(c *MockConnection) error

	nextID   atomic.Uint64
	connects atomic.Int64
	resets   atomic.Int64
	closes   atomic.Int64

	mu     sync.Mutex
	opened []*MockConnection
}

// Connect opens a new MockConnection.
func (m *MockConnector) Connect(ctx context.Context) (*MockConnection, error) {
	m.connects.Add(1)
	if m.ConnectFn != nil {
		c, err := m.ConnectFn(ctx)
		if c != nil {
			m.track(c)
		}
		return c, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c := &MockConnection{ID: m.nextID.Add(1)}
	m.track(c)
	return c, nil
}

func (m *MockConnector) track(c *MockConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened = append(m.opened, c)
}

// IsClosed reports whether c is dead.
func (m *MockConnector) IsClosed(c *MockConnection) (bool, error) {
	if m.IsClosedFn != nil {
		return m.IsClosedFn(c)
	}
	return !c.Alive(), nil
}

// Reset counts a reset of c.
func (m *MockConnector) Reset(ctx context.Context, c *MockConnection) error {
	m.resets.Add(1)
	c.resets.Add(1)
	if m.ResetFn != nil {
		return m.ResetFn(ctx, c)
	}
	return nil
}

// Close marks c as dead.
func (m *MockConnector) Close(c *MockConnection) error {
	m.closes.Add(1)
	c.closes.Add(1)
	c.Kill()
	if m.CloseFn != nil {
		return m.CloseFn(c)
	}
	return nil
}

// Inspect runs InspectFn when set.
func (m *MockConnector) Inspect(c *MockConnection) error {
	if m.InspectFn != nil {
		return m.InspectFn(c)
	}
	return nil
}

// Connects returns the number of Connect calls.
func (m *MockConnector) Connects() int { return int(m.connects.Load()) }

// ResetCount returns the number of Reset calls.
func (m *MockConnector) ResetCount() int { return int(m.resets.Load()) }

// CloseCount returns the number of Close calls.
func (m *MockConnector) CloseCount() int { return int(m.closes.Load()) }

// Opened returns every connection created so far, in creation order.
func (m *MockConnector) Opened() []*MockConnection {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*MockConnection(nil), m.opened...)
}

// Alive returns the number of created connections that are still alive.
func (m *MockConnector) Alive() int {
	alive := 0
	for _, c := range m.Opened() {
		if c.Alive() {
			alive++
		}
	}
	return alive
}
