// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-stack/stack"
)

// pooledConnection is the pool's record of one connection slot. The slot lives as long as the pool, while the
// connection inside it may be closed and replaced many times.
//
// The mutable fields are guarded by mu; the counters are atomics so that statistics never wait on a record.
type pooledConnection[C comparable] struct {
	// id orders records by creation, older records sort first.
	id uint64

	mu           sync.Mutex
	conn         C
	connected    bool
	createTime   time.Time
	checkoutTime time.Time
	releaseTime  time.Time
	allocation   stack.CallStack
	ownerID      string

	totalTime    atomic.Int64
	connectCount atomic.Uint64
	useCount     atomic.Uint64
}

func lessByID[C comparable](a, b *pooledConnection[C]) bool {
	return a.id < b.id
}

// detach removes the connection from the record and returns it. ok is false when the record was not connected.
func (pc *pooledConnection[C]) detach() (conn C, ok bool) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	return pc.detachLocked()
}

// detachLocked is detach for callers already holding pc.mu.
func (pc *pooledConnection[C]) detachLocked() (conn C, ok bool) {
	var zero C
	conn, ok = pc.conn, pc.connected
	pc.conn = zero
	pc.connected = false
	return conn, ok
}

// detachIf removes the connection from the record only if it is still conn.
func (pc *pooledConnection[C]) detachIf(conn C) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.connected && pc.conn == conn {
		pc.detachLocked()
	}
}

// holds reports whether the record currently wraps conn.
func (pc *pooledConnection[C]) holds(conn C) bool {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	return pc.connected && pc.conn == conn
}

func (pc *pooledConnection[C]) allocationTrace() []string {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	return traceLines(pc.allocation)
}

// ConnectionSnapshot is a point in time copy of a connection slot's state, used for diagnostics and reports.
type ConnectionSnapshot struct {
	// Number is the 1-based position of the slot in creation order.
	Number       int           `json:"number"`
	ID           uint64        `json:"id"`
	Connected    bool          `json:"connected"`
	CreateTime   time.Time     `json:"createTime"`
	ConnectCount uint64        `json:"connectCount"`
	UseCount     uint64        `json:"useCount"`
	TotalTime    time.Duration `json:"totalTime"`
	Busy         bool          `json:"busy"`
	CheckoutTime time.Time     `json:"checkoutTime"`
	ReleaseTime  time.Time     `json:"releaseTime"`
	OwnerID      string        `json:"ownerId,omitempty"`

	// AllocationTrace is the stack captured at the last checkout, empty unless trace capture is enabled and the
	// slot is busy.
	AllocationTrace []string `json:"allocationTrace,omitempty"`
}

func (pc *pooledConnection[C]) snapshot(number int, busy bool) ConnectionSnapshot {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	return ConnectionSnapshot{
		Number:          number,
		ID:              pc.id,
		Connected:       pc.connected,
		CreateTime:      pc.createTime,
		ConnectCount:    pc.connectCount.Load(),
		UseCount:        pc.useCount.Load(),
		TotalTime:       time.Duration(pc.totalTime.Load()),
		Busy:            busy,
		CheckoutTime:    pc.checkoutTime,
		ReleaseTime:     pc.releaseTime,
		OwnerID:         pc.ownerID,
		AllocationTrace: traceLines(pc.allocation),
	}
}
