// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package event contains the types used to monitor what happens inside a connection pool.
package event // import "github.com/ikmak/agingpool/event"

import (
	"time"
)

// strings for pool monitoring reasons
const (
	ReasonIdle              = "idle"
	ReasonPoolClosed        = "poolClosed"
	ReasonStale             = "stale"
	ReasonConnectionErrored = "connectionError"
	ReasonOwnerLimit        = "ownerLimit"
	ReasonCanceled          = "canceled"
)

// strings for pool monitoring types
const (
	PoolCreated        = "ConnectionPoolCreated"
	ConnectionCreated  = "ConnectionCreated"
	ConnectionClosed   = "ConnectionClosed"
	GetStarted         = "ConnectionCheckOutStarted"
	GetFailed          = "ConnectionCheckOutFailed"
	GetSucceeded       = "ConnectionCheckedOut"
	ConnectionReturned = "ConnectionCheckedIn"
	PoolClosedEvent    = "ConnectionPoolClosed"
)

// MonitorPoolOptions contains pool options as formatted in pool events
type MonitorPoolOptions struct {
	Size             int           `json:"size"`
	ReapInterval     time.Duration `json:"reapInterval"`
	MaxIdleTime      time.Duration `json:"maxIdleTime"`
	MaxConnectionAge time.Duration `json:"maxConnectionAge"`
}

// PoolEvent contains all information summarizing a pool event
type PoolEvent struct {
	Type         string              `json:"type"`
	PoolName     string              `json:"poolName"`
	ConnectionID uint64              `json:"connectionId"`
	OwnerID      string              `json:"ownerId,omitempty"`
	PoolOptions  *MonitorPoolOptions `json:"options,omitempty"`
	Reason       string              `json:"reason,omitempty"`
	// Duration is the time spent waiting for a connection on checkout events.
	Duration time.Duration `json:"duration,omitempty"`
	Error    error         `json:"-"`
}

// PoolMonitor is a function that allows the user to gain access to events occurring in the pool
type PoolMonitor struct {
	Event func(*PoolEvent)
}
