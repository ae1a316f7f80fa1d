// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"fmt"
	"strings"
)

// PoolError is an error returned from a Pool method.
type PoolError string

func (pe PoolError) Error() string { return string(pe) }

// ErrPoolClosed is returned from an attempt to check out a connection from a closed pool, or when the pool is closed
// while a connection is being created for the caller.
var ErrPoolClosed = PoolError("pool is closed")

// ErrOwnerLimitExceeded is returned when an owner that already holds its quota of connections tries to allocate more
// than half of the pool.
var ErrOwnerLimitExceeded = PoolError("owner attempted to allocate more than half of the connection pool")

// ErrWrongPool is returned when an owner created by one pool is used with another pool.
var ErrWrongPool = PoolError("owner does not belong to this pool")

// ErrNilOwner is returned when a checkout is attempted without an owner.
var ErrNilOwner = PoolError("owner is nil")

// ErrorFactory may be implemented by a Connector to make the pool return errors of the connector's own types. The
// cause passed to each method is the pool's sentinel or typed error and should be preserved for errors.Is.
type ErrorFactory interface {
	// NewBusyError builds the error returned when the pool refuses a checkout: the pool is closed or the owner
	// limit was exceeded.
	NewBusyError(message string, cause error) error

	// NewInterruptedError builds the error returned when the caller's context is done before a connection could be
	// checked out.
	NewInterruptedError(message string, cause error) error
}

// BusyError is the default error returned when the pool refuses a checkout.
type BusyError struct {
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *BusyError) Error() string {
	if e.Wrapped != nil && e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Message, e.Wrapped.Error())
	}
	if e.Wrapped != nil {
		return e.Wrapped.Error()
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *BusyError) Unwrap() error {
	return e.Wrapped
}

// InterruptedError is the default error returned when a checkout is abandoned because its context is done.
type InterruptedError struct {
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *InterruptedError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Wrapped.Error())
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *InterruptedError) Unwrap() error {
	return e.Wrapped
}

// OwnerLimitError describes an owner refused a connection because it already holds too many.
type OwnerLimitError struct {
	Owner string
	Held  int
	Limit int

	// Traces holds the allocation trace of each held connection, when trace capture is enabled.
	Traces [][]string
}

// Error implements the error interface.
func (e *OwnerLimitError) Error() string {
	return fmt.Sprintf("%s: %s holds %d connections, limit is %d", ErrOwnerLimitExceeded, e.Owner, e.Held, e.Limit)
}

// Unwrap returns ErrOwnerLimitExceeded.
func (e *OwnerLimitError) Unwrap() error {
	return ErrOwnerLimitExceeded
}

// ErrorStack returns the allocation traces of the held connections, one block per connection.
func (e *OwnerLimitError) ErrorStack() string {
	return formatTraces(e.Traces)
}

type defaultErrorFactory struct{}

func (defaultErrorFactory) NewBusyError(message string, cause error) error {
	return &BusyError{Message: message, Wrapped: cause}
}

func (defaultErrorFactory) NewInterruptedError(message string, cause error) error {
	return &InterruptedError{Message: message, Wrapped: cause}
}

func formatTraces(traces [][]string) string {
	var b strings.Builder
	for i, trace := range traces {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "Connection #%d", i+1)
		if len(trace) == 0 {
			b.WriteString("\n    No allocation registered.")
			continue
		}
		for _, line := range trace {
			b.WriteString("\n    at ")
			b.WriteString(line)
		}
	}
	return b.String()
}
