// Copyright (C) MongoDB, Inc. 2024-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Owner is the unit of work connections are checked out for, typically one per goroutine or request. The pool uses
// it to find the connection being released and to refuse an owner that is about to starve the pool by itself.
//
// An Owner may be shared between goroutines, but the connections it holds are meant to be used by one task.
type Owner[C comparable] struct {
	pool *Pool[C]
	id   string
	name string

	mu   sync.Mutex
	held []*pooledConnection[C]
}

// NewOwner creates an owner for checking out connections from p. name is used in diagnostics only.
func (p *Pool[C]) NewOwner(name string) *Owner[C] {
	return &Owner[C]{
		pool: p,
		id:   uuid.NewString(),
		name: name,
	}
}

// ID returns the unique identifier of the owner.
func (o *Owner[C]) ID() string { return o.id }

// Name returns the name given to NewOwner.
func (o *Owner[C]) Name() string { return o.name }

// Held returns the number of connections currently checked out by the owner.
func (o *Owner[C]) Held() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.held)
}

func (o *Owner[C]) String() string {
	if o.name == "" {
		return fmt.Sprintf("owner %s", o.id)
	}
	return fmt.Sprintf("owner %q (%s)", o.name, o.id)
}

func (o *Owner[C]) add(pc *pooledConnection[C]) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.held = append(o.held, pc)
}

func (o *Owner[C]) remove(pc *pooledConnection[C]) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := len(o.held) - 1; i >= 0; i-- {
		if o.held[i] == pc {
			o.held = append(o.held[:i], o.held[i+1:]...)
			return
		}
	}
}

// take removes and returns the record wrapping conn. Nested checkouts are usually released in reverse order, so the
// search starts from the most recent one.
func (o *Owner[C]) take(conn C) *pooledConnection[C] {
	o.mu.Lock()
	defer o.mu.Unlock()

	for i := len(o.held) - 1; i >= 0; i-- {
		pc := o.held[i]
		if pc.holds(conn) {
			o.held = append(o.held[:i], o.held[i+1:]...)
			return pc
		}
	}
	return nil
}

// traces returns the number of held connections and their allocation traces.
func (o *Owner[C]) traces() (int, [][]string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	traces := make([][]string, len(o.held))
	for i, pc := range o.held {
		traces[i] = pc.allocationTrace()
	}
	return len(o.held), traces
}
