// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikmak/agingpool/event"
	"github.com/ikmak/agingpool/internal/conntest"
	"github.com/ikmak/agingpool/options"
)

func TestRelease(t *testing.T) {
	t.Parallel()

	t.Run("accumulates time in use", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil)
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.clock.Advance(5 * time.Second)
		tp.Release(owner, c)
		assert.Equal(t, 5*time.Second, tp.TotalTime())

		c, err = tp.Acquire(context.Background(), owner)
		require.NoError(t, err)
		tp.clock.Advance(2 * time.Second)
		tp.Release(owner, c)
		assert.Equal(t, 7*time.Second, tp.TotalTime())

		returned := tp.events.ofType(event.ConnectionReturned)
		require.Len(t, returned, 2)
		assert.Equal(t, owner.ID(), returned[0].OwnerID)
	})
	t.Run("unknown connection is ignored", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil)
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.Release(owner, &conntest.MockConnection{ID: 99})
		assert.Equal(t, 1, tp.Concurrency())
		assert.Equal(t, 1, tp.sink.count("released connection is not checked out by the owner"))

		tp.Release(owner, c)
		tp.Release(owner, c)
		assert.Equal(t, 0, tp.Concurrency())
		assert.Equal(t, 2, tp.sink.count("released connection is not checked out by the owner"))
		assert.Len(t, tp.events.ofType(event.ConnectionReturned), 1)
	})
	t.Run("another owner cannot release", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil)
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.Release(tp.NewOwner("thief"), c)
		assert.Equal(t, 1, tp.Concurrency())
		assert.Equal(t, 1, owner.Held())

		tp.Release(nil, c)
		assert.Equal(t, 1, tp.Concurrency())
	})
	t.Run("nested checkouts released in any order", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil)
		owner := tp.NewOwner("worker")
		conns := make([]*conntest.MockConnection, 3)
		for i := range conns {
			var err error
			conns[i], err = tp.AcquireN(context.Background(), owner, 3)
			require.NoError(t, err)
		}

		tp.Release(owner, conns[1])
		assert.Equal(t, 2, owner.Held())
		tp.Release(owner, conns[2])
		tp.Release(owner, conns[0])
		assert.Equal(t, 0, owner.Held())
		assert.Equal(t, 0, tp.Concurrency())
		assert.Equal(t, 3, tp.ConnectionCount())
	})
	t.Run("closes a connection older than the maximum age", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil, options.Pool().SetMaxConnectionAge(time.Minute))
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.clock.Advance(time.Minute)
		tp.Release(owner, c)

		assert.False(t, c.Alive())
		assert.Equal(t, 0, tp.ConnectionCount())
		closed := tp.events.ofType(event.ConnectionClosed)
		require.Len(t, closed, 1)
		assert.Equal(t, event.ReasonStale, closed[0].Reason)

		c2, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)
		assert.NotSame(t, c, c2)
		snaps := tp.Snapshot()
		require.Len(t, snaps, 1)
		assert.Equal(t, uint64(2), snaps[0].ConnectCount)
		assert.Equal(t, uint64(2), snaps[0].UseCount)
	})
	t.Run("keeps a young connection", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil, options.Pool().SetMaxConnectionAge(time.Minute))
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.clock.Advance(59 * time.Second)
		tp.Release(owner, c)
		assert.True(t, c.Alive())
	})
	t.Run("closes a connection created in the future", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil, options.Pool().SetMaxConnectionAge(time.Minute))
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.clock.Advance(-time.Second)
		tp.Release(owner, c)
		assert.False(t, c.Alive())
	})
	t.Run("unlimited age keeps old connections", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil, options.Pool().SetMaxConnectionAge(options.UnlimitedConnectionAge))
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.clock.Advance(1000 * time.Hour)
		tp.Release(owner, c)
		assert.True(t, c.Alive())
	})
	t.Run("connection closed by the peer is dropped", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil)
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		c.Kill()
		tp.Release(owner, c)

		assert.Equal(t, 0, tp.connector.CloseCount())
		assert.Equal(t, 1, c.Resets(), "expected no reset of a closed connection")
		assert.Equal(t, 0, tp.ConnectionCount())
		assert.Equal(t, 0, tp.Concurrency())
	})
	t.Run("inspection failure closes the connection", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, &conntest.MockConnector{
			InspectFn: func(*conntest.MockConnection) error { return conntest.ErrInjected },
		})
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		tp.Release(owner, c)
		assert.False(t, c.Alive())
		assert.Equal(t, 1, c.Resets(), "expected no reset after a failed inspection")
		_, logged := tp.sink.find("released connection failed inspection, closing it")
		assert.True(t, logged)
	})
	t.Run("reset failure closes the connection", func(t *testing.T) {
		t.Parallel()

		var failReset bool
		tp := newTestPool(t, &conntest.MockConnector{
			ResetFn: func(context.Context, *conntest.MockConnection) error {
				if failReset {
					return conntest.ErrInjected
				}
				return nil
			},
		})
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		failReset = true
		tp.Release(owner, c)
		assert.False(t, c.Alive())
		assert.Equal(t, 0, tp.ConnectionCount())
		assert.Equal(t, 0, tp.Concurrency())
		msg, ok := tp.sink.find("unable to reset released connection, closing it")
		require.True(t, ok)
		assert.Equal(t, conntest.ErrInjected, msg.err)
	})
	t.Run("probe failure closes the connection", func(t *testing.T) {
		t.Parallel()

		var probeFails bool
		tp := newTestPool(t, &conntest.MockConnector{
			IsClosedFn: func(c *conntest.MockConnection) (bool, error) {
				if probeFails {
					return false, conntest.ErrInjected
				}
				return !c.Alive(), nil
			},
		})
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		probeFails = true
		tp.Release(owner, c)
		assert.False(t, c.Alive())
		assert.Equal(t, 0, tp.Concurrency())
	})
	t.Run("panicking reset is contained", func(t *testing.T) {
		t.Parallel()

		var panicReset bool
		tp := newTestPool(t, &conntest.MockConnector{
			ResetFn: func(context.Context, *conntest.MockConnection) error {
				if panicReset {
					panic("reset exploded")
				}
				return nil
			},
		})
		owner := tp.NewOwner("worker")
		c, err := tp.Acquire(context.Background(), owner)
		require.NoError(t, err)

		panicReset = true
		assert.NotPanics(t, func() { tp.Release(owner, c) })
		assert.False(t, c.Alive())
		assert.Equal(t, 0, tp.Concurrency())
	})
}
