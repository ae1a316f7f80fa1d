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

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikmak/agingpool/internal/conntest"
	"github.com/ikmak/agingpool/options"
)

func TestStats(t *testing.T) {
	t.Parallel()

	tp := newTestPool(t, nil, options.Pool().SetSize(3))
	start := tp.clock.Now()
	owner := tp.NewOwner("worker")

	a, err := tp.AcquireN(context.Background(), owner, 2)
	require.NoError(t, err)
	b, err := tp.AcquireN(context.Background(), owner, 2)
	require.NoError(t, err)
	tp.clock.Advance(3 * time.Second)
	tp.Release(owner, a)

	want := Statistics{
		Name:             "test",
		Size:             3,
		CreateTime:       start,
		ReapInterval:     time.Minute,
		MaxIdleTime:      10 * time.Minute,
		MaxConnectionAge: 30 * time.Minute,
		Concurrency:      1,
		MaxConcurrency:   2,
		PoolSize:         2,
		ConnectionCount:  2,
		Connects:         2,
		TransactionCount: 2,
		TotalTime:        3 * time.Second,
	}
	if diff := cmp.Diff(want, tp.Stats()); diff != "" {
		t.Errorf("Stats mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, tp.Concurrency())
	assert.Equal(t, 2, tp.MaxConcurrency())
	assert.Equal(t, 2, tp.ConnectionCount())
	assert.Equal(t, uint64(2), tp.Connects())

	tp.Release(owner, b)
	tp.Close()
	stats := tp.Stats()
	assert.True(t, stats.Closed)
	assert.Equal(t, 0, stats.ConnectionCount)
	assert.Equal(t, 6*time.Second, stats.TotalTime)
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	tp := newTestPool(t, nil)
	t0 := tp.clock.Now()
	owner := tp.NewOwner("worker")

	a, err := tp.AcquireN(context.Background(), owner, 2)
	require.NoError(t, err)
	tp.clock.Advance(time.Second)
	_, err = tp.AcquireN(context.Background(), owner, 2)
	require.NoError(t, err)
	tp.clock.Advance(time.Second)
	tp.Release(owner, a)

	want := []ConnectionSnapshot{
		{
			Number:       1,
			ID:           1,
			Connected:    true,
			CreateTime:   t0,
			ConnectCount: 1,
			UseCount:     1,
			TotalTime:    2 * time.Second,
			Busy:         false,
			CheckoutTime: t0,
			ReleaseTime:  t0.Add(2 * time.Second),
		},
		{
			Number:       2,
			ID:           2,
			Connected:    true,
			CreateTime:   t0.Add(time.Second),
			ConnectCount: 1,
			UseCount:     1,
			Busy:         true,
			CheckoutTime: t0.Add(time.Second),
			OwnerID:      owner.ID(),
		},
	}
	if diff := cmp.Diff(want, tp.Snapshot(), cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("Snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestWaitTimes(t *testing.T) {
	t.Parallel()

	t.Run("records checkouts", func(t *testing.T) {
		t.Parallel()

		tp := newTestPool(t, nil)
		owner := tp.NewOwner("worker")
		for i := 0; i < 3; i++ {
			c, err := tp.Acquire(context.Background(), owner)
			require.NoError(t, err)
			tp.Release(owner, c)
		}
		waits := tp.WaitTimes()
		assert.Len(t, waits, 3)
		for _, w := range waits {
			assert.GreaterOrEqual(t, w, time.Duration(0))
		}
	})
	t.Run("keeps the most recent samples", func(t *testing.T) {
		t.Parallel()

		w := newWaitSamples()
		for i := 0; i < maxWaitSamples+100; i++ {
			w.add(time.Duration(i))
		}
		got := w.list()
		require.Len(t, got, maxWaitSamples)
		assert.Equal(t, time.Duration(100), got[0])
		assert.Equal(t, time.Duration(maxWaitSamples+99), got[len(got)-1])
	})
}

func TestOwner(t *testing.T) {
	t.Parallel()

	tp := newTestPool(t, nil)
	a := tp.NewOwner("a")
	b := tp.NewOwner("")

	assert.NotEqual(t, a.ID(), b.ID())
	assert.Equal(t, "a", a.Name())
	assert.Contains(t, a.String(), `"a"`)
	assert.Contains(t, b.String(), b.ID())
	assert.Equal(t, 0, a.Held())

	c, err := tp.Acquire(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, 1, a.Held())
	assert.Nil(t, b.take(c), "expected an owner to only find its own connections")
	assert.Nil(t, a.take(&conntest.MockConnection{}))
	assert.NotNil(t, a.take(c))
	assert.Equal(t, 0, a.Held())
}
