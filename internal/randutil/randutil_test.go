// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package randutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockedRand(t *testing.T) {
	t.Parallel()

	t.Run("same seed same sequence", func(t *testing.T) {
		t.Parallel()

		a, b := NewLockedRand(7), NewLockedRand(7)
		for i := 0; i < 10; i++ {
			assert.Equal(t, a.Int63(), b.Int63())
		}
	})
	t.Run("ranges", func(t *testing.T) {
		t.Parallel()

		lr := NewLockedRand(CryptoSeed())
		for i := 0; i < 100; i++ {
			f := lr.Float64()
			assert.True(t, f >= 0 && f < 1, "Float64 out of range: %v", f)
			n := lr.Int63n(5)
			assert.True(t, n >= 0 && n < 5, "Int63n out of range: %v", n)
		}
	})
	t.Run("concurrent use", func(t *testing.T) {
		t.Parallel()

		lr := NewLockedRand(1)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 1000; j++ {
					lr.Float64()
				}
			}()
		}
		wg.Wait()
	})
}
