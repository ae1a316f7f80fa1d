// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package randutil provides a pseudo-random source shared by concurrent workload generators.
package randutil

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"sync"

	"github.com/pkg/errors"
)

// A LockedRand wraps a "math/rand".Rand and is safe to use from multiple goroutines.
type LockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewLockedRand returns a LockedRand seeded with seed.
func NewLockedRand(seed int64) *LockedRand {
	/* #nosec G404 */
	return &LockedRand{r: rand.New(rand.NewSource(seed))}
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (lr *LockedRand) Float64() float64 {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.r.Float64()
}

// Int63 returns a non-negative pseudo-random 63-bit integer.
func (lr *LockedRand) Int63() int64 {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.r.Int63()
}

// Int63n returns a pseudo-random number in [0,n). It panics if n <= 0.
func (lr *LockedRand) Int63n(n int64) int64 {
	lr.mu.Lock()
	defer lr.mu.Unlock()
	return lr.r.Int63n(n)
}

// CryptoSeed returns a random int64 read from "crypto/rand", for seeding a LockedRand. It panics if the system
// source fails.
func CryptoSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(errors.Wrap(err, "reading 8 bytes from crypto/rand"))
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
