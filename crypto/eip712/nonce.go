// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package eip712

import (
	"math/big"
	"sync/atomic"
	"time"
)

// NonceSource yields the nonce for requests signed without an explicit one.
type NonceSource interface {
	Next() *big.Int
}

// MonotonicNonce derives nonces from wall-clock milliseconds but never hands
// out the same value twice, even when called faster than the clock ticks or
// when the clock steps backwards.
type MonotonicNonce struct {
	last atomic.Uint64
	now  func() time.Time
}

// NewMonotonicNonce returns a NonceSource backed by time.Now
func NewMonotonicNonce() *MonotonicNonce {
	return &MonotonicNonce{now: time.Now}
}

func (m *MonotonicNonce) Next() *big.Int {
	now := uint64(m.now().UnixMilli())
	for {
		prev := m.last.Load()
		next := max(now, prev+1)
		if m.last.CompareAndSwap(prev, next) {
			return new(big.Int).SetUint64(next)
		}
	}
}
