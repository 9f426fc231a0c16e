// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package cache holds the fetch-through caches used for gateway keys and
// public decryptions.
package cache

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

type ttlEntry[V any] struct {
	value   V
	fetched time.Time
}

// TTLCache keeps each value for a fixed duration after it was fetched.
// Concurrent fetches of the same key are deduplicated.
type TTLCache[K comparable, V any] struct {
	ttl     time.Duration
	now     func() time.Time
	lock    sync.RWMutex
	data    map[K]ttlEntry[V]
	fetches singleflight.Group
}

func NewTTLCache[K comparable, V any](ttl time.Duration) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		ttl:  ttl,
		now:  time.Now,
		data: make(map[K]ttlEntry[V]),
	}
}

// Get returns the value for key if it was fetched less than ttl ago,
// otherwise it calls fetchFunc. If [invalidate] is true the entry is deleted
// first so no caller can observe the stale value while the refetch runs.
func (c *TTLCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.Invalidate(key)
	} else {
		c.lock.RLock()
		entry, ok := c.data[key]
		c.lock.RUnlock()
		if ok && c.now().Sub(entry.fetched) < c.ttl {
			return entry.value, nil
		}
	}

	v, err, _ := c.fetches.Do(keyToString(key), func() (interface{}, error) {
		value, err := fetchFunc(key)
		if err != nil {
			return nil, err
		}
		c.lock.Lock()
		c.data[key] = ttlEntry[V]{value: value, fetched: c.now()}
		c.lock.Unlock()
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Invalidate removes key
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.lock.Lock()
	delete(c.data, key)
	c.lock.Unlock()
}

// keyToString supports fmt.Stringer keys as well as primitive and struct keys.
func keyToString[K comparable](key K) string {
	if s, ok := any(key).(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprintf("%v", key)
}
