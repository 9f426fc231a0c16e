// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// LRUCache is a bounded cache for values that never go stale once fetched,
// such as publicly decrypted plaintexts. Concurrent misses for the same key
// share one fetch.
type LRUCache[K comparable, V any] struct {
	entries *lru.Cache[K, V]
	fetches singleflight.Group
}

// NewLRUCache returns a cache holding at most size entries. A non-positive
// size is treated as 1.
func NewLRUCache[K comparable, V any](size int) *LRUCache[K, V] {
	if size <= 0 {
		size = 1
	}
	// lru.New only fails for a non-positive size
	entries, _ := lru.New[K, V](size)
	return &LRUCache[K, V]{entries: entries}
}

// Get returns the cached value for key, or fetches and stores it. If
// [invalidate] is true the entry is dropped before fetching. Failed fetches
// are not cached.
func (c *LRUCache[K, V]) Get(key K, fetchFunc func(K) (V, error), invalidate bool) (V, error) {
	if invalidate {
		c.entries.Remove(key)
	} else if value, ok := c.entries.Get(key); ok {
		return value, nil
	}

	v, err, _ := c.fetches.Do(keyToString(key), func() (interface{}, error) {
		value, err := fetchFunc(key)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, value)
		return value, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}

// Len returns the number of cached entries
func (c *LRUCache[K, V]) Len() int {
	return c.entries.Len()
}

// Purge drops every entry
func (c *LRUCache[K, V]) Purge() {
	c.entries.Purge()
}
