// Package cache provides a small in-process TTL cache used to answer
// repeated searches without re-embedding the query.
package cache

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// ErrNotFound is returned when a key is not present in the cache.
var ErrNotFound = errors.New("key not found in cache")

// Cache defines caching operations over string keys.
type Cache[V any] interface {
	Get(key string) (V, error)
	Set(key string, value V, ttl time.Duration) error
	Delete(key string)
	Flush()
	Close() error
}

// RistrettoCache implements Cache on ristretto. Every entry costs 1, so
// maxEntries bounds the entry count rather than memory bytes; entries here
// are small result slices and the simpler accounting is enough.
type RistrettoCache[V any] struct {
	cache *ristretto.Cache[string, V]
}

var _ Cache[int] = (*RistrettoCache[int])(nil)

// NewRistrettoCache creates a cache holding up to maxEntries entries.
func NewRistrettoCache[V any](maxEntries int64) (*RistrettoCache[V], error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache[V]{cache: c}, nil
}

// Get retrieves a value.
func (c *RistrettoCache[V]) Get(key string) (V, error) {
	value, ok := c.cache.Get(key)
	if !ok {
		var zero V
		return zero, ErrNotFound
	}
	return value, nil
}

// Set stores a value with a TTL. A zero TTL stores without expiry.
func (c *RistrettoCache[V]) Set(key string, value V, ttl time.Duration) error {
	if ttl > 0 {
		c.cache.SetWithTTL(key, value, 1, ttl)
	} else {
		c.cache.Set(key, value, 1)
	}
	// Admission is async; waiting keeps read-after-write predictable for
	// the search path, which sets one entry per miss.
	c.cache.Wait()
	return nil
}

// Delete removes a key.
func (c *RistrettoCache[V]) Delete(key string) {
	c.cache.Del(key)
}

// Flush drops every entry.
func (c *RistrettoCache[V]) Flush() {
	c.cache.Clear()
}

// Close releases cache resources.
func (c *RistrettoCache[V]) Close() error {
	c.cache.Close()
	return nil
}
