package cache

import (
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache is a size-bounded LRU whose entries expire after a TTL. It backs
// geocoding lookups and agent answers.
type Cache[K comparable, V any] struct {
	lru    *expirable.LRU[K, V]
	hits   atomic.Int64
	misses atomic.Int64
}

// Stats are cumulative cache counters.
type Stats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// New creates a cache sized by cfg.
func New[K comparable, V any](cfg Config) *Cache[K, V] {
	cfg = cfg.withDefaults()
	return &Cache[K, V]{
		lru: expirable.NewLRU[K, V](cfg.MaxEntries, nil, cfg.TTL),
	}
}

// Get returns a live entry.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores or replaces an entry.
func (c *Cache[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	c.lru.Purge()
}

// Stats returns the current counters.
func (c *Cache[K, V]) Stats() Stats {
	return Stats{
		Entries: c.lru.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
