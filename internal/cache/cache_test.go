package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheGetSet(t *testing.T) {
	c := New[string, int](Config{MaxEntries: 2, TTL: time.Minute})

	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Set("a", 1)
	c.Set("b", 2)
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	c.Set("c", 3) // evicts b, the least recently used
	_, ok = c.Get("b")
	assert.False(t, ok)

	assert.Equal(t, Stats{Entries: 2, Hits: 1, Misses: 2}, c.Stats())

	c.Clear()
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCacheExpires(t *testing.T) {
	c := New[string, string](Config{MaxEntries: 4, TTL: 20 * time.Millisecond})
	c.Set("k", "v")

	assert.Eventually(t, func() bool {
		_, ok := c.Get("k")
		return !ok
	}, time.Second, 10*time.Millisecond)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, DefaultConfig(), cfg)
}
