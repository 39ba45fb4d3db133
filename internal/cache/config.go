package cache

import (
	"time"
)

// Config sizes a lookup cache.
type Config struct {
	MaxEntries int           `json:"maxEntries"`
	TTL        time.Duration `json:"ttl"`
}

// DefaultConfig returns default cache configuration
func DefaultConfig() Config {
	return Config{
		MaxEntries: 256,
		TTL:        time.Hour,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxEntries <= 0 {
		c.MaxEntries = d.MaxEntries
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	return c
}
