// Package cache holds lookups that are valid for one batch only.
package cache

import (
	"sync"

	"github.com/rs/zerolog"
)

type CacheConfig struct {
	// Enabled determines if caching is active.
	// When false, every GetOrLoad calls the loader.
	Enabled bool

	// MaxSize is the maximum number of entries kept for one batch.
	// Once reached, new entries are loaded but not stored.
	// Set to 0 for unlimited size.
	MaxSize int
}

// DefaultCacheConfig returns a CacheConfig with sensible defaults
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Enabled: true,   // Cache is enabled by default
		MaxSize: 100000, // A batch of 1000 rows rarely needs more
	}
}

// BatchCache memoizes lookups by key until Reset is called at the end of a
// batch. Its lifetime is the batch, never the process.
type BatchCache[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]V
	config  CacheConfig
	log     zerolog.Logger

	hits   int
	misses int
}

// NewBatchCache creates an empty cache. name is added to every log line.
func NewBatchCache[K comparable, V any](name string, config CacheConfig, log zerolog.Logger) *BatchCache[K, V] {
	return &BatchCache[K, V]{
		entries: make(map[K]V),
		config:  config,
		log:     log.With().Str("component", "batch_cache").Str("cache", name).Logger(),
	}
}

func (c *BatchCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return v, ok
}

func (c *BatchCache[K, V]) Put(key K, value V) {
	if !c.config.Enabled {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.config.MaxSize > 0 && len(c.entries) >= c.config.MaxSize {
		return
	}
	c.entries[key] = value
}

// GetOrLoad returns the cached value for key, calling load on a miss. Errors
// are not cached.
func (c *BatchCache[K, V]) GetOrLoad(key K, load func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	c.mu.Lock()
	c.misses++
	c.mu.Unlock()

	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	c.Put(key, v)
	return v, nil
}

func (c *BatchCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Reset drops every entry and the hit/miss counters.
func (c *BatchCache[K, V]) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.log.Debug().
		Int("entries", len(c.entries)).
		Int("hits", c.hits).
		Int("misses", c.misses).
		Msg("Released batch cache")

	c.entries = make(map[K]V)
	c.hits = 0
	c.misses = 0
}
