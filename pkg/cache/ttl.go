package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// TTLConfig bounds a TTL cache.
type TTLConfig struct {
	// MaxSize is the maximum number of entries; the least recently used entry is evicted first.
	MaxSize int `json:"max_size" yaml:"max_size" env:"AUTH_CACHE_SIZE" default:"4096"`

	// TTL is how long an entry stays valid after it was added.
	TTL time.Duration `json:"ttl" yaml:"ttl" env:"AUTH_CACHE_TTL" default:"1m"`
}

// TTL is a size-bounded LRU whose entries also expire after a fixed duration.
// It is safe for concurrent use.
type TTL[K comparable, V any] struct {
	lru *expirable.LRU[K, V]
}

// NewTTL creates a TTL cache. Non-positive sizes fall back to 1000 entries.
func NewTTL[K comparable, V any](config TTLConfig) *TTL[K, V] {
	size := config.MaxSize
	if size <= 0 {
		size = 1000
	}
	return &TTL[K, V]{lru: expirable.NewLRU[K, V](size, nil, config.TTL)}
}

func (c *TTL[K, V]) Get(key K) (V, bool) {
	return c.lru.Get(key)
}

func (c *TTL[K, V]) Set(key K, value V) {
	c.lru.Add(key, value)
}

func (c *TTL[K, V]) Delete(key K) {
	c.lru.Remove(key)
}

func (c *TTL[K, V]) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *TTL[K, V]) Purge() {
	c.lru.Purge()
}
