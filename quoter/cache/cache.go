// Package cache provides the chain-scoped TTL caches a chain context is assembled with.
package cache

import (
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is a TTL cache bound to one chain. Every key it stores is prefixed with the chain id,
// so two chains never observe each other's entries.
type Cache[T any] struct {
	chainID uint64
	ttl     time.Duration
	store   *gocache.Cache
	clone   func(T) T
}

// Option configures a Cache
type Option[T any] func(*Cache[T])

// WithCloneOnRead makes Get hand out copies so callers cannot mutate the cached value
func WithCloneOnRead[T any](clone func(T) T) Option[T] {
	return func(c *Cache[T]) {
		c.clone = clone
	}
}

// New creates a cache for chainID whose entries expire after ttl.
// No janitor goroutine is started; expired entries are dropped on read.
func New[T any](chainID uint64, ttl time.Duration, opts ...Option[T]) *Cache[T] {
	c := &Cache[T]{
		chainID: chainID,
		ttl:     ttl,
		store:   gocache.New(ttl, 0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key builds the chain-scoped key for parts
func (c *Cache[T]) Key(parts ...string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", c.chainID)
	for _, p := range parts {
		b.WriteByte('-')
		b.WriteString(strings.ToLower(p))
	}
	return b.String()
}

func (c *Cache[T]) Get(parts ...string) (T, bool) {
	var zero T
	v, ok := c.store.Get(c.Key(parts...))
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false
	}
	if c.clone != nil {
		return c.clone(typed), true
	}
	return typed, true
}

func (c *Cache[T]) Set(value T, parts ...string) {
	c.store.Set(c.Key(parts...), value, gocache.DefaultExpiration)
}

func (c *Cache[T]) Delete(parts ...string) {
	c.store.Delete(c.Key(parts...))
}

// Len counts stored entries, including ones that expired but were not yet read
func (c *Cache[T]) Len() int {
	return c.store.ItemCount()
}

func (c *Cache[T]) TTL() time.Duration {
	return c.ttl
}

func (c *Cache[T]) ChainID() uint64 {
	return c.chainID
}
