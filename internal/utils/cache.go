package utils

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheItem value plus its expiry.
type cacheItem[T any] struct {
	Value     T
	ExpiredAt time.Time
}

// LRUCache size-bounded LRU whose entries also expire after ttl. Safe for
// concurrent use.
type LRUCache[K comparable, T any] struct {
	storage *lru.Cache[K, cacheItem[T]]
	ttl     time.Duration
	now     func() time.Time
}

// NewLRUCache size is the maximum number of entries; size <= 0 falls back to 1000.
func NewLRUCache[K comparable, T any](size int, ttl time.Duration) *LRUCache[K, T] {
	if size <= 0 {
		size = 1000
	}
	c, _ := lru.New[K, cacheItem[T]](size)
	return &LRUCache[K, T]{storage: c, ttl: ttl, now: time.Now}
}

// Set adds or replaces key.
func (c *LRUCache[K, T]) Set(key K, value T) {
	c.storage.Add(key, cacheItem[T]{Value: value, ExpiredAt: c.now().Add(c.ttl)})
}

// Get returns the value for key unless it is missing or expired.
func (c *LRUCache[K, T]) Get(key K) (T, bool) {
	var zero T
	item, ok := c.storage.Get(key)
	if !ok {
		return zero, false
	}
	if c.now().After(item.ExpiredAt) {
		c.storage.Remove(key)
		return zero, false
	}
	return item.Value, true
}

func (c *LRUCache[K, T]) Delete(key K) {
	c.storage.Remove(key)
}

func (c *LRUCache[K, T]) Clear() {
	c.storage.Purge()
}

func (c *LRUCache[K, T]) Len() int {
	return c.storage.Len()
}
