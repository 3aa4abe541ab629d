package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a generic LRU cache with per-entry TTL expiration. The watcher uses
// it to keep fetched inscription content across watch-loop iterations;
// inscribed content is immutable, so a long TTL is safe.
type LRU[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[K]*list.Element
	order    *list.List
	nowFn    func() time.Time
}

type item[K comparable, V any] struct {
	key      K
	value    V
	staleAt  time.Time
	noExpiry bool
}

// New creates an LRU cache holding at most capacity entries. A non-positive
// ttl disables expiration.
func New[K comparable, V any](capacity int, ttl time.Duration) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		nowFn:    time.Now,
	}
}

// Get returns the cached value and true when present and fresh.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.index[key]
	if !ok {
		return zero, false
	}
	it := elem.Value.(*item[K, V])
	if !it.noExpiry && c.nowFn().After(it.staleAt) {
		c.drop(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return it.value, true
}

// Put stores or refreshes a value, evicting the least recently used entry
// when the cache is full.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		it := elem.Value.(*item[K, V])
		it.value = value
		it.staleAt = c.nowFn().Add(c.ttl)
		it.noExpiry = c.ttl <= 0
		c.order.MoveToFront(elem)
		return
	}

	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.drop(oldest)
		}
	}

	it := &item[K, V]{
		key:      key,
		value:    value,
		staleAt:  c.nowFn().Add(c.ttl),
		noExpiry: c.ttl <= 0,
	}
	c.index[key] = c.order.PushFront(it)
}

// Len returns the number of stored entries, counting stale ones not yet
// evicted.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU[K, V]) drop(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.index, elem.Value.(*item[K, V]).key)
}
