package utils

import "sync"

// BoundedCache keeps the most recently added entries up to a fixed capacity,
// evicting the oldest first. It is safe for concurrent use.
type BoundedCache[K comparable, V any] struct {
	mu       sync.Mutex
	entries  map[K]V
	order    []K
	capacity int
}

const DefaultDispatchCacheCapacity = 100000

func NewBoundedCache[K comparable, V any](capacity int) *BoundedCache[K, V] {
	if capacity <= 0 {
		capacity = DefaultDispatchCacheCapacity
	}
	return &BoundedCache[K, V]{
		entries:  make(map[K]V),
		capacity: capacity,
		order:    make([]K, 0, min(capacity, 1024)),
	}
}

func (c *BoundedCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

// Add stores v under key unless key is already present; the first value wins.
func (c *BoundedCache[K, V]) Add(key K, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.order) >= c.capacity {
		old := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, old)
	}
	c.entries[key] = v
	c.order = append(c.order, key)
}

func (c *BoundedCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
