// ABOUTME: Thread-safe TTL cache for deduplicating replayed offline actions.
// ABOUTME: Tracks client-generated action IDs so a retried upload applies once.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores the timestamp and list element for a cached action ID.
type cacheEntry struct {
	timestamp time.Time
	element   *list.Element
}

// Cache is a thread-safe, TTL-based, size-limited record of action IDs that
// have already been applied. Clients retry outbox uploads after connectivity
// loss, so the same action can arrive more than once; the cache lets the
// replay path apply it exactly once within the TTL window. A doubly-linked
// list keeps insertion order for O(1) eviction at capacity.
type Cache struct {
	mu      sync.RWMutex
	seen    map[string]*cacheEntry
	order   *list.List // action IDs in insertion order, oldest at front
	ttl     time.Duration
	maxSize int
	done    chan struct{}
	closed  bool
}

// New creates a dedupe cache with the given TTL and maximum size. A
// background goroutine periodically removes expired entries.
func New(ttl time.Duration, maxSize int) *Cache {
	c := &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		done:    make(chan struct{}),
	}
	go c.cleanup()
	return c
}

// Check reports whether the action ID has been applied within the TTL.
func (c *Cache) Check(actionID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.seen[actionID]
	if !ok {
		return false
	}
	return time.Since(entry.timestamp) < c.ttl
}

// CheckAndMark atomically checks whether an action ID was already applied and
// marks it if not. Returns true for a duplicate, false if the ID is new and
// now marked. The single critical section avoids the race a separate
// Check/Mark pair would have when the same action arrives on two requests.
func (c *Cache) CheckAndMark(actionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.seen[actionID]
	if ok && time.Since(entry.timestamp) < c.ttl {
		return true
	}

	c.markLocked(actionID)
	return false
}

// Mark records that an action ID has been applied. At capacity the oldest
// entry is evicted to make room.
func (c *Cache) Mark(actionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.markLocked(actionID)
}

// markLocked must be called with mu held.
func (c *Cache) markLocked(actionID string) {
	now := time.Now()

	if entry, exists := c.seen[actionID]; exists {
		entry.timestamp = now
		c.order.MoveToBack(entry.element)
		return
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	elem := c.order.PushBack(actionID)
	c.seen[actionID] = &cacheEntry{
		timestamp: now,
		element:   elem,
	}
}

// evictOldest must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	actionID, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, actionID)
}

func (c *Cache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.runCleanup()
		case <-c.done:
			return
		}
	}
}

func (c *Cache) runCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for actionID, entry := range c.seen {
		if now.Sub(entry.timestamp) > c.ttl {
			c.order.Remove(entry.element)
			delete(c.seen, actionID)
		}
	}
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (c *Cache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.closed {
		close(c.done)
		c.closed = true
	}
}
